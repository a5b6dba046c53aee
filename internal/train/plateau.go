package train

// Plateau reduces a learning rate when the monitored loss stops improving.
// A loss counts as an improvement when it is below best*(1-Threshold).
// After more than Patience epochs without improvement the rate is
// multiplied by Factor and the counter resets.
type Plateau struct {
	Factor    float64
	Patience  int
	Threshold float64
	MinLR     float64
	Eps       float64

	best       float64
	bad        int
	hasBest    bool
	reductions int
}

// NewPlateau creates a scheduler with the usual defaults
// (threshold 1e-4 relative, no minimum rate, eps 1e-8).
func NewPlateau(factor float64, patience int) *Plateau {
	return &Plateau{
		Factor:    factor,
		Patience:  patience,
		Threshold: 1e-4,
		Eps:       1e-8,
	}
}

// Step observes one epoch loss and returns the learning rate to use next.
// The returned rate is never larger than lr.
func (p *Plateau) Step(loss, lr float64) float64 {
	if !p.hasBest || loss < p.best*(1-p.Threshold) {
		p.best = loss
		p.hasBest = true
		p.bad = 0
	} else {
		p.bad++
	}

	if p.bad <= p.Patience {
		return lr
	}
	p.bad = 0
	next := max(lr*p.Factor, p.MinLR)
	if lr-next <= p.Eps {
		return lr
	}
	p.reductions++
	return next
}

// Best returns the lowest loss seen so far.
func (p *Plateau) Best() float64 {
	return p.best
}

// Reductions returns how many times the rate was reduced.
func (p *Plateau) Reductions() int {
	return p.reductions
}

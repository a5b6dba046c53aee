package train

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam is the adaptive moment estimation optimizer. It updates the parameter
// matrices it was created with in place.
type Adam struct {
	LR      float64
	Beta1   float64
	Beta2   float64
	Epsilon float64

	params []*mat.Dense
	m, v   [][]float64
	step   int
}

// NewAdam creates an optimizer over params with the usual defaults
// (beta1 0.9, beta2 0.999, epsilon 1e-8).
func NewAdam(params []*mat.Dense, lr float64) *Adam {
	a := &Adam{
		LR:      lr,
		Beta1:   0.9,
		Beta2:   0.999,
		Epsilon: 1e-8,
		params:  params,
		m:       make([][]float64, len(params)),
		v:       make([][]float64, len(params)),
	}
	for i, p := range params {
		n := len(p.RawMatrix().Data)
		a.m[i] = make([]float64, n)
		a.v[i] = make([]float64, n)
	}
	return a
}

// Step applies one bias-corrected update using grads, which must match the
// parameters one-to-one in order and shape.
func (a *Adam) Step(grads []*mat.Dense) error {
	if len(grads) != len(a.params) {
		return fmt.Errorf("expected %d gradients, got %d", len(a.params), len(grads))
	}
	for i, g := range grads {
		gr, gc := g.Dims()
		pr, pc := a.params[i].Dims()
		if gr != pr || gc != pc {
			return fmt.Errorf("gradient %d has shape %dx%d, parameter is %dx%d", i, gr, gc, pr, pc)
		}
	}

	a.step++
	c1 := 1 - math.Pow(a.Beta1, float64(a.step))
	c2 := 1 - math.Pow(a.Beta2, float64(a.step))

	for i, p := range a.params {
		pd := p.RawMatrix().Data
		gd := grads[i].RawMatrix().Data
		m, v := a.m[i], a.v[i]
		for j, g := range gd {
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*g
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*g*g
			mHat := m[j] / c1
			vHat := v[j] / c2
			pd[j] -= a.LR * mHat / (math.Sqrt(vHat) + a.Epsilon)
		}
	}
	return nil
}

// Steps returns how many updates have been applied.
func (a *Adam) Steps() int {
	return a.step
}

// Package train fits the verification classifier on a full in-memory batch of
// embedding-difference features.
package train

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/face-verify/internal/classifier"
	"github.com/kozaktomas/face-verify/internal/features"
)

// Policy selects how the learning rate evolves during training.
type Policy string

const (
	// PolicyFixed keeps the learning rate constant.
	PolicyFixed Policy = "fixed"
	// PolicyAdaptive halves the learning rate when the loss plateaus.
	PolicyAdaptive Policy = "adaptive"
)

// Defaults for both policies.
const (
	DefaultEpochs               = 100
	DefaultLearningRate         = 1e-4
	DefaultAdaptiveLearningRate = 1e-3
	DefaultPatience             = 5
	DefaultFactor               = 0.5
)

// ErrEmptyTrainingSet is returned when there is nothing to train on.
var ErrEmptyTrainingSet = errors.New("training set is empty")

// ParsePolicy converts a policy name into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyFixed, PolicyAdaptive:
		return Policy(s), nil
	case "":
		return PolicyFixed, nil
	}
	return "", fmt.Errorf("unknown training policy %q", s)
}

// Trainer runs a fixed number of full-batch epochs. Every configured epoch
// executes; there is no early stopping and no validation split.
type Trainer struct {
	Policy       Policy
	Epochs       int
	LearningRate float64

	// Plateau settings, used by PolicyAdaptive only.
	Patience int
	Factor   float64

	// Seed fixes the initial weights of the fresh classifier.
	Seed uint64

	Logger   *slog.Logger
	Progress features.Progress
}

// NewFixed returns a fixed-rate trainer with default settings.
func NewFixed(seed uint64) *Trainer {
	return &Trainer{
		Policy:       PolicyFixed,
		Epochs:       DefaultEpochs,
		LearningRate: DefaultLearningRate,
		Seed:         seed,
	}
}

// NewAdaptive returns a plateau-adaptive trainer with default settings.
func NewAdaptive(seed uint64) *Trainer {
	return &Trainer{
		Policy:       PolicyAdaptive,
		Epochs:       DefaultEpochs,
		LearningRate: DefaultAdaptiveLearningRate,
		Patience:     DefaultPatience,
		Factor:       DefaultFactor,
		Seed:         seed,
	}
}

// Epoch records the loss and learning rate of one training epoch.
type Epoch struct {
	Loss float64
	LR   float64
}

// History is the per-epoch training record.
type History struct {
	Epochs     []Epoch
	Reductions int
}

// FinalLoss returns the loss of the last epoch, or 0 when nothing ran.
func (h *History) FinalLoss() float64 {
	if h == nil || len(h.Epochs) == 0 {
		return 0
	}
	return h.Epochs[len(h.Epochs)-1].Loss
}

// Train builds a fresh classifier and optimizes it on the dataset. The
// classifier is owned by the loop until Train returns and is handed back in
// training mode.
func (t *Trainer) Train(ctx context.Context, ds *features.Dataset) (*classifier.MLP, *History, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, nil, ErrEmptyTrainingSet
	}
	if t.Epochs < 0 {
		return nil, nil, fmt.Errorf("epochs must not be negative, got %d", t.Epochs)
	}
	if t.LearningRate <= 0 {
		return nil, nil, fmt.Errorf("learning rate must be positive, got %g", t.LearningRate)
	}
	if t.Policy == PolicyAdaptive && t.Patience < 0 {
		return nil, nil, fmt.Errorf("plateau patience must not be negative, got %d", t.Patience)
	}

	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}

	model := classifier.NewSeeded(t.Seed, ds.Dim())
	optimizer := NewAdam(model.Params(), t.LearningRate)

	var plateau *Plateau
	if t.Policy == PolicyAdaptive {
		factor := t.Factor
		if factor <= 0 || factor >= 1 {
			factor = DefaultFactor
		}
		plateau = NewPlateau(factor, t.Patience)
	}

	history := &History{Epochs: make([]Epoch, 0, t.Epochs)}
	for epoch := range t.Epochs {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("training interrupted at epoch %d: %w", epoch, err)
		}

		model.Train()
		loss, grads, err := model.Gradients(ds.X, ds.Y)
		if err != nil {
			return nil, nil, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		if err := optimizer.Step(grads); err != nil {
			return nil, nil, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		history.Epochs = append(history.Epochs, Epoch{Loss: loss, LR: optimizer.LR})

		if plateau != nil {
			next := plateau.Step(loss, optimizer.LR)
			if next < optimizer.LR {
				logger.Info("reducing learning rate", "epoch", epoch, "from", optimizer.LR, "to", next, "loss", loss)
				optimizer.LR = next
			}
		}

		if t.Progress != nil {
			_ = t.Progress.Add(1)
		}
		if (epoch+1)%10 == 0 {
			logger.Debug("training progress", "epoch", epoch+1, "loss", loss, "lr", optimizer.LR)
		}
	}
	if plateau != nil {
		history.Reductions = plateau.Reductions()
	}

	logger.Info("training finished",
		"policy", string(t.Policy),
		"epochs", t.Epochs,
		"samples", ds.Len(),
		"final_loss", history.FinalLoss(),
	)
	return model, history, nil
}

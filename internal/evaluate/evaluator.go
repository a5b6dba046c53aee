package evaluate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/face-verify/internal/classifier"
	"github.com/kozaktomas/face-verify/internal/features"
	"github.com/kozaktomas/face-verify/internal/pairs"
)

// Evaluator runs a classifier over test pairs one at a time.
type Evaluator struct {
	Extractor *features.Extractor
	Policy    features.FailurePolicy
	Logger    *slog.Logger
	Progress  features.Progress
}

// NewEvaluator creates an evaluator that skips pairs it cannot embed.
func NewEvaluator(e *features.Extractor) *Evaluator {
	return &Evaluator{Extractor: e, Policy: features.FailureSkip}
}

// Result is the outcome of one evaluation.
type Result struct {
	Metrics   Metrics
	Confusion Confusion
	Evaluated int
	Skipped   []features.Skipped
}

// Evaluate switches the model to inference mode and returns its scores on ps.
func (ev *Evaluator) Evaluate(ctx context.Context, model *classifier.MLP, ps []pairs.Pair, perturb bool) (Metrics, error) {
	res, err := ev.Run(ctx, model, ps, perturb)
	if err != nil {
		return Metrics{}, err
	}
	return res.Metrics, nil
}

// Run is Evaluate with the confusion counts and skipped pairs included.
func (ev *Evaluator) Run(ctx context.Context, model *classifier.MLP, ps []pairs.Pair, perturb bool) (*Result, error) {
	logger := ev.Logger
	if logger == nil {
		logger = slog.Default()
	}
	model.Eval()

	yTrue := make([]int, 0, len(ps))
	yPred := make([]int, 0, len(ps))
	var skipped []features.Skipped

	for i, p := range ps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		diff, err := ev.Extractor.Difference(ctx, p, perturb)
		if ev.Progress != nil {
			_ = ev.Progress.Add(1)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if ev.Policy == features.FailureAbort {
				return nil, fmt.Errorf("pair %d (%s, %s): %w", i, p.ImageA, p.ImageB, err)
			}
			logger.Warn("skipping evaluation pair",
				"index", i,
				"image_a", p.ImageA,
				"image_b", p.ImageB,
				"error", err,
			)
			skipped = append(skipped, features.Skipped{Index: i, Pair: p, Err: err})
			continue
		}

		pred, err := model.Predict(diff)
		if err != nil {
			return nil, err
		}
		yTrue = append(yTrue, p.Label)
		yPred = append(yPred, pred)
	}

	if len(yTrue) == 0 {
		return nil, fmt.Errorf("%w: all %d pairs were skipped", ErrEmptyEvaluationSet, len(ps))
	}
	c, err := Count(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	m := c.Metrics()
	logger.Info("evaluation finished",
		"pairs", len(ps),
		"evaluated", len(yTrue),
		"skipped", len(skipped),
		"accuracy", m.Accuracy,
		"f1", m.F1,
	)
	return &Result{Metrics: m, Confusion: c, Evaluated: len(yTrue), Skipped: skipped}, nil
}

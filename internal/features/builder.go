package features

import (
	"context"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/kozaktomas/face-verify/internal/pairs"
)

// FailurePolicy decides what happens when one pair cannot be processed.
type FailurePolicy int

const (
	// FailureSkip drops the failing pair, logs it and continues.
	FailureSkip FailurePolicy = iota
	// FailureAbort stops at the first failing pair and returns its error.
	FailureAbort
)

func (p FailurePolicy) String() string {
	if p == FailureAbort {
		return "abort"
	}
	return "skip"
}

// Progress receives one unit per processed item.
// *progressbar.ProgressBar satisfies it.
type Progress interface {
	Add(num int) error
}

// Skipped records a pair dropped under FailureSkip.
type Skipped struct {
	Index int
	Pair  pairs.Pair
	Err   error
}

// Dataset is a feature matrix with its aligned label vector.
// X has one row per entry of Y; X is nil when every pair was skipped.
type Dataset struct {
	X         *mat.Dense
	Y         []int
	Requested int
	Skipped   []Skipped

	dim int
}

// NewDataset stacks feature rows into a dataset. Every row must have dim values.
func NewDataset(rows [][]float64, labels []int, dim int) (*Dataset, error) {
	if len(rows) != len(labels) {
		return nil, fmt.Errorf("%d feature rows for %d labels", len(rows), len(labels))
	}
	ds := &Dataset{Y: labels, Requested: len(rows), dim: dim}
	if len(rows) == 0 {
		return ds, nil
	}
	data := make([]float64, 0, len(rows)*dim)
	for i, r := range rows {
		if len(r) != dim {
			return nil, fmt.Errorf("%w: row %d has %d values, expected %d", ErrEmbeddingDimension, i, len(r), dim)
		}
		data = append(data, r...)
	}
	ds.X = mat.NewDense(len(rows), dim, data)
	return ds, nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.Y)
}

// Dim returns the feature width.
func (d *Dataset) Dim() int {
	if d.X != nil {
		_, c := d.X.Dims()
		return c
	}
	return d.dim
}

// Builder turns labeled pairs into a Dataset.
type Builder struct {
	Extractor *Extractor
	Policy    FailurePolicy
	Logger    *slog.Logger
	Progress  Progress
}

// NewBuilder creates a builder with the skip-and-continue policy.
func NewBuilder(e *Extractor) *Builder {
	return &Builder{Extractor: e, Policy: FailureSkip}
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	if b.Extractor != nil && b.Extractor.Inference != nil && b.Extractor.Inference.Logger != nil {
		return b.Extractor.Inference.Logger
	}
	return slog.Default()
}

// Build computes one feature row per pair. Under FailureSkip a failing pair
// loses both its features and its label, one warning is logged, and the rest
// of the pairs are still processed, so the result never has more rows than
// pairs. Cancellation of ctx always stops the build.
func (b *Builder) Build(ctx context.Context, ps []pairs.Pair, perturb bool) (*Dataset, error) {
	logger := b.logger()
	rows := make([][]float64, 0, len(ps))
	labels := make([]int, 0, len(ps))
	var skipped []Skipped

	for i, p := range ps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		diff, err := b.Extractor.Difference(ctx, p, perturb)
		if b.Progress != nil {
			_ = b.Progress.Add(1)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if b.Policy == FailureAbort {
				return nil, fmt.Errorf("pair %d (%s, %s): %w", i, p.ImageA, p.ImageB, err)
			}
			logger.Warn("skipping pair",
				"index", i,
				"image_a", p.ImageA,
				"image_b", p.ImageB,
				"error", err,
			)
			skipped = append(skipped, Skipped{Index: i, Pair: p, Err: err})
			continue
		}
		rows = append(rows, diff)
		labels = append(labels, p.Label)
	}

	ds, err := NewDataset(rows, labels, b.Extractor.Dim)
	if err != nil {
		return nil, err
	}
	ds.Requested = len(ps)
	ds.Skipped = skipped

	logger.Info("features built",
		"requested", len(ps),
		"rows", ds.Len(),
		"skipped", len(skipped),
		"perturb", perturb,
	)
	return ds, nil
}

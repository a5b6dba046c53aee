package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-verify/internal/classifier"
	"github.com/kozaktomas/face-verify/internal/database"
	"github.com/kozaktomas/face-verify/internal/evaluate"
	"github.com/kozaktomas/face-verify/internal/features"
	"github.com/kozaktomas/face-verify/internal/pairs"
	"github.com/kozaktomas/face-verify/internal/report"
	"github.com/kozaktomas/face-verify/internal/train"
)

// RunConfig is everything one train/evaluate cycle needs besides the data.
type RunConfig struct {
	Policy               train.Policy
	Epochs               int
	LearningRate         float64
	AdaptiveLearningRate float64 // used by sweeps with the adaptive policy
	Patience             int
	Factor               float64
	Seed                 uint64

	TrainSize    int
	TestSize     int
	Strict       bool
	PerturbTrain bool
	PerturbTest  bool
	BlurRadius   float64
	FailFast     bool // abort on the first pair that cannot be embedded
}

// DefaultRunConfig returns the fixed-policy defaults.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Policy:               train.PolicyFixed,
		Epochs:               train.DefaultEpochs,
		LearningRate:         train.DefaultLearningRate,
		AdaptiveLearningRate: train.DefaultAdaptiveLearningRate,
		Patience:             train.DefaultPatience,
		Factor:               train.DefaultFactor,
		Seed:                 42,
		BlurRadius:           features.DefaultBlurRadius,
	}
}

func (c RunConfig) failurePolicy() features.FailurePolicy {
	if c.FailFast {
		return features.FailureAbort
	}
	return features.FailureSkip
}

// Outcome is the result of one train/evaluate cycle.
type Outcome struct {
	Config     RunConfig
	Split      *pairs.SplitResult
	Train      *features.Dataset
	History    *train.History
	Evaluation *evaluate.Result
	Model      *classifier.MLP
}

// Point is one value of a sweep with its scores.
type Point struct {
	Value   float64
	RunID   uuid.UUID
	Outcome *Outcome
}

// Result is a finished sweep.
type Result struct {
	SweepID uuid.UUID
	Sweep   Sweep
	Points  []Point
}

// Values returns the swept values in run order.
func (r *Result) Values() []float64 {
	out := make([]float64, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Value
	}
	return out
}

// Metrics returns the scores aligned with Values.
func (r *Result) Metrics() []evaluate.Metrics {
	out := make([]evaluate.Metrics, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Outcome.Evaluation.Metrics
	}
	return out
}

// Chart builds the metric trend chart of the sweep.
func (r *Result) Chart() report.Chart {
	return report.Chart{
		Prefix:  r.Sweep.Title,
		XLabel:  r.Sweep.Label,
		Values:  r.Values(),
		Metrics: r.Metrics(),
		LogX:    r.Sweep.LogX,
	}
}

// Runner executes runs and sweeps. It is not safe for concurrent use.
type Runner struct {
	Extractor *features.Extractor
	Base      RunConfig

	// Store records every run when set.
	Store  database.RunWriter
	Logger *slog.Logger

	// NewProgress, when set, creates a progress sink for a stage of total items.
	NewProgress func(total int, description string) features.Progress
}

// NewRunner creates a runner with the given base configuration.
func NewRunner(e *features.Extractor, base RunConfig) *Runner {
	return &Runner{Extractor: e, Base: base}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) progress(total int, description string) features.Progress {
	if r.NewProgress == nil {
		return nil
	}
	return r.NewProgress(total, description)
}

// Split divides the table according to cfg and logs any training shortfall.
func (r *Runner) Split(table []pairs.Pair, cfg RunConfig) (*pairs.SplitResult, error) {
	split, err := pairs.Split(table, cfg.TrainSize, cfg.TestSize, pairs.SplitOptions{Seed: cfg.Seed, Strict: cfg.Strict})
	if err != nil {
		return nil, err
	}
	if split.Shortfall > 0 {
		r.logger().Warn("training set smaller than requested",
			"requested", cfg.TrainSize,
			"available", len(split.Train),
			"shortfall", split.Shortfall,
			"dropped_for_leakage", split.Dropped,
		)
	}
	return split, nil
}

func (r *Runner) extractor(cfg RunConfig) *features.Extractor {
	if cfg.BlurRadius != r.Extractor.BlurRadius {
		return r.Extractor.WithBlurRadius(cfg.BlurRadius)
	}
	return r.Extractor
}

// BuildTrain builds the training features of a split.
func (r *Runner) BuildTrain(ctx context.Context, split *pairs.SplitResult, cfg RunConfig) (*features.Dataset, error) {
	b := features.NewBuilder(r.extractor(cfg))
	b.Policy = cfg.failurePolicy()
	b.Logger = r.logger()
	b.Progress = r.progress(len(split.Train), "Building features")
	ds, err := b.Build(ctx, split.Train, cfg.PerturbTrain)
	if err != nil {
		return nil, fmt.Errorf("failed to build training features: %w", err)
	}
	return ds, nil
}

// TrainAndEvaluate fits a fresh classifier on ds and scores it on the test pairs.
func (r *Runner) TrainAndEvaluate(ctx context.Context, split *pairs.SplitResult, ds *features.Dataset, cfg RunConfig) (*Outcome, error) {
	tr := &train.Trainer{
		Policy:       cfg.Policy,
		Epochs:       cfg.Epochs,
		LearningRate: cfg.LearningRate,
		Patience:     cfg.Patience,
		Factor:       cfg.Factor,
		Seed:         cfg.Seed,
		Logger:       r.logger(),
		Progress:     r.progress(cfg.Epochs, "Training"),
	}
	model, history, err := tr.Train(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("training failed: %w", err)
	}

	ev := evaluate.NewEvaluator(r.extractor(cfg))
	ev.Policy = cfg.failurePolicy()
	ev.Logger = r.logger()
	ev.Progress = r.progress(len(split.Test), "Evaluating")
	res, err := ev.Run(ctx, model, split.Test, cfg.PerturbTest)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	return &Outcome{
		Config:     cfg,
		Split:      split,
		Train:      ds,
		History:    history,
		Evaluation: res,
		Model:      model,
	}, nil
}

// RunOnce splits the table, trains and evaluates with cfg.
func (r *Runner) RunOnce(ctx context.Context, table []pairs.Pair, cfg RunConfig) (*Outcome, error) {
	split, err := r.Split(table, cfg)
	if err != nil {
		return nil, err
	}
	ds, err := r.BuildTrain(ctx, split, cfg)
	if err != nil {
		return nil, err
	}
	return r.TrainAndEvaluate(ctx, split, ds, cfg)
}

type featureKey struct {
	trainSize int
	blur      float64
	perturb   bool
}

// Run executes a sweep. Splits and training features are reused across
// values that do not change them. Every value gets a freshly initialized
// classifier with the same seed.
func (r *Runner) Run(ctx context.Context, table []pairs.Pair, s Sweep) (*Result, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	logger := r.logger().With("sweep", s.Name, "parameter", string(s.Parameter))

	result := &Result{SweepID: uuid.New(), Sweep: s}
	splits := make(map[int]*pairs.SplitResult)
	datasets := make(map[featureKey]*features.Dataset)

	for _, v := range s.Values {
		cfg := s.apply(r.Base, v)
		logger.Info("running sweep value", "value", v)

		split, ok := splits[cfg.TrainSize]
		if !ok {
			var err error
			if split, err = r.Split(table, cfg); err != nil {
				return nil, fmt.Errorf("value %g: %w", v, err)
			}
			splits[cfg.TrainSize] = split
		}

		key := featureKey{trainSize: cfg.TrainSize, perturb: cfg.PerturbTrain}
		if cfg.PerturbTrain {
			key.blur = cfg.BlurRadius
		}
		ds, ok := datasets[key]
		if !ok {
			var err error
			if ds, err = r.BuildTrain(ctx, split, cfg); err != nil {
				return nil, fmt.Errorf("value %g: %w", v, err)
			}
			datasets[key] = ds
		}

		outcome, err := r.TrainAndEvaluate(ctx, split, ds, cfg)
		if err != nil {
			return nil, fmt.Errorf("value %g: %w", v, err)
		}

		point := Point{Value: v, Outcome: outcome}
		if r.Store != nil {
			run := NewStoredRun(result.SweepID, s, v, outcome)
			if err := r.Store.SaveRun(ctx, run); err != nil {
				return nil, fmt.Errorf("failed to record run: %w", err)
			}
			point.RunID = run.ID
		}
		result.Points = append(result.Points, point)
	}
	return result, nil
}

// Record stores a single run outside of any sweep.
func (r *Runner) Record(ctx context.Context, name string, o *Outcome) (*database.StoredRun, error) {
	if r.Store == nil {
		return nil, errors.New("no run store configured")
	}
	run := NewStoredRun(uuid.New(), Sweep{Name: name}, 0, o)
	if err := r.Store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	return run, nil
}

// NewStoredRun converts an outcome into its database record.
func NewStoredRun(sweepID uuid.UUID, s Sweep, value float64, o *Outcome) *database.StoredRun {
	m := o.Evaluation.Metrics
	blur := 0.0
	if o.Config.PerturbTrain || o.Config.PerturbTest {
		blur = o.Config.BlurRadius
	}
	return &database.StoredRun{
		SweepID:      sweepID,
		SweepName:    s.Name,
		Parameter:    string(s.Parameter),
		Value:        value,
		Policy:       string(o.Config.Policy),
		Epochs:       o.Config.Epochs,
		LearningRate: o.Config.LearningRate,
		BlurRadius:   blur,
		PerturbTrain: o.Config.PerturbTrain,
		PerturbTest:  o.Config.PerturbTest,
		Seed:         o.Config.Seed,
		TrainPairs:   o.Train.Len(),
		TestPairs:    o.Evaluation.Evaluated,
		TrainSkipped: len(o.Train.Skipped),
		TestSkipped:  len(o.Evaluation.Skipped),
		Shortfall:    o.Split.Shortfall,
		FinalLoss:    o.History.FinalLoss(),
		Accuracy:     m.Accuracy,
		Precision:    m.Precision,
		Recall:       m.Recall,
		F1:           m.F1,
	}
}

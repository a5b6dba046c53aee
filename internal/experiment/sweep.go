// Package experiment runs train/evaluate cycles and parameter sweeps over a
// labeled pair table.
package experiment

import (
	"fmt"
	"math"

	"github.com/kozaktomas/face-verify/internal/config"
	"github.com/kozaktomas/face-verify/internal/train"
)

// Parameter names a sweepable setting.
type Parameter string

const (
	ParamLearningRate Parameter = "learning_rate"
	ParamEpochs       Parameter = "epochs"
	ParamTrainSize    Parameter = "train_size"
	ParamBlurRadius   Parameter = "blur_radius"
)

// ParseParameter validates a parameter name.
func ParseParameter(s string) (Parameter, error) {
	switch p := Parameter(s); p {
	case ParamLearningRate, ParamEpochs, ParamTrainSize, ParamBlurRadius:
		return p, nil
	}
	return "", fmt.Errorf("unknown sweep parameter %q", s)
}

// Label is the default axis label.
func (p Parameter) Label() string {
	switch p {
	case ParamLearningRate:
		return "Learning Rate"
	case ParamEpochs:
		return "Epochs"
	case ParamTrainSize:
		return "Train Pairs"
	case ParamBlurRadius:
		return "Blur Radius"
	}
	return string(p)
}

// Sweep varies one parameter across values while everything else stays fixed.
type Sweep struct {
	Name      string
	Title     string
	Label     string
	Parameter Parameter
	Values    []float64
	Policy    train.Policy

	TrainSize    int
	TestSize     int
	PerturbTrain bool
	PerturbTest  bool
	LogX         bool
}

// FromPreset converts a sweeps.yaml entry.
func FromPreset(name string, p config.SweepPreset) (Sweep, error) {
	param, err := ParseParameter(p.Parameter)
	if err != nil {
		return Sweep{}, fmt.Errorf("sweep %s: %w", name, err)
	}
	policy, err := train.ParsePolicy(p.Policy)
	if err != nil {
		return Sweep{}, fmt.Errorf("sweep %s: %w", name, err)
	}
	s := Sweep{
		Name:         name,
		Title:        p.Title,
		Label:        p.Label,
		Parameter:    param,
		Values:       p.Values,
		Policy:       policy,
		TrainSize:    p.TrainSize,
		TestSize:     p.TestSize,
		PerturbTrain: p.PerturbTrain,
		PerturbTest:  p.PerturbTest,
		LogX:         p.LogX,
	}
	if s.Label == "" {
		s.Label = param.Label()
	}
	return s, s.Validate()
}

// Validate checks that every value is usable for the parameter.
func (s Sweep) Validate() error {
	if len(s.Values) == 0 {
		return fmt.Errorf("sweep %s has no values", s.Name)
	}
	if s.TestSize <= 0 {
		return fmt.Errorf("sweep %s: test size must be positive", s.Name)
	}
	if s.Parameter != ParamTrainSize && s.TrainSize <= 0 {
		return fmt.Errorf("sweep %s: train size must be positive", s.Name)
	}
	for _, v := range s.Values {
		switch s.Parameter {
		case ParamLearningRate:
			if v <= 0 {
				return fmt.Errorf("sweep %s: learning rate must be positive, got %g", s.Name, v)
			}
		case ParamEpochs, ParamTrainSize:
			if v < 1 || v != math.Trunc(v) {
				return fmt.Errorf("sweep %s: %s must be a positive integer, got %g", s.Name, s.Parameter, v)
			}
		case ParamBlurRadius:
			if v < 0 {
				return fmt.Errorf("sweep %s: blur radius must not be negative, got %g", s.Name, v)
			}
		}
	}
	return nil
}

// apply returns the run configuration for one swept value.
func (s Sweep) apply(base RunConfig, v float64) RunConfig {
	cfg := base
	cfg.Policy = s.Policy
	cfg.TrainSize = s.TrainSize
	cfg.TestSize = s.TestSize
	cfg.PerturbTrain = s.PerturbTrain
	cfg.PerturbTest = s.PerturbTest
	if s.Policy == train.PolicyAdaptive && base.AdaptiveLearningRate > 0 {
		cfg.LearningRate = base.AdaptiveLearningRate
	}

	switch s.Parameter {
	case ParamLearningRate:
		cfg.LearningRate = v
	case ParamEpochs:
		cfg.Epochs = int(v)
	case ParamTrainSize:
		cfg.TrainSize = int(v)
	case ParamBlurRadius:
		cfg.BlurRadius = v
	}
	return cfg
}

// Package evaluate scores a trained verification classifier on held-out pairs.
package evaluate

import (
	"errors"
	"fmt"
)

// ErrEmptyEvaluationSet is returned when no pair produced a prediction.
var ErrEmptyEvaluationSet = errors.New("evaluation set is empty")

// Positive is the label treated as the positive class.
const Positive = 1

// Metrics holds binary classification scores, each in [0, 1].
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Confusion counts predictions against the positive class.
type Confusion struct {
	TP, FP, TN, FN int
}

// Total returns the number of counted predictions.
func (c Confusion) Total() int {
	return c.TP + c.FP + c.TN + c.FN
}

// Metrics derives the scores. Precision and recall with a zero denominator
// are 0, and F1 is 0 when both are 0.
func (c Confusion) Metrics() Metrics {
	var m Metrics
	if total := c.Total(); total > 0 {
		m.Accuracy = float64(c.TP+c.TN) / float64(total)
	}
	m.Precision = safeDiv(c.TP, c.TP+c.FP)
	m.Recall = safeDiv(c.TP, c.TP+c.FN)
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

func safeDiv(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Count builds the confusion counts of two aligned label sequences.
func Count(yTrue, yPred []int) (Confusion, error) {
	var c Confusion
	if len(yTrue) != len(yPred) {
		return c, fmt.Errorf("%d true labels but %d predictions", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return c, ErrEmptyEvaluationSet
	}
	for i, y := range yTrue {
		p := yPred[i]
		switch {
		case y == Positive && p == Positive:
			c.TP++
		case y != Positive && p == Positive:
			c.FP++
		case y == Positive:
			c.FN++
		default:
			c.TN++
		}
	}
	return c, nil
}

// Compute scores predictions against true labels.
func Compute(yTrue, yPred []int) (Metrics, error) {
	c, err := Count(yTrue, yPred)
	if err != nil {
		return Metrics{}, err
	}
	return c.Metrics(), nil
}

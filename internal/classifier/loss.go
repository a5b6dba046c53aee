package classifier

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// CrossEntropy returns the mean softmax cross-entropy of scores (N x C)
// against integer labels, and the gradient of that loss with respect to the
// scores. It uses the log-sum-exp shift for numerical stability.
func CrossEntropy(scores *mat.Dense, labels []int) (float64, *mat.Dense, error) {
	n, c := scores.Dims()
	if n != len(labels) {
		return 0, nil, fmt.Errorf("%w: %d score rows for %d labels", ErrShapeMismatch, n, len(labels))
	}

	grad := mat.NewDense(n, c, nil)
	var loss float64
	for i := range n {
		y := labels[i]
		if y < 0 || y >= c {
			return 0, nil, fmt.Errorf("label %d at row %d is outside [0, %d)", y, i, c)
		}
		row := scores.RawRowView(i)
		maxScore := row[0]
		for _, v := range row[1:] {
			maxScore = math.Max(maxScore, v)
		}
		var sum float64
		for _, v := range row {
			sum += math.Exp(v - maxScore)
		}
		logSum := maxScore + math.Log(sum)
		loss += logSum - row[y]

		g := grad.RawRowView(i)
		for j, v := range row {
			g[j] = math.Exp(v-logSum) / float64(n)
		}
		g[y] -= 1 / float64(n)
	}
	return loss / float64(n), grad, nil
}

// Gradients runs a forward and backward pass over the batch and returns the
// mean cross-entropy loss with one gradient per parameter, in Params order.
// The network is not modified.
func (m *MLP) Gradients(x mat.Matrix, labels []int) (float64, []*mat.Dense, error) {
	if err := m.checkInput(x); err != nil {
		return 0, nil, err
	}
	acts := m.forward(x)
	loss, delta, err := CrossEntropy(acts.pre[len(acts.pre)-1], labels)
	if err != nil {
		return 0, nil, err
	}

	grads := make([]*mat.Dense, 2*len(m.layers))
	for i := len(m.layers) - 1; i >= 0; i-- {
		var in mat.Matrix = acts.input
		if i > 0 {
			in = acts.hidden[i-1]
		}

		var dW mat.Dense
		dW.Mul(in.T(), delta)
		grads[2*i] = &dW
		grads[2*i+1] = columnSums(delta)

		if i == 0 {
			break
		}
		var dIn mat.Dense
		dIn.Mul(delta, m.layers[i].W.T())
		pre := acts.pre[i-1]
		dIn.Apply(func(r, c int, v float64) float64 {
			if pre.At(r, c) > 0 {
				return v
			}
			return 0
		}, &dIn)
		delta = &dIn
	}
	return loss, grads, nil
}

func columnSums(m *mat.Dense) *mat.Dense {
	rows, cols := m.Dims()
	sums := mat.NewDense(1, cols, nil)
	out := sums.RawRowView(0)
	for i := range rows {
		for j, v := range m.RawRowView(i) {
			out[j] += v
		}
	}
	return sums
}

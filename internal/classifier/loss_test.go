package classifier

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestCrossEntropy(t *testing.T) {
	t.Run("uniform scores", func(t *testing.T) {
		loss, grad, err := CrossEntropy(mat.NewDense(2, 2, []float64{0, 0, 0, 0}), []int{0, 1})
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(loss-math.Ln2) > 1e-12 {
			t.Errorf("expected ln 2, got %f", loss)
		}
		want := []float64{-0.25, 0.25, 0.25, -0.25}
		for i, v := range grad.RawMatrix().Data {
			if math.Abs(v-want[i]) > 1e-12 {
				t.Errorf("grad[%d] = %f, want %f", i, v, want[i])
			}
		}
	})

	t.Run("large scores stay finite", func(t *testing.T) {
		loss, _, err := CrossEntropy(mat.NewDense(1, 2, []float64{1000, -1000}), []int{1})
		if err != nil {
			t.Fatal(err)
		}
		if math.IsInf(loss, 0) || math.IsNaN(loss) {
			t.Fatalf("loss is not finite: %f", loss)
		}
		if math.Abs(loss-2000) > 1e-6 {
			t.Errorf("expected loss 2000, got %f", loss)
		}
	})

	t.Run("label count mismatch", func(t *testing.T) {
		if _, _, err := CrossEntropy(mat.NewDense(2, 2, nil), []int{0}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("label out of range", func(t *testing.T) {
		if _, _, err := CrossEntropy(mat.NewDense(1, 2, nil), []int{2}); err == nil {
			t.Error("expected error")
		}
	})
}

// TestGradients_MatchFiniteDifferences checks backprop against central
// differences on a handful of parameters from every layer.
func TestGradients_MatchFiniteDifferences(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 5))
	m := New(rng, 6)
	x := randomBatch(rng, 4, 6)
	labels := []int{0, 1, 1, 0}

	_, grads, err := m.Gradients(x, labels)
	if err != nil {
		t.Fatalf("Gradients failed: %v", err)
	}

	lossAt := func() float64 {
		scores, err := m.Forward(x)
		if err != nil {
			t.Fatal(err)
		}
		loss, _, err := CrossEntropy(scores, labels)
		if err != nil {
			t.Fatal(err)
		}
		return loss
	}

	const eps = 1e-6
	for pi, p := range m.Params() {
		data := p.RawMatrix().Data
		for _, idx := range []int{0, len(data) / 2, len(data) - 1} {
			orig := data[idx]
			data[idx] = orig + eps
			plus := lossAt()
			data[idx] = orig - eps
			minus := lossAt()
			data[idx] = orig

			numeric := (plus - minus) / (2 * eps)
			analytic := grads[pi].RawMatrix().Data[idx]
			if math.Abs(numeric-analytic) > 1e-5 {
				t.Errorf("param %d[%d]: analytic %g, numeric %g", pi, idx, analytic, numeric)
			}
		}
	}
}

package classifier

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func randomBatch(rng *rand.Rand, rows, cols int) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.Float64()
	}
	return mat.NewDense(rows, cols, data)
}

func TestMLP_ForwardShape(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	m := New(rng, InputDim)

	scores, err := m.Forward(randomBatch(rng, 5, InputDim))
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	r, c := scores.Dims()
	if r != 5 || c != NumClasses {
		t.Errorf("expected 5x%d scores, got %dx%d", NumClasses, r, c)
	}
}

func TestMLP_Params(t *testing.T) {
	m := NewSeeded(42, InputDim)
	params := m.Params()
	if len(params) != 6 {
		t.Fatalf("expected 6 parameter tensors, got %d", len(params))
	}

	shapes := [][2]int{{512, 256}, {1, 256}, {256, 64}, {1, 64}, {64, 2}, {1, 2}}
	for i, p := range params {
		r, c := p.Dims()
		if r != shapes[i][0] || c != shapes[i][1] {
			t.Errorf("param %d has shape %dx%d, want %dx%d", i, r, c, shapes[i][0], shapes[i][1])
		}
	}

	bound := 1 / math.Sqrt(InputDim)
	for _, v := range params[0].RawMatrix().Data {
		if math.Abs(v) > bound {
			t.Fatalf("weight %f outside init bound %f", v, bound)
		}
	}
}

func TestMLP_ShapeMismatch(t *testing.T) {
	m := NewSeeded(1, InputDim)

	if _, err := m.Forward(mat.NewDense(2, 10, nil)); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Forward: expected ErrShapeMismatch, got %v", err)
	}
	if _, err := m.Predict(make([]float64, 511)); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Predict: expected ErrShapeMismatch, got %v", err)
	}
	if _, _, err := m.Gradients(mat.NewDense(2, InputDim, nil), []int{0}); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Gradients: expected ErrShapeMismatch, got %v", err)
	}
}

func TestMLP_Predict(t *testing.T) {
	m := NewSeeded(3, 4)
	x := []float64{0.1, 0.2, 0.3, 0.4}

	label, err := m.Predict(x)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	scores, _ := m.Forward(mat.NewDense(1, 4, []float64{0.1, 0.2, 0.3, 0.4}))
	if label != Argmax(scores.RawRowView(0)) {
		t.Errorf("Predict returned %d, argmax of scores is %d", label, Argmax(scores.RawRowView(0)))
	}
}

func TestMLP_SeededDeterminism(t *testing.T) {
	a := NewSeeded(42, InputDim)
	b := NewSeeded(42, InputDim)
	c := NewSeeded(43, InputDim)

	if !mat.Equal(a.Params()[0], b.Params()[0]) {
		t.Error("same seed should give identical weights")
	}
	if mat.Equal(a.Params()[0], c.Params()[0]) {
		t.Error("different seeds should give different weights")
	}
}

func TestMLP_Mode(t *testing.T) {
	m := NewSeeded(1, 4)
	if m.Mode() != ModeTrain {
		t.Errorf("new network should be in train mode, got %v", m.Mode())
	}
	m.Eval()
	if m.Mode() != ModeInference {
		t.Errorf("expected inference mode, got %v", m.Mode())
	}
	m.Train()
	if m.Mode() != ModeTrain {
		t.Errorf("expected train mode, got %v", m.Mode())
	}
}

func TestArgmax(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   int
	}{
		{"first", []float64{2, 1}, 0},
		{"second", []float64{-1, 3}, 1},
		{"tie prefers first", []float64{0.5, 0.5}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Argmax(tt.scores); got != tt.want {
				t.Errorf("Argmax(%v) = %d, want %d", tt.scores, got, tt.want)
			}
		})
	}
}

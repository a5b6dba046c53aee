// Package classifier implements the small feed-forward network that maps an
// embedding-difference vector to same/different class scores.
package classifier

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Network dimensions.
const (
	InputDim   = 512
	Hidden1Dim = 256
	Hidden2Dim = 64
	NumClasses = 2
)

// ErrShapeMismatch is returned when an input does not match the network width.
var ErrShapeMismatch = errors.New("input shape mismatch")

// Mode selects between training and inference behavior.
type Mode int

const (
	ModeTrain Mode = iota
	ModeInference
)

func (m Mode) String() string {
	if m == ModeInference {
		return "inference"
	}
	return "train"
}

// Linear is a fully connected layer computing X*W + B.
type Linear struct {
	W *mat.Dense // in x out
	B *mat.Dense // 1 x out
}

// newLinear initializes a layer with weights and biases drawn uniformly from
// [-1/sqrt(in), 1/sqrt(in)].
func newLinear(rng *rand.Rand, in, out int) *Linear {
	bound := 1 / math.Sqrt(float64(in))
	w := make([]float64, in*out)
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * bound
	}
	b := make([]float64, out)
	for i := range b {
		b[i] = (rng.Float64()*2 - 1) * bound
	}
	return &Linear{W: mat.NewDense(in, out, w), B: mat.NewDense(1, out, b)}
}

func (l *Linear) forward(x mat.Matrix) *mat.Dense {
	var z mat.Dense
	z.Mul(x, l.W)
	bias := l.B.RawRowView(0)
	rows, _ := z.Dims()
	for i := range rows {
		row := z.RawRowView(i)
		for j := range row {
			row[j] += bias[j]
		}
	}
	return &z
}

// MLP is the verification network: input -> 256 -> ReLU -> 64 -> ReLU -> 2.
type MLP struct {
	layers []*Linear
	mode   Mode
}

// New creates a randomly initialized network for inputDim-wide features.
// Pass InputDim for embedding differences.
func New(rng *rand.Rand, inputDim int) *MLP {
	return &MLP{
		layers: []*Linear{
			newLinear(rng, inputDim, Hidden1Dim),
			newLinear(rng, Hidden1Dim, Hidden2Dim),
			newLinear(rng, Hidden2Dim, NumClasses),
		},
		mode: ModeTrain,
	}
}

// NewSeeded creates a network whose initial weights depend only on seed.
func NewSeeded(seed uint64, inputDim int) *MLP {
	return New(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), inputDim)
}

// InputDim returns the width of the feature vectors the network accepts.
func (m *MLP) InputDim() int {
	r, _ := m.layers[0].W.Dims()
	return r
}

// Mode returns the current mode.
func (m *MLP) Mode() Mode {
	return m.mode
}

// Train switches the network to training mode.
func (m *MLP) Train() {
	m.mode = ModeTrain
}

// Eval switches the network to inference mode. The network has no
// training-only layers, so the switch only records the mode.
func (m *MLP) Eval() {
	m.mode = ModeInference
}

// Params returns the trainable parameters in a fixed order:
// W1, B1, W2, B2, W3, B3. The returned matrices alias the network.
func (m *MLP) Params() []*mat.Dense {
	params := make([]*mat.Dense, 0, 2*len(m.layers))
	for _, l := range m.layers {
		params = append(params, l.W, l.B)
	}
	return params
}

// activations caches intermediate values of one forward pass for backprop.
type activations struct {
	input  mat.Matrix
	pre    []*mat.Dense // pre-activation output of every layer
	hidden []*mat.Dense // post-ReLU output of the hidden layers
}

func (m *MLP) checkInput(x mat.Matrix) error {
	_, c := x.Dims()
	if c != m.InputDim() {
		return fmt.Errorf("%w: got %d features, network expects %d", ErrShapeMismatch, c, m.InputDim())
	}
	return nil
}

func (m *MLP) forward(x mat.Matrix) *activations {
	acts := &activations{input: x}
	var in mat.Matrix = x
	for i, l := range m.layers {
		z := l.forward(in)
		acts.pre = append(acts.pre, z)
		if i == len(m.layers)-1 {
			break
		}
		h := relu(z)
		acts.hidden = append(acts.hidden, h)
		in = h
	}
	return acts
}

// Forward computes raw class scores (N x 2) for a batch of feature rows.
func (m *MLP) Forward(x mat.Matrix) (*mat.Dense, error) {
	if err := m.checkInput(x); err != nil {
		return nil, err
	}
	acts := m.forward(x)
	return acts.pre[len(acts.pre)-1], nil
}

// Predict returns the argmax class for a single feature vector.
func (m *MLP) Predict(features []float64) (int, error) {
	if len(features) != m.InputDim() {
		return 0, fmt.Errorf("%w: got %d features, network expects %d", ErrShapeMismatch, len(features), m.InputDim())
	}
	scores, err := m.Forward(mat.NewDense(1, len(features), features))
	if err != nil {
		return 0, err
	}
	return Argmax(scores.RawRowView(0)), nil
}

// Argmax returns the index of the largest score, preferring the lowest index on ties.
func Argmax(scores []float64) int {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}

func relu(z *mat.Dense) *mat.Dense {
	var h mat.Dense
	h.Apply(func(_, _ int, v float64) float64 {
		if v > 0 {
			return v
		}
		return 0
	}, z)
	return &h
}

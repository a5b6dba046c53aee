// Package mock provides deterministic detector and embedder implementations
// for tests that must not depend on a running model server.
package mock

import (
	"context"
	"image"
	"math"
	"sync"

	"github.com/kozaktomas/face-verify/internal/imaging"
	"github.com/kozaktomas/face-verify/internal/inference"
)

// MockModel implements inference.Detector, inference.Embedder and
// inference.DeviceProber. Images whose mean brightness is below
// DarkThreshold are treated as containing no face.
type MockModel struct {
	mu sync.Mutex

	Dim           int
	DeviceName    string
	DarkThreshold float64

	// Error injection
	DetectError error
	EmbedError  error
	DeviceError error

	detectCalls int
	embedCalls  int
}

// NewMockModel creates a mock model producing 512-dim embeddings on "cuda:0".
func NewMockModel() *MockModel {
	return &MockModel{
		Dim:           512,
		DeviceName:    "cuda:0",
		DarkThreshold: 0.02,
	}
}

// Detect returns the whole image as the aligned face unless it is too dark.
func (m *MockModel) Detect(ctx context.Context, img image.Image) (*inference.Face, error) {
	m.mu.Lock()
	m.detectCalls++
	m.mu.Unlock()

	if m.DetectError != nil {
		return nil, m.DetectError
	}
	rgb := imaging.ToRGB(img)
	r, g, b := meanColor(rgb)
	if (r+g+b)/3 < m.DarkThreshold {
		return nil, nil
	}
	bounds := rgb.Bounds()
	return &inference.Face{
		Image:    rgb,
		BBox:     []float64{0, 0, float64(bounds.Dx()), float64(bounds.Dy())},
		DetScore: 1,
	}, nil
}

// Embed derives a deterministic embedding from the face's mean color.
func (m *MockModel) Embed(ctx context.Context, face *inference.Face) ([]float32, error) {
	m.mu.Lock()
	m.embedCalls++
	m.mu.Unlock()

	if m.EmbedError != nil {
		return nil, m.EmbedError
	}
	r, g, b := meanColor(face.Image)
	return ColorEmbedding(r, g, b, m.Dim), nil
}

// Device returns the configured device name.
func (m *MockModel) Device(ctx context.Context) (string, error) {
	if m.DeviceError != nil {
		return "", m.DeviceError
	}
	return m.DeviceName, nil
}

// DetectCalls returns how many times Detect was called.
func (m *MockModel) DetectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detectCalls
}

// EmbedCalls returns how many times Embed was called.
func (m *MockModel) EmbedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls
}

// ColorEmbedding returns the embedding the mock assigns to a mean color.
// Components of r, g and b are in [0, 1].
func ColorEmbedding(r, g, b float64, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		f := float64(i)
		v[i] = float32(r*math.Cos(f*0.1) + g*math.Sin(f*0.07) + b*math.Cos(f*0.013+1))
	}
	return v
}

func meanColor(img *image.RGBA) (r, g, b float64) {
	n := float64(len(img.Pix) / 4)
	if n == 0 {
		return 0, 0, 0
	}
	for i := 0; i < len(img.Pix); i += 4 {
		r += float64(img.Pix[i])
		g += float64(img.Pix[i+1])
		b += float64(img.Pix[i+2])
	}
	return r / n / 255, g / n / 255, b / n / 255
}

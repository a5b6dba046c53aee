// Package features turns labeled image pairs into embedding-difference
// vectors for the verification classifier.
package features

import (
	"context"
	"fmt"
	"math"

	"github.com/kozaktomas/face-verify/internal/imaging"
	"github.com/kozaktomas/face-verify/internal/inference"
	"github.com/kozaktomas/face-verify/internal/pairs"
)

const (
	// EmbeddingDim is the length of every embedding and feature vector.
	EmbeddingDim = 512
	// DefaultBlurRadius is the Gaussian blur applied to perturbed images.
	DefaultBlurRadius = 2.0
)

// Extractor turns one image into one embedding vector using the detector and
// embedder of an inference context. It holds no per-image state.
type Extractor struct {
	Inference  *inference.Context
	ImagesRoot string
	Dim        int
	BlurRadius float64
}

// NewExtractor creates an extractor resolving image identifiers under imagesRoot.
func NewExtractor(ic *inference.Context, imagesRoot string) *Extractor {
	return &Extractor{
		Inference:  ic,
		ImagesRoot: imagesRoot,
		Dim:        EmbeddingDim,
		BlurRadius: DefaultBlurRadius,
	}
}

// WithBlurRadius returns a copy of the extractor that blurs perturbed images
// with the given radius.
func (e *Extractor) WithBlurRadius(radius float64) *Extractor {
	c := *e
	c.BlurRadius = radius
	return &c
}

// Embed loads the image at path, optionally blurs it, detects the face and
// returns its embedding. A missing face yields a NoFaceDetectedError and an
// unreadable file an ImageLoadError; neither is retried.
func (e *Extractor) Embed(ctx context.Context, path string, perturb bool) ([]float64, error) {
	img, err := imaging.Load(path)
	if err != nil {
		return nil, &ImageLoadError{Path: path, Err: err}
	}
	if perturb {
		img = imaging.GaussianBlur(img, e.BlurRadius)
	}

	face, err := e.Inference.Detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("face detection failed for %s: %w", path, err)
	}
	if face == nil {
		return nil, &NoFaceDetectedError{Path: path}
	}

	raw, err := e.Inference.Embedder.Embed(ctx, face)
	if err != nil {
		return nil, fmt.Errorf("embedding failed for %s: %w", path, err)
	}
	if len(raw) != e.Dim {
		return nil, fmt.Errorf("%w: %s produced %d values, expected %d", ErrEmbeddingDimension, path, len(raw), e.Dim)
	}

	vec := make([]float64, len(raw))
	for i, v := range raw {
		vec[i] = float64(v)
	}
	return vec, nil
}

// Difference embeds both images of a pair with the same perturbation setting
// and returns the element-wise absolute difference.
func (e *Extractor) Difference(ctx context.Context, p pairs.Pair, perturb bool) ([]float64, error) {
	a, err := e.embedID(ctx, p.ImageA, perturb)
	if err != nil {
		return nil, err
	}
	b, err := e.embedID(ctx, p.ImageB, perturb)
	if err != nil {
		return nil, err
	}
	return AbsDiff(a, b), nil
}

func (e *Extractor) embedID(ctx context.Context, id string, perturb bool) ([]float64, error) {
	path, err := pairs.Resolve(e.ImagesRoot, id)
	if err != nil {
		return nil, &ImageLoadError{Path: id, Err: err}
	}
	return e.Embed(ctx, path, perturb)
}

// AbsDiff returns |a - b| element-wise. The vectors must have equal length.
func AbsDiff(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = math.Abs(a[i] - b[i])
	}
	return out
}

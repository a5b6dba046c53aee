// Package inference holds the explicitly constructed context that every
// pipeline stage receives: the face detector, the embedding model, the
// compute device they run on, and the random seed for reproducible runs.
package inference

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
)

// DefaultSeed matches the seed used for all published experiment runs.
const DefaultSeed uint64 = 42

var (
	// ErrNoAccelerator is returned when the backend reports a CPU-only device
	// and the context was created with RequireAccelerator.
	ErrNoAccelerator = errors.New("no compute accelerator available")

	// ErrMissingModel is returned when the detector or embedder is nil.
	ErrMissingModel = errors.New("detector and embedder are required")
)

// Face is a detected and aligned face crop.
type Face struct {
	Image    *image.RGBA
	BBox     []float64 // [x1, y1, x2, y2] in source image pixels
	DetScore float64

	// Embedding is set when the detector computed it as part of detection.
	Embedding []float32
}

// Detector finds and aligns the face in an image.
// It returns a nil face and a nil error when no face is present.
type Detector interface {
	Detect(ctx context.Context, img image.Image) (*Face, error)
}

// Embedder maps an aligned face to a fixed-length embedding vector.
type Embedder interface {
	Embed(ctx context.Context, face *Face) ([]float32, error)
}

// DeviceProber reports which compute device a model backend runs on.
type DeviceProber interface {
	Device(ctx context.Context) (string, error)
}

// IsAccelerator reports whether a device name refers to a GPU-class device.
func IsAccelerator(device string) bool {
	d := strings.ToLower(strings.TrimSpace(device))
	for _, prefix := range []string{"cuda", "gpu", "mps", "rocm", "xpu", "tpu"} {
		if strings.HasPrefix(d, prefix) {
			return true
		}
	}
	return false
}

// Options configures NewContext.
type Options struct {
	Seed               uint64
	RequireAccelerator bool
	Logger             *slog.Logger
}

// Context is passed by reference to every pipeline operation.
// It is created once per process and never mutated afterwards.
type Context struct {
	Detector Detector
	Embedder Embedder
	Device   string
	Seed     uint64
	Logger   *slog.Logger
}

// NewContext selects the compute device and builds the inference context.
// When either model implements DeviceProber the device is queried once here;
// otherwise it is reported as "unknown".
func NewContext(ctx context.Context, detector Detector, embedder Embedder, opts Options) (*Context, error) {
	if detector == nil || embedder == nil {
		return nil, ErrMissingModel
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	device := "unknown"
	var prober DeviceProber
	if p, ok := detector.(DeviceProber); ok {
		prober = p
	} else if p, ok := embedder.(DeviceProber); ok {
		prober = p
	}
	if prober != nil {
		d, err := prober.Device(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query compute device: %w", err)
		}
		device = d
	}

	if opts.RequireAccelerator && !IsAccelerator(device) {
		return nil, fmt.Errorf("%w: backend reports device %q", ErrNoAccelerator, device)
	}

	logger.Info("inference context ready", "device", device, "seed", opts.Seed)

	return &Context{
		Detector: detector,
		Embedder: embedder,
		Device:   device,
		Seed:     opts.Seed,
		Logger:   logger,
	}, nil
}

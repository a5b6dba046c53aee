package features

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFaceDetected matches every NoFaceDetectedError.
	ErrNoFaceDetected = errors.New("no face detected")
	// ErrImageLoad matches every ImageLoadError.
	ErrImageLoad = errors.New("failed to load image")
	// ErrEmbeddingDimension is returned when the embedder produces a vector of
	// unexpected length.
	ErrEmbeddingDimension = errors.New("unexpected embedding dimension")
)

// NoFaceDetectedError reports an image in which the detector found no face.
type NoFaceDetectedError struct {
	Path string
}

func (e *NoFaceDetectedError) Error() string {
	return fmt.Sprintf("no face detected in %s", e.Path)
}

func (e *NoFaceDetectedError) Is(target error) bool {
	return target == ErrNoFaceDetected
}

// ImageLoadError reports an image that could not be read or decoded.
type ImageLoadError struct {
	Path string
	Err  error
}

func (e *ImageLoadError) Error() string {
	return fmt.Sprintf("failed to load image %s: %v", e.Path, e.Err)
}

func (e *ImageLoadError) Unwrap() error {
	return e.Err
}

func (e *ImageLoadError) Is(target error) bool {
	return target == ErrImageLoad
}

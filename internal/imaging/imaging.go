// Package imaging loads face images from disk and applies the small set of
// pixel transforms the verification pipeline needs.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrEmptyImage is returned for images with no pixels.
var ErrEmptyImage = errors.New("image has no pixels")

// Load reads and decodes an image file and converts it to RGB.
func Load(path string) (*image.RGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return Decode(data)
}

// Decode decodes image bytes in any registered format and converts the result to RGB.
func Decode(data []byte) (*image.RGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	return ToRGB(img), nil
}

// ToRGB returns an opaque RGBA copy of img with its origin moved to (0, 0).
// Alpha is dropped and the stored color of every pixel is kept, so fully
// transparent pixels keep their RGB values.
func ToRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			dst.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return dst
}

// EncodeJPEG encodes an image as JPEG with the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Resize scales img to exactly width x height using bilinear interpolation.
func Resize(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// CropSquare cuts the box [x1, y1, x2, y2] out of img, grows it by margin
// pixels on every side (clamped to the image), and scales it to size x size.
func CropSquare(img image.Image, box []float64, margin, size int) (*image.RGBA, error) {
	if len(box) != 4 {
		return nil, fmt.Errorf("bounding box needs 4 coordinates, got %d", len(box))
	}
	b := img.Bounds()
	half := float64(margin) / 2
	x1 := max(b.Min.X, int(math.Floor(box[0]-half)))
	y1 := max(b.Min.Y, int(math.Floor(box[1]-half)))
	x2 := min(b.Max.X, int(math.Ceil(box[2]+half)))
	y2 := min(b.Max.Y, int(math.Ceil(box[3]+half)))
	if x2 <= x1 || y2 <= y1 {
		return nil, fmt.Errorf("bounding box %v is outside the image", box)
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, image.Rect(x1, y1, x2, y2), draw.Over, nil)
	return dst, nil
}

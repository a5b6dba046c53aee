package imaging

import (
	"image"

	imgproc "github.com/disintegration/imaging"
)

// GaussianBlur returns a blurred copy of img. radius is the standard deviation
// of the Gaussian in pixels. A radius <= 0 returns an unmodified copy.
func GaussianBlur(img *image.RGBA, radius float64) *image.RGBA {
	if radius <= 0 {
		out := image.NewRGBA(img.Bounds())
		copy(out.Pix, img.Pix)
		return out
	}
	blurred := imgproc.Blur(img, radius)
	out := ToRGB(blurred)
	if origin := img.Bounds().Min; origin != (image.Point{}) {
		out.Rect = out.Rect.Add(origin)
	}
	return out
}

package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := range width {
		for y := range height {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "face.png")
	if err := os.WriteFile(path, encodePNG(t, createTestImage(20, 10, color.RGBA{10, 20, 30, 255})), 0o600); err != nil {
		t.Fatal(err)
	}

	img, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 10 {
		t.Errorf("expected 20x10, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
	got := img.RGBAAt(3, 3)
	if got.R != 10 || got.G != 20 || got.B != 30 || got.A != 255 {
		t.Errorf("unexpected pixel %v", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDecode_InvalidData(t *testing.T) {
	if _, err := Decode([]byte("not an image")); err == nil {
		t.Error("expected error for invalid image data")
	}
}

func TestToRGB_DropsAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(5, 5, 7, 7))
	src.Set(5, 5, color.NRGBA{200, 100, 50, 0})

	dst := ToRGB(src)

	if got := dst.RGBAAt(0, 0); got != (color.RGBA{200, 100, 50, 255}) {
		t.Errorf("expected stored color kept as (200,100,50,255), got %v", got)
	}
	if dst.Bounds().Min != (image.Point{}) {
		t.Errorf("expected origin at 0,0, got %v", dst.Bounds().Min)
	}
	for i := 3; i < len(dst.Pix); i += 4 {
		if dst.Pix[i] != 0xff {
			t.Fatalf("expected opaque output, alpha at %d is %d", i, dst.Pix[i])
		}
	}
}

func TestGaussianBlur(t *testing.T) {
	t.Run("uniform image unchanged", func(t *testing.T) {
		img := createTestImage(16, 16, color.RGBA{120, 60, 30, 255})
		blurred := GaussianBlur(img, 2)
		if !bytes.Equal(img.Pix, blurred.Pix) {
			t.Error("blurring a uniform image should not change it")
		}
	})

	t.Run("zero radius copies", func(t *testing.T) {
		img := createTestImage(4, 4, color.White)
		blurred := GaussianBlur(img, 0)
		if &blurred.Pix[0] == &img.Pix[0] {
			t.Error("expected a copy, got the same buffer")
		}
		if !bytes.Equal(img.Pix, blurred.Pix) {
			t.Error("zero radius should not change pixels")
		}
	})

	t.Run("edge is softened", func(t *testing.T) {
		img := createTestImage(20, 20, color.Black)
		for y := range 20 {
			for x := 10; x < 20; x++ {
				img.Set(x, y, color.White)
			}
		}
		blurred := GaussianBlur(img, 2)
		left := blurred.RGBAAt(9, 10).R
		right := blurred.RGBAAt(10, 10).R
		if left == 0 || right == 255 {
			t.Errorf("expected the edge to be softened, got left=%d right=%d", left, right)
		}
		if blurred.Bounds() != img.Bounds() {
			t.Errorf("blur changed bounds: %v", blurred.Bounds())
		}
	})
}

func TestCropSquare(t *testing.T) {
	img := createTestImage(100, 80, color.White)

	tests := []struct {
		name    string
		box     []float64
		wantErr bool
	}{
		{"inside", []float64{10, 10, 50, 60}, false},
		{"clamped to bounds", []float64{-20, -20, 150, 150}, false},
		{"outside", []float64{200, 200, 300, 300}, true},
		{"wrong length", []float64{1, 2, 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			face, err := CropSquare(img, tt.box, 20, 160)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if face.Bounds().Dx() != 160 || face.Bounds().Dy() != 160 {
				t.Errorf("expected 160x160 crop, got %v", face.Bounds())
			}
		})
	}
}

func TestResize(t *testing.T) {
	resized := Resize(createTestImage(100, 100, color.White), 32, 16)
	if resized.Bounds().Dx() != 32 || resized.Bounds().Dy() != 16 {
		t.Errorf("expected 32x16, got %v", resized.Bounds())
	}
}

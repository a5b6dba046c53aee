package facenet

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/kozaktomas/face-verify/internal/inference"
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

func newFaceServer(t *testing.T, resp FaceResponse, uploads *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/embed/face":
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			if _, _, err := r.FormFile("file"); err != nil {
				t.Errorf("expected multipart file: %v", err)
			}
			if uploads != nil {
				uploads.Add(1)
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)
		case "/health":
			json.NewEncoder(w).Encode(map[string]string{"status": "ok", "device": "cuda:0"})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestClient_Detect(t *testing.T) {
	resp := FaceResponse{
		FacesCount: 2,
		Model:      "buffalo_l",
		Faces: []FaceDetection{
			{FaceIndex: 0, Dim: 3, Embedding: []float32{1, 2, 3}, BBox: []float64{10, 10, 40, 40}, DetScore: 0.6},
			{FaceIndex: 1, Dim: 3, Embedding: []float32{4, 5, 6}, BBox: []float64{50, 50, 90, 90}, DetScore: 0.9},
		},
	}
	server := newFaceServer(t, resp, nil)
	defer server.Close()

	client := NewClient(server.URL + "/")
	face, err := client.Detect(context.Background(), createTestImage(100, 100, color.White))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if face == nil {
		t.Fatal("expected a face")
	}
	if face.DetScore != 0.9 {
		t.Errorf("expected the most confident face, got score %v", face.DetScore)
	}
	if face.Image.Bounds().Dx() != FaceSize || face.Image.Bounds().Dy() != FaceSize {
		t.Errorf("expected %dx%d crop, got %v", FaceSize, FaceSize, face.Image.Bounds())
	}
	if len(face.Embedding) != 3 || face.Embedding[0] != 4 {
		t.Errorf("expected embedding of the selected face, got %v", face.Embedding)
	}
}

func TestClient_Detect_NoFace(t *testing.T) {
	server := newFaceServer(t, FaceResponse{FacesCount: 0, Faces: []FaceDetection{}}, nil)
	defer server.Close()

	face, err := NewClient(server.URL).Detect(context.Background(), createTestImage(50, 50, color.Black))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if face != nil {
		t.Errorf("expected nil face, got %+v", face)
	}
}

func TestClient_Detect_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Detect(context.Background(), createTestImage(10, 10, color.White))
	if err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestClient_Embed(t *testing.T) {
	var uploads atomic.Int32
	resp := FaceResponse{Faces: []FaceDetection{{Embedding: []float32{7, 8}, BBox: []float64{0, 0, 160, 160}, DetScore: 0.99}}}
	server := newFaceServer(t, resp, &uploads)
	defer server.Close()
	client := NewClient(server.URL)

	t.Run("uses embedding from detection", func(t *testing.T) {
		face := &inference.Face{Embedding: []float32{1, 2}}
		emb, err := client.Embed(context.Background(), face)
		if err != nil {
			t.Fatalf("Embed failed: %v", err)
		}
		if n := uploads.Load(); n != 0 {
			t.Errorf("expected no upload, got %d", n)
		}
		emb[0] = 99
		if face.Embedding[0] != 1 {
			t.Error("Embed must return a copy")
		}
	})

	t.Run("submits crop without embedding", func(t *testing.T) {
		face := &inference.Face{Image: createTestImage(FaceSize, FaceSize, color.White)}
		emb, err := client.Embed(context.Background(), face)
		if err != nil {
			t.Fatalf("Embed failed: %v", err)
		}
		if n := uploads.Load(); n != 1 {
			t.Errorf("expected one upload, got %d", n)
		}
		if len(emb) != 2 || emb[0] != 7 {
			t.Errorf("unexpected embedding %v", emb)
		}
	})

	t.Run("nil face", func(t *testing.T) {
		if _, err := client.Embed(context.Background(), nil); err == nil {
			t.Error("expected error for nil face")
		}
	})
}

func TestClient_Embed_EmptyResponse(t *testing.T) {
	server := newFaceServer(t, FaceResponse{}, nil)
	defer server.Close()

	face := &inference.Face{Image: createTestImage(FaceSize, FaceSize, color.White)}
	_, err := NewClient(server.URL).Embed(context.Background(), face)
	if !errors.Is(err, ErrEmptyEmbedding) {
		t.Errorf("expected ErrEmptyEmbedding, got %v", err)
	}
}

func TestClient_Device(t *testing.T) {
	server := newFaceServer(t, FaceResponse{}, nil)
	defer server.Close()

	device, err := NewClient(server.URL).Device(context.Background())
	if err != nil {
		t.Fatalf("Device failed: %v", err)
	}
	if device != "cuda:0" {
		t.Errorf("expected cuda:0, got %q", device)
	}
}

func TestClient_ImplementsInferenceInterfaces(t *testing.T) {
	var _ inference.Detector = (*Client)(nil)
	var _ inference.Embedder = (*Client)(nil)
	var _ inference.DeviceProber = (*Client)(nil)
}

func TestBestFace(t *testing.T) {
	tests := []struct {
		name  string
		faces []FaceDetection
		want  int
	}{
		{"empty", nil, -1},
		{"single", []FaceDetection{{FaceIndex: 3, DetScore: 0.1}}, 3},
		{"highest wins", []FaceDetection{{FaceIndex: 0, DetScore: 0.5}, {FaceIndex: 1, DetScore: 0.8}, {FaceIndex: 2, DetScore: 0.7}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bestFace(tt.faces)
			if tt.want < 0 {
				if got != nil {
					t.Errorf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil || got.FaceIndex != tt.want {
				t.Errorf("bestFace() = %+v, want index %d", got, tt.want)
			}
		})
	}
}

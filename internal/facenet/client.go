// Package facenet talks to the face embedding server that hosts the
// pretrained detector and embedding model.
package facenet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/face-verify/internal/imaging"
	"github.com/kozaktomas/face-verify/internal/inference"
)

const (
	defaultURL = "http://localhost:8000"

	// FaceSize is the side of the aligned face crop, in pixels.
	FaceSize = 160
	// FaceMargin is the extra context kept around the detected box, in pixels.
	FaceMargin = 20

	uploadQuality = 95
)

// ErrEmptyEmbedding is returned when the server answers without a vector.
var ErrEmptyEmbedding = errors.New("empty embedding returned")

// Client computes face detections and embeddings using the embedding server.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new face embedding client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

// FaceDetection represents a single detected face.
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint.
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

type healthResponse struct {
	Status string `json:"status"`
	Device string `json:"device"`
}

// postImage posts JPEG image data as a multipart form to the given endpoint.
func (c *Client) postImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "face.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// ComputeFaceEmbeddings detects faces in the image and computes their embeddings.
func (c *Client) ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	body, err := c.postImage(ctx, "/embed/face", imageData)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &faceResp, nil
}

// Detect finds the most confident face in img and returns it aligned to a
// FaceSize x FaceSize crop. A nil face means no face was found.
func (c *Client) Detect(ctx context.Context, img image.Image) (*inference.Face, error) {
	data, err := imaging.EncodeJPEG(img, uploadQuality)
	if err != nil {
		return nil, err
	}

	resp, err := c.ComputeFaceEmbeddings(ctx, data)
	if err != nil {
		return nil, err
	}
	best := bestFace(resp.Faces)
	if best == nil {
		return nil, nil
	}

	crop, err := imaging.CropSquare(img, best.BBox, FaceMargin, FaceSize)
	if err != nil {
		return nil, fmt.Errorf("failed to align face: %w", err)
	}

	return &inference.Face{
		Image:     crop,
		BBox:      best.BBox,
		DetScore:  best.DetScore,
		Embedding: best.Embedding,
	}, nil
}

// Embed returns the embedding for an aligned face. Faces produced by Detect
// already carry their embedding; other faces are submitted to the server.
func (c *Client) Embed(ctx context.Context, face *inference.Face) ([]float32, error) {
	if face == nil {
		return nil, errors.New("face is nil")
	}
	if len(face.Embedding) > 0 {
		out := make([]float32, len(face.Embedding))
		copy(out, face.Embedding)
		return out, nil
	}

	data, err := imaging.EncodeJPEG(face.Image, uploadQuality)
	if err != nil {
		return nil, err
	}
	resp, err := c.ComputeFaceEmbeddings(ctx, data)
	if err != nil {
		return nil, err
	}
	best := bestFace(resp.Faces)
	if best == nil || len(best.Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return best.Embedding, nil
}

// Device asks the server which compute device its models run on.
func (c *Client) Device(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	var health healthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if health.Device == "" {
		return "cpu", nil
	}
	return health.Device, nil
}

// bestFace picks the detection with the highest score.
func bestFace(faces []FaceDetection) *FaceDetection {
	var best *FaceDetection
	for i := range faces {
		if best == nil || faces[i].DetScore > best.DetScore {
			best = &faces[i]
		}
	}
	return best
}

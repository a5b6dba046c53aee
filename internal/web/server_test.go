package web

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-verify/internal/database"
	"github.com/kozaktomas/face-verify/internal/database/mock"
)

func testServer(t *testing.T) (*Server, uuid.UUID) {
	t.Helper()
	store := mock.NewMockRunStore()
	sweepID := uuid.New()
	for _, v := range []float64{1e-4, 1e-3} {
		store.AddRun(database.StoredRun{
			ID: uuid.New(), SweepID: sweepID, SweepName: "learning-rate",
			Parameter: "learning_rate", Value: v, Policy: "fixed", Accuracy: 0.7, F1: 0.6,
		})
	}
	srv := NewServer(store, Options{
		Host:    "127.0.0.1",
		Port:    0,
		Version: "test",
		Logger:  slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	})
	return srv, sweepID
}

func TestRoutes(t *testing.T) {
	srv, sweepID := testServer(t)

	tests := []struct {
		path        string
		status      int
		contentType string
	}{
		{"/api/v1/health", http.StatusOK, "application/json"},
		{"/api/v1/sweeps", http.StatusOK, "application/json"},
		{"/api/v1/sweeps/" + sweepID.String() + "/runs", http.StatusOK, "application/json"},
		{"/api/v1/sweeps/" + sweepID.String() + "/chart.png?log_x=true", http.StatusOK, "image/png"},
		{"/api/v1/sweeps/" + uuid.New().String() + "/runs", http.StatusNotFound, "application/json"},
		{"/api/v1/nothing", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if tt.contentType != "" && rec.Header().Get("Content-Type") != tt.contentType {
				t.Errorf("expected content type %s, got %s", tt.contentType, rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestRoutes_SweepListing(t *testing.T) {
	srv, sweepID := testServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sweeps", nil))

	var sweeps []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &sweeps); err != nil {
		t.Fatal(err)
	}
	if len(sweeps) != 1 || sweeps[0]["id"] != sweepID.String() {
		t.Errorf("unexpected sweeps %v", sweeps)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/face-verify/internal/database"
	"github.com/kozaktomas/face-verify/internal/database/mock"
)

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d: %s", expected, recorder.Code, recorder.Body.String())
	}
}

func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	if got := recorder.Header().Get("Content-Type"); got != expected {
		t.Errorf("expected content type '%s', got '%s'", expected, got)
	}
}

func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse JSON response: %v", err)
	}
}

// seededStore returns a store holding one three-run epochs sweep
func seededStore(t *testing.T) (*mock.MockRunStore, uuid.UUID) {
	t.Helper()
	store := mock.NewMockRunStore()
	sweepID := uuid.New()
	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	for i, v := range []float64{100, 10, 50} {
		store.AddRun(database.StoredRun{
			ID:        uuid.New(),
			SweepID:   sweepID,
			SweepName: "fixed-epochs",
			Parameter: "epochs",
			Value:     v,
			Policy:    "fixed",
			Epochs:    int(v),
			Accuracy:  0.5 + v/400,
			Precision: 0.5,
			Recall:    0.6,
			F1:        0.4 + v/1000,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return store, sweepID
}

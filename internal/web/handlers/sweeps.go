package handlers

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/face-verify/internal/database"
	"github.com/kozaktomas/face-verify/internal/evaluate"
	"github.com/kozaktomas/face-verify/internal/experiment"
	"github.com/kozaktomas/face-verify/internal/report"
)

// SweepsHandler serves recorded sweeps and their charts
type SweepsHandler struct {
	runs database.RunReader
}

// NewSweepsHandler creates a new sweeps handler
func NewSweepsHandler(runs database.RunReader) *SweepsHandler {
	return &SweepsHandler{runs: runs}
}

// SweepResponse represents a sweep summary in API responses
type SweepResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Parameter string    `json:"parameter"`
	Policy    string    `json:"policy"`
	Runs      int       `json:"runs"`
	BestF1    float64   `json:"best_f1"`
	CreatedAt time.Time `json:"created_at"`
}

// RunResponse represents one recorded run in API responses
type RunResponse struct {
	ID           string           `json:"id"`
	SweepID      string           `json:"sweep_id"`
	SweepName    string           `json:"sweep_name"`
	Parameter    string           `json:"parameter"`
	Value        float64          `json:"value"`
	Policy       string           `json:"policy"`
	Epochs       int              `json:"epochs"`
	LearningRate float64          `json:"learning_rate"`
	BlurRadius   float64          `json:"blur_radius"`
	TrainPairs   int              `json:"train_pairs"`
	TestPairs    int              `json:"test_pairs"`
	TrainSkipped int              `json:"train_skipped"`
	TestSkipped  int              `json:"test_skipped"`
	Shortfall    int              `json:"shortfall"`
	FinalLoss    float64          `json:"final_loss"`
	Metrics      evaluate.Metrics `json:"metrics"`
	CreatedAt    time.Time        `json:"created_at"`
}

func toRunResponse(r database.StoredRun) RunResponse {
	return RunResponse{
		ID:           r.ID.String(),
		SweepID:      r.SweepID.String(),
		SweepName:    r.SweepName,
		Parameter:    r.Parameter,
		Value:        r.Value,
		Policy:       r.Policy,
		Epochs:       r.Epochs,
		LearningRate: r.LearningRate,
		BlurRadius:   r.BlurRadius,
		TrainPairs:   r.TrainPairs,
		TestPairs:    r.TestPairs,
		TrainSkipped: r.TrainSkipped,
		TestSkipped:  r.TestSkipped,
		Shortfall:    r.Shortfall,
		FinalLoss:    r.FinalLoss,
		Metrics: evaluate.Metrics{
			Accuracy:  r.Accuracy,
			Precision: r.Precision,
			Recall:    r.Recall,
			F1:        r.F1,
		},
		CreatedAt: r.CreatedAt,
	}
}

// parseID reads a UUID URL parameter, writing a 400 response when invalid.
func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		slog.Debug("invalid id", "id", sanitizeForLog(raw))
		respondError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// List returns all recorded sweeps
func (h *SweepsHandler) List(w http.ResponseWriter, r *http.Request) {
	sweeps, err := h.runs.ListSweeps(r.Context())
	if err != nil {
		slog.Error("failed to list sweeps", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list sweeps")
		return
	}

	result := make([]SweepResponse, len(sweeps))
	for i, s := range sweeps {
		result[i] = SweepResponse{
			ID:        s.SweepID.String(),
			Name:      s.Name,
			Parameter: s.Parameter,
			Policy:    s.Policy,
			Runs:      s.Runs,
			BestF1:    s.BestF1,
			CreatedAt: s.CreatedAt,
		}
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *SweepsHandler) sweepRuns(w http.ResponseWriter, r *http.Request) ([]database.StoredRun, bool) {
	id, ok := parseID(w, r)
	if !ok {
		return nil, false
	}
	runs, err := h.runs.GetSweepRuns(r.Context(), id)
	if err != nil {
		slog.Error("failed to get sweep runs", "sweep_id", id.String(), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get sweep runs")
		return nil, false
	}
	if len(runs) == 0 {
		respondError(w, http.StatusNotFound, "sweep not found")
		return nil, false
	}
	return runs, true
}

// Runs returns the runs of one sweep ordered by parameter value
func (h *SweepsHandler) Runs(w http.ResponseWriter, r *http.Request) {
	runs, ok := h.sweepRuns(w, r)
	if !ok {
		return
	}
	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = toRunResponse(run)
	}
	respondJSON(w, http.StatusOK, result)
}

// Chart renders the metric trend chart of one sweep as PNG
func (h *SweepsHandler) Chart(w http.ResponseWriter, r *http.Request) {
	runs, ok := h.sweepRuns(w, r)
	if !ok {
		return
	}

	chart := ChartFromRuns(runs)
	chart.LogX = r.URL.Query().Get("log_x") == "true"

	var buf bytes.Buffer
	if err := report.Render(&buf, chart); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// GetRun returns one recorded run
func (h *SweepsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	run, err := h.runs.GetRun(r.Context(), id)
	if err != nil {
		slog.Error("failed to get run", "run_id", id.String(), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	respondJSON(w, http.StatusOK, toRunResponse(*run))
}

// ChartFromRuns builds a chart from the runs of one sweep. The title uses
// the policy of the first run and the axis label the swept parameter.
func ChartFromRuns(runs []database.StoredRun) report.Chart {
	chart := report.Chart{
		Values:  make([]float64, len(runs)),
		Metrics: make([]evaluate.Metrics, len(runs)),
	}
	for i, run := range runs {
		chart.Values[i] = run.Value
		chart.Metrics[i] = evaluate.Metrics{
			Accuracy:  run.Accuracy,
			Precision: run.Precision,
			Recall:    run.Recall,
			F1:        run.F1,
		}
	}
	if len(runs) > 0 {
		chart.Prefix = policyTitle(runs[0].Policy)
		if p, err := experiment.ParseParameter(runs[0].Parameter); err == nil {
			chart.XLabel = p.Label()
		} else {
			chart.XLabel = runs[0].Parameter
		}
	}
	return chart
}

func policyTitle(policy string) string {
	switch policy {
	case "adaptive":
		return "Adaptive LR"
	case "fixed":
		return "Fixed LR"
	}
	return policy
}

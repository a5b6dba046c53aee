// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-verify/internal/database"
)

// MockRunStore is an in-memory implementation of database.RunWriter
type MockRunStore struct {
	mu   sync.RWMutex
	runs []database.StoredRun

	// Error injection
	GetRunError       error
	ListSweepsError   error
	GetSweepRunsError error
	SaveRunError      error
	DeleteSweepError  error
}

// NewMockRunStore creates a new mock run store
func NewMockRunStore() *MockRunStore {
	return &MockRunStore{}
}

// AddRun adds a run to the mock store without any defaults applied
func (m *MockRunStore) AddRun(run database.StoredRun) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
}

// Runs returns a copy of every stored run in insertion order
func (m *MockRunStore) Runs() []database.StoredRun {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.StoredRun, len(m.runs))
	copy(out, m.runs)
	return out
}

// GetRun retrieves a run by ID
func (m *MockRunStore) GetRun(ctx context.Context, id uuid.UUID) (*database.StoredRun, error) {
	if m.GetRunError != nil {
		return nil, m.GetRunError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.runs {
		if r.ID == id {
			run := r
			return &run, nil
		}
	}
	return nil, nil
}

// ListSweeps returns one summary per sweep
func (m *MockRunStore) ListSweeps(ctx context.Context) ([]database.SweepSummary, error) {
	if m.ListSweepsError != nil {
		return nil, m.ListSweepsError
	}
	return database.Summarize(m.Runs()), nil
}

// GetSweepRuns returns the runs of a sweep ordered by value
func (m *MockRunStore) GetSweepRuns(ctx context.Context, sweepID uuid.UUID) ([]database.StoredRun, error) {
	if m.GetSweepRunsError != nil {
		return nil, m.GetSweepRunsError
	}
	var out []database.StoredRun
	for _, r := range m.Runs() {
		if r.SweepID == sweepID {
			out = append(out, r)
		}
	}
	database.SortByValue(out)
	return out, nil
}

// SaveRun stores a run
func (m *MockRunStore) SaveRun(ctx context.Context, run *database.StoredRun) error {
	if m.SaveRunError != nil {
		return m.SaveRunError
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	m.AddRun(*run)
	return nil
}

// DeleteSweep removes all runs of a sweep
func (m *MockRunStore) DeleteSweep(ctx context.Context, sweepID uuid.UUID) (int, error) {
	if m.DeleteSweepError != nil {
		return 0, m.DeleteSweepError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.runs[:0]
	deleted := 0
	for _, r := range m.runs {
		if r.SweepID == sweepID {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.runs = kept
	return deleted, nil
}

var _ database.RunWriter = (*MockRunStore)(nil)

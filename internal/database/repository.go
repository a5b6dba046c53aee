package database

import (
	"context"

	"github.com/google/uuid"
)

// RunReader provides read-only access to recorded experiment runs
type RunReader interface {
	// GetRun retrieves a run by ID, returns nil if not found
	GetRun(ctx context.Context, id uuid.UUID) (*StoredRun, error)
	// ListSweeps returns one summary per sweep, newest first
	ListSweeps(ctx context.Context) ([]SweepSummary, error)
	// GetSweepRuns returns the runs of a sweep ordered by parameter value
	GetSweepRuns(ctx context.Context, sweepID uuid.UUID) ([]StoredRun, error)
}

// RunWriter provides write access to experiment runs
type RunWriter interface {
	RunReader

	// SaveRun stores a run. A zero ID is replaced with a new random one and a
	// zero CreatedAt with the current time.
	SaveRun(ctx context.Context, run *StoredRun) error

	// DeleteSweep removes every run of a sweep and returns how many were deleted
	DeleteSweep(ctx context.Context, sweepID uuid.UUID) (int, error)
}

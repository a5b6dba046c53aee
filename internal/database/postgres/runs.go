package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-verify/internal/database"
)

// RunRepository provides PostgreSQL-backed storage for experiment runs
type RunRepository struct {
	pool *Pool
}

// NewRunRepository creates a new PostgreSQL run repository
func NewRunRepository(pool *Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

const runColumns = `
	id, sweep_id, sweep_name, parameter, value,
	policy, epochs, learning_rate, blur_radius, perturb_train, perturb_test, seed,
	train_pairs, test_pairs, train_skipped, test_skipped, shortfall, final_loss,
	accuracy, precision_score, recall, f1, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*database.StoredRun, error) {
	var r database.StoredRun
	var seed int64
	err := row.Scan(
		&r.ID, &r.SweepID, &r.SweepName, &r.Parameter, &r.Value,
		&r.Policy, &r.Epochs, &r.LearningRate, &r.BlurRadius, &r.PerturbTrain, &r.PerturbTest, &seed,
		&r.TrainPairs, &r.TestPairs, &r.TrainSkipped, &r.TestSkipped, &r.Shortfall, &r.FinalLoss,
		&r.Accuracy, &r.Precision, &r.Recall, &r.F1, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Seed = uint64(seed)
	return &r, nil
}

// SaveRun inserts a run, assigning an ID and timestamp when missing
func (r *RunRepository) SaveRun(ctx context.Context, run *database.StoredRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	query := `INSERT INTO experiment_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`

	_, err := r.pool.db.ExecContext(ctx, query,
		run.ID, run.SweepID, run.SweepName, run.Parameter, run.Value,
		run.Policy, run.Epochs, run.LearningRate, run.BlurRadius, run.PerturbTrain, run.PerturbTest, int64(run.Seed),
		run.TrainPairs, run.TestPairs, run.TrainSkipped, run.TestSkipped, run.Shortfall, run.FinalLoss,
		run.Accuracy, run.Precision, run.Recall, run.F1, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID, returns nil if not found
func (r *RunRepository) GetRun(ctx context.Context, id uuid.UUID) (*database.StoredRun, error) {
	row := r.pool.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM experiment_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// GetSweepRuns returns the runs of a sweep ordered by parameter value
func (r *RunRepository) GetSweepRuns(ctx context.Context, sweepID uuid.UUID) ([]database.StoredRun, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM experiment_runs WHERE sweep_id = $1 ORDER BY value, created_at`, sweepID)
	if err != nil {
		return nil, fmt.Errorf("query sweep runs: %w", err)
	}
	defer rows.Close()

	var runs []database.StoredRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sweep runs: %w", err)
	}
	return runs, nil
}

// ListSweeps returns one summary per sweep, newest first
func (r *RunRepository) ListSweeps(ctx context.Context) ([]database.SweepSummary, error) {
	query := `
		SELECT sweep_id,
		       MIN(sweep_name), MIN(parameter), MIN(policy),
		       COUNT(*), MAX(f1), MIN(created_at)
		FROM experiment_runs
		GROUP BY sweep_id
		ORDER BY MIN(created_at) DESC
	`
	rows, err := r.pool.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sweeps: %w", err)
	}
	defer rows.Close()

	var sweeps []database.SweepSummary
	for rows.Next() {
		var s database.SweepSummary
		if err := rows.Scan(&s.SweepID, &s.Name, &s.Parameter, &s.Policy, &s.Runs, &s.BestF1, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sweep: %w", err)
		}
		sweeps = append(sweeps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sweeps: %w", err)
	}
	return sweeps, nil
}

// DeleteSweep removes all runs of a sweep
func (r *RunRepository) DeleteSweep(ctx context.Context, sweepID uuid.UUID) (int, error) {
	result, err := r.pool.db.ExecContext(ctx, "DELETE FROM experiment_runs WHERE sweep_id = $1", sweepID)
	if err != nil {
		return 0, fmt.Errorf("delete sweep: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete sweep: %w", err)
	}
	return int(n), nil
}

var _ database.RunWriter = (*RunRepository)(nil)

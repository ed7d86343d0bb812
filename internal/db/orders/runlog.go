package ordersdb

import (
	"context"
	"database/sql"

	"orderflow/internal/orders"
	"orderflow/internal/saga"
)

// PostgresRunLog persists the audit trail of saga runs: one row per run plus
// one row per observed step transition.
type PostgresRunLog struct {
	db *sql.DB
}

// NewPostgresRunLog constructs a run log backed by Postgres.
func NewPostgresRunLog(db *sql.DB) *PostgresRunLog {
	return &PostgresRunLog{db: db}
}

// NewPostgresRunLogWithSchema initializes the schema then returns the log.
func NewPostgresRunLogWithSchema(ctx context.Context, db *sql.DB) (*PostgresRunLog, error) {
	rl := NewPostgresRunLog(db)
	if err := rl.InitSchema(ctx); err != nil {
		return nil, err
	}
	return rl, nil
}

// InitSchema creates the run log tables if they do not exist.
func (r *PostgresRunLog) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS saga_runs (
			handle TEXT PRIMARY KEY,
			order_id TEXT NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS saga_run_steps (
			id BIGSERIAL PRIMARY KEY,
			handle TEXT NOT NULL,
			step TEXT NOT NULL,
			status TEXT NOT NULL,
			detail TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			FOREIGN KEY (handle) REFERENCES saga_runs(handle) ON DELETE CASCADE
		)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// StartRun inserts the run row in a RUNNING state. Re-inserting the same
// handle is a no-op so retried starts stay safe.
func (r *PostgresRunLog) StartRun(ctx context.Context, handle, orderID string, amount float64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO saga_runs (handle, order_id, amount, status)
		VALUES ($1, $2, $3, 'RUNNING')
		ON CONFLICT (handle) DO NOTHING`,
		handle, orderID, amount,
	)
	return err
}

// RecordStep appends a step transition row.
func (r *PostgresRunLog) RecordStep(ctx context.Context, handle, step, status, detail string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO saga_run_steps (handle, step, status, detail)
		VALUES ($1, $2, $3, $4)`,
		handle, step, status, detail,
	)
	return err
}

// FinishRun stamps the run's terminal status.
func (r *PostgresRunLog) FinishRun(ctx context.Context, handle string, status saga.Status) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE saga_runs
		SET status = $2, updated_at = NOW()
		WHERE handle = $1`,
		handle, string(status),
	)
	return err
}

var _ orders.RunLog = (*PostgresRunLog)(nil)

package ordersdb

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"orderflow/internal/saga"
)

func TestPostgresRunLog_InitSchema(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS saga_runs").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS saga_run_steps").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	rl, err := NewPostgresRunLogWithSchema(context.Background(), db)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if rl == nil {
		t.Fatalf("expected run log")
	}
}

func TestPostgresRunLog_StartRun(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("INSERT INTO saga_runs").
		WithArgs("run-1", "order-1", 42.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	rl := NewPostgresRunLog(db)
	if err := rl.StartRun(context.Background(), "run-1", "order-1", 42.0); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
}

func TestPostgresRunLog_RecordStep(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("INSERT INTO saga_run_steps").
		WithArgs("run-1", "charge-payment", "failed", "card declined").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectClose()

	rl := NewPostgresRunLog(db)
	if err := rl.RecordStep(context.Background(), "run-1", "charge-payment", "failed", "card declined"); err != nil {
		t.Fatalf("RecordStep: %v", err)
	}
}

func TestPostgresRunLog_FinishRun(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("UPDATE saga_runs").
		WithArgs("run-1", "SUCCEEDED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	rl := NewPostgresRunLog(db)
	if err := rl.FinishRun(context.Background(), "run-1", saga.StatusSucceeded); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
}

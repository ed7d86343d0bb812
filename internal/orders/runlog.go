package orders

import (
	"context"

	"orderflow/internal/saga"
)

// RunLog persists an audit trail of saga runs and their step transitions.
// Logging failures are reported but never fail the run itself.
type RunLog interface {
	StartRun(ctx context.Context, handle, orderID string, amount float64) error
	RecordStep(ctx context.Context, handle, step, status, detail string) error
	FinishRun(ctx context.Context, handle string, status saga.Status) error
}

// NoopRunLog discards all run log writes.
type NoopRunLog struct{}

func (NoopRunLog) StartRun(ctx context.Context, handle, orderID string, amount float64) error {
	return nil
}

func (NoopRunLog) RecordStep(ctx context.Context, handle, step, status, detail string) error {
	return nil
}

func (NoopRunLog) FinishRun(ctx context.Context, handle string, status saga.Status) error {
	return nil
}

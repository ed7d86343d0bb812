package saga

import "context"

// Context accumulates step results for a single run, keyed by step name.
// It is append-only: the orchestrator writes each step's result exactly once
// and never overwrites an existing key.
type Context map[string]any

// Clone returns a shallow copy safe to hand out as a snapshot.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Input is what an executor receives on each invocation.
type Input struct {
	Step    string
	Payload any
	Context Context
}

// Executor performs the work of one saga step. Implementations must be
// idempotent under at-least-once invocation: the orchestrator may re-run a
// step after a transient failure.
type Executor interface {
	Execute(ctx context.Context, in Input) (any, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, in Input) (any, error)

func (f ExecutorFunc) Execute(ctx context.Context, in Input) (any, error) {
	return f(ctx, in)
}

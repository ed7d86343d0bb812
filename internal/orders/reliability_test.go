package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"orderflow/internal/saga"
)

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Minute,
		Now:          func() time.Time { return now },
	})

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	err := cb.Execute(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Second,
		Now:          func() time.Time { return now },
	})

	if err := cb.Execute(func() error { return errors.New("boom") }); err == nil {
		t.Fatalf("expected failure")
	}
	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}

	// After the reset window, one probe is allowed; success closes the circuit.
	now = now.Add(2 * time.Second)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("half-open probe: %v", err)
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("closed circuit: %v", err)
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Second,
		Now:          func() time.Time { return now },
	})

	_ = cb.Execute(func() error { return errors.New("boom") })
	now = now.Add(2 * time.Second)
	if err := cb.Execute(func() error { return errors.New("still down") }); err == nil {
		t.Fatalf("expected probe failure")
	}
	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected reopened circuit, got %v", err)
	}
}

func TestRateLimiter_BurstThenBlocks(t *testing.T) {
	limiter := NewRateLimiter(time.Hour, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := limiter.Wait(ctx); err != nil {
			t.Fatalf("token %d: %v", i, err)
		}
	}

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(blocked); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}

func TestRateLimiter_DisabledPassesThrough(t *testing.T) {
	var limiter *RateLimiter
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("nil limiter: %v", err)
	}
	if err := NewRateLimiter(0, 0).Wait(context.Background()); err != nil {
		t.Fatalf("zero limiter: %v", err)
	}
}

type countingGateway struct {
	charges int
	refunds int
	err     error
}

func (g *countingGateway) Charge(ctx context.Context, orderID string, amount float64) error {
	g.charges++
	return g.err
}

func (g *countingGateway) Refund(ctx context.Context, orderID string, amount float64) error {
	g.refunds++
	return g.err
}

func TestReliableGateway_RetriesTransientErrors(t *testing.T) {
	base := &countingGateway{err: errors.New("transient")}
	gw := NewReliableGateway(base, nil, nil, saga.RetryPolicy{
		MaxAttempts: 3,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	})

	if err := gw.Charge(context.Background(), "order-1", 10); err == nil {
		t.Fatalf("expected error")
	}
	if base.charges != 3 {
		t.Fatalf("charges = %d, want 3", base.charges)
	}
}

func TestReliableGateway_SentinelsPassThroughUnretried(t *testing.T) {
	base := &countingGateway{err: ErrAlreadyCharged}
	gw := NewReliableGateway(base, nil, nil, saga.RetryPolicy{
		MaxAttempts: 5,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	})

	err := gw.Charge(context.Background(), "order-1", 10)
	if !errors.Is(err, ErrAlreadyCharged) {
		t.Fatalf("expected ErrAlreadyCharged, got %v", err)
	}
	if base.charges != 1 {
		t.Fatalf("charges = %d, want 1", base.charges)
	}
}

func TestReliableGateway_OpenCircuitNotRetried(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Hour,
		Now:          func() time.Time { return now },
	})
	base := &countingGateway{err: errors.New("down")}
	gw := NewReliableGateway(base, nil, cb, saga.RetryPolicy{
		MaxAttempts: 1,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	})

	// Trip the breaker.
	if err := gw.Charge(context.Background(), "order-1", 10); err == nil {
		t.Fatalf("expected failure")
	}

	calls := base.charges
	err := gw.Refund(context.Background(), "order-1", 10)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if base.refunds != 0 || base.charges != calls {
		t.Fatalf("base called through an open circuit")
	}
}

package orders

import (
	"context"
	"errors"
	"sync"
)

// ErrAlreadyCharged signals an order has already been charged.
var ErrAlreadyCharged = errors.New("order already charged")

// ErrNotCharged signals an order has no recorded charge.
var ErrNotCharged = errors.New("order not charged")

// ErrAlreadyRefunded signals an order has already been refunded.
var ErrAlreadyRefunded = errors.New("order already refunded")

// PaymentGateway charges and refunds a payment instrument for an order.
// Implementations are charge-once and refund-once: a repeat call returns
// ErrAlreadyCharged / ErrAlreadyRefunded, which the saga's steps treat as
// success so retries never double-apply money movement.
type PaymentGateway interface {
	Charge(ctx context.Context, orderID string, amount float64) error
	Refund(ctx context.Context, orderID string, amount float64) error
}

// NewInMemoryGateway constructs an in-memory payment gateway.
func NewInMemoryGateway() *InMemoryGateway {
	return &InMemoryGateway{
		charges:  make(map[string]float64),
		refunds:  make(map[string]float64),
		refunded: make(map[string]bool),
	}
}

// InMemoryGateway tracks charges and refunds in memory.
type InMemoryGateway struct {
	mu       sync.Mutex
	charges  map[string]float64
	refunds  map[string]float64
	refunded map[string]bool
}

func (g *InMemoryGateway) Charge(ctx context.Context, orderID string, amount float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.charges[orderID]; ok {
		return ErrAlreadyCharged
	}
	g.charges[orderID] = amount
	return nil
}

func (g *InMemoryGateway) Refund(ctx context.Context, orderID string, amount float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.charges[orderID]; !ok {
		return ErrNotCharged
	}
	if g.refunded[orderID] {
		return ErrAlreadyRefunded
	}
	g.refunds[orderID] = amount
	g.refunded[orderID] = true
	return nil
}

// WasCharged reports whether an order was charged (for testing/inspection).
func (g *InMemoryGateway) WasCharged(orderID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.charges[orderID]
	return ok
}

// WasRefunded reports whether an order was refunded (for testing/inspection).
func (g *InMemoryGateway) WasRefunded(orderID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refunded[orderID]
}

// RefundAmount returns the recorded refund for an order, if any.
func (g *InMemoryGateway) RefundAmount(orderID string) (float64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	amount, ok := g.refunds[orderID]
	return amount, ok
}

// NoopGateway is a stub PaymentGateway that always succeeds.
type NoopGateway struct{}

func (NoopGateway) Charge(ctx context.Context, orderID string, amount float64) error { return nil }

func (NoopGateway) Refund(ctx context.Context, orderID string, amount float64) error { return nil }

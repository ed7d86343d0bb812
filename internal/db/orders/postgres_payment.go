package ordersdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"orderflow/internal/orders"
)

// PostgresGateway records charges and refunds in Postgres. A charge lands at
// most once per order and a refund at most once per charge; replays surface
// the orders package sentinels so compensations stay idempotent.
type PostgresGateway struct {
	db *sql.DB
}

// NewPostgresGateway constructs a payment gateway backed by Postgres.
func NewPostgresGateway(db *sql.DB) *PostgresGateway {
	return &PostgresGateway{db: db}
}

// NewPostgresGatewayWithSchema initializes the schema then returns the gateway.
func NewPostgresGatewayWithSchema(ctx context.Context, db *sql.DB) (*PostgresGateway, error) {
	gw := NewPostgresGateway(db)
	if err := gw.InitSchema(ctx); err != nil {
		return nil, err
	}
	return gw, nil
}

// InitSchema creates the payments table if it does not exist.
func (p *PostgresGateway) InitSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS payments (
			order_id TEXT PRIMARY KEY,
			amount DOUBLE PRECISION NOT NULL,
			charged_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			refunded_at TIMESTAMPTZ,
			refund_amount DOUBLE PRECISION
		)
	`)
	return err
}

// Charge records a charge for the order. Charging the same order twice
// returns orders.ErrAlreadyCharged.
func (p *PostgresGateway) Charge(ctx context.Context, orderID string, amount float64) error {
	if orderID == "" {
		return fmt.Errorf("order id required")
	}

	res, err := p.db.ExecContext(ctx,
		`INSERT INTO payments (order_id, amount) VALUES ($1, $2) ON CONFLICT (order_id) DO NOTHING`,
		orderID, amount,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return orders.ErrAlreadyCharged
	}
	return nil
}

// Refund records a refund against the order's charge. Refunding an uncharged
// order returns orders.ErrNotCharged; refunding twice returns
// orders.ErrAlreadyRefunded.
func (p *PostgresGateway) Refund(ctx context.Context, orderID string, amount float64) error {
	if orderID == "" {
		return fmt.Errorf("order id required")
	}

	res, err := p.db.ExecContext(ctx,
		`UPDATE payments SET refund_amount = $2, refunded_at = NOW() WHERE order_id = $1 AND refunded_at IS NULL`,
		orderID, amount,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var refunded bool
	row := p.db.QueryRowContext(ctx, `SELECT refunded_at IS NOT NULL FROM payments WHERE order_id = $1`, orderID)
	switch scanErr := row.Scan(&refunded); {
	case scanErr == nil:
		if refunded {
			return orders.ErrAlreadyRefunded
		}
		return orders.ErrNotCharged
	case errors.Is(scanErr, sql.ErrNoRows):
		return orders.ErrNotCharged
	default:
		return scanErr
	}
}

var _ orders.PaymentGateway = (*PostgresGateway)(nil)

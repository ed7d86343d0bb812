package ordersdb

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"orderflow/internal/orders"
)

func TestPostgresGateway_InitSchema(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS payments").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	gw, err := NewPostgresGatewayWithSchema(context.Background(), db)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if gw == nil {
		t.Fatalf("expected gateway")
	}
}

func TestPostgresGateway_Charge(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("INSERT INTO payments").
		WithArgs("order-1", 99.5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	gw := NewPostgresGateway(db)
	if err := gw.Charge(context.Background(), "order-1", 99.5); err != nil {
		t.Fatalf("Charge: %v", err)
	}
}

func TestPostgresGateway_ChargeTwice(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("INSERT INTO payments").
		WithArgs("order-1", 99.5).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	gw := NewPostgresGateway(db)
	err := gw.Charge(context.Background(), "order-1", 99.5)
	if !errors.Is(err, orders.ErrAlreadyCharged) {
		t.Fatalf("expected ErrAlreadyCharged, got %v", err)
	}
}

func TestPostgresGateway_ChargeRequiresOrderID(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectClose()

	gw := NewPostgresGateway(db)
	if err := gw.Charge(context.Background(), "", 10); err == nil {
		t.Fatalf("expected error for empty order id")
	}
}

func TestPostgresGateway_Refund(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("UPDATE payments").
		WithArgs("order-1", 12.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	gw := NewPostgresGateway(db)
	if err := gw.Refund(context.Background(), "order-1", 12.0); err != nil {
		t.Fatalf("Refund: %v", err)
	}
}

func TestPostgresGateway_RefundTwice(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("UPDATE payments").
		WithArgs("order-1", 12.0).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT refunded_at IS NOT NULL").
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"refunded"}).AddRow(true))
	mock.ExpectClose()

	gw := NewPostgresGateway(db)
	err := gw.Refund(context.Background(), "order-1", 12.0)
	if !errors.Is(err, orders.ErrAlreadyRefunded) {
		t.Fatalf("expected ErrAlreadyRefunded, got %v", err)
	}
}

func TestPostgresGateway_RefundUncharged(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("UPDATE payments").
		WithArgs("order-9", 12.0).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT refunded_at IS NOT NULL").
		WithArgs("order-9").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectClose()

	gw := NewPostgresGateway(db)
	err := gw.Refund(context.Background(), "order-9", 12.0)
	if !errors.Is(err, orders.ErrNotCharged) {
		t.Fatalf("expected ErrNotCharged, got %v", err)
	}
}

package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"orderflow/internal/saga"
	"orderflow/internal/store"
)

// Step names, matching the workflow definition's node names.
const (
	StepValidate = "validate-order"
	StepProcess  = "process-order"
	StepCharge   = "charge-payment"
	StepVerify   = "verify-payment"
	StepRefund   = "refund-payment"
	StepCancel   = "cancel-order"
)

// ValidationStatus is the Validate step's verdict.
type ValidationStatus string

const (
	ValidationPassed ValidationStatus = "PASSED"
	ValidationFailed ValidationStatus = "FAILED"
)

// ValidationResult is written under the validate step's context key.
type ValidationResult struct {
	Status  ValidationStatus `json:"validationStatus"`
	Message string           `json:"message"`
}

// ProcessResult records the entities committed by the Process step.
type ProcessResult struct {
	OrderID        string  `json:"orderId"`
	Customer       Customer `json:"customer"`
	Items          []Item  `json:"items"`
	Payment        Payment `json:"payment"`
	RecordsWritten int     `json:"recordsWritten"`
}

// ChargeResult records the applied charge.
type ChargeResult struct {
	OrderID   string  `json:"orderId"`
	PaymentID string  `json:"paymentId"`
	Amount    float64 `json:"amount"`
}

// RefundResult records the applied refund.
type RefundResult struct {
	OrderID string  `json:"orderId"`
	Amount  float64 `json:"amount"`
}

// CancelResult records the compensation applied to an order.
type CancelResult struct {
	OrderID  string      `json:"orderId"`
	Previous OrderStatus `json:"previousStatus"`
	Changed  bool        `json:"changed"`
}

// orderDoc is the order record's stored document.
type orderDoc struct {
	OrderID   string    `json:"orderId"`
	Items     []Item    `json:"items"`
	Payment   Payment   `json:"payment"`
	OrderDate time.Time `json:"orderDate"`
}

// paymentDoc is the payment record's stored document.
type paymentDoc struct {
	OrderID string  `json:"orderId"`
	Payment Payment `json:"payment"`
}

func payloadFrom(in saga.Input) (OrderPayload, error) {
	p, ok := in.Payload.(OrderPayload)
	if !ok {
		return OrderPayload{}, saga.Permanent(fmt.Errorf("step %s: unexpected payload type %T", in.Step, in.Payload))
	}
	return p, nil
}

// ValidateExecutor applies the business validation predicate. It has no side
// effects; a failed validation is a result, not an error, so the workflow
// can branch on it.
type ValidateExecutor struct{}

func (ValidateExecutor) Execute(ctx context.Context, in saga.Input) (any, error) {
	p, err := payloadFrom(in)
	if err != nil {
		return nil, err
	}

	switch {
	case p.OrderID == "" || p.Customer.CustomerID == "" || len(p.Items) == 0 || p.Payment.PaymentID == "":
		return ValidationResult{Status: ValidationFailed, Message: "missing or invalid order details"}, nil
	case p.Payment.Amount <= 0:
		return ValidationResult{Status: ValidationFailed, Message: "payment amount must be positive"}, nil
	}
	for _, item := range p.Items {
		if item.Quantity <= 0 {
			return ValidationResult{Status: ValidationFailed, Message: fmt.Sprintf("item %s: quantity must be positive", item.ItemID)}, nil
		}
		if item.Price < 0 {
			return ValidationResult{Status: ValidationFailed, Message: fmt.Sprintf("item %s: price must not be negative", item.ItemID)}, nil
		}
	}
	return ValidationResult{Status: ValidationPassed, Message: "order is valid"}, nil
}

// ProcessExecutor commits the customer, order, item, and payment records,
// all with status PROCESSING. The writes touch disjoint keys and are issued
// concurrently; the step succeeds only if all of them do.
type ProcessExecutor struct {
	Store store.Store
	Now   func() time.Time
}

func (e ProcessExecutor) Execute(ctx context.Context, in saga.Input) (any, error) {
	p, err := payloadFrom(in)
	if err != nil {
		return nil, err
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}

	records, err := buildProcessRecords(p, now())
	if err != nil {
		return nil, saga.Permanent(err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, rec := range records {
		g.Go(func() error {
			return e.Store.Put(gctx, rec)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("process order %s: %w", p.OrderID, err)
	}

	return ProcessResult{
		OrderID:        p.OrderID,
		Customer:       p.Customer,
		Items:          p.Items,
		Payment:        p.Payment,
		RecordsWritten: len(records),
	}, nil
}

func buildProcessRecords(p OrderPayload, now time.Time) ([]store.Record, error) {
	records := make([]store.Record, 0, len(p.Items)+3)

	customerData, err := json.Marshal(p.Customer)
	if err != nil {
		return nil, fmt.Errorf("marshal customer: %w", err)
	}
	records = append(records, store.Record{
		Key:  CustomerKey(p.Customer.CustomerID, p.OrderID),
		Data: customerData,
	})

	orderData, err := json.Marshal(orderDoc{OrderID: p.OrderID, Items: p.Items, Payment: p.Payment, OrderDate: now})
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}
	records = append(records, store.Record{
		Key:    OrderKey(p.OrderID),
		Status: string(OrderProcessing),
		Data:   orderData,
	})

	for _, item := range p.Items {
		itemData, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("marshal item %s: %w", item.ItemID, err)
		}
		records = append(records, store.Record{
			Key:    ItemKey(p.OrderID, item.ItemID),
			Status: string(OrderProcessing),
			Data:   itemData,
		})
	}

	paymentData, err := json.Marshal(paymentDoc{OrderID: p.OrderID, Payment: p.Payment})
	if err != nil {
		return nil, fmt.Errorf("marshal payment: %w", err)
	}
	records = append(records, store.Record{
		Key:    PaymentKey(p.Payment.PaymentID),
		Status: string(PaymentProcessing),
		Data:   paymentData,
	})

	return records, nil
}

// ChargeExecutor charges the declared amount through the payment gateway,
// then marks the order PAID and the payment SUCCESS. An already-applied
// charge is treated as success so a retried step never double-charges.
type ChargeExecutor struct {
	Store   store.Store
	Gateway PaymentGateway
}

func (e ChargeExecutor) Execute(ctx context.Context, in saga.Input) (any, error) {
	processed, ok := in.Context[StepProcess].(ProcessResult)
	if !ok {
		return nil, saga.Permanent(fmt.Errorf("charge: missing %s result", StepProcess))
	}

	err := e.Gateway.Charge(ctx, processed.OrderID, processed.Payment.Amount)
	if err != nil && !errors.Is(err, ErrAlreadyCharged) {
		return nil, fmt.Errorf("charge order %s: %w", processed.OrderID, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return transitionOrder(gctx, e.Store, processed.OrderID, OrderPaid)
	})
	g.Go(func() error {
		return transitionPayment(gctx, e.Store, processed.Payment.PaymentID, PaymentSuccess)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return ChargeResult{
		OrderID:   processed.OrderID,
		PaymentID: processed.Payment.PaymentID,
		Amount:    processed.Payment.Amount,
	}, nil
}

// VerifyExecutor recomputes the bill from the persisted items and compares
// it with the persisted payment. Read-only.
type VerifyExecutor struct {
	Store store.Store
	Now   func() time.Time
}

func (e VerifyExecutor) Execute(ctx context.Context, in saga.Input) (any, error) {
	p, err := payloadFrom(in)
	if err != nil {
		return nil, err
	}
	charged, ok := in.Context[StepCharge].(ChargeResult)
	if !ok {
		return nil, saga.Permanent(fmt.Errorf("verify: missing %s result", StepCharge))
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}

	itemRecords, err := e.Store.Query(ctx, OrderKey(p.OrderID).Partition, ItemSortPrefix)
	if err != nil {
		return nil, fmt.Errorf("verify order %s: query items: %w", p.OrderID, err)
	}
	if len(itemRecords) == 0 {
		return nil, fmt.Errorf("verify order %s: no items found", p.OrderID)
	}
	items := make([]Item, 0, len(itemRecords))
	for _, rec := range itemRecords {
		var item Item
		if err := json.Unmarshal(rec.Data, &item); err != nil {
			return nil, saga.Permanent(fmt.Errorf("verify order %s: decode item %s: %w", p.OrderID, rec.Key.Sort, err))
		}
		items = append(items, item)
	}

	paymentRec, err := e.Store.Get(ctx, PaymentKey(charged.PaymentID))
	if err != nil {
		return nil, fmt.Errorf("verify order %s: get payment: %w", p.OrderID, err)
	}
	var payment paymentDoc
	if err := json.Unmarshal(paymentRec.Data, &payment); err != nil {
		return nil, saga.Permanent(fmt.Errorf("verify order %s: decode payment: %w", p.OrderID, err))
	}

	return ComputeBill(p.OrderID, p.Customer, items, payment.Payment.Amount, now()), nil
}

// RefundExecutor refunds the overpaid portion and moves the order and
// payment to REFUNDED. An already-applied refund is a no-op success.
type RefundExecutor struct {
	Store   store.Store
	Gateway PaymentGateway
}

func (e RefundExecutor) Execute(ctx context.Context, in saga.Input) (any, error) {
	bill, ok := in.Context[StepVerify].(Bill)
	if !ok {
		return nil, saga.Permanent(fmt.Errorf("refund: missing %s result", StepVerify))
	}
	charged, ok := in.Context[StepCharge].(ChargeResult)
	if !ok {
		return nil, saga.Permanent(fmt.Errorf("refund: missing %s result", StepCharge))
	}

	err := e.Gateway.Refund(ctx, bill.OrderID, bill.OverpaidAmount)
	if err != nil && !errors.Is(err, ErrAlreadyRefunded) {
		return nil, fmt.Errorf("refund order %s: %w", bill.OrderID, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return transitionOrder(gctx, e.Store, bill.OrderID, OrderRefunded)
	})
	g.Go(func() error {
		return transitionPayment(gctx, e.Store, charged.PaymentID, PaymentRefunded)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return RefundResult{OrderID: bill.OrderID, Amount: bill.OverpaidAmount}, nil
}

// CancelExecutor is the shared compensation: it rolls the order back to
// CANCELLED and the payment to FAILED. It never uncancels a record already
// CANCELLED or REFUNDED; a repeat call is a no-op success.
type CancelExecutor struct {
	Store store.Store
}

func (e CancelExecutor) Execute(ctx context.Context, in saga.Input) (any, error) {
	p, err := payloadFrom(in)
	if err != nil {
		return nil, err
	}

	rec, err := e.Store.Get(ctx, OrderKey(p.OrderID))
	if errors.Is(err, store.ErrNotFound) {
		// Process never committed; nothing to roll back.
		return CancelResult{OrderID: p.OrderID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cancel order %s: %w", p.OrderID, err)
	}

	previous := OrderStatus(rec.Status)
	if previous.Terminal() {
		return CancelResult{OrderID: p.OrderID, Previous: previous}, nil
	}

	if _, err := e.Store.UpdateStatus(ctx, OrderKey(p.OrderID), string(OrderCancelled)); err != nil {
		return nil, fmt.Errorf("cancel order %s: %w", p.OrderID, err)
	}
	if err := failPayment(ctx, e.Store, p.Payment.PaymentID); err != nil {
		return nil, fmt.Errorf("cancel order %s: %w", p.OrderID, err)
	}

	return CancelResult{OrderID: p.OrderID, Previous: previous, Changed: true}, nil
}

// transitionOrder applies an order status transition, tolerating a repeat of
// the same target status but refusing to regress a terminal one.
func transitionOrder(ctx context.Context, st store.Store, orderID string, to OrderStatus) error {
	rec, err := st.Get(ctx, OrderKey(orderID))
	if err != nil {
		return fmt.Errorf("order %s: %w", orderID, err)
	}
	current := OrderStatus(rec.Status)
	if current == to {
		return nil
	}
	if !current.CanTransition(to) {
		return saga.Permanent(fmt.Errorf("order %s: illegal transition %s -> %s", orderID, current, to))
	}
	if _, err := st.UpdateStatus(ctx, OrderKey(orderID), string(to)); err != nil {
		return fmt.Errorf("order %s: %w", orderID, err)
	}
	return nil
}

func transitionPayment(ctx context.Context, st store.Store, paymentID string, to PaymentStatus) error {
	rec, err := st.Get(ctx, PaymentKey(paymentID))
	if err != nil {
		return fmt.Errorf("payment %s: %w", paymentID, err)
	}
	current := PaymentStatus(rec.Status)
	if current == to {
		return nil
	}
	if !current.CanTransition(to) {
		return saga.Permanent(fmt.Errorf("payment %s: illegal transition %s -> %s", paymentID, current, to))
	}
	if _, err := st.UpdateStatus(ctx, PaymentKey(paymentID), string(to)); err != nil {
		return fmt.Errorf("payment %s: %w", paymentID, err)
	}
	return nil
}

// failPayment marks a payment FAILED unless it is already terminal or was
// never committed.
func failPayment(ctx context.Context, st store.Store, paymentID string) error {
	rec, err := st.Get(ctx, PaymentKey(paymentID))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("payment %s: %w", paymentID, err)
	}
	if PaymentStatus(rec.Status).Terminal() {
		return nil
	}
	if _, err := st.UpdateStatus(ctx, PaymentKey(paymentID), string(PaymentFailed)); err != nil {
		return fmt.Errorf("payment %s: %w", paymentID, err)
	}
	return nil
}

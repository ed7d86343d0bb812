package orders

// OrderStatus is the lifecycle status of an order.
type OrderStatus string

const (
	OrderProcessing OrderStatus = "PROCESSING"
	OrderPaid       OrderStatus = "PAID"
	OrderCancelled  OrderStatus = "CANCELLED"
	OrderRefunded   OrderStatus = "REFUNDED"
)

// Terminal reports whether no further transition is permitted.
func (s OrderStatus) Terminal() bool {
	return s == OrderCancelled || s == OrderRefunded
}

// CanTransition reports whether the state machine permits moving to `to`:
// PROCESSING -> {PAID, CANCELLED}, PAID -> {REFUNDED}.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	switch s {
	case OrderProcessing:
		return to == OrderPaid || to == OrderCancelled
	case OrderPaid:
		return to == OrderRefunded
	default:
		return false
	}
}

// PaymentStatus is the lifecycle status of a payment record.
type PaymentStatus string

const (
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentSuccess    PaymentStatus = "SUCCESS"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)

// Terminal reports whether no further transition is permitted.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentFailed || s == PaymentRefunded
}

// CanTransition reports whether the state machine permits moving to `to`:
// PROCESSING -> {SUCCESS, FAILED}, SUCCESS -> {REFUNDED}.
func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	switch s {
	case PaymentProcessing:
		return to == PaymentSuccess || to == PaymentFailed
	case PaymentSuccess:
		return to == PaymentRefunded
	default:
		return false
	}
}

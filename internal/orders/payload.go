package orders

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInput signals a malformed or incomplete order payload, rejected before
// any saga step executes.
var ErrInput = errors.New("invalid order payload")

// Customer references the buyer; assumed to exist or be created alongside
// the order.
type Customer struct {
	CustomerID string `json:"customerId"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	TaxID      string `json:"taxId"`
}

// Item is one ordered line belonging to exactly one order.
type Item struct {
	ItemID      string  `json:"itemId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// Payment is the declared payment for an order, one-to-one with it.
type Payment struct {
	PaymentID string  `json:"paymentId"`
	Method    string  `json:"method"`
	Amount    float64 `json:"amount"`
}

// OrderPayload is the raw order submission.
type OrderPayload struct {
	OrderID  string   `json:"orderId"`
	Customer Customer `json:"customer"`
	Items    []Item   `json:"items"`
	Payment  Payment  `json:"payment"`
}

// ParsePayload decodes a submission body and enforces the required fields.
func ParsePayload(data []byte) (OrderPayload, error) {
	var p OrderPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return OrderPayload{}, fmt.Errorf("%w: %v", ErrInput, err)
	}
	if err := p.CheckInput(); err != nil {
		return OrderPayload{}, err
	}
	return p, nil
}

// CheckInput verifies the fields the orchestrator needs before a run can
// start. Business validation beyond presence is the Validate step's job.
func (p OrderPayload) CheckInput() error {
	if p.OrderID == "" {
		return fmt.Errorf("%w: orderId is required", ErrInput)
	}
	if p.Customer.CustomerID == "" {
		return fmt.Errorf("%w: customer.customerId is required", ErrInput)
	}
	if len(p.Items) == 0 {
		return fmt.Errorf("%w: items are required", ErrInput)
	}
	if p.Payment.PaymentID == "" {
		return fmt.Errorf("%w: payment.paymentId is required", ErrInput)
	}
	return nil
}

package orders

import (
	"errors"
	"testing"
)

func validPayload() OrderPayload {
	return OrderPayload{
		OrderID: "order-1",
		Customer: Customer{
			CustomerID: "cust-1",
			Name:       "Ada Lovelace",
			Email:      "ada@example.com",
			TaxID:      "TAX-1",
		},
		Items: []Item{
			{ItemID: "item-1", ProductName: "Widget", Quantity: 2, Price: 10},
			{ItemID: "item-2", ProductName: "Gadget", Quantity: 1, Price: 5},
		},
		Payment: Payment{PaymentID: "pay-1", Method: "card", Amount: 25},
	}
}

func TestParsePayload(t *testing.T) {
	body := []byte(`{
		"orderId": "order-1",
		"customer": {"customerId": "cust-1", "name": "Ada"},
		"items": [{"itemId": "item-1", "productName": "Widget", "quantity": 2, "price": 10}],
		"payment": {"paymentId": "pay-1", "method": "card", "amount": 20}
	}`)

	p, err := ParsePayload(body)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if p.OrderID != "order-1" || p.Customer.CustomerID != "cust-1" {
		t.Fatalf("unexpected payload: %+v", p)
	}
	if len(p.Items) != 1 || p.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items: %+v", p.Items)
	}
	if p.Payment.Amount != 20 {
		t.Fatalf("unexpected payment: %+v", p.Payment)
	}
}

func TestParsePayload_BadJSON(t *testing.T) {
	if _, err := ParsePayload([]byte(`{`)); !errors.Is(err, ErrInput) {
		t.Fatalf("expected ErrInput, got %v", err)
	}
}

func TestCheckInput(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*OrderPayload)
		ok     bool
	}{
		{"valid", func(p *OrderPayload) {}, true},
		{"missing order id", func(p *OrderPayload) { p.OrderID = "" }, false},
		{"missing customer id", func(p *OrderPayload) { p.Customer.CustomerID = "" }, false},
		{"no items", func(p *OrderPayload) { p.Items = nil }, false},
		{"missing payment id", func(p *OrderPayload) { p.Payment.PaymentID = "" }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPayload()
			tc.mutate(&p)
			err := p.CheckInput()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInput) {
				t.Fatalf("expected ErrInput, got %v", err)
			}
		})
	}
}

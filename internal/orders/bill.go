package orders

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BillStatus is the verification verdict on a payment against its order.
type BillStatus string

const (
	BillPaid      BillStatus = "PAID"
	BillUnderpaid BillStatus = "UNDERPAID"
	BillOverpaid  BillStatus = "OVERPAID"
	BillUnknown   BillStatus = "UNKNOWN"
)

// Bill is the verification step's transient result. It is derived from
// persisted items and the persisted payment; it is not itself persisted.
type Bill struct {
	BillID          string     `json:"billId"`
	VerificationID  string     `json:"verificationId"`
	DateIssued      time.Time  `json:"dateIssued"`
	OrderID         string     `json:"orderId"`
	CustomerName    string     `json:"customerName"`
	CustomerTaxID   string     `json:"customerTaxId"`
	Items           []Item     `json:"items"`
	TotalDue        float64    `json:"totalDue"`
	PaymentReceived float64    `json:"paymentReceived"`
	RemainingAmount float64    `json:"remainingAmount"`
	OverpaidAmount  float64    `json:"overpaidAmount"`
	Status          BillStatus `json:"status"`
}

// ComputeBill recomputes the total due from the items and compares the
// payment against it. The remaining and overpaid amounts are mutually
// exclusive and non-negative; both are zero when the status is PAID.
func ComputeBill(orderID string, customer Customer, items []Item, paymentReceived float64, issued time.Time) Bill {
	var totalDue float64
	for _, item := range items {
		totalDue += item.Price * float64(item.Quantity)
	}

	bill := Bill{
		BillID:          fmt.Sprintf("%s#%s", issued.UTC().Format(time.RFC3339), orderID),
		VerificationID:  uuid.NewString(),
		DateIssued:      issued,
		OrderID:         orderID,
		CustomerName:    customer.Name,
		CustomerTaxID:   customer.TaxID,
		Items:           items,
		TotalDue:        totalDue,
		PaymentReceived: paymentReceived,
		Status:          BillUnknown,
	}

	switch {
	case paymentReceived == totalDue:
		bill.Status = BillPaid
	case paymentReceived < totalDue:
		bill.Status = BillUnderpaid
		bill.RemainingAmount = totalDue - paymentReceived
	case paymentReceived > totalDue:
		bill.Status = BillOverpaid
		bill.OverpaidAmount = paymentReceived - totalDue
	}
	return bill
}

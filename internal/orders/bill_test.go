package orders

import (
	"strings"
	"testing"
	"time"
)

func TestComputeBill_Paid(t *testing.T) {
	issued := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	items := []Item{
		{ItemID: "item-1", Quantity: 2, Price: 10},
		{ItemID: "item-2", Quantity: 1, Price: 5},
	}

	bill := ComputeBill("order-1", Customer{Name: "Ada", TaxID: "TAX-1"}, items, 25, issued)

	if bill.Status != BillPaid {
		t.Fatalf("status = %s", bill.Status)
	}
	if bill.TotalDue != 25 || bill.PaymentReceived != 25 {
		t.Fatalf("amounts: due=%v received=%v", bill.TotalDue, bill.PaymentReceived)
	}
	if bill.RemainingAmount != 0 || bill.OverpaidAmount != 0 {
		t.Fatalf("expected no remainder: %+v", bill)
	}
	if !strings.HasSuffix(bill.BillID, "#order-1") {
		t.Fatalf("bill id = %s", bill.BillID)
	}
	if !strings.HasPrefix(bill.BillID, "2026-03-14T09:26:53Z") {
		t.Fatalf("bill id = %s", bill.BillID)
	}
	if bill.VerificationID == "" {
		t.Fatal("verification id missing")
	}
	if bill.CustomerName != "Ada" || bill.CustomerTaxID != "TAX-1" {
		t.Fatalf("customer fields: %+v", bill)
	}
}

func TestComputeBill_Underpaid(t *testing.T) {
	items := []Item{{ItemID: "item-1", Quantity: 3, Price: 10}}

	bill := ComputeBill("order-1", Customer{}, items, 20, time.Now())

	if bill.Status != BillUnderpaid {
		t.Fatalf("status = %s", bill.Status)
	}
	if bill.RemainingAmount != 10 {
		t.Fatalf("remaining = %v", bill.RemainingAmount)
	}
	if bill.OverpaidAmount != 0 {
		t.Fatalf("overpaid = %v", bill.OverpaidAmount)
	}
}

func TestComputeBill_Overpaid(t *testing.T) {
	items := []Item{{ItemID: "item-1", Quantity: 1, Price: 10}}

	bill := ComputeBill("order-1", Customer{}, items, 15, time.Now())

	if bill.Status != BillOverpaid {
		t.Fatalf("status = %s", bill.Status)
	}
	if bill.OverpaidAmount != 5 {
		t.Fatalf("overpaid = %v", bill.OverpaidAmount)
	}
	if bill.RemainingAmount != 0 {
		t.Fatalf("remaining = %v", bill.RemainingAmount)
	}
}

// The amount identity holds across every bill: received plus remaining minus
// overpaid equals total due.
func TestComputeBill_AmountIdentity(t *testing.T) {
	items := []Item{{ItemID: "item-1", Quantity: 4, Price: 7.5}}
	for _, received := range []float64{0, 10, 30, 30.01, 100} {
		bill := ComputeBill("order-1", Customer{}, items, received, time.Now())
		got := bill.PaymentReceived + bill.RemainingAmount - bill.OverpaidAmount
		if got != bill.TotalDue {
			t.Fatalf("received=%v: identity broken: %v != %v", received, got, bill.TotalDue)
		}
		if bill.RemainingAmount < 0 || bill.OverpaidAmount < 0 {
			t.Fatalf("negative amounts: %+v", bill)
		}
		if bill.RemainingAmount > 0 && bill.OverpaidAmount > 0 {
			t.Fatalf("both remainder and overpay set: %+v", bill)
		}
	}
}

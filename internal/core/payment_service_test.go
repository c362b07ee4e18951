package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestPaymentService(t *testing.T) (*paymentService, *fakeInvoiceRepo, *fakePaymentRepo) {
	t.Helper()
	invoices := newFakeInvoiceRepo()
	invoices.now = func() time.Time { return testToday }
	payments := &fakePaymentRepo{invoices: invoices}
	methods := &fakeMethodRepo{methods: []PaymentMethod{
		{ID: 1, Name: "Cash", IsActive: true},
		{ID: 2, Name: "Bank Transfer", IsActive: true},
		{ID: 3, Name: "Cheque", IsActive: false},
	}}

	svc := NewPaymentService(payments, invoices, methods, NewStatusMachine()).(*paymentService)
	svc.now = func() time.Time { return testToday }
	return svc, invoices, payments
}

func seedSentInvoice(repo *fakeInvoiceRepo, total string) *Invoice {
	return repo.seed(&Invoice{
		InvoiceNumber:      "INV-202506-00001",
		CustomerID:         1,
		Status:             StatusSent,
		GrandTotal:         d(total),
		AmountPaid:         decimal.Zero,
		OutstandingBalance: d(total),
		Discount:           decimal.Zero,
	})
}

func TestRecordPaymentFull(t *testing.T) {
	svc, invoices, payments := newTestPaymentService(t)
	ctx := context.Background()
	inv := seedSentInvoice(invoices, "224.20")

	payment, err := svc.RecordPayment(ctx, inv.ID, d("224.20"), 1, "wire-001")
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if payment.ID == 0 {
		t.Error("payment was not persisted")
	}
	if payment.Reference != "wire-001" {
		t.Errorf("Reference = %s, want wire-001", payment.Reference)
	}

	stored, _ := invoices.GetByID(ctx, inv.ID)
	if stored.Status != StatusPaid {
		t.Errorf("status = %s, want Paid", stored.Status)
	}
	if !stored.OutstandingBalance.IsZero() {
		t.Errorf("outstanding = %s, want 0", stored.OutstandingBalance)
	}
	if got := stored.AmountPaid.StringFixed(2); got != "224.20" {
		t.Errorf("amount paid = %s, want 224.20", got)
	}
	if len(payments.payments) != 1 {
		t.Errorf("stored %d payments, want 1", len(payments.payments))
	}
}

func TestRecordPaymentPartialInstallments(t *testing.T) {
	svc, invoices, _ := newTestPaymentService(t)
	ctx := context.Background()
	inv := seedSentInvoice(invoices, "300.00")

	if _, err := svc.RecordPayment(ctx, inv.ID, d("100.00"), 1, "part-1"); err != nil {
		t.Fatalf("first installment: %v", err)
	}
	stored, _ := invoices.GetByID(ctx, inv.ID)
	if stored.Status != StatusPartiallyPaid {
		t.Errorf("status after first installment = %s, want PartiallyPaid", stored.Status)
	}
	if got := stored.OutstandingBalance.StringFixed(2); got != "200.00" {
		t.Errorf("outstanding = %s, want 200.00", got)
	}

	// A second installment keeps the invoice PartiallyPaid.
	if _, err := svc.RecordPayment(ctx, inv.ID, d("50.00"), 1, "part-2"); err != nil {
		t.Fatalf("second installment: %v", err)
	}
	stored, _ = invoices.GetByID(ctx, inv.ID)
	if stored.Status != StatusPartiallyPaid {
		t.Errorf("status after second installment = %s, want PartiallyPaid", stored.Status)
	}
	if got := stored.OutstandingBalance.StringFixed(2); got != "150.00" {
		t.Errorf("outstanding = %s, want 150.00", got)
	}

	// The final installment settles the invoice.
	if _, err := svc.RecordPayment(ctx, inv.ID, d("150.00"), 1, "part-3"); err != nil {
		t.Fatalf("final installment: %v", err)
	}
	stored, _ = invoices.GetByID(ctx, inv.ID)
	if stored.Status != StatusPaid {
		t.Errorf("status after final installment = %s, want Paid", stored.Status)
	}
	if !stored.OutstandingBalance.IsZero() {
		t.Errorf("outstanding = %s, want 0", stored.OutstandingBalance)
	}
}

func TestRecordPaymentOverpaymentRejected(t *testing.T) {
	svc, invoices, payments := newTestPaymentService(t)
	ctx := context.Background()
	inv := seedSentInvoice(invoices, "100.00")

	_, err := svc.RecordPayment(ctx, inv.ID, d("100.01"), 1, "over")
	if !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("error = %v, want ErrInvalidOperation", err)
	}

	stored, _ := invoices.GetByID(ctx, inv.ID)
	if stored.Status != StatusSent || !stored.AmountPaid.IsZero() {
		t.Errorf("rejected payment mutated invoice: status=%s paid=%s", stored.Status, stored.AmountPaid)
	}
	if len(payments.payments) != 0 {
		t.Errorf("rejected payment was persisted: %d stored", len(payments.payments))
	}
}

func TestRecordPaymentNonPositiveAmount(t *testing.T) {
	svc, invoices, _ := newTestPaymentService(t)
	ctx := context.Background()
	inv := seedSentInvoice(invoices, "100.00")

	for _, amount := range []string{"0", "-5.00"} {
		if _, err := svc.RecordPayment(ctx, inv.ID, d(amount), 1, "bad"); !errors.Is(err, ErrInvalidOperation) {
			t.Errorf("amount %s: error = %v, want ErrInvalidOperation", amount, err)
		}
	}
}

func TestRecordPaymentCancelledInvoice(t *testing.T) {
	svc, invoices, _ := newTestPaymentService(t)
	ctx := context.Background()
	inv := invoices.seed(&Invoice{
		InvoiceNumber: "INV-202506-00001", Status: StatusCancelled,
		GrandTotal: d("100.00"), OutstandingBalance: d("100.00"),
		AmountPaid: decimal.Zero, Discount: decimal.Zero,
	})

	if _, err := svc.RecordPayment(ctx, inv.ID, d("50.00"), 1, "late"); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("error = %v, want ErrInvalidOperation", err)
	}
}

func TestRecordPaymentDraftInvoiceRejected(t *testing.T) {
	svc, invoices, payments := newTestPaymentService(t)
	ctx := context.Background()
	inv := invoices.seed(&Invoice{
		InvoiceNumber: "INV-202506-00001", Status: StatusDraft,
		GrandTotal: d("100.00"), OutstandingBalance: d("100.00"),
		AmountPaid: decimal.Zero, Discount: decimal.Zero,
	})

	_, err := svc.RecordPayment(ctx, inv.ID, d("50.00"), 1, "early")
	var transErr *InvalidTransitionError
	if !errors.As(err, &transErr) {
		t.Fatalf("error %v is not an *InvalidTransitionError", err)
	}

	stored, _ := invoices.GetByID(ctx, inv.ID)
	if stored.Status != StatusDraft || !stored.AmountPaid.IsZero() {
		t.Errorf("rejected payment mutated invoice: status=%s paid=%s", stored.Status, stored.AmountPaid)
	}
	if len(payments.payments) != 0 {
		t.Errorf("rejected payment was persisted: %d stored", len(payments.payments))
	}
}

func TestRecordPaymentConflictRetryRecordsOnce(t *testing.T) {
	svc, invoices, payments := newTestPaymentService(t)
	ctx := context.Background()
	inv := seedSentInvoice(invoices, "300.00")

	// A concurrent writer bumps the version between load and save. The
	// atomic write must roll the payment back with the invoice update, and
	// re-running the whole operation must leave exactly one payment row.
	invoices.failUpdates = 1

	_, err := svc.RecordPayment(ctx, inv.ID, d("100.00"), 1, "retry-1")
	if !errors.Is(err, ErrConcurrencyConflict) {
		t.Fatalf("error = %v, want ErrConcurrencyConflict", err)
	}
	if len(payments.payments) != 0 {
		t.Fatalf("conflicted payment was persisted: %d rows", len(payments.payments))
	}

	if _, err := svc.RecordPayment(ctx, inv.ID, d("100.00"), 1, "retry-1"); err != nil {
		t.Fatalf("retried RecordPayment: %v", err)
	}

	if len(payments.payments) != 1 {
		t.Fatalf("stored %d payment rows after retry, want 1", len(payments.payments))
	}
	stored, _ := invoices.GetByID(ctx, inv.ID)
	sum, _ := payments.SumPaidForInvoice(ctx, inv.ID)
	if !stored.AmountPaid.Equal(sum) {
		t.Errorf("AmountPaid (%s) diverges from payment sum (%s)",
			stored.AmountPaid.StringFixed(2), sum.StringFixed(2))
	}
	if got := stored.AmountPaid.StringFixed(2); got != "100.00" {
		t.Errorf("AmountPaid = %s, want 100.00", got)
	}
}

func TestRecordPaymentUnknownInvoice(t *testing.T) {
	svc, _, _ := newTestPaymentService(t)

	if _, err := svc.RecordPayment(context.Background(), 99, d("10.00"), 1, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestGetOutstandingBalance(t *testing.T) {
	svc, invoices, _ := newTestPaymentService(t)
	ctx := context.Background()
	inv := seedSentInvoice(invoices, "250.00")

	balance, err := svc.GetOutstandingBalance(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetOutstandingBalance: %v", err)
	}
	if got := balance.StringFixed(2); got != "250.00" {
		t.Errorf("balance = %s, want 250.00", got)
	}
}

func TestListPaymentMethodsActiveOnly(t *testing.T) {
	svc, _, _ := newTestPaymentService(t)

	methods, err := svc.ListPaymentMethods(context.Background())
	if err != nil {
		t.Fatalf("ListPaymentMethods: %v", err)
	}
	if len(methods) != 2 {
		t.Fatalf("got %d methods, want 2 active", len(methods))
	}
	for _, m := range methods {
		if !m.IsActive {
			t.Errorf("inactive method %s returned", m.Name)
		}
	}
}

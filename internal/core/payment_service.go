package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"invoice-management/internal/logger"
)

// PaymentService records payments and reconciles them against invoices.
// Each payment updates AmountPaid and OutstandingBalance and drives the
// invoice to PartiallyPaid or Paid through the status machine.
type PaymentService interface {
	// RecordPayment records a full or partial payment. Partial payments are
	// supported; call again for each installment. Fails without mutating
	// anything when the invoice is Cancelled, when the amount would overpay
	// the outstanding balance, or when the implied status transition is not
	// allowed (paying a Draft invoice).
	RecordPayment(ctx context.Context, invoiceID int, amount decimal.Decimal, methodID int, reference string) (*Payment, error)

	GetPaymentsByInvoice(ctx context.Context, invoiceID int) ([]Payment, error)
	GetPaymentsByMethod(ctx context.Context, methodID int) ([]Payment, error)
	GetPaymentsByDateRange(ctx context.Context, from, to time.Time) ([]Payment, error)
	GetOutstandingBalance(ctx context.Context, invoiceID int) (decimal.Decimal, error)
	ListPaymentMethods(ctx context.Context) ([]PaymentMethod, error)
}

type paymentService struct {
	payments PaymentRepository
	invoices InvoiceRepository
	methods  PaymentMethodRepository
	statuses *StatusMachine
	log      zerolog.Logger
	now      func() time.Time
}

func NewPaymentService(payments PaymentRepository, invoices InvoiceRepository, methods PaymentMethodRepository, statuses *StatusMachine) PaymentService {
	return &paymentService{
		payments: payments,
		invoices: invoices,
		methods:  methods,
		statuses: statuses,
		log:      logger.WithComponent("payments"),
		now:      time.Now,
	}
}

func (s *paymentService) RecordPayment(ctx context.Context, invoiceID int, amount decimal.Decimal, methodID int, reference string) (*Payment, error) {
	inv, err := s.invoices.GetWithChildren(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if inv.Status == StatusCancelled {
		return nil, fmt.Errorf("%w: cannot record payment for a Cancelled invoice", ErrInvalidOperation)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be greater than 0", ErrInvalidOperation)
	}
	if amount.GreaterThan(inv.OutstandingBalance) {
		return nil, fmt.Errorf("%w: payment amount (%s) exceeds outstanding balance (%s)",
			ErrInvalidOperation, amount.StringFixed(2), inv.OutstandingBalance.StringFixed(2))
	}

	// Determine the status the payment drives the invoice to, and verify the
	// transition before touching storage. The balance and status must move
	// together; an invoice whose status cannot advance (a Draft one) rejects
	// the payment outright instead of recording money against a stale state.
	// A repeat installment that keeps the invoice PartiallyPaid is not a
	// transition and needs no validation.
	target := StatusPartiallyPaid
	if !inv.OutstandingBalance.Sub(amount).IsPositive() {
		target = StatusPaid
	}
	if target != inv.Status {
		if err := s.statuses.ValidateTransition(inv.Status, target); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	payment := &Payment{
		InvoiceID:    invoiceID,
		MethodID:     methodID,
		Amount:       amount,
		PaymentDate:  now,
		ReceivedDate: now,
		Reference:    reference,
		CreatedAt:    now,
	}
	inv.AmountPaid = inv.AmountPaid.Add(amount)
	inv.OutstandingBalance = inv.GrandTotal.Sub(inv.AmountPaid).Round(2)
	inv.Status = target

	// One atomic write: the payment row and the invoice's balance/status
	// commit together, so a version conflict rolls both back and a retry
	// of the whole operation cannot duplicate the payment.
	if err := s.payments.Record(ctx, payment, inv); err != nil {
		return nil, fmt.Errorf("failed to record payment for invoice %s: %w", inv.InvoiceNumber, err)
	}

	s.log.Info().
		Str("invoice_number", inv.InvoiceNumber).
		Str("amount", amount.StringFixed(2)).
		Str("outstanding", inv.OutstandingBalance.StringFixed(2)).
		Str("status", string(inv.Status)).
		Msg("payment recorded")
	return payment, nil
}

func (s *paymentService) GetPaymentsByInvoice(ctx context.Context, invoiceID int) ([]Payment, error) {
	return s.payments.ListByInvoice(ctx, invoiceID)
}

func (s *paymentService) GetPaymentsByMethod(ctx context.Context, methodID int) ([]Payment, error) {
	return s.payments.ListByMethod(ctx, methodID)
}

func (s *paymentService) GetPaymentsByDateRange(ctx context.Context, from, to time.Time) ([]Payment, error) {
	return s.payments.ListByDateRange(ctx, from, to)
}

func (s *paymentService) GetOutstandingBalance(ctx context.Context, invoiceID int) (decimal.Decimal, error) {
	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return decimal.Zero, err
	}
	return inv.OutstandingBalance, nil
}

func (s *paymentService) ListPaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	return s.methods.ListActive(ctx)
}

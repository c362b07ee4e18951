package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"invoice-management/internal/logger"
)

// InvoiceService orchestrates the invoice lifecycle. It composes the
// NumberEngine, CalculationEngine, and StatusMachine and touches storage
// only through the repository interfaces.
type InvoiceService interface {
	// CreateInvoice assigns an invoice number, derives the due date from the
	// payment terms, calculates all totals, forces the initial Draft status,
	// and persists the invoice with its line items as one unit.
	CreateInvoice(ctx context.Context, inv *Invoice, lineItems []InvoiceLineItem) (*Invoice, error)

	// AddLineItem appends a line to a Draft invoice and recalculates totals.
	AddLineItem(ctx context.Context, invoiceID int, item InvoiceLineItem) (*Invoice, error)
	// RemoveLineItem removes a line from a Draft invoice and recalculates totals.
	RemoveLineItem(ctx context.Context, invoiceID, lineItemID int) (*Invoice, error)

	// UpdateInvoiceStatus applies an explicit status change after validating
	// it against the state machine. The invoice is left unchanged on failure.
	UpdateInvoiceStatus(ctx context.Context, invoiceID int, newStatus InvoiceStatus) (*Invoice, error)

	// ArchiveInvoice soft-archives a Paid or Cancelled invoice. One-way.
	ArchiveInvoice(ctx context.Context, invoiceID int) error

	GetInvoice(ctx context.Context, invoiceID int) (*Invoice, error)
	GetInvoiceByNumber(ctx context.Context, invoiceNumber string) (*Invoice, error)
	ListInvoices(ctx context.Context) ([]Invoice, error)
	ListArchivedInvoices(ctx context.Context) ([]Invoice, error)
	ListByCustomer(ctx context.Context, customerID int) ([]Invoice, error)
	ListOverdueInvoices(ctx context.Context) ([]Invoice, error)
	TotalOutstandingByCustomer(ctx context.Context, customerID int) (decimal.Decimal, error)

	// GetAgingReport classifies open invoices into aging buckets: every
	// Sent and PartiallyPaid invoice plus everything past due that is not
	// yet terminal. All five bucket keys are always present.
	GetAgingReport(ctx context.Context) (map[string][]Invoice, error)

	// UpdateOverdueStatuses transitions every Sent invoice past its due date
	// to Overdue and reports how many moved. Safe to re-run; a second sweep
	// is a no-op. Intended for a periodic scheduler.
	UpdateOverdueStatuses(ctx context.Context) (int, error)

	// GetDSO computes Days Sales Outstanding across all invoices for the
	// given period length.
	GetDSO(ctx context.Context, periodDays int) (decimal.Decimal, error)
}

type invoiceService struct {
	invoices InvoiceRepository
	numbers  *NumberEngine
	calc     *CalculationEngine
	statuses *StatusMachine
	log      zerolog.Logger
	now      func() time.Time
}

func NewInvoiceService(invoices InvoiceRepository, numbers *NumberEngine, calc *CalculationEngine, statuses *StatusMachine) InvoiceService {
	return &invoiceService{
		invoices: invoices,
		numbers:  numbers,
		calc:     calc,
		statuses: statuses,
		log:      logger.WithComponent("invoices"),
		now:      time.Now,
	}
}

// validateLineItem enforces the calculation preconditions before any math
// runs: quantity at least 1, unit price positive, discount non-negative,
// tax rate within 0–100.
func validateLineItem(item *InvoiceLineItem) error {
	if item.Description == "" {
		return fmt.Errorf("%w: line item description is required", ErrInvalidOperation)
	}
	if item.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidOperation)
	}
	if !item.UnitPrice.IsPositive() {
		return fmt.Errorf("%w: unit price must be greater than 0", ErrInvalidOperation)
	}
	if item.Discount.IsNegative() {
		return fmt.Errorf("%w: line discount cannot be negative", ErrInvalidOperation)
	}
	if item.TaxRate.IsNegative() || item.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: tax rate must be between 0 and 100", ErrInvalidOperation)
	}
	return nil
}

func (s *invoiceService) CreateInvoice(ctx context.Context, inv *Invoice, lineItems []InvoiceLineItem) (*Invoice, error) {
	if inv.Discount.IsNegative() {
		return nil, fmt.Errorf("%w: invoice discount cannot be negative", ErrInvalidOperation)
	}
	for i := range lineItems {
		if err := validateLineItem(&lineItems[i]); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
	}

	number, err := s.numbers.Generate(ctx, inv.InvoiceDate)
	if err != nil {
		return nil, fmt.Errorf("failed to generate invoice number: %w", err)
	}

	inv.InvoiceNumber = number
	inv.DueDate = s.calc.CalculateDueDate(inv.InvoiceDate, inv.PaymentTerms)
	inv.Status = StatusDraft
	inv.AmountPaid = decimal.Zero
	inv.CreatedAt = s.now().UTC()
	inv.LineItems = lineItems
	inv.Payments = nil
	s.calc.CalculateInvoiceTotals(inv)

	if err := s.invoices.Add(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to persist invoice %s: %w", inv.InvoiceNumber, err)
	}

	s.log.Info().
		Str("invoice_number", inv.InvoiceNumber).
		Int("customer_id", inv.CustomerID).
		Str("grand_total", inv.GrandTotal.StringFixed(2)).
		Msg("invoice created")
	return inv, nil
}

func (s *invoiceService) AddLineItem(ctx context.Context, invoiceID int, item InvoiceLineItem) (*Invoice, error) {
	inv, err := s.invoices.GetWithChildren(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusDraft {
		return nil, fmt.Errorf("%w: line items can only be added to Draft invoices (invoice %s is %s)",
			ErrInvalidOperation, inv.InvoiceNumber, inv.Status)
	}
	if err := validateLineItem(&item); err != nil {
		return nil, err
	}

	item.InvoiceID = invoiceID
	inv.LineItems = append(inv.LineItems, item)
	s.calc.CalculateInvoiceTotals(inv)

	if err := s.invoices.UpdateWithLineItems(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to update invoice %d: %w", invoiceID, err)
	}
	return inv, nil
}

func (s *invoiceService) RemoveLineItem(ctx context.Context, invoiceID, lineItemID int) (*Invoice, error) {
	inv, err := s.invoices.GetWithChildren(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusDraft {
		return nil, fmt.Errorf("%w: line items can only be removed from Draft invoices (invoice %s is %s)",
			ErrInvalidOperation, inv.InvoiceNumber, inv.Status)
	}

	idx := -1
	for i := range inv.LineItems {
		if inv.LineItems[i].ID == lineItemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("line item %d: %w", lineItemID, ErrNotFound)
	}

	inv.LineItems = append(inv.LineItems[:idx], inv.LineItems[idx+1:]...)
	s.calc.CalculateInvoiceTotals(inv)

	if err := s.invoices.UpdateWithLineItems(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to update invoice %d: %w", invoiceID, err)
	}
	return inv, nil
}

func (s *invoiceService) UpdateInvoiceStatus(ctx context.Context, invoiceID int, newStatus InvoiceStatus) (*Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if err := s.statuses.ValidateTransition(inv.Status, newStatus); err != nil {
		return nil, err
	}

	previous := inv.Status
	inv.Status = newStatus
	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to update invoice %d: %w", invoiceID, err)
	}

	s.log.Info().
		Str("invoice_number", inv.InvoiceNumber).
		Str("from", string(previous)).
		Str("to", string(newStatus)).
		Msg("invoice status changed")
	return inv, nil
}

func (s *invoiceService) ArchiveInvoice(ctx context.Context, invoiceID int) error {
	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if !s.statuses.IsTerminal(inv.Status) {
		return fmt.Errorf("%w: only Paid or Cancelled invoices can be archived (invoice %s is %s)",
			ErrInvalidOperation, inv.InvoiceNumber, inv.Status)
	}

	if err := s.invoices.Archive(ctx, invoiceID); err != nil {
		return fmt.Errorf("failed to archive invoice %d: %w", invoiceID, err)
	}

	s.log.Info().Str("invoice_number", inv.InvoiceNumber).Msg("invoice archived")
	return nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, invoiceID int) (*Invoice, error) {
	return s.invoices.GetWithChildren(ctx, invoiceID)
}

func (s *invoiceService) GetInvoiceByNumber(ctx context.Context, invoiceNumber string) (*Invoice, error) {
	return s.invoices.GetByNumber(ctx, invoiceNumber)
}

func (s *invoiceService) ListInvoices(ctx context.Context) ([]Invoice, error) {
	return s.invoices.ListAll(ctx)
}

func (s *invoiceService) ListArchivedInvoices(ctx context.Context) ([]Invoice, error) {
	return s.invoices.ListArchived(ctx)
}

func (s *invoiceService) ListByCustomer(ctx context.Context, customerID int) ([]Invoice, error) {
	return s.invoices.ListByCustomer(ctx, customerID)
}

func (s *invoiceService) ListOverdueInvoices(ctx context.Context) ([]Invoice, error) {
	return s.invoices.ListOverdue(ctx)
}

func (s *invoiceService) TotalOutstandingByCustomer(ctx context.Context, customerID int) (decimal.Decimal, error) {
	return s.invoices.TotalOutstandingByCustomer(ctx, customerID)
}

func (s *invoiceService) GetAgingReport(ctx context.Context) (map[string][]Invoice, error) {
	sent, err := s.invoices.ListByStatus(ctx, StatusSent)
	if err != nil {
		return nil, fmt.Errorf("failed to list Sent invoices: %w", err)
	}
	overdue, err := s.invoices.ListOverdue(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue invoices: %w", err)
	}
	partial, err := s.invoices.ListByStatus(ctx, StatusPartiallyPaid)
	if err != nil {
		return nil, fmt.Errorf("failed to list PartiallyPaid invoices: %w", err)
	}

	report := map[string][]Invoice{
		BucketCurrent: {},
		Bucket1To30:   {},
		Bucket31To60:  {},
		Bucket61To90:  {},
		BucketOver90:  {},
	}

	seen := make(map[int]bool)
	for _, list := range [][]Invoice{sent, overdue, partial} {
		for _, inv := range list {
			if seen[inv.ID] {
				continue
			}
			seen[inv.ID] = true

			bucket := s.calc.GetAgingBucket(&inv)
			if _, ok := report[bucket]; ok {
				report[bucket] = append(report[bucket], inv)
			}
		}
	}
	return report, nil
}

func (s *invoiceService) UpdateOverdueStatuses(ctx context.Context) (int, error) {
	sent, err := s.invoices.ListByStatus(ctx, StatusSent)
	if err != nil {
		return 0, fmt.Errorf("failed to list Sent invoices: %w", err)
	}

	today := dateOnlyUTC(s.now())
	moved := 0
	for i := range sent {
		inv := &sent[i]
		if !dateOnlyUTC(inv.DueDate).Before(today) {
			continue
		}
		if err := s.statuses.ValidateTransition(inv.Status, StatusOverdue); err != nil {
			return moved, err
		}
		inv.Status = StatusOverdue
		if err := s.invoices.Update(ctx, inv); err != nil {
			return moved, fmt.Errorf("failed to mark invoice %s overdue: %w", inv.InvoiceNumber, err)
		}
		moved++
	}

	if moved > 0 {
		s.log.Info().Int("count", moved).Msg("invoices transitioned to Overdue")
	}
	return moved, nil
}

func (s *invoiceService) GetDSO(ctx context.Context, periodDays int) (decimal.Decimal, error) {
	all, err := s.invoices.ListAll(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list invoices: %w", err)
	}

	totalOutstanding := decimal.Zero
	totalRevenue := decimal.Zero
	for i := range all {
		totalOutstanding = totalOutstanding.Add(all[i].OutstandingBalance)
		totalRevenue = totalRevenue.Add(all[i].GrandTotal)
	}
	return s.calc.CalculateDSO(totalOutstanding, totalRevenue, periodDays), nil
}

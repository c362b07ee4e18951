package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceRepository is the persistence capability the invoice services
// depend on. List methods exclude archived invoices unless stated otherwise.
//
// Update must perform an optimistic version check and return
// ErrConcurrencyConflict (wrapped) when the stored version no longer matches
// the loaded one; callers retry the whole operation once.
type InvoiceRepository interface {
	GetByID(ctx context.Context, id int) (*Invoice, error)
	GetByNumber(ctx context.Context, invoiceNumber string) (*Invoice, error)
	// GetWithChildren loads the invoice together with its line items and
	// payments.
	GetWithChildren(ctx context.Context, id int) (*Invoice, error)
	ListAll(ctx context.Context) ([]Invoice, error)
	ListArchived(ctx context.Context) ([]Invoice, error)
	ListByCustomer(ctx context.Context, customerID int) ([]Invoice, error)
	ListByStatus(ctx context.Context, status InvoiceStatus) ([]Invoice, error)
	// ListOverdue returns invoices whose due date has passed and whose status
	// is not terminal.
	ListOverdue(ctx context.Context) ([]Invoice, error)
	TotalOutstandingByCustomer(ctx context.Context, customerID int) (decimal.Decimal, error)

	// Add persists the invoice and its line items as one atomic unit and
	// assigns IDs.
	Add(ctx context.Context, inv *Invoice) error
	// Update persists header fields only. Line items are untouched, so
	// callers that loaded without children can safely save status or
	// monetary changes.
	Update(ctx context.Context, inv *Invoice) error
	// UpdateWithLineItems persists header fields and replaces the full
	// line-item set atomically. Only for callers that loaded the invoice
	// with its children and mutated the line-item slice.
	UpdateWithLineItems(ctx context.Context, inv *Invoice) error
	// Archive sets the archived flag and timestamp. One-way.
	Archive(ctx context.Context, id int) error
	Exists(ctx context.Context, id int) (bool, error)

	SequenceReserver
}

type PaymentRepository interface {
	// Record inserts the payment and saves the invoice's updated monetary
	// fields and status in one atomic unit. The invoice write carries the
	// same optimistic version check as InvoiceRepository.Update; on a
	// conflict neither the payment nor the invoice change is persisted.
	Record(ctx context.Context, p *Payment, inv *Invoice) error
	ListByInvoice(ctx context.Context, invoiceID int) ([]Payment, error)
	ListByMethod(ctx context.Context, methodID int) ([]Payment, error)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]Payment, error)
	SumPaidForInvoice(ctx context.Context, invoiceID int) (decimal.Decimal, error)
}

type PaymentMethodRepository interface {
	ListActive(ctx context.Context) ([]PaymentMethod, error)
}

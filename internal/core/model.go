package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the lifecycle state of an invoice. Stored as plain text,
// parsed back through ParseStatus at the persistence boundary so unknown
// values never reach business logic.
type InvoiceStatus string

const (
	StatusDraft         InvoiceStatus = "Draft"
	StatusSent          InvoiceStatus = "Sent"
	StatusOverdue       InvoiceStatus = "Overdue"
	StatusPartiallyPaid InvoiceStatus = "PartiallyPaid"
	StatusPaid          InvoiceStatus = "Paid"
	StatusCancelled     InvoiceStatus = "Cancelled"
)

// ParseStatus maps stored text to an InvoiceStatus. Unknown values are a
// data-integrity problem and surface ErrUnknownStatus.
func ParseStatus(s string) (InvoiceStatus, error) {
	switch InvoiceStatus(s) {
	case StatusDraft, StatusSent, StatusOverdue, StatusPartiallyPaid, StatusPaid, StatusCancelled:
		return InvoiceStatus(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// PaymentTerms controls the due date offset from the invoice date.
type PaymentTerms string

const (
	TermsImmediate PaymentTerms = "Immediate" // due on invoice date
	TermsNet15     PaymentTerms = "Net15"
	TermsNet30     PaymentTerms = "Net30"
	TermsNet60     PaymentTerms = "Net60"
	TermsNet90     PaymentTerms = "Net90"
)

func ParsePaymentTerms(s string) (PaymentTerms, error) {
	switch PaymentTerms(s) {
	case TermsImmediate, TermsNet15, TermsNet30, TermsNet60, TermsNet90:
		return PaymentTerms(s), nil
	}
	return "", fmt.Errorf("unknown payment terms %q", s)
}

// Invoice is the aggregate root: it owns its line items and payments
// (children never outlive the invoice). All monetary fields are derived by
// the CalculationEngine and must never be hand-edited.
type Invoice struct {
	ID            int           `json:"id"`
	InvoiceNumber string        `json:"invoice_number"` // INV-YYYYMM-NNNNN, unique
	CustomerID    int           `json:"customer_id"`
	QuoteID       *int          `json:"quote_id,omitempty"`
	InvoiceDate   time.Time     `json:"invoice_date"`
	DueDate       time.Time     `json:"due_date"`
	PaymentTerms  PaymentTerms  `json:"payment_terms"`
	Status        InvoiceStatus `json:"status"`

	SubTotal           decimal.Decimal `json:"sub_total"`   // pre-tax, pre-invoice-discount
	Discount           decimal.Decimal `json:"discount"`    // invoice-wide, absolute
	Tax                decimal.Decimal `json:"tax"`         // sum of line taxes
	GrandTotal         decimal.Decimal `json:"grand_total"` // tax-inclusive line sum minus invoice discount
	AmountPaid         decimal.Decimal `json:"amount_paid"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`

	Notes      string     `json:"notes,omitempty"`
	IsArchived bool       `json:"is_archived"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`

	// Version backs the optimistic concurrency check on update.
	Version int `json:"version"`

	LineItems []InvoiceLineItem `json:"line_items"`
	Payments  []Payment         `json:"payments"`
}

// InvoiceLineItem is one billable row on an invoice.
//
//	base      = max(0, Quantity×UnitPrice − Discount)
//	Tax       = round(base × TaxRate/100, 2)
//	LineTotal = round(base + Tax, 2)
//
// Tax and LineTotal are set by the CalculationEngine only.
type InvoiceLineItem struct {
	ID          int             `json:"id"`
	InvoiceID   int             `json:"invoice_id"`
	ProductID   *int            `json:"product_id,omitempty"`
	Description string          `json:"description"`
	SKU         string          `json:"sku,omitempty"`
	Quantity    int             `json:"quantity"`   // at least 1
	UnitPrice   decimal.Decimal `json:"unit_price"` // greater than 0
	Discount    decimal.Decimal `json:"discount"`   // absolute currency, not percent
	TaxRate     decimal.Decimal `json:"tax_rate"`   // percent, 0–100
	Tax         decimal.Decimal `json:"tax"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// Payment records one full or partial payment against an invoice.
// Immutable once recorded.
type Payment struct {
	ID           int             `json:"id"`
	InvoiceID    int             `json:"invoice_id"`
	MethodID     int             `json:"method_id"`
	Amount       decimal.Decimal `json:"amount"` // greater than 0
	PaymentDate  time.Time       `json:"payment_date"`
	ReceivedDate time.Time       `json:"received_date"` // may differ for bank reconciliation
	Reference    string          `json:"reference,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// PaymentMethod is a seeded lookup row (Cash, Bank Transfer, ...). Referenced
// by payments, never owned; deletion is restricted while payments exist.
type PaymentMethod struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
}

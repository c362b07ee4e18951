package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Aging bucket labels returned by GetAgingBucket and used as the keys of the
// aging report.
const (
	BucketClosed   = "Closed"
	BucketCurrent  = "Current"
	Bucket1To30    = "1-30 Days Overdue"
	Bucket31To60   = "31-60 Days Overdue"
	Bucket61To90   = "61-90 Days Overdue"
	BucketOver90   = "90+ Days Overdue"
)

var percentDivisor = decimal.NewFromInt(100)

// CalculationEngine is the single source of truth for invoice math — no
// calculation happens in services, repositories, or the CLI directly.
//
// Formula chain:
//
//	LineTotal      = max(0, Quantity×UnitPrice − LineDiscount) + LineTax
//	GrandTotal     = max(0, Σ LineTotal − InvoiceDiscount)
//	OutstandingBal = GrandTotal − AmountPaid
//
// The invoice-level discount is subtracted from the tax-inclusive line sum.
// That ordering (discount after the tax sum) is deliberate; preserve it.
//
// All methods are pure apart from writing derived fields back onto the
// passed value, and all are idempotent. Rounding is half-away-from-zero to
// 2 places at each step (decimal.Round semantics).
type CalculationEngine struct {
	// Now supplies "today" for aging classification; overridable in tests.
	Now func() time.Time
}

func NewCalculationEngine() *CalculationEngine {
	return &CalculationEngine{Now: time.Now}
}

// CalculateLineItem sets Tax and LineTotal from Quantity, UnitPrice,
// Discount, and TaxRate. Call whenever any of those change.
func (e *CalculationEngine) CalculateLineItem(item *InvoiceLineItem) {
	base := decimal.NewFromInt(int64(item.Quantity)).Mul(item.UnitPrice).Sub(item.Discount)
	if base.IsNegative() {
		base = decimal.Zero
	}

	item.Tax = base.Mul(item.TaxRate).Div(percentDivisor).Round(2)
	item.LineTotal = base.Add(item.Tax).Round(2)
}

// CalculateInvoiceTotals recomputes every line item and then the invoice
// aggregates. Must be called after any line item is added, updated, or
// removed. Line items are independent of each other, so recomputation order
// does not matter.
func (e *CalculationEngine) CalculateInvoiceTotals(inv *Invoice) {
	for i := range inv.LineItems {
		e.CalculateLineItem(&inv.LineItems[i])
	}

	lineItemsTotal := decimal.Zero
	taxTotal := decimal.Zero
	preTaxTotal := decimal.Zero
	for i := range inv.LineItems {
		li := &inv.LineItems[i]
		lineItemsTotal = lineItemsTotal.Add(li.LineTotal)
		taxTotal = taxTotal.Add(li.Tax)
		preTaxTotal = preTaxTotal.Add(
			decimal.NewFromInt(int64(li.Quantity)).Mul(li.UnitPrice).Sub(li.Discount))
	}

	afterDiscount := lineItemsTotal.Sub(inv.Discount)
	if afterDiscount.IsNegative() {
		afterDiscount = decimal.Zero
	}

	inv.Tax = taxTotal
	inv.SubTotal = preTaxTotal.Round(2)
	inv.GrandTotal = afterDiscount.Round(2)
	inv.OutstandingBalance = inv.GrandTotal.Sub(inv.AmountPaid).Round(2)
}

// CalculateDueDate derives the due date from the invoice date and payment
// terms. Unrecognized terms fall back to net-30.
func (e *CalculationEngine) CalculateDueDate(invoiceDate time.Time, terms PaymentTerms) time.Time {
	switch terms {
	case TermsImmediate:
		return invoiceDate
	case TermsNet15:
		return invoiceDate.AddDate(0, 0, 15)
	case TermsNet30:
		return invoiceDate.AddDate(0, 0, 30)
	case TermsNet60:
		return invoiceDate.AddDate(0, 0, 60)
	case TermsNet90:
		return invoiceDate.AddDate(0, 0, 90)
	default:
		return invoiceDate.AddDate(0, 0, 30)
	}
}

// GetAgingBucket classifies an invoice by how many whole days past due it is
// (UTC, date-only). Paid and Cancelled invoices are "Closed".
func (e *CalculationEngine) GetAgingBucket(inv *Invoice) string {
	if inv.Status == StatusPaid || inv.Status == StatusCancelled {
		return BucketClosed
	}

	today := dateOnlyUTC(e.Now())
	due := dateOnlyUTC(inv.DueDate)
	daysOverdue := int(today.Sub(due).Hours() / 24)

	switch {
	case daysOverdue <= 0:
		return BucketCurrent
	case daysOverdue <= 30:
		return Bucket1To30
	case daysOverdue <= 60:
		return Bucket31To60
	case daysOverdue <= 90:
		return Bucket61To90
	default:
		return BucketOver90
	}
}

// CalculateDSO computes Days Sales Outstanding:
// (totalOutstanding / totalRevenue) × periodDays, rounded to 2 places.
// Zero revenue yields zero.
func (e *CalculationEngine) CalculateDSO(totalOutstanding, totalRevenue decimal.Decimal, periodDays int) decimal.Decimal {
	if totalRevenue.IsZero() {
		return decimal.Zero
	}
	return totalOutstanding.Div(totalRevenue).Mul(decimal.NewFromInt(int64(periodDays))).Round(2)
}

func dateOnlyUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// fakeInvoiceRepo is an in-memory InvoiceRepository for service tests. It
// mirrors the store's contract: GetByID returns the header only, Update
// writes the header only, UpdateWithLineItems replaces the line-item set,
// and copies keep service-side mutations invisible until saved.
type fakeInvoiceRepo struct {
	invoices  map[int]*Invoice
	nextID    int
	sequences map[string]int
	now       func() time.Time

	// failUpdates makes the next N header updates report a version
	// conflict without applying, simulating a concurrent writer.
	failUpdates int
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{
		invoices:  make(map[int]*Invoice),
		sequences: make(map[string]int),
		now:       time.Now,
	}
}

func copyInvoice(inv *Invoice) *Invoice {
	out := *inv
	out.LineItems = append([]InvoiceLineItem(nil), inv.LineItems...)
	out.Payments = append([]Payment(nil), inv.Payments...)
	return &out
}

// seed stores an invoice directly, bypassing the service layer.
func (r *fakeInvoiceRepo) seed(inv *Invoice) *Invoice {
	r.nextID++
	inv.ID = r.nextID
	if inv.Version == 0 {
		inv.Version = 1
	}
	r.invoices[inv.ID] = copyInvoice(inv)
	return inv
}

func (r *fakeInvoiceRepo) GetByID(_ context.Context, id int) (*Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %d: %w", id, ErrNotFound)
	}
	header := copyInvoice(inv)
	header.LineItems = nil
	header.Payments = nil
	return header, nil
}

func (r *fakeInvoiceRepo) GetByNumber(_ context.Context, number string) (*Invoice, error) {
	for _, inv := range r.invoices {
		if inv.InvoiceNumber == number {
			return copyInvoice(inv), nil
		}
	}
	return nil, fmt.Errorf("invoice %s: %w", number, ErrNotFound)
}

func (r *fakeInvoiceRepo) GetWithChildren(_ context.Context, id int) (*Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %d: %w", id, ErrNotFound)
	}
	return copyInvoice(inv), nil
}

func (r *fakeInvoiceRepo) list(match func(*Invoice) bool) []Invoice {
	var out []Invoice
	for _, inv := range r.invoices {
		if match(inv) {
			out = append(out, *copyInvoice(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeInvoiceRepo) ListAll(context.Context) ([]Invoice, error) {
	return r.list(func(inv *Invoice) bool { return !inv.IsArchived }), nil
}

func (r *fakeInvoiceRepo) ListArchived(context.Context) ([]Invoice, error) {
	return r.list(func(inv *Invoice) bool { return inv.IsArchived }), nil
}

func (r *fakeInvoiceRepo) ListByCustomer(_ context.Context, customerID int) ([]Invoice, error) {
	return r.list(func(inv *Invoice) bool {
		return !inv.IsArchived && inv.CustomerID == customerID
	}), nil
}

func (r *fakeInvoiceRepo) ListByStatus(_ context.Context, status InvoiceStatus) ([]Invoice, error) {
	return r.list(func(inv *Invoice) bool {
		return !inv.IsArchived && inv.Status == status
	}), nil
}

func (r *fakeInvoiceRepo) ListOverdue(context.Context) ([]Invoice, error) {
	today := dateOnlyUTC(r.now())
	return r.list(func(inv *Invoice) bool {
		return !inv.IsArchived &&
			inv.Status != StatusPaid && inv.Status != StatusCancelled &&
			dateOnlyUTC(inv.DueDate).Before(today)
	}), nil
}

func (r *fakeInvoiceRepo) TotalOutstandingByCustomer(_ context.Context, customerID int) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, inv := range r.invoices {
		if !inv.IsArchived && inv.CustomerID == customerID {
			total = total.Add(inv.OutstandingBalance)
		}
	}
	return total, nil
}

func (r *fakeInvoiceRepo) Add(_ context.Context, inv *Invoice) error {
	r.nextID++
	inv.ID = r.nextID
	inv.Version = 1
	for i := range inv.LineItems {
		inv.LineItems[i].ID = i + 1
		inv.LineItems[i].InvoiceID = inv.ID
	}
	r.invoices[inv.ID] = copyInvoice(inv)
	return nil
}

func (r *fakeInvoiceRepo) checkVersion(inv *Invoice) (*Invoice, error) {
	stored, ok := r.invoices[inv.ID]
	if !ok {
		return nil, fmt.Errorf("invoice %d: %w", inv.ID, ErrNotFound)
	}
	if r.failUpdates > 0 {
		r.failUpdates--
		return nil, fmt.Errorf("invoice %d was modified concurrently: %w", inv.ID, ErrConcurrencyConflict)
	}
	if stored.Version != inv.Version {
		return nil, fmt.Errorf("invoice %d was modified concurrently: %w", inv.ID, ErrConcurrencyConflict)
	}
	return stored, nil
}

func (r *fakeInvoiceRepo) Update(_ context.Context, inv *Invoice) error {
	stored, err := r.checkVersion(inv)
	if err != nil {
		return err
	}
	inv.Version++
	next := copyInvoice(inv)
	next.LineItems = append([]InvoiceLineItem(nil), stored.LineItems...)
	next.Payments = append([]Payment(nil), stored.Payments...)
	r.invoices[inv.ID] = next
	return nil
}

func (r *fakeInvoiceRepo) UpdateWithLineItems(_ context.Context, inv *Invoice) error {
	if _, err := r.checkVersion(inv); err != nil {
		return err
	}
	inv.Version++
	r.invoices[inv.ID] = copyInvoice(inv)
	return nil
}

func (r *fakeInvoiceRepo) Archive(_ context.Context, id int) error {
	inv, ok := r.invoices[id]
	if !ok || inv.IsArchived {
		return fmt.Errorf("invoice %d: %w", id, ErrNotFound)
	}
	now := time.Now().UTC()
	inv.IsArchived = true
	inv.ArchivedAt = &now
	return nil
}

func (r *fakeInvoiceRepo) Exists(_ context.Context, id int) (bool, error) {
	_, ok := r.invoices[id]
	return ok, nil
}

func (r *fakeInvoiceRepo) ReserveNextSequence(_ context.Context, year int, month time.Month) (int, error) {
	key := fmt.Sprintf("%d-%d", year, month)
	r.sequences[key]++
	return r.sequences[key], nil
}

type fakePaymentRepo struct {
	invoices *fakeInvoiceRepo
	payments []Payment
	nextID   int
}

// Record mirrors the store's atomicity: the invoice write goes first, and
// the payment row only lands when it succeeds.
func (r *fakePaymentRepo) Record(ctx context.Context, p *Payment, inv *Invoice) error {
	if err := r.invoices.Update(ctx, inv); err != nil {
		return err
	}
	r.nextID++
	p.ID = r.nextID
	r.payments = append(r.payments, *p)
	return nil
}

func (r *fakePaymentRepo) ListByInvoice(_ context.Context, invoiceID int) ([]Payment, error) {
	var out []Payment
	for _, p := range r.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) ListByMethod(_ context.Context, methodID int) ([]Payment, error) {
	var out []Payment
	for _, p := range r.payments {
		if p.MethodID == methodID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) ListByDateRange(_ context.Context, from, to time.Time) ([]Payment, error) {
	var out []Payment
	for _, p := range r.payments {
		if !p.PaymentDate.Before(from) && !p.PaymentDate.After(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) SumPaidForInvoice(_ context.Context, invoiceID int) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range r.payments {
		if p.InvoiceID == invoiceID {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

type fakeMethodRepo struct {
	methods []PaymentMethod
}

func (r *fakeMethodRepo) ListActive(context.Context) ([]PaymentMethod, error) {
	var out []PaymentMethod
	for _, m := range r.methods {
		if m.IsActive {
			out = append(out, m)
		}
	}
	return out, nil
}

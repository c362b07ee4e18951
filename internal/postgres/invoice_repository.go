package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"invoice-management/internal/core"
)

const invoiceColumns = `
	id, invoice_number, customer_id, quote_id,
	invoice_date, due_date, payment_terms, status,
	sub_total, discount, tax, grand_total, amount_paid, outstanding_balance,
	COALESCE(notes, ''), is_archived, archived_at, created_at, modified_at, version`

type invoiceRepository struct {
	pool *pgxpool.Pool
}

func NewInvoiceRepository(pool *pgxpool.Pool) core.InvoiceRepository {
	return &invoiceRepository{pool: pool}
}

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared
// query and update helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// scanInvoice reads one invoice row. Status and payment terms are persisted
// as text and parsed here, at the boundary, so bad stored values surface as
// data-integrity errors instead of leaking into business logic.
func scanInvoice(row pgx.Row) (*core.Invoice, error) {
	var inv core.Invoice
	var status, terms string
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.CustomerID, &inv.QuoteID,
		&inv.InvoiceDate, &inv.DueDate, &terms, &status,
		&inv.SubTotal, &inv.Discount, &inv.Tax, &inv.GrandTotal, &inv.AmountPaid, &inv.OutstandingBalance,
		&inv.Notes, &inv.IsArchived, &inv.ArchivedAt, &inv.CreatedAt, &inv.ModifiedAt, &inv.Version,
	)
	if err != nil {
		return nil, err
	}

	if inv.Status, err = core.ParseStatus(status); err != nil {
		return nil, fmt.Errorf("invoice %s: %w", inv.InvoiceNumber, err)
	}
	if inv.PaymentTerms, err = core.ParsePaymentTerms(terms); err != nil {
		return nil, fmt.Errorf("invoice %s: %w", inv.InvoiceNumber, err)
	}
	return &inv, nil
}

func (r *invoiceRepository) getBy(ctx context.Context, where string, arg any) (*core.Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx,
		"SELECT"+invoiceColumns+" FROM invoices WHERE "+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %v: %w", arg, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch invoice %v: %w", arg, err)
	}
	return inv, nil
}

func (r *invoiceRepository) GetByID(ctx context.Context, id int) (*core.Invoice, error) {
	return r.getBy(ctx, "id = $1", id)
}

func (r *invoiceRepository) GetByNumber(ctx context.Context, invoiceNumber string) (*core.Invoice, error) {
	return r.getBy(ctx, "invoice_number = $1", invoiceNumber)
}

func (r *invoiceRepository) GetWithChildren(ctx context.Context, id int) (*core.Invoice, error) {
	inv, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if inv.LineItems, err = fetchLineItems(ctx, r.pool, id); err != nil {
		return nil, err
	}
	if inv.Payments, err = fetchPayments(ctx, r.pool, "invoice_id = $1", id); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *invoiceRepository) list(ctx context.Context, tail string, args ...any) ([]core.Invoice, error) {
	rows, err := r.pool.Query(ctx, "SELECT"+invoiceColumns+" FROM invoices "+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []core.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

func (r *invoiceRepository) ListAll(ctx context.Context) ([]core.Invoice, error) {
	return r.list(ctx, "WHERE NOT is_archived ORDER BY created_at DESC")
}

func (r *invoiceRepository) ListArchived(ctx context.Context) ([]core.Invoice, error) {
	return r.list(ctx, "WHERE is_archived ORDER BY archived_at DESC")
}

func (r *invoiceRepository) ListByCustomer(ctx context.Context, customerID int) ([]core.Invoice, error) {
	return r.list(ctx, "WHERE customer_id = $1 AND NOT is_archived ORDER BY invoice_date DESC", customerID)
}

func (r *invoiceRepository) ListByStatus(ctx context.Context, status core.InvoiceStatus) ([]core.Invoice, error) {
	return r.list(ctx, "WHERE status = $1 AND NOT is_archived ORDER BY due_date DESC", string(status))
}

func (r *invoiceRepository) ListOverdue(ctx context.Context) ([]core.Invoice, error) {
	return r.list(ctx, `
		WHERE due_date < CURRENT_DATE
		  AND status NOT IN ($1, $2)
		  AND NOT is_archived
		ORDER BY due_date`,
		string(core.StatusPaid), string(core.StatusCancelled))
}

func (r *invoiceRepository) TotalOutstandingByCustomer(ctx context.Context, customerID int) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(outstanding_balance), 0)
		FROM invoices
		WHERE customer_id = $1
		  AND status NOT IN ($2, $3)
		  AND NOT is_archived`,
		customerID, string(core.StatusPaid), string(core.StatusCancelled),
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum outstanding for customer %d: %w", customerID, err)
	}
	return total, nil
}

// Add inserts the invoice header and its line items in one transaction —
// partial persistence is never observable.
func (r *invoiceRepository) Add(ctx context.Context, inv *core.Invoice) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO invoices (
			invoice_number, customer_id, quote_id, invoice_date, due_date,
			payment_terms, status, sub_total, discount, tax, grand_total,
			amount_paid, outstanding_balance, notes, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, version
	`, inv.InvoiceNumber, inv.CustomerID, inv.QuoteID, inv.InvoiceDate, inv.DueDate,
		string(inv.PaymentTerms), string(inv.Status), inv.SubTotal, inv.Discount, inv.Tax,
		inv.GrandTotal, inv.AmountPaid, inv.OutstandingBalance, inv.Notes, inv.CreatedAt,
	).Scan(&inv.ID, &inv.Version)
	if err != nil {
		return fmt.Errorf("failed to insert invoice %s: %w", inv.InvoiceNumber, err)
	}

	if err := insertLineItems(ctx, tx, inv.ID, inv.LineItems); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit invoice creation: %w", err)
	}
	return nil
}

// updateInvoiceHeader runs the optimistic header UPDATE against q. The WHERE
// clause checks the version the invoice was loaded with; zero rows affected
// means a concurrent writer got there first. The caller bumps inv.Version
// only after the surrounding write has committed.
func updateInvoiceHeader(ctx context.Context, q pgxQuerier, inv *core.Invoice) error {
	tag, err := q.Exec(ctx, `
		UPDATE invoices
		SET customer_id = $1, quote_id = $2, invoice_date = $3, due_date = $4,
		    payment_terms = $5, status = $6, sub_total = $7, discount = $8,
		    tax = $9, grand_total = $10, amount_paid = $11,
		    outstanding_balance = $12, notes = $13,
		    modified_at = NOW(), version = version + 1
		WHERE id = $14 AND version = $15
	`, inv.CustomerID, inv.QuoteID, inv.InvoiceDate, inv.DueDate,
		string(inv.PaymentTerms), string(inv.Status), inv.SubTotal, inv.Discount,
		inv.Tax, inv.GrandTotal, inv.AmountPaid, inv.OutstandingBalance, inv.Notes,
		inv.ID, inv.Version)
	if err != nil {
		return fmt.Errorf("failed to update invoice %d: %w", inv.ID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := q.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM invoices WHERE id = $1)", inv.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check invoice %d: %w", inv.ID, err)
		}
		if !exists {
			return fmt.Errorf("invoice %d: %w", inv.ID, core.ErrNotFound)
		}
		return fmt.Errorf("invoice %d was modified concurrently: %w", inv.ID, core.ErrConcurrencyConflict)
	}
	return nil
}

// Update saves header fields only; the line-item set is left as stored.
func (r *invoiceRepository) Update(ctx context.Context, inv *core.Invoice) error {
	if err := updateInvoiceHeader(ctx, r.pool, inv); err != nil {
		return err
	}
	inv.Version++
	return nil
}

// UpdateWithLineItems saves the header and replaces the full line-item set
// in one transaction.
func (r *invoiceRepository) UpdateWithLineItems(ctx context.Context, inv *core.Invoice) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := updateInvoiceHeader(ctx, tx, inv); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, "DELETE FROM invoice_line_items WHERE invoice_id = $1", inv.ID); err != nil {
		return fmt.Errorf("failed to clear line items for invoice %d: %w", inv.ID, err)
	}
	if err := insertLineItems(ctx, tx, inv.ID, inv.LineItems); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit invoice update: %w", err)
	}
	inv.Version++
	return nil
}

func (r *invoiceRepository) Archive(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices
		SET is_archived = true, archived_at = NOW(), modified_at = NOW()
		WHERE id = $1 AND NOT is_archived
	`, id)
	if err != nil {
		return fmt.Errorf("failed to archive invoice %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoice %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *invoiceRepository) Exists(ctx context.Context, id int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM invoices WHERE id = $1)", id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check invoice %d: %w", id, err)
	}
	return exists, nil
}

// ReserveNextSequence atomically reserves the next per-month invoice
// sequence. The upsert makes concurrent creations in the same month each
// receive a distinct number.
func (r *invoiceRepository) ReserveNextSequence(ctx context.Context, year int, month time.Month) (int, error) {
	var seq int
	err := r.pool.QueryRow(ctx, `
		INSERT INTO invoice_sequences (year, month, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (year, month)
		DO UPDATE SET last_number = invoice_sequences.last_number + 1
		RETURNING last_number
	`, year, int(month)).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve sequence for %04d-%02d: %w", year, month, err)
	}
	return seq, nil
}

func insertLineItems(ctx context.Context, tx pgx.Tx, invoiceID int, items []core.InvoiceLineItem) error {
	for i := range items {
		li := &items[i]
		li.InvoiceID = invoiceID
		err := tx.QueryRow(ctx, `
			INSERT INTO invoice_line_items (
				invoice_id, product_id, description, sku, quantity,
				unit_price, discount, tax_rate, tax, line_total
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id
		`, invoiceID, li.ProductID, li.Description, li.SKU, li.Quantity,
			li.UnitPrice, li.Discount, li.TaxRate, li.Tax, li.LineTotal,
		).Scan(&li.ID)
		if err != nil {
			return fmt.Errorf("failed to insert line item %d: %w", i+1, err)
		}
	}
	return nil
}

func fetchLineItems(ctx context.Context, q pgxQuerier, invoiceID int) ([]core.InvoiceLineItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, invoice_id, product_id, description, COALESCE(sku, ''),
		       quantity, unit_price, discount, tax_rate, tax, line_total
		FROM invoice_line_items
		WHERE invoice_id = $1
		ORDER BY id
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query line items: %w", err)
	}
	defer rows.Close()

	var items []core.InvoiceLineItem
	for rows.Next() {
		var li core.InvoiceLineItem
		if err := rows.Scan(
			&li.ID, &li.InvoiceID, &li.ProductID, &li.Description, &li.SKU,
			&li.Quantity, &li.UnitPrice, &li.Discount, &li.TaxRate, &li.Tax, &li.LineTotal,
		); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"invoice-management/internal/core"
)

type paymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) core.PaymentRepository {
	return &paymentRepository{pool: pool}
}

// Record inserts the payment and saves the invoice header in one
// transaction, so a version conflict on the invoice rolls the payment row
// back with it and a retried operation can never leave a duplicate.
func (r *paymentRepository) Record(ctx context.Context, p *core.Payment, inv *core.Invoice) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO payments (
			invoice_id, method_id, amount, payment_date, received_date,
			reference, notes, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, p.InvoiceID, p.MethodID, p.Amount, p.PaymentDate, p.ReceivedDate,
		p.Reference, p.Notes, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to insert payment for invoice %d: %w", p.InvoiceID, err)
	}

	if err := updateInvoiceHeader(ctx, tx, inv); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit payment for invoice %d: %w", p.InvoiceID, err)
	}
	inv.Version++
	return nil
}

func (r *paymentRepository) ListByInvoice(ctx context.Context, invoiceID int) ([]core.Payment, error) {
	return fetchPayments(ctx, r.pool, "invoice_id = $1", invoiceID)
}

func (r *paymentRepository) ListByMethod(ctx context.Context, methodID int) ([]core.Payment, error) {
	return fetchPayments(ctx, r.pool, "method_id = $1", methodID)
}

func (r *paymentRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]core.Payment, error) {
	return fetchPayments(ctx, r.pool, "payment_date >= $1 AND payment_date <= $2", from, to)
}

func (r *paymentRepository) SumPaidForInvoice(ctx context.Context, invoiceID int) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = $1", invoiceID,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum payments for invoice %d: %w", invoiceID, err)
	}
	return total, nil
}

func fetchPayments(ctx context.Context, q pgxQuerier, where string, args ...any) ([]core.Payment, error) {
	rows, err := q.Query(ctx, `
		SELECT id, invoice_id, method_id, amount, payment_date, received_date,
		       COALESCE(reference, ''), COALESCE(notes, ''), created_at
		FROM payments
		WHERE `+where+`
		ORDER BY payment_date, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []core.Payment
	for rows.Next() {
		var p core.Payment
		if err := rows.Scan(
			&p.ID, &p.InvoiceID, &p.MethodID, &p.Amount, &p.PaymentDate,
			&p.ReceivedDate, &p.Reference, &p.Notes, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

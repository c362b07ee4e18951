package core

import (
	"context"
	"fmt"
	"time"
)

// SequenceReserver reserves the next invoice sequence number for a calendar
// month. Implementations must be atomic under concurrent callers — two
// creations in the same month must never receive the same number. The
// postgres implementation does this with an upsert on invoice_sequences;
// InvoiceRepository satisfies this interface.
type SequenceReserver interface {
	ReserveNextSequence(ctx context.Context, year int, month time.Month) (int, error)
}

// NumberEngine generates unique, sequential invoice numbers.
//
// Format: INV-YYYYMM-NNNNN, where NNNNN is a 5-digit zero-padded sequence
// that resets at the start of each calendar month (the sequence is scoped to
// the month by construction).
//
//	INV-202502-00001   first invoice in February 2025
//	INV-202502-00002   second invoice in February 2025
//	INV-202503-00001   first invoice in March 2025
type NumberEngine struct {
	sequences SequenceReserver
}

func NewNumberEngine(sequences SequenceReserver) *NumberEngine {
	return &NumberEngine{sequences: sequences}
}

// Generate reserves and formats the next invoice number for the month of
// invoiceDate.
func (e *NumberEngine) Generate(ctx context.Context, invoiceDate time.Time) (string, error) {
	seq, err := e.sequences.ReserveNextSequence(ctx, invoiceDate.Year(), invoiceDate.Month())
	if err != nil {
		return "", fmt.Errorf("failed to reserve invoice sequence: %w", err)
	}
	return fmt.Sprintf("INV-%s-%05d", invoiceDate.Format("200601"), seq), nil
}

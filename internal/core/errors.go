package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the error kinds callers dispatch on. Services wrap
// them with context via fmt.Errorf and %w; use errors.Is to classify.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidOperation    = errors.New("invalid operation")
	ErrUnknownStatus       = errors.New("unknown invoice status")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// InvalidTransitionError reports an illegal status change, carrying the
// current status, the requested target, and the full allowed set.
type InvalidTransitionError struct {
	From    InvoiceStatus
	To      InvoiceStatus
	Allowed []InvoiceStatus
}

func (e *InvalidTransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	if len(allowed) == 0 {
		return fmt.Sprintf("invalid status transition %s -> %s: %s is terminal", e.From, e.To, e.From)
	}
	return fmt.Sprintf("invalid status transition %s -> %s (allowed from %s: %s)",
		e.From, e.To, e.From, strings.Join(allowed, ", "))
}

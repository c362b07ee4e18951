package core

import (
	"github.com/qmuntal/stateless"
)

// statusTransitions is the single source of truth for the invoice lifecycle:
//
//	Draft         -> Sent, Cancelled
//	Sent          -> Overdue, PartiallyPaid, Paid, Cancelled
//	Overdue       -> PartiallyPaid, Paid, Cancelled
//	PartiallyPaid -> Paid, Cancelled
//	Paid          -> (terminal)
//	Cancelled     -> (terminal)
//
// The stateless machine below is configured from this table; the table is
// also what InvalidTransitionError reports as the allowed set.
var statusTransitions = map[InvoiceStatus][]InvoiceStatus{
	StatusDraft:         {StatusSent, StatusCancelled},
	StatusSent:          {StatusOverdue, StatusPartiallyPaid, StatusPaid, StatusCancelled},
	StatusOverdue:       {StatusPartiallyPaid, StatusPaid, StatusCancelled},
	StatusPartiallyPaid: {StatusPaid, StatusCancelled},
	StatusPaid:          {},
	StatusCancelled:     {},
}

// StatusMachine enforces the invoice status state machine. It is stateless
// itself: each check builds a machine positioned at the current status, with
// the target status doubling as the trigger.
type StatusMachine struct{}

func NewStatusMachine() *StatusMachine {
	return &StatusMachine{}
}

func machineAt(current InvoiceStatus) *stateless.StateMachine {
	m := stateless.NewStateMachine(current)
	for from, targets := range statusTransitions {
		cfg := m.Configure(from)
		for _, to := range targets {
			cfg.Permit(to, to)
		}
	}
	return m
}

// IsValidTransition reports whether from -> to is a legal status change.
func (v *StatusMachine) IsValidTransition(from, to InvoiceStatus) bool {
	ok, err := machineAt(from).CanFire(to)
	return err == nil && ok
}

// ValidateTransition returns an *InvalidTransitionError when from -> to is
// not allowed. Callers must not apply the status mutation on error.
func (v *StatusMachine) ValidateTransition(from, to InvoiceStatus) error {
	if v.IsValidTransition(from, to) {
		return nil
	}
	return &InvalidTransitionError{From: from, To: to, Allowed: statusTransitions[from]}
}

// IsTerminal reports whether no transition leaves the given status.
func (v *StatusMachine) IsTerminal(status InvoiceStatus) bool {
	return len(statusTransitions[status]) == 0
}

package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"invoice-management/internal/core"
)

// Services groups everything the command tree needs. The CLI only calls the
// invoice and payment services and renders their results and errors.
type Services struct {
	Invoices core.InvoiceService
	Payments core.PaymentService
}

// NewRootCmd builds the full command tree.
func NewRootCmd(svc Services) *cobra.Command {
	root := &cobra.Command{
		Use:           "invoices",
		Short:         "Invoice management: creation, payments, status lifecycle, and aging reports",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newCreateCmd(svc),
		newShowCmd(svc),
		newListCmd(svc),
		newStatusCmd(svc),
		newAddLineCmd(svc),
		newRemoveLineCmd(svc),
		newArchiveCmd(svc),
		newPayCmd(svc),
		newPaymentsCmd(svc),
		newBalanceCmd(svc),
		newMethodsCmd(svc),
		newAgingCmd(svc),
		newSweepCmd(svc),
		newDSOCmd(svc),
	)
	return root
}

// retryOnce re-runs a mutation a single time when the persistence boundary
// reports a concurrent-write conflict.
func retryOnce(fn func() error) error {
	err := fn()
	if errors.Is(err, core.ErrConcurrencyConflict) {
		return fn()
	}
	return err
}

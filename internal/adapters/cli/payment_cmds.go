package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"invoice-management/internal/core"
)

func newPayCmd(svc Services) *cobra.Command {
	var methodID int
	var reference string

	cmd := &cobra.Command{
		Use:   "pay <invoice-id> <amount>",
		Short: "Record a full or partial payment against an invoice",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid invoice id %q", args[0])
			}
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
			if reference == "" {
				reference = uuid.NewString()
			}

			var payment *core.Payment
			err = retryOnce(func() error {
				payment, err = svc.Payments.RecordPayment(cmd.Context(), id, amount, methodID, reference)
				return err
			})
			if err != nil {
				return err
			}

			balance, err := svc.Payments.GetOutstandingBalance(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Printf("Payment %d recorded: %s (ref %s). Outstanding: %s\n",
				payment.ID, payment.Amount.StringFixed(2), payment.Reference, balance.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().IntVar(&methodID, "method", 1, "payment method id")
	cmd.Flags().StringVar(&reference, "reference", "", "external reference (cheque no, transaction id); random when empty")
	return cmd
}

func newPaymentsCmd(svc Services) *cobra.Command {
	var methodID int
	var from, to string

	cmd := &cobra.Command{
		Use:   "payments [invoice-id]",
		Short: "List payments by invoice, by method, or by date range",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case methodID > 0:
				payments, err := svc.Payments.GetPaymentsByMethod(cmd.Context(), methodID)
				if err != nil {
					return err
				}
				renderPayments(payments)
				return nil

			case from != "" || to != "":
				fromDate, toDate, err := parseDateRange(from, to)
				if err != nil {
					return err
				}
				payments, err := svc.Payments.GetPaymentsByDateRange(cmd.Context(), fromDate, toDate)
				if err != nil {
					return err
				}
				renderPayments(payments)
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("an invoice id, --method, or --from/--to is required")
			}
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid invoice id %q", args[0])
			}
			payments, err := svc.Payments.GetPaymentsByInvoice(cmd.Context(), id)
			if err != nil {
				return err
			}
			renderPayments(payments)
			return nil
		},
	}
	cmd.Flags().IntVar(&methodID, "method", 0, "list payments made with this method id")
	cmd.Flags().StringVar(&from, "from", "", "range start, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "range end, YYYY-MM-DD (inclusive, defaults to today)")
	return cmd
}

func parseDateRange(from, to string) (time.Time, time.Time, error) {
	fromDate := time.Time{}
	toDate := time.Now().UTC()
	var err error

	if from != "" {
		if fromDate, err = time.Parse("2006-01-02", from); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from date %q: %w", from, err)
		}
	}
	if to != "" {
		if toDate, err = time.Parse("2006-01-02", to); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to date %q: %w", to, err)
		}
		// Inclusive day range.
		toDate = toDate.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return fromDate, toDate, nil
}

func newBalanceCmd(svc Services) *cobra.Command {
	var customerID int

	cmd := &cobra.Command{
		Use:   "balance [invoice-id]",
		Short: "Show the outstanding balance of an invoice, or of a whole customer with --customer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if customerID > 0 {
				total, err := svc.Invoices.TotalOutstandingByCustomer(cmd.Context(), customerID)
				if err != nil {
					return err
				}
				fmt.Println(total.StringFixed(2))
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("an invoice id or --customer is required")
			}
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid invoice id %q", args[0])
			}
			balance, err := svc.Payments.GetOutstandingBalance(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Println(balance.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().IntVar(&customerID, "customer", 0, "sum outstanding across all of a customer's open invoices")
	return cmd
}

func newMethodsCmd(svc Services) *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List active payment methods",
		RunE: func(cmd *cobra.Command, args []string) error {
			methods, err := svc.Payments.ListPaymentMethods(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range methods {
				fmt.Printf("  %-3d %-15s %s\n", m.ID, m.Name, m.Description)
			}
			return nil
		},
	}
}

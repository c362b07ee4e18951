package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"invoice-management/internal/core"
)

// createRequest is the JSON shape read from stdin by `invoices create`.
type createRequest struct {
	CustomerID   int               `json:"customer_id"`
	QuoteID      *int              `json:"quote_id,omitempty"`
	InvoiceDate  string            `json:"invoice_date"` // YYYY-MM-DD, default today
	PaymentTerms string            `json:"payment_terms"`
	Discount     string            `json:"discount,omitempty"` // invoice-wide, absolute
	Notes        string            `json:"notes,omitempty"`
	LineItems    []lineItemRequest `json:"line_items"`
}

type lineItemRequest struct {
	ProductID   *int   `json:"product_id,omitempty"`
	Description string `json:"description"`
	SKU         string `json:"sku,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Discount    string `json:"discount,omitempty"`
	TaxRate     string `json:"tax_rate,omitempty"`
}

func parseAmount(s, name string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return d, nil
}

func (r *createRequest) toInvoice() (*core.Invoice, []core.InvoiceLineItem, error) {
	terms, err := core.ParsePaymentTerms(r.PaymentTerms)
	if err != nil {
		return nil, nil, err
	}

	invoiceDate := time.Now().UTC()
	if r.InvoiceDate != "" {
		invoiceDate, err = time.Parse("2006-01-02", r.InvoiceDate)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid invoice date %q: %w", r.InvoiceDate, err)
		}
	}

	discount, err := parseAmount(r.Discount, "invoice discount")
	if err != nil {
		return nil, nil, err
	}

	var lines []core.InvoiceLineItem
	for i, lr := range r.LineItems {
		unitPrice, err := parseAmount(lr.UnitPrice, "unit price")
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		lineDiscount, err := parseAmount(lr.Discount, "line discount")
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		taxRate, err := parseAmount(lr.TaxRate, "tax rate")
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		lines = append(lines, core.InvoiceLineItem{
			ProductID:   lr.ProductID,
			Description: lr.Description,
			SKU:         lr.SKU,
			Quantity:    lr.Quantity,
			UnitPrice:   unitPrice,
			Discount:    lineDiscount,
			TaxRate:     taxRate,
		})
	}

	inv := &core.Invoice{
		CustomerID:   r.CustomerID,
		QuoteID:      r.QuoteID,
		InvoiceDate:  invoiceDate,
		PaymentTerms: terms,
		Discount:     discount,
		Notes:        r.Notes,
	}
	return inv, lines, nil
}

func newCreateCmd(svc Services) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a Draft invoice from JSON on stdin",
		Example: `  echo '{
    "customer_id": 7,
    "invoice_date": "2025-02-10",
    "payment_terms": "Net30",
    "line_items": [
      {"description": "Consulting", "quantity": 2, "unit_price": "100.00", "discount": "10.00", "tax_rate": "18"}
    ]
  }' | invoices create`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req createRequest
			if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
				return fmt.Errorf("invalid JSON: %w", err)
			}
			inv, lines, err := req.toInvoice()
			if err != nil {
				return err
			}

			created, err := svc.Invoices.CreateInvoice(cmd.Context(), inv, lines)
			if err != nil {
				return err
			}
			renderInvoice(created)
			return nil
		},
	}
}

func newShowCmd(svc Services) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|invoice-number>",
		Short: "Show an invoice with its line items and payments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := resolveInvoice(cmd, svc, args[0])
			if err != nil {
				return err
			}
			renderInvoice(inv)
			return nil
		},
	}
}

// resolveInvoice accepts either a numeric ID or an invoice number string.
func resolveInvoice(cmd *cobra.Command, svc Services, ref string) (*core.Invoice, error) {
	if id, err := strconv.Atoi(ref); err == nil {
		return svc.Invoices.GetInvoice(cmd.Context(), id)
	}
	inv, err := svc.Invoices.GetInvoiceByNumber(cmd.Context(), ref)
	if err != nil {
		return nil, err
	}
	return svc.Invoices.GetInvoice(cmd.Context(), inv.ID)
}

func newListCmd(svc Services) *cobra.Command {
	var customerID int
	var archived, overdue bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices (archived excluded by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				invoices []core.Invoice
				err      error
			)
			switch {
			case archived:
				invoices, err = svc.Invoices.ListArchivedInvoices(cmd.Context())
			case overdue:
				invoices, err = svc.Invoices.ListOverdueInvoices(cmd.Context())
			case customerID > 0:
				invoices, err = svc.Invoices.ListByCustomer(cmd.Context(), customerID)
			default:
				invoices, err = svc.Invoices.ListInvoices(cmd.Context())
			}
			if err != nil {
				return err
			}
			renderInvoiceList(invoices)
			return nil
		},
	}
	cmd.Flags().IntVar(&customerID, "customer", 0, "filter by customer id")
	cmd.Flags().BoolVar(&archived, "archived", false, "list archived invoices instead")
	cmd.Flags().BoolVar(&overdue, "overdue", false, "list overdue invoices only")
	return cmd
}

func newStatusCmd(svc Services) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <new-status>",
		Short: "Transition an invoice to a new status",
		Long:  "Transition an invoice through its lifecycle (Draft, Sent, Overdue, PartiallyPaid, Paid, Cancelled). Illegal transitions are rejected with the allowed set.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid invoice id %q", args[0])
			}
			status, err := core.ParseStatus(args[1])
			if err != nil {
				return err
			}

			var inv *core.Invoice
			err = retryOnce(func() error {
				inv, err = svc.Invoices.UpdateInvoiceStatus(cmd.Context(), id, status)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Printf("Invoice %s is now %s.\n", inv.InvoiceNumber, inv.Status)
			return nil
		},
	}
}

func newAddLineCmd(svc Services) *cobra.Command {
	return &cobra.Command{
		Use:   "add-line <id>",
		Short: "Add a line item to a Draft invoice (JSON on stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid invoice id %q", args[0])
			}

			var lr lineItemRequest
			if err := json.NewDecoder(os.Stdin).Decode(&lr); err != nil {
				return fmt.Errorf("invalid JSON: %w", err)
			}
			unitPrice, err := parseAmount(lr.UnitPrice, "unit price")
			if err != nil {
				return err
			}
			discount, err := parseAmount(lr.Discount, "line discount")
			if err != nil {
				return err
			}
			taxRate, err := parseAmount(lr.TaxRate, "tax rate")
			if err != nil {
				return err
			}

			var inv *core.Invoice
			err = retryOnce(func() error {
				inv, err = svc.Invoices.AddLineItem(cmd.Context(), id, core.InvoiceLineItem{
					ProductID:   lr.ProductID,
					Description: lr.Description,
					SKU:         lr.SKU,
					Quantity:    lr.Quantity,
					UnitPrice:   unitPrice,
					Discount:    discount,
					TaxRate:     taxRate,
				})
				return err
			})
			if err != nil {
				return err
			}
			renderInvoice(inv)
			return nil
		},
	}
}

func newRemoveLineCmd(svc Services) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-line <id> <line-item-id>",
		Short: "Remove a line item from a Draft invoice",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid invoice id %q", args[0])
			}
			lineID, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid line item id %q", args[1])
			}

			var inv *core.Invoice
			err = retryOnce(func() error {
				inv, err = svc.Invoices.RemoveLineItem(cmd.Context(), id, lineID)
				return err
			})
			if err != nil {
				return err
			}
			renderInvoice(inv)
			return nil
		},
	}
}

func newArchiveCmd(svc Services) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a Paid or Cancelled invoice (one-way)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid invoice id %q", args[0])
			}
			if err := svc.Invoices.ArchiveInvoice(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("Invoice %d archived.\n", id)
			return nil
		},
	}
}

func newAgingCmd(svc Services) *cobra.Command {
	return &cobra.Command{
		Use:   "aging",
		Short: "Aging report: open invoices grouped by days overdue",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := svc.Invoices.GetAgingReport(cmd.Context())
			if err != nil {
				return err
			}
			renderAgingReport(report)
			return nil
		},
	}
}

func newSweepCmd(svc Services) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-overdue",
		Short: "Transition Sent invoices past their due date to Overdue",
		Long:  "Intended to be run periodically (e.g. a daily cron). Re-running after all eligible invoices have moved is a no-op.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var moved int
			err := retryOnce(func() error {
				var err error
				moved, err = svc.Invoices.UpdateOverdueStatuses(cmd.Context())
				return err
			})
			if err != nil {
				return err
			}
			fmt.Printf("%d invoice(s) transitioned to Overdue.\n", moved)
			return nil
		},
	}
}

func newDSOCmd(svc Services) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "dso",
		Short: "Days Sales Outstanding over a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			dso, err := svc.Invoices.GetDSO(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Printf("DSO over %d days: %s\n", days, dso.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "period length in days")
	return cmd
}

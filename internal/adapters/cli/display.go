package cli

import (
	"fmt"
	"strings"

	"invoice-management/internal/core"
)

func renderInvoice(inv *core.Invoice) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 72))
	fmt.Printf("  %s  [%s]\n", inv.InvoiceNumber, inv.Status)
	fmt.Printf("  Customer : %d\n", inv.CustomerID)
	fmt.Printf("  Dates    : invoiced %s, due %s (%s)\n",
		inv.InvoiceDate.Format("2006-01-02"), inv.DueDate.Format("2006-01-02"), inv.PaymentTerms)
	if inv.IsArchived {
		fmt.Printf("  Archived : %s\n", inv.ArchivedAt.Format("2006-01-02"))
	}
	fmt.Println(strings.Repeat("-", 72))

	if len(inv.LineItems) > 0 {
		fmt.Printf("  %-4s %-28s %4s %10s %8s %10s\n", "ID", "DESCRIPTION", "QTY", "PRICE", "TAX", "TOTAL")
		for _, li := range inv.LineItems {
			fmt.Printf("  %-4d %-28s %4d %10s %8s %10s\n",
				li.ID, truncate(li.Description, 28), li.Quantity,
				li.UnitPrice.StringFixed(2), li.Tax.StringFixed(2), li.LineTotal.StringFixed(2))
		}
		fmt.Println(strings.Repeat("-", 72))
	}

	fmt.Printf("  %-20s %s\n", "Subtotal", inv.SubTotal.StringFixed(2))
	if !inv.Discount.IsZero() {
		fmt.Printf("  %-20s %s\n", "Invoice discount", inv.Discount.StringFixed(2))
	}
	fmt.Printf("  %-20s %s\n", "Tax", inv.Tax.StringFixed(2))
	fmt.Printf("  %-20s %s\n", "Grand total", inv.GrandTotal.StringFixed(2))
	fmt.Printf("  %-20s %s\n", "Paid", inv.AmountPaid.StringFixed(2))
	fmt.Printf("  %-20s %s\n", "Outstanding", inv.OutstandingBalance.StringFixed(2))
	fmt.Println(strings.Repeat("=", 72))
}

func renderInvoiceList(invoices []core.Invoice) {
	if len(invoices) == 0 {
		fmt.Println("No invoices.")
		return
	}
	fmt.Printf("  %-4s %-18s %-10s %-14s %12s %12s\n",
		"ID", "NUMBER", "CUSTOMER", "STATUS", "TOTAL", "OUTSTANDING")
	for _, inv := range invoices {
		fmt.Printf("  %-4d %-18s %-10d %-14s %12s %12s\n",
			inv.ID, inv.InvoiceNumber, inv.CustomerID, inv.Status,
			inv.GrandTotal.StringFixed(2), inv.OutstandingBalance.StringFixed(2))
	}
}

func renderPayments(payments []core.Payment) {
	if len(payments) == 0 {
		fmt.Println("No payments.")
		return
	}
	fmt.Printf("  %-4s %-12s %12s %-36s\n", "ID", "DATE", "AMOUNT", "REFERENCE")
	for _, p := range payments {
		fmt.Printf("  %-4d %-12s %12s %-36s\n",
			p.ID, p.PaymentDate.Format("2006-01-02"), p.Amount.StringFixed(2), p.Reference)
	}
}

// renderAgingReport prints buckets in overdue order, all five always shown.
func renderAgingReport(report map[string][]core.Invoice) {
	order := []string{
		core.BucketCurrent,
		core.Bucket1To30,
		core.Bucket31To60,
		core.Bucket61To90,
		core.BucketOver90,
	}
	for _, bucket := range order {
		invoices := report[bucket]
		fmt.Printf("\n%s (%d)\n", bucket, len(invoices))
		for _, inv := range invoices {
			fmt.Printf("  %-18s customer %-6d due %s  outstanding %s\n",
				inv.InvoiceNumber, inv.CustomerID, inv.DueDate.Format("2006-01-02"),
				inv.OutstandingBalance.StringFixed(2))
		}
	}
}

// truncate shortens s to at most n runes, never splitting a multi-byte
// character.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

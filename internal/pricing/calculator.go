// Package pricing computes line and document totals for sales documents.
package pricing

import (
	"fmt"

	"github.com/comptoir-pos/comptoir/internal/shared"
)

// DocType selects the tax treatment of a sales document.
type DocType string

const (
	// DocTypeTicket is a B2C receipt, sold tax-free at the counter.
	DocTypeTicket DocType = "TICKET"
	// DocTypeInvoice is a B2B invoice subject to the standard VAT rate.
	DocTypeInvoice DocType = "INVOICE"
)

// InvoiceTaxRate is the fixed VAT rate applied to invoices. Tickets carry no tax.
const InvoiceTaxRate = 0.20

// Line is one order line as submitted at checkout. UnitPrice and PurchasePrice
// are snapshots resolved by the caller before calculation.
type Line struct {
	ProductID     int64
	Quantity      int
	UnitPrice     float64
	PurchasePrice float64
	Discount      float64
}

// LineResult carries the computed amounts for one line.
type LineResult struct {
	Line
	Total  float64
	Margin float64
}

// Totals aggregates the document-level amounts.
type Totals struct {
	Lines    []LineResult
	Subtotal float64
	Discount float64
	Tax      float64
	Total    float64
	Margin   float64
}

// Calculate computes line totals, document totals, tax and margin. It is pure:
// identical inputs always produce identical outputs.
func Calculate(docType DocType, lines []Line, docDiscount float64) (Totals, error) {
	if docType != DocTypeTicket && docType != DocTypeInvoice {
		return Totals{}, fmt.Errorf("%w: unknown document type %q", shared.ErrValidation, docType)
	}
	if len(lines) == 0 {
		return Totals{}, fmt.Errorf("%w: at least one line required", shared.ErrValidation)
	}
	if docDiscount < 0 {
		return Totals{}, fmt.Errorf("%w: document discount must be >= 0", shared.ErrValidation)
	}

	totals := Totals{Discount: docDiscount, Lines: make([]LineResult, 0, len(lines))}
	for _, line := range lines {
		if line.Quantity < 1 {
			return Totals{}, fmt.Errorf("%w: quantity must be >= 1 for product %d", shared.ErrValidation, line.ProductID)
		}
		if line.UnitPrice < 0 || line.PurchasePrice < 0 || line.Discount < 0 {
			return Totals{}, fmt.Errorf("%w: negative amount on product %d", shared.ErrValidation, line.ProductID)
		}
		qty := float64(line.Quantity)
		result := LineResult{
			Line:   line,
			Total:  line.UnitPrice*qty - line.Discount,
			Margin: (line.UnitPrice-line.PurchasePrice)*qty - line.Discount,
		}
		totals.Subtotal += result.Total
		// Document discount is not re-subtracted from margin; line discounts already are.
		totals.Margin += result.Margin
		totals.Lines = append(totals.Lines, result)
	}

	finalSubtotal := totals.Subtotal - docDiscount
	if docType == DocTypeInvoice {
		totals.Tax = finalSubtotal * InvoiceTaxRate
	}
	totals.Total = finalSubtotal + totals.Tax
	return totals, nil
}

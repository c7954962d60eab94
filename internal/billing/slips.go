package billing

import (
	"fmt"

	"github.com/thetaxjournal/accountsvedartha/internal/render"
	"github.com/thetaxjournal/accountsvedartha/internal/tax"
)

// InvoiceSlip lays out an invoice with its code in the bottom-right corner.
func InvoiceSlip(branch Branch, inv Invoice) render.Slip {
	lines := make([]render.Line, 0, len(inv.Items)+5)
	lines = append(lines,
		render.Line{Label: "Date", Value: inv.Date.Format("02 Jan 2006")},
		render.Line{Label: "Place of supply", Value: inv.PlaceOfSupply},
	)
	for _, item := range inv.Items {
		lines = append(lines, render.Line{
			Label: item.Description,
			Value: fmt.Sprintf("%g x %s @ %g%%", item.Quantity, render.Money(item.Rate), item.TaxPercent),
		})
	}
	lines = append(lines, render.Line{Label: "Subtotal", Value: render.Money(inv.Totals.Subtotal)})
	split := inv.Totals.Split
	if split.Kind == tax.SplitIGST {
		lines = append(lines, render.Line{Label: "IGST", Value: render.Money(split.IGST)})
	} else {
		lines = append(lines,
			render.Line{Label: "CGST", Value: render.Money(split.CGST)},
			render.Line{Label: "SGST", Value: render.Money(split.SGST)},
		)
	}
	return render.Slip{
		Title:       "Tax Invoice",
		Issuer:      issuerLine(branch),
		Subtitle:    inv.Number,
		Lines:       lines,
		AmountLabel: "Grand total",
		Amount:      inv.Totals.GrandTotal,
		SealCode:    inv.SealCode,
		Corner:      render.BottomRight,
	}
}

// ReceiptSlip lays out a payment receipt with its code in the bottom-left corner.
func ReceiptSlip(branch Branch, p Payment) render.Slip {
	lines := []render.Line{
		{Label: "Date", Value: p.Date.Format("02 Jan 2006")},
		{Label: "Against invoice", Value: p.InvoiceNumber},
	}
	if p.Method != "" {
		lines = append(lines, render.Line{Label: "Method", Value: p.Method})
	}
	if p.Note != "" {
		lines = append(lines, render.Line{Label: "Note", Value: p.Note})
	}
	return render.Slip{
		Title:       "Payment Receipt",
		Issuer:      issuerLine(branch),
		Subtitle:    p.ID,
		Lines:       lines,
		AmountLabel: "Amount received",
		Amount:      p.Amount,
		SealCode:    p.SealCode,
		Corner:      render.BottomLeft,
	}
}

func issuerLine(b Branch) string {
	if b.GSTIN == "" {
		return b.Name
	}
	return b.Name + " (GSTIN " + b.GSTIN + ")"
}

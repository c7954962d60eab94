// Package tax computes invoice totals and the GST split for a single-country regime.
package tax

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

// SplitKind distinguishes intra-state from inter-state supply.
type SplitKind string

const (
	SplitIGST     SplitKind = "IGST"
	SplitCGSTSGST SplitKind = "CGST_SGST"
)

// LineItem is a single taxable line on an invoice.
type LineItem struct {
	Description string  `json:"description" validate:"required"`
	HSN         string  `json:"hsn"`
	Quantity    float64 `json:"quantity" validate:"gte=0"`
	Rate        float64 `json:"rate" validate:"gte=0"`
	TaxPercent  float64 `json:"taxPercent" validate:"gte=0"`
	// DiscountPercent is stored with the item but not applied to totals.
	DiscountPercent float64 `json:"discountPercent,omitempty" validate:"gte=0,lte=100"`
}

// Split holds either {IGST} or {CGST, SGST}.
type Split struct {
	Kind SplitKind `json:"kind"`
	IGST float64   `json:"igst,omitempty"`
	CGST float64   `json:"cgst,omitempty"`
	SGST float64   `json:"sgst,omitempty"`
}

// Totals is the result of ComputeTotals. GrandTotal = Subtotal + TaxAmount.
type Totals struct {
	Subtotal   float64 `json:"subtotal"`
	TaxAmount  float64 `json:"taxAmount"`
	GrandTotal float64 `json:"grandTotal"`
	Split      Split   `json:"split"`
}

var folder = cases.Fold()

// SameJurisdiction compares two state names ignoring case and surrounding space.
func SameJurisdiction(a, b string) bool {
	return folder.String(strings.TrimSpace(a)) == folder.String(strings.TrimSpace(b))
}

// ComputeTotals sums the items and splits the tax by jurisdiction.
func ComputeTotals(items []LineItem, supplierState, placeOfSupply string) (Totals, error) {
	if strings.TrimSpace(placeOfSupply) == "" {
		return Totals{}, shared.NewValidationError("placeOfSupply", "place of supply is required")
	}
	if err := ValidateItems(items); err != nil {
		return Totals{}, err
	}

	hundred := decimal.NewFromInt(100)
	subtotal := decimal.Zero
	taxAmount := decimal.Zero
	for _, item := range items {
		base := decimal.NewFromFloat(item.Quantity).Mul(decimal.NewFromFloat(item.Rate))
		subtotal = subtotal.Add(base)
		taxAmount = taxAmount.Add(base.Mul(decimal.NewFromFloat(item.TaxPercent)).Div(hundred))
	}

	totals := Totals{
		Subtotal:   subtotal.InexactFloat64(),
		TaxAmount:  taxAmount.InexactFloat64(),
		GrandTotal: subtotal.Add(taxAmount).InexactFloat64(),
	}
	if SameJurisdiction(supplierState, placeOfSupply) {
		half := taxAmount.Div(decimal.NewFromInt(2)).InexactFloat64()
		totals.Split = Split{Kind: SplitCGSTSGST, CGST: half, SGST: half}
	} else {
		totals.Split = Split{Kind: SplitIGST, IGST: totals.TaxAmount}
	}
	return totals, nil
}

// ValidateItems enforces non-negative quantity, rate and tax percent.
func ValidateItems(items []LineItem) error {
	for i, item := range items {
		switch {
		case item.Quantity < 0:
			return shared.NewValidationError(fmt.Sprintf("items[%d].quantity", i), "must not be negative")
		case item.Rate < 0:
			return shared.NewValidationError(fmt.Sprintf("items[%d].rate", i), "must not be negative")
		case item.TaxPercent < 0:
			return shared.NewValidationError(fmt.Sprintf("items[%d].taxPercent", i), "must not be negative")
		}
	}
	return nil
}

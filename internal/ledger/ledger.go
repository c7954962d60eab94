// Package ledger rebuilds fiscal-year account statements from invoice and payment totals.
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

// Kind distinguishes debit and credit entries.
type Kind string

const (
	KindInvoice Kind = "invoice"
	KindPayment Kind = "payment"
)

// Invoice is the ledger view of an issued invoice.
type Invoice struct {
	ID         string    `json:"id"`
	Number     string    `json:"number"`
	ClientID   string    `json:"clientId"`
	BranchID   string    `json:"branchId"`
	Date       time.Time `json:"date"`
	TaxAmount  float64   `json:"taxAmount"`
	GrandTotal float64   `json:"grandTotal"`
}

// Payment is the ledger view of a receipt.
type Payment struct {
	ID        string    `json:"id"`
	Reference string    `json:"reference"`
	ClientID  string    `json:"clientId"`
	BranchID  string    `json:"branchId"`
	Date      time.Time `json:"date"`
	Amount    float64   `json:"amount"`
}

// Entry is one statement line. Amount is signed: invoices add, payments subtract.
type Entry struct {
	Date       time.Time `json:"date"`
	Kind       Kind      `json:"kind"`
	DocumentID string    `json:"documentId"`
	Reference  string    `json:"reference"`
	Amount     float64   `json:"amount"`
	Balance    float64   `json:"balance"`
}

// BuildStatement filters both lists to the fiscal year, merges them in date order
// and walks the running balance forward.
func BuildStatement(invoices []Invoice, payments []Payment, fiscalYearLabel string) ([]Entry, error) {
	fy, err := shared.ParseFiscalYear(fiscalYearLabel)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(invoices)+len(payments))
	for _, inv := range invoices {
		if !fy.Contains(inv.Date) {
			continue
		}
		entries = append(entries, Entry{
			Date:       inv.Date,
			Kind:       KindInvoice,
			DocumentID: inv.ID,
			Reference:  inv.Number,
			Amount:     inv.GrandTotal,
		})
	}
	for _, p := range payments {
		if !fy.Contains(p.Date) {
			continue
		}
		entries = append(entries, Entry{
			Date:       p.Date,
			Kind:       KindPayment,
			DocumentID: p.ID,
			Reference:  p.Reference,
			Amount:     -p.Amount,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Kind != b.Kind {
			return a.Kind == KindInvoice
		}
		return a.Reference < b.Reference
	})

	balance := decimal.Zero
	for i := range entries {
		balance = balance.Add(decimal.NewFromFloat(entries[i].Amount))
		entries[i].Balance = balance.InexactFloat64()
	}
	return entries, nil
}

// Reverse returns a most-recent-first copy. Balances are not recomputed.
func Reverse(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}

// MonthTotals is one row of the monthly rollup.
type MonthTotals struct {
	Label           string    `json:"label"`
	Month           time.Time `json:"month"`
	GrossRevenue    float64   `json:"grossRevenue"`
	TaxCollected    float64   `json:"taxCollected"`
	AmountCollected float64   `json:"amountCollected"`
}

type monthAcc struct {
	start                    time.Time
	revenue, tax, collection decimal.Decimal
}

// MonthlyRollup groups the fiscal year's documents by calendar month, ordered by
// the month itself rather than its label.
func MonthlyRollup(invoices []Invoice, payments []Payment, fiscalYearLabel string) ([]MonthTotals, error) {
	fy, err := shared.ParseFiscalYear(fiscalYearLabel)
	if err != nil {
		return nil, err
	}

	months := make(map[shared.Month]*monthAcc)
	bucket := func(t time.Time) *monthAcc {
		key := shared.MonthOf(t)
		acc, ok := months[key]
		if !ok {
			acc = &monthAcc{start: time.Date(key.Year, key.Month, 1, 0, 0, 0, 0, t.Location())}
			months[key] = acc
		}
		return acc
	}
	for _, inv := range invoices {
		if !fy.Contains(inv.Date) {
			continue
		}
		acc := bucket(inv.Date)
		acc.revenue = acc.revenue.Add(decimal.NewFromFloat(inv.GrandTotal))
		acc.tax = acc.tax.Add(decimal.NewFromFloat(inv.TaxAmount))
	}
	for _, p := range payments {
		if !fy.Contains(p.Date) {
			continue
		}
		acc := bucket(p.Date)
		acc.collection = acc.collection.Add(decimal.NewFromFloat(p.Amount))
	}

	out := make([]MonthTotals, 0, len(months))
	for _, acc := range months {
		out = append(out, MonthTotals{
			Label:           acc.start.Format("Jan 2006"),
			Month:           acc.start,
			GrossRevenue:    acc.revenue.InexactFloat64(),
			TaxCollected:    acc.tax.InexactFloat64(),
			AmountCollected: acc.collection.InexactFloat64(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out, nil
}

// Summary totals a statement.
type Summary struct {
	FiscalYear     string  `json:"fiscalYear"`
	TotalInvoiced  float64 `json:"totalInvoiced"`
	TotalReceived  float64 `json:"totalReceived"`
	ClosingBalance float64 `json:"closingBalance"`
	Entries        int     `json:"entries"`
}

// Summarize totals chronological entries. The closing balance is the balance of
// the last entry.
func Summarize(fiscalYearLabel string, entries []Entry) Summary {
	invoiced := decimal.Zero
	received := decimal.Zero
	for _, e := range entries {
		if e.Kind == KindInvoice {
			invoiced = invoiced.Add(decimal.NewFromFloat(e.Amount))
		} else {
			received = received.Sub(decimal.NewFromFloat(e.Amount))
		}
	}
	s := Summary{
		FiscalYear:    fiscalYearLabel,
		TotalInvoiced: invoiced.InexactFloat64(),
		TotalReceived: received.InexactFloat64(),
		Entries:       len(entries),
	}
	if len(entries) > 0 {
		s.ClosingBalance = entries[len(entries)-1].Balance
	}
	return s
}

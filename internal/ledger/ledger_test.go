package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 0, 0, 0, time.UTC)
}

func fixtures() ([]Invoice, []Payment) {
	invoices := []Invoice{
		{ID: "i1", Number: "BLR/0001", Date: day(2024, time.April, 5), TaxAmount: 1800, GrandTotal: 11800},
		{ID: "i2", Number: "BLR/0002", Date: day(2024, time.June, 10), TaxAmount: 900, GrandTotal: 5900},
		{ID: "i3", Number: "BLR/0003", Date: day(2025, time.March, 31), TaxAmount: 180, GrandTotal: 1180},
		{ID: "old", Number: "BLR/0099", Date: day(2024, time.March, 31), TaxAmount: 10, GrandTotal: 110},
		{ID: "next", Number: "BLR/0100", Date: day(2025, time.April, 1), TaxAmount: 10, GrandTotal: 110},
	}
	payments := []Payment{
		{ID: "p1", Reference: "BLR/0001", Date: day(2024, time.April, 20), Amount: 5000},
		{ID: "p2", Reference: "BLR/0002", Date: day(2024, time.June, 10), Amount: 5900},
		{ID: "p3", Reference: "BLR/0001", Date: day(2024, time.May, 2), Amount: 6800},
		{ID: "pold", Reference: "BLR/0099", Date: day(2024, time.January, 1), Amount: 110},
	}
	return invoices, payments
}

func TestBuildStatementChronologicalBalance(t *testing.T) {
	invoices, payments := fixtures()
	entries, err := BuildStatement(invoices, payments, "2024-2025")
	require.NoError(t, err)

	refs := make([]string, 0, len(entries))
	for _, e := range entries {
		refs = append(refs, e.DocumentID)
	}
	require.Equal(t, []string{"i1", "p1", "p3", "i2", "p2", "i3"}, refs)

	balances := make([]float64, 0, len(entries))
	for _, e := range entries {
		balances = append(balances, e.Balance)
	}
	require.Equal(t, []float64{11800, 6800, 0, 5900, 0, 1180}, balances)
	require.Equal(t, -5000.0, entries[1].Amount)
}

func TestBuildStatementClosingBalanceEqualsTotals(t *testing.T) {
	invoices, payments := fixtures()
	entries, err := BuildStatement(invoices, payments, "2024-2025")
	require.NoError(t, err)

	fy := shared.FiscalYear{StartYear: 2024}
	var want float64
	for _, inv := range invoices {
		if fy.Contains(inv.Date) {
			want += inv.GrandTotal
		}
	}
	for _, p := range payments {
		if fy.Contains(p.Date) {
			want -= p.Amount
		}
	}
	require.InDelta(t, want, entries[len(entries)-1].Balance, 1e-9)
}

func TestBuildStatementFiscalYearBoundaries(t *testing.T) {
	invoices, payments := fixtures()

	prev, err := BuildStatement(invoices, payments, "2023-2024")
	require.NoError(t, err)
	require.Len(t, prev, 2)
	require.Equal(t, "pold", prev[0].DocumentID)
	require.Equal(t, "old", prev[1].DocumentID)

	next, err := BuildStatement(invoices, payments, "2025-2026")
	require.NoError(t, err)
	require.Len(t, next, 1)
	require.Equal(t, "next", next[0].DocumentID)
}

func TestBuildStatementRejectsBadLabel(t *testing.T) {
	for _, label := range []string{"", "2024", "2024-2026", "24-25", "abcd-efgh"} {
		_, err := BuildStatement(nil, nil, label)
		var verr *shared.ValidationError
		require.ErrorAs(t, err, &verr, label)
		require.Equal(t, "fiscalYear", verr.Field)
	}
}

func TestBuildStatementEmpty(t *testing.T) {
	entries, err := BuildStatement(nil, nil, "2024-2025")
	require.NoError(t, err)
	require.Empty(t, entries)
	require.Equal(t, Summary{FiscalYear: "2024-2025"}, Summarize("2024-2025", entries))
}

func TestReverseKeepsBalances(t *testing.T) {
	invoices, payments := fixtures()
	entries, err := BuildStatement(invoices, payments, "2024-2025")
	require.NoError(t, err)

	rev := Reverse(entries)
	require.Len(t, rev, len(entries))
	require.Equal(t, entries[len(entries)-1], rev[0])
	require.Equal(t, entries[0], rev[len(rev)-1])
	require.Equal(t, "i1", entries[0].DocumentID)
}

func TestMonthlyRollup(t *testing.T) {
	invoices, payments := fixtures()
	months, err := MonthlyRollup(invoices, payments, "2024-2025")
	require.NoError(t, err)

	labels := make([]string, 0, len(months))
	for _, m := range months {
		labels = append(labels, m.Label)
	}
	require.Equal(t, []string{"Apr 2024", "May 2024", "Jun 2024", "Mar 2025"}, labels)

	require.Equal(t, 11800.0, months[0].GrossRevenue)
	require.Equal(t, 1800.0, months[0].TaxCollected)
	require.Equal(t, 5000.0, months[0].AmountCollected)
	require.Equal(t, 0.0, months[1].GrossRevenue)
	require.Equal(t, 6800.0, months[1].AmountCollected)
	require.Equal(t, 5900.0, months[2].GrossRevenue)
	require.Equal(t, 5900.0, months[2].AmountCollected)
	require.Equal(t, 1180.0, months[3].GrossRevenue)
}

func TestSummarize(t *testing.T) {
	invoices, payments := fixtures()
	entries, err := BuildStatement(invoices, payments, "2024-2025")
	require.NoError(t, err)

	s := Summarize("2024-2025", entries)
	require.Equal(t, 18880.0, s.TotalInvoiced)
	require.Equal(t, 17700.0, s.TotalReceived)
	require.Equal(t, 1180.0, s.ClosingBalance)
	require.Equal(t, 6, s.Entries)
}

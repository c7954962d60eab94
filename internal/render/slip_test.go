package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thetaxjournal/accountsvedartha/internal/seal"
)

func TestWriteSlip(t *testing.T) {
	code, err := seal.New().Seal(map[string]any{"type": "invoice", "id": "INV-1"})
	require.NoError(t, err)

	for _, corner := range []Corner{BottomRight, BottomLeft} {
		var buf bytes.Buffer
		err := Write(&buf, Slip{
			Title:       "Tax Invoice",
			Issuer:      "Bengaluru",
			Lines:       []Line{{Label: "Number", Value: "BLR/2024-2025/0001"}},
			AmountLabel: "Grand total",
			Amount:      11800,
			SealCode:    code,
			Corner:      corner,
		})
		require.NoError(t, err)
		require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
		require.Greater(t, buf.Len(), 1000)
	}
}

func TestWriteSlipWithoutCode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Slip{Title: "Payslip", Amount: 0}))
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestMoney(t *testing.T) {
	require.Equal(t, "0.00", Money(0))
	require.True(t, strings.HasSuffix(Money(1234567.5), "567.50"))
}

package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const (
	statementSheet = "Statement"
	monthlySheet   = "Monthly"
	dateLayout     = "2006-01-02"
)

var statementHeaders = []string{"Date", "Type", "Reference", "Amount", "Balance"}

// WriteXLSX renders the chronological statement, its summary and the monthly
// rollup as a workbook.
func WriteXLSX(w io.Writer, summary Summary, entries []Entry, months []MonthTotals) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", statementSheet); err != nil {
		return fmt.Errorf("ledger: xlsx: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("ledger: xlsx style: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("ledger: xlsx style: %w", err)
	}

	if err := writeRow(f, statementSheet, 1, "Fiscal year", summary.FiscalYear); err != nil {
		return err
	}
	for i, h := range statementHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 3)
		if err := f.SetCellValue(statementSheet, cell, h); err != nil {
			return fmt.Errorf("ledger: xlsx header: %w", err)
		}
	}
	_ = f.SetCellStyle(statementSheet, "A3", "E3", bold)

	row := 4
	for _, e := range entries {
		if err := writeRow(f, statementSheet, row, e.Date.Format(dateLayout), string(e.Kind), e.Reference, e.Amount, e.Balance); err != nil {
			return err
		}
		row++
	}
	if row > 4 {
		_ = f.SetCellStyle(statementSheet, "D4", fmt.Sprintf("E%d", row-1), money)
	}

	row++
	totals := [][]any{
		{"Total invoiced", summary.TotalInvoiced},
		{"Total received", summary.TotalReceived},
		{"Closing balance", summary.ClosingBalance},
	}
	for _, t := range totals {
		if err := writeRow(f, statementSheet, row, t[0], "", "", t[1]); err != nil {
			return err
		}
		_ = f.SetCellStyle(statementSheet, fmt.Sprintf("D%d", row), fmt.Sprintf("D%d", row), money)
		row++
	}
	_ = f.SetColWidth(statementSheet, "A", "A", 16)
	_ = f.SetColWidth(statementSheet, "B", "B", 10)
	_ = f.SetColWidth(statementSheet, "C", "C", 24)
	_ = f.SetColWidth(statementSheet, "D", "E", 16)

	if _, err := f.NewSheet(monthlySheet); err != nil {
		return fmt.Errorf("ledger: xlsx sheet: %w", err)
	}
	if err := writeRow(f, monthlySheet, 1, "Month", "Gross revenue", "Tax collected", "Amount collected"); err != nil {
		return err
	}
	_ = f.SetCellStyle(monthlySheet, "A1", "D1", bold)
	for i, m := range months {
		if err := writeRow(f, monthlySheet, i+2, m.Label, m.GrossRevenue, m.TaxCollected, m.AmountCollected); err != nil {
			return err
		}
	}
	if len(months) > 0 {
		_ = f.SetCellStyle(monthlySheet, "B2", fmt.Sprintf("D%d", len(months)+1), money)
	}
	_ = f.SetColWidth(monthlySheet, "A", "D", 18)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("ledger: xlsx write: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("ledger: xlsx cell: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("ledger: xlsx row %d: %w", row, err)
	}
	return nil
}

// WriteCSV renders the statement as CSV.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(statementHeaders); err != nil {
		return err
	}
	for _, e := range entries {
		record := []string{
			e.Date.Format(dateLayout),
			string(e.Kind),
			e.Reference,
			strconv.FormatFloat(e.Amount, 'f', 2, 64),
			strconv.FormatFloat(e.Balance, 'f', 2, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

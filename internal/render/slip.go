// Package render draws minimal printable slips carrying the authenticity QR code.
package render

import (
	"bytes"
	"fmt"
	"image/png"
	"io"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/thetaxjournal/accountsvedartha/internal/seal"
	"github.com/thetaxjournal/accountsvedartha/internal/tax"
)

// Corner is where the QR code is printed.
type Corner int

const (
	// BottomRight is the invoice footer position.
	BottomRight Corner = iota
	// BottomLeft is used by receipts and payslips.
	BottomLeft
)

// Line is a label/value row on the slip.
type Line struct {
	Label string
	Value string
}

// Slip is the printable content of a document.
type Slip struct {
	Title       string
	Issuer      string
	Subtitle    string
	Lines       []Line
	AmountLabel string
	Amount      float64
	SealCode    string
	Corner      Corner
}

const (
	qrSizeMM  = 40.0
	marginMM  = 15.0
	qrPixels  = 512
	pageWidth = 210.0
	pageTall  = 297.0
)

var printer = message.NewPrinter(language.MustParse("en-IN"))

// Money formats an amount with Indian digit grouping and two decimals.
func Money(v float64) string {
	return printer.Sprint(number.Decimal(v, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// Write renders s as a single A4 page PDF.
func Write(w io.Writer, s Slip) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginMM, marginMM, marginMM)
	pdf.SetAutoPageBreak(false, marginMM)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, s.Title, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	if s.Issuer != "" {
		pdf.CellFormat(0, 6, s.Issuer, "", 1, "L", false, 0, "")
	}
	if s.Subtitle != "" {
		pdf.CellFormat(0, 6, s.Subtitle, "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	for _, line := range s.Lines {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(55, 7, line.Label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 7, line.Value, "", 1, "L", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 13)
	label := s.AmountLabel
	if label == "" {
		label = "Amount"
	}
	pdf.CellFormat(55, 8, label, "T", 0, "L", false, 0, "")
	pdf.CellFormat(0, 8, "Rs. "+Money(s.Amount), "T", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, tax.RupeesInWords(s.Amount), "", "L", false)

	if s.SealCode != "" {
		if err := placeQR(pdf, s.SealCode, s.Corner); err != nil {
			return err
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render: output: %w", err)
	}
	return nil
}

func placeQR(pdf *gofpdf.Fpdf, code string, corner Corner) error {
	img, err := seal.QRImage(code, qrPixels)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("render: encode qr: %w", err)
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("seal", opts, &buf)
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render: register qr: %w", err)
	}

	x := pageWidth - marginMM - qrSizeMM
	align := "R"
	if corner == BottomLeft {
		x = marginMM
		align = "L"
	}
	y := pageTall - marginMM - qrSizeMM - 6
	pdf.ImageOptions("seal", x, y, qrSizeMM, qrSizeMM, false, opts, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetXY(marginMM, y+qrSizeMM+1)
	pdf.CellFormat(pageWidth-2*marginMM, 4, "Scan to verify authenticity", "", 0, align, false, 0, "")
	return nil
}

package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"bilant/internal/cashflow"
	"bilant/internal/core"
)

const (
	pageWidth    = 297.0
	pageHeight   = 210.0
	marginLeft   = 12.0
	marginRight  = 12.0
	marginTop    = 12.0
	marginBottom = 15.0
	contentWidth = pageWidth - marginLeft - marginRight
	rowHeight    = 7.0
)

// ProjectionPDF renders the projection as a landscape A4 report. Amounts
// are rounded to whole units.
func ProjectionPDF(p cashflow.Projection, startingBalance decimal.Decimal, generated time.Time) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(true, marginBottom)
	pdf.SetTitle("Cashflow projection", true)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Arial", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Arial", "B", 18)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(contentWidth, 10, "Cashflow projection", "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.CellFormat(contentWidth, 6, fmt.Sprintf("Generated %s. Starting balance %s %s.",
		generated.Format("2 January 2006"), core.RoundUnits(startingBalance), core.Currency), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	widths := []float64{40, 45, 45, 40, 40, contentWidth - 210}

	writeHeader := func() {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(0, 51, 102)
		pdf.SetTextColor(255, 255, 255)
		for i, h := range ProjectionHeader {
			pdf.CellFormat(widths[i], rowHeight+1, h, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}
	writeHeader()

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(50, 50, 50)
	for i, r := range p.Rows {
		if pdf.GetY()+rowHeight > pageHeight-marginBottom {
			pdf.AddPage()
			writeHeader()
			pdf.SetFont("Arial", "", 10)
			pdf.SetTextColor(50, 50, 50)
		}
		fill := i%2 == 1
		pdf.SetFillColor(245, 247, 250)
		cells := []string{
			r.Label,
			rounded(r.Income),
			rounded(r.ScheduledPayment),
			rounded(r.Fee),
			rounded(r.OneTimeTax),
			rounded(r.RunningBalance),
		}
		for j, c := range cells {
			align := "R"
			if j == 0 {
				align = "L"
			}
			if j == len(cells)-1 && r.RunningBalance.IsNegative() {
				pdf.SetTextColor(180, 30, 30)
			}
			pdf.CellFormat(widths[j], rowHeight, c, "1", 0, align, fill, 0, "")
			pdf.SetTextColor(50, 50, 50)
		}
		pdf.Ln(-1)
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 235, 245)
	totals := []string{
		totalLabel,
		rounded(p.Totals.Income),
		rounded(p.Totals.ScheduledPayments),
		rounded(p.Totals.Fees),
		rounded(p.Totals.OneTimeTax),
		rounded(p.EndingBalance(startingBalance)),
	}
	for j, c := range totals {
		align := "R"
		if j == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[j], rowHeight, c, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render projection pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Package export renders datasets, the monthly sheet and the cashflow
// projection as tables, and writes those tables as CSV or PDF.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"bilant/internal/cashflow"
	"bilant/internal/core"
)

const totalLabel = "TOTAL"

// Table is a titled grid of cells. Header is the first row written.
type Table struct {
	Title  string
	Header []string
	Rows   [][]string
}

// Records returns the header followed by the rows.
func (t Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	if len(t.Header) > 0 {
		out = append(out, t.Header)
	}
	return append(out, t.Rows...)
}

// WriteCSV writes t with every field quoted.
func (t Table) WriteCSV(w io.Writer) error {
	return WriteCSV(w, t.Records())
}

// WriteCSV writes records comma-delimited, one per line. Every field is
// quoted and embedded quotes are doubled.
func WriteCSV(w io.Writer, records [][]string) error {
	bw := bufio.NewWriter(w)
	for i, rec := range records {
		if i > 0 {
			bw.WriteByte('\n')
		}
		for j, field := range rec {
			if j > 0 {
				bw.WriteByte(',')
			}
			bw.WriteByte('"')
			bw.WriteString(strings.ReplaceAll(field, `"`, `""`))
			bw.WriteByte('"')
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func dec(d decimal.Decimal) string {
	return d.String()
}

func rounded(d decimal.Decimal) string {
	return core.RoundUnits(d).String()
}

// DatasetTable lists rows under the schema labels followed by computed
// columns. With withTotal a TOTAL row sums the dataset total column.
func DatasetTable(ds core.Dataset, rows []core.Row, withTotal bool) Table {
	t := Table{Title: ds.Title}
	for _, f := range ds.Schema {
		t.Header = append(t.Header, f.Label)
	}
	for _, c := range ds.Computed {
		t.Header = append(t.Header, c.Label)
	}

	for _, r := range rows {
		rec := make([]string, 0, len(t.Header))
		for _, f := range ds.Schema {
			if f.Kind == core.Number {
				rec = append(rec, num(r.Num(f.Name)))
			} else {
				rec = append(rec, r.Str(f.Name))
			}
		}
		for _, c := range ds.Computed {
			rec = append(rec, dec(c.Compute(r)))
		}
		t.Rows = append(t.Rows, rec)
	}

	if !withTotal || ds.Total == nil {
		return t
	}
	// The label takes the first cell, so a total column at index 0 shifts right.
	idx := max(columnIndex(ds, ds.TotalColumn), 1)
	total := make([]string, max(len(t.Header), idx+1))
	total[0] = totalLabel
	total[idx] = dec(ds.Total(rows))
	t.Rows = append(t.Rows, total)
	return t
}

func columnIndex(ds core.Dataset, name string) int {
	for i, f := range ds.Schema {
		if f.Name == name {
			return i
		}
	}
	for i, c := range ds.Computed {
		if c.Name == name {
			return len(ds.Schema) + i
		}
	}
	return -1
}

// MonthlyTable combines the income sources and purchases of one day and
// the amount left after purchases.
func MonthlyTable(day core.Day, sources, purchases []core.Row) Table {
	sourcesTotal := core.SumField(core.ColAmount)(sources)
	purchasesTotal := core.SumField(core.ColAmount)(purchases)

	t := Table{
		Title:  "Monthly money " + string(day),
		Header: []string{"MONTHLY MONEY TOTAL", string(day), "SOURCES"},
	}
	for _, r := range sources {
		t.Rows = append(t.Rows, []string{num(r.Num(core.ColAmount)), r.Str(core.ColSource)})
	}
	t.Rows = append(t.Rows,
		[]string{totalLabel, dec(sourcesTotal)},
		[]string{""}, []string{""},
		[]string{"PURCHASE PRICE", "PURCHASES"},
	)
	for _, r := range purchases {
		t.Rows = append(t.Rows, []string{num(r.Num(core.ColAmount)), r.Str(core.ColItem)})
	}
	t.Rows = append(t.Rows,
		[]string{totalLabel, dec(purchasesTotal)},
		[]string{""}, []string{""},
		[]string{"LEFT AFTER PURCHASES"},
		[]string{totalLabel, dec(sourcesTotal.Sub(purchasesTotal))},
	)
	return t
}

// ProjectionHeader names the projection columns.
var ProjectionHeader = []string{"Month", "Total income", "Scheduled payment", "Overdraft fee", "One-time taxes", "Estimated ending balance"}

// ProjectionTable lists every projected month and a TOTAL row with the
// rounded column sums.
func ProjectionTable(p cashflow.Projection) Table {
	t := Table{Title: "Cashflow projection", Header: ProjectionHeader}
	for _, r := range p.Rows {
		t.Rows = append(t.Rows, []string{
			r.Label,
			dec(r.Income),
			dec(r.ScheduledPayment),
			dec(r.Fee),
			dec(r.OneTimeTax),
			dec(r.RunningBalance),
		})
	}
	t.Rows = append(t.Rows, []string{
		totalLabel,
		rounded(p.Totals.Income),
		rounded(p.Totals.ScheduledPayments),
		rounded(p.Totals.Fees),
		rounded(p.Totals.OneTimeTax),
		"",
	})
	return t
}

// ProjectionFilename names a projection export after its first and last
// month, e.g. Cashflow_Aug25_Aug26.csv.
func ProjectionFilename(p cashflow.Projection, ext string) string {
	if len(p.Rows) == 0 {
		return "Cashflow." + ext
	}
	tag := func(ym core.YearMonth) string {
		return fmt.Sprintf("%s%02d", ym.Month.String()[:3], ym.Year%100)
	}
	return fmt.Sprintf("Cashflow_%s_%s.%s", tag(p.Rows[0].Month), tag(p.Rows[len(p.Rows)-1].Month), ext)
}

// ConfigTable lists the tax and cashflow assumptions with the computed taxes.
func ConfigTable(cfg core.TaxConfig, tax core.TaxBreakdown) Table {
	return Table{
		Title:  "Assumptions",
		Header: []string{"Setting", "Value"},
		Rows: [][]string{
			{"Minimum wage", num(cfg.MinWage)},
			{"Gross income", num(cfg.GrossIncome)},
			{"Deductible expenses", num(cfg.DeductibleExpenses)},
			{"Monthly recurring income", num(cfg.MonthlyRecurringIncome)},
			{"Recurring income from", cfg.RecurringIncomeStart.String()},
			{"Monthly savings", num(cfg.MonthlySavings)},
			{"Extra monthly income", num(cfg.ExtraIncomeMonthly)},
			{"Extra income from", cfg.ExtraIncomeStart.String()},
			{"Overdraft fee (monthly)", num(cfg.OverdraftFeeMonthly)},
			{"Taxes due in", cfg.TaxDueMonth.String()},
			{"Net income", dec(tax.NetIncome)},
			{"CAS", rounded(tax.CAS)},
			{"CASS", rounded(tax.CASS)},
			{"Income tax", rounded(tax.IncomeTax)},
			{"Total taxes", rounded(tax.Total)},
		},
	}
}

// ScheduleTable lists installments in year order.
func ScheduleTable(s cashflow.Schedule) Table {
	t := Table{Title: "Installment schedule", Header: []string{"Due date", "Installment"}}
	for _, y := range s.Years() {
		for _, in := range s[y] {
			t.Rows = append(t.Rows, []string{in.DueDate, num(in.Amount)})
		}
	}
	return t
}

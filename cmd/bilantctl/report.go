package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"bilant/internal/core"
)

type taxCmd struct{}

func (*taxCmd) Name() string     { return "tax" }
func (*taxCmd) Synopsis() string { return "print the yearly tax breakdown" }
func (*taxCmd) Usage() string {
	return `bilantctl tax

  Computes social contributions and income tax from the stored
  configuration and prints every component with the rounded total.
`
}
func (*taxCmd) SetFlags(*flag.FlagSet) {}

func (*taxCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, _, err := openLedger(ctx)
	if err != nil {
		return fail(err)
	}
	defer app.Close()

	tax := app.Ledger.Tax(ctx)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "Net income\t%s\t\n", core.FormatAmount(tax.NetIncome))
	fmt.Fprintf(w, "6x minimum wage\t%s\t\n", core.FormatAmount(tax.Threshold6))
	fmt.Fprintf(w, "12x minimum wage\t%s\t\n", core.FormatAmount(tax.Threshold12))
	fmt.Fprintf(w, "CAS\t%s\t\n", core.FormatAmount(tax.CAS))
	fmt.Fprintf(w, "CASS\t%s\t\n", core.FormatAmount(tax.CASS))
	fmt.Fprintf(w, "Income tax\t%s\t\n", core.FormatAmount(tax.IncomeTax))
	fmt.Fprintf(w, "Total\t%s\t\n", core.FormatAmount(tax.Total))
	if err := w.Flush(); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type projectCmd struct {
	csv string
	pdf string
}

func (*projectCmd) Name() string     { return "project" }
func (*projectCmd) Synopsis() string { return "run the cashflow projection" }
func (*projectCmd) Usage() string {
	return `bilantctl project [-csv <file> | -pdf <file>]

  Projects the cash balance month by month from the primary date. Without
  flags a summary is printed. Use "-" as file to write to stdout.
`
}

func (p *projectCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.csv, "csv", "", "Write the projection as CSV to this file.")
	f.StringVar(&p.pdf, "pdf", "", "Write the projection as PDF to this file.")
}

func (p *projectCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if p.csv != "" && p.pdf != "" {
		fmt.Fprintln(os.Stderr, "-csv and -pdf are mutually exclusive")
		return subcommands.ExitUsageError
	}
	app, _, err := openLedger(ctx)
	if err != nil {
		return fail(err)
	}
	defer app.Close()

	switch {
	case p.csv != "":
		name, data, err := app.Ledger.ProjectionCSV(ctx)
		if err != nil {
			return fail(err)
		}
		if err := writeOutput(p.csv, data); err != nil {
			return fail(err)
		}
		fmt.Fprintf(os.Stderr, "%s written (%d bytes)\n", name, len(data))
		return subcommands.ExitSuccess
	case p.pdf != "":
		name, data, err := app.Ledger.ProjectionPDF(ctx)
		if err != nil {
			return fail(err)
		}
		if err := writeOutput(p.pdf, data); err != nil {
			return fail(err)
		}
		fmt.Fprintf(os.Stderr, "%s written (%d bytes)\n", name, len(data))
		return subcommands.ExitSuccess
	}

	report := app.Ledger.Projection(ctx)
	for _, warning := range report.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", warning)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Month\tIncome\tPayment\tFee\tTax\tBalance\t")
	for _, r := range report.Projection.Rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n", r.Label,
			core.FormatAmount(r.Income),
			core.FormatAmount(r.ScheduledPayment),
			core.FormatAmount(r.Fee),
			core.FormatAmount(r.OneTimeTax),
			core.FormatSigned(r.RunningBalance))
	}
	if err := w.Flush(); err != nil {
		return fail(err)
	}
	fmt.Printf("Starting balance %s, ending balance %s\n",
		core.FormatAmount(report.StartingBalance), core.FormatSigned(report.EndingBalance))
	return subcommands.ExitSuccess
}

type showCmd struct {
	dataset string
	date    string
}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "print a dataset snapshot as CSV" }
func (*showCmd) Usage() string {
	return `bilantctl show -dataset <id> [-d <YYYY-MM-DD>]

  Prints the rows of a dataset at a date, backfilled from the nearest
  earlier snapshot, followed by the total row. The date defaults to the
  stored primary date.
`
}

func (p *showCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.dataset, "dataset", "cash", "Dataset identifier.")
	f.StringVar(&p.date, "d", "", "Snapshot date (YYYY-MM-DD).")
}

func (p *showCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id, err := core.ParseDatasetID(p.dataset)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	var day core.Day
	if p.date != "" {
		if day, err = core.ParseDay(p.date); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
	}

	app, _, err := openLedger(ctx)
	if err != nil {
		return fail(err)
	}
	defer app.Close()

	table, err := app.Ledger.DatasetTable(id, day)
	if err != nil {
		return fail(err)
	}
	var buf bytes.Buffer
	if err := table.WriteCSV(&buf); err != nil {
		return fail(err)
	}
	if err := writeOutput("-", buf.Bytes()); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/subcommands"

	"bilant/internal/backup"
)

type exportCmd struct {
	dir string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export a backup bundle now" }
func (*exportCmd) Usage() string {
	return `bilantctl export [-dir <directory>]

  Writes a backup bundle of every stored key to the configured sinks and,
  with -dir, to that directory as well. Records today as the last backup.
`
}

func (p *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.dir, "dir", "", "Also write the bundle to this directory.")
}

func (p *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, _, err := openLedger(ctx)
	if err != nil {
		return fail(err)
	}
	defer app.Close()

	if p.dir != "" {
		app.Ledger.Exporter().AddSink(backup.DirSink{Dir: p.dir})
	}
	res, err := app.Ledger.ExportBackup(ctx)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("%s (%d bytes) -> %s\n", res.Filename, res.Size, strings.Join(res.Sinks, ", "))
	return subcommands.ExitSuccess
}

type importCmd struct{}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "restore a backup bundle" }
func (*importCmd) Usage() string {
	return `bilantctl import <bundle.json>

  Validates the bundle and writes every key it carries over the stored
  values. Nothing is written when the bundle is invalid.
`
}
func (*importCmd) SetFlags(*flag.FlagSet) {}

func (*importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "import takes exactly one bundle file")
		return subcommands.ExitUsageError
	}
	raw, err := os.ReadFile(f.Arg(0))
	if err != nil {
		return fail(err)
	}

	app, _, err := openLedger(ctx)
	if err != nil {
		return fail(err)
	}
	defer app.Close()

	keys, err := app.Ledger.ImportBackup(ctx, raw)
	if err != nil {
		return fail(err)
	}
	sort.Strings(keys)
	fmt.Printf("Imported %d keys, date is now %s\n", len(keys), app.Ledger.Date())
	for _, k := range keys {
		fmt.Println("  " + k)
	}
	return subcommands.ExitSuccess
}

type resetCmd struct {
	yes bool
}

func (*resetCmd) Name() string     { return "reset" }
func (*resetCmd) Synopsis() string { return "restore the seed defaults" }
func (*resetCmd) Usage() string {
	return `bilantctl reset -yes

  Rewrites today's snapshot of every dataset, the tax configuration, the
  installment schedule and the projection settings from the seed defaults.
  Older snapshots are kept.
`
}

func (p *resetCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&p.yes, "yes", false, "Confirm the reset.")
}

func (p *resetCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !p.yes {
		fmt.Fprintln(os.Stderr, "reset overwrites today's data; pass -yes to confirm")
		return subcommands.ExitUsageError
	}
	app, _, err := openLedger(ctx)
	if err != nil {
		return fail(err)
	}
	defer app.Close()

	if err := app.Ledger.ResetToDefaults(ctx); err != nil {
		return fail(err)
	}
	fmt.Printf("Reset to defaults at %s\n", app.Ledger.Date())
	return subcommands.ExitSuccess
}

type pushCmd struct{}

func (*pushCmd) Name() string     { return "push" }
func (*pushCmd) Synopsis() string { return "push every table to Google Sheets" }
func (*pushCmd) Usage() string {
	return `bilantctl push

  Writes the datasets, the monthly sheet, the projection and the
  assumptions to their tabs in GOOGLE_SPREADSHEET_ID.
`
}
func (*pushCmd) SetFlags(*flag.FlagSet) {}

func (*pushCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, cfg, err := openLedger(ctx)
	if err != nil {
		return fail(err)
	}
	defer app.Close()

	ranges, err := app.Ledger.PushToSheets(ctx)
	if err != nil {
		return fail(err)
	}
	tabs := make([]string, 0, len(ranges))
	for tab := range ranges {
		tabs = append(tabs, tab)
	}
	sort.Strings(tabs)
	fmt.Printf("Pushed %d tabs to %s\n", len(tabs), cfg.GoogleSpreadsheetID)
	for _, tab := range tabs {
		fmt.Printf("  %s\t%s\n", tab, ranges[tab])
	}
	return subcommands.ExitSuccess
}

package services

import (
	"bytes"
	"context"
	"fmt"

	"bilant/internal/backup"
	"bilant/internal/core"
	"bilant/internal/export"
	"bilant/internal/log"
)

// ExportBackup writes a bundle to every sink right away, regardless of the
// once-per-day guard.
func (l *Ledger) ExportBackup(ctx context.Context) (backup.Result, error) {
	return l.scheduler.ExportNow(ctx)
}

// LastBackup reports the day of the last scheduled export.
func (l *Ledger) LastBackup(ctx context.Context) (core.Day, bool) {
	return l.scheduler.LastBackup(ctx)
}

// ImportBackup writes every key of a bundle and reloads all stores from the
// durable state. Invalid bundles are rejected before any write.
func (l *Ledger) ImportBackup(ctx context.Context, raw []byte) ([]string, error) {
	keys, err := l.exporter.Import(ctx, raw)
	if err != nil {
		return nil, err
	}
	primary := l.cursor.Get()
	for _, id := range core.DatasetIDs {
		l.stores[id].Reload(ctx)
		l.stores[id].EnsureDate(primary)
	}
	l.syncTaxDebt(ctx)
	l.logger.InfoContext(ctx, "Backup imported", "keys", len(keys), log.FieldOperation, log.OpImport)
	return keys, nil
}

// ResetToDefaults moves the primary date to today, replaces today's snapshot
// of every dataset with its template and restores the seeded configuration,
// installment schedule and projection settings. Other days are kept.
func (l *Ledger) ResetToDefaults(ctx context.Context) error {
	today := l.cursor.Today()
	if _, err := l.SetDate(ctx, today); err != nil {
		return err
	}
	for _, id := range core.DatasetIDs {
		if err := l.stores[id].ResetDay(ctx, today, nil); err != nil {
			return fmt.Errorf("reset %s: %w", id, err)
		}
	}

	l.mu.Lock()
	l.writeSlot(ctx, core.KeyConfig, l.defaults.Config)
	l.writeSlot(ctx, core.KeyInstallments, l.defaults.Installments.Clone())
	l.writeSlot(ctx, core.KeyProjectionSettings, l.defaults.Projection)
	l.mu.Unlock()

	l.syncTaxDebt(ctx)
	l.logger.InfoContext(ctx, "Reset to defaults", log.FieldDay, today, log.FieldOperation, log.OpReset)
	return nil
}

// DatasetTable renders the snapshot of id at day with its total row.
func (l *Ledger) DatasetTable(id core.DatasetID, day core.Day) (export.Table, error) {
	rows, err := l.Rows(id, day)
	if err != nil {
		return export.Table{}, err
	}
	return export.DatasetTable(l.stores[id].Dataset(), rows, true), nil
}

// MonthlyTable renders the monthly sheet at the primary date.
func (l *Ledger) MonthlyTable() export.Table {
	day := l.cursor.Get()
	return export.MonthlyTable(day,
		l.stores[core.MonthlySources].GetRows(day),
		l.stores[core.MonthlyPurchases].GetRows(day))
}

// ProjectionCSV returns the projection table as CSV and its file name.
func (l *Ledger) ProjectionCSV(ctx context.Context) (string, []byte, error) {
	report := l.Projection(ctx)
	var buf bytes.Buffer
	if err := export.ProjectionTable(report.Projection).WriteCSV(&buf); err != nil {
		return "", nil, err
	}
	return export.ProjectionFilename(report.Projection, "csv"), buf.Bytes(), nil
}

// ProjectionPDF returns the projection as a PDF document and its file name.
func (l *Ledger) ProjectionPDF(ctx context.Context) (string, []byte, error) {
	report := l.Projection(ctx)
	data, err := export.ProjectionPDF(report.Projection, report.StartingBalance, l.clock())
	if err != nil {
		return "", nil, err
	}
	return export.ProjectionFilename(report.Projection, "pdf"), data, nil
}

// PushToSheets writes every dataset, the monthly sheet, the projection and
// the assumptions into their own tabs. It returns the updated ranges by tab.
func (l *Ledger) PushToSheets(ctx context.Context) (map[string]string, error) {
	if l.sheets == nil {
		return nil, ErrSheetsDisabled
	}

	type tab struct {
		name  string
		table export.Table
	}
	var tabs []tab
	for _, id := range core.DatasetIDs {
		if id == core.MonthlySources || id == core.MonthlyPurchases {
			continue
		}
		t, err := l.DatasetTable(id, "")
		if err != nil {
			return nil, err
		}
		tabs = append(tabs, tab{l.stores[id].Dataset().Title, t})
	}
	report := l.Projection(ctx)
	cfg := l.Config(ctx)
	tabs = append(tabs,
		tab{"Monthly", l.MonthlyTable()},
		tab{"Projection", export.ProjectionTable(report.Projection)},
		tab{"Assumptions", export.ConfigTable(cfg, core.ComputeTax(cfg))},
		tab{"Installments", export.ScheduleTable(l.Installments(ctx))},
	)

	ranges := make(map[string]string, len(tabs))
	for _, t := range tabs {
		rng, err := l.sheets.WriteTable(ctx, t.name, t.table)
		if err != nil {
			return ranges, fmt.Errorf("push %s: %w", t.name, err)
		}
		ranges[t.name] = rng
	}
	l.logger.InfoContext(ctx, "Pushed tables to sheets", "tabs", len(ranges), log.FieldOperation, log.OpExport)
	return ranges, nil
}

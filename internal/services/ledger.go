package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"bilant/internal/backup"
	"bilant/internal/compare"
	"bilant/internal/core"
	"bilant/internal/cursor"
	"bilant/internal/log"
	"bilant/internal/seed"
	"bilant/internal/sheets"
	"bilant/internal/snapshot"
	"bilant/internal/storage"
)

var ErrSheetsDisabled = errors.New("google sheets push is not configured")

// errTaxDebtUnchanged aborts a debts update that would not change the tax row.
var errTaxDebtUnchanged = errors.New("tax debt row unchanged")

// Options tune a Ledger. The zero value uses wall time, a discard logger
// and no backup sinks.
type Options struct {
	Clock       core.Clock
	Logger      *log.Logger
	Sinks       []backup.Sink
	BackupDelay time.Duration
	// AfterFunc replaces time.AfterFunc for the deferred backup.
	AfterFunc func(time.Duration, func())
	Sheets    sheets.TableWriter
}

// Ledger ties the snapshot stores, the date cursor, compare selections,
// configuration slots and backups together for the HTTP and CLI surfaces.
type Ledger struct {
	kv       storage.Store
	defaults seed.Defaults
	clock    core.Clock
	logger   *log.Logger
	events   *log.StructuredLogger

	cursor     *cursor.Cursor
	stores     map[core.DatasetID]*snapshot.Store
	editors    map[core.DatasetID]*snapshot.Editor
	selections map[core.DatasetID]*compare.Selection
	balance    compare.Balance

	exporter  *backup.Exporter
	scheduler *backup.Scheduler
	sheets    sheets.TableWriter

	// mu serializes read-modify-write sequences on configuration slots.
	mu sync.Mutex
}

func NewLedger(ctx context.Context, kv storage.Store, defaults seed.Defaults, opts Options) *Ledger {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	l := &Ledger{
		kv:         kv,
		defaults:   defaults,
		clock:      clock,
		logger:     logger.WithComponent(log.ComponentApp),
		events:     log.NewStructuredLogger(logger),
		stores:     make(map[core.DatasetID]*snapshot.Store, len(core.DatasetIDs)),
		editors:    make(map[core.DatasetID]*snapshot.Editor, len(core.DatasetIDs)),
		selections: make(map[core.DatasetID]*compare.Selection, len(core.DatasetIDs)),
		sheets:     opts.Sheets,
	}

	l.exporter = backup.NewExporter(kv, clock, logger, opts.Sinks...)
	schedOpts := []backup.Option{backup.WithClock(clock)}
	if opts.BackupDelay > 0 {
		schedOpts = append(schedOpts, backup.WithDelay(opts.BackupDelay))
	}
	if opts.AfterFunc != nil {
		schedOpts = append(schedOpts, backup.WithAfterFunc(opts.AfterFunc))
	}
	l.scheduler = backup.NewScheduler(l.exporter, kv, logger, schedOpts...)

	l.cursor = cursor.New(clock)
	for _, id := range core.DatasetIDs {
		ds, err := defaults.Dataset(id)
		if err != nil {
			ds = core.Schemas()[id]
		}
		store := snapshot.NewStore(ctx, ds, kv, l.scheduler, logger)
		l.stores[id] = store
		l.editors[id] = snapshot.NewEditor(store)
		l.cursor.Register(store)
	}

	primary := l.cursor.Get()
	for _, id := range core.DatasetIDs {
		l.stores[id].EnsureDate(primary)
	}
	for _, id := range []core.DatasetID{core.Debts, core.Cash, core.Receivables, core.Portfolio} {
		l.selections[id] = compare.NewSelection(primary, l.stores[id])
	}
	monthly := compare.NewSelection(primary, l.stores[core.MonthlySources], l.stores[core.MonthlyPurchases])
	l.selections[core.MonthlySources] = monthly
	l.selections[core.MonthlyPurchases] = monthly

	l.balance = compare.Balance{
		Cash:        l.stores[core.Cash],
		Receivables: l.stores[core.Receivables],
		Portfolio:   l.stores[core.Portfolio],
		Debts:       l.stores[core.Debts],
	}

	l.syncTaxDebt(ctx)
	return l
}

// Exporter exposes the backup exporter so callers can attach sinks.
func (l *Ledger) Exporter() *backup.Exporter { return l.exporter }

func (l *Ledger) store(id core.DatasetID) (*snapshot.Store, error) {
	s, ok := l.stores[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownDataset, id)
	}
	return s, nil
}

// Datasets returns every dataset descriptor in display order.
func (l *Ledger) Datasets() []core.Dataset {
	out := make([]core.Dataset, 0, len(core.DatasetIDs))
	for _, id := range core.DatasetIDs {
		out = append(out, l.stores[id].Dataset())
	}
	return out
}

func (l *Ledger) Dataset(id core.DatasetID) (core.Dataset, error) {
	s, err := l.store(id)
	if err != nil {
		return core.Dataset{}, err
	}
	return s.Dataset(), nil
}

// Date returns the primary date.
func (l *Ledger) Date() core.Day { return l.cursor.Get() }

func (l *Ledger) Today() core.Day { return l.cursor.Today() }

// SetDate moves the primary date. Every store gains a snapshot at day and
// compare dates that now collide with it step back one day.
func (l *Ledger) SetDate(ctx context.Context, day core.Day) (core.Day, error) {
	if err := l.cursor.Set(day); err != nil {
		return "", err
	}
	day = l.cursor.Get()
	seen := map[*compare.Selection]bool{}
	for _, id := range core.DatasetIDs {
		sel := l.selections[id]
		if sel == nil || seen[sel] {
			continue
		}
		seen[sel] = true
		sel.Follow(day)
	}
	l.syncTaxDebt(ctx)
	return day, nil
}

func (l *Ledger) resolveDay(day core.Day) (core.Day, error) {
	if day == "" {
		return l.cursor.Get(), nil
	}
	return core.ParseDay(string(day))
}

// Rows returns the snapshot of id at day, or at the primary date when day
// is empty.
func (l *Ledger) Rows(id core.DatasetID, day core.Day) ([]core.Row, error) {
	s, err := l.store(id)
	if err != nil {
		return nil, err
	}
	d, err := l.resolveDay(day)
	if err != nil {
		return nil, err
	}
	return s.GetRows(d), nil
}

// SetRows replaces the snapshot of id at day (primary date when empty).
func (l *Ledger) SetRows(ctx context.Context, id core.DatasetID, day core.Day, rows []core.Row) ([]core.Row, error) {
	s, err := l.store(id)
	if err != nil {
		return nil, err
	}
	d, err := l.resolveDay(day)
	if err != nil {
		return nil, err
	}
	return s.Update(ctx, d, func([]core.Row) ([]core.Row, error) { return rows, nil })
}

func (l *Ledger) editor(id core.DatasetID) (*snapshot.Editor, error) {
	e, ok := l.editors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownDataset, id)
	}
	return e, nil
}

// AddRow appends a default row at the primary date.
func (l *Ledger) AddRow(ctx context.Context, id core.DatasetID) ([]core.Row, error) {
	e, err := l.editor(id)
	if err != nil {
		return nil, err
	}
	return e.AddRow(ctx, l.cursor.Get())
}

// UpdateCell sets one field of one row at the primary date.
func (l *Ledger) UpdateCell(ctx context.Context, id core.DatasetID, index int, field string, value any) ([]core.Row, error) {
	e, err := l.editor(id)
	if err != nil {
		return nil, err
	}
	return e.UpdateCell(ctx, l.cursor.Get(), index, field, value)
}

// DeleteRow removes a row at the primary date; Undo restores it.
func (l *Ledger) DeleteRow(ctx context.Context, id core.DatasetID, index int) ([]core.Row, error) {
	e, err := l.editor(id)
	if err != nil {
		return nil, err
	}
	return e.DeleteRow(ctx, l.cursor.Get(), index)
}

func (l *Ledger) Undo(ctx context.Context, id core.DatasetID) ([]core.Row, error) {
	e, err := l.editor(id)
	if err != nil {
		return nil, err
	}
	return e.Undo(ctx, l.cursor.Get())
}

func (l *Ledger) CanUndo(id core.DatasetID) bool {
	e, err := l.editor(id)
	return err == nil && e.CanUndo()
}

// Totals sums every numeric and computed column at day.
func (l *Ledger) Totals(id core.DatasetID, day core.Day) (map[string]decimal.Decimal, error) {
	e, err := l.editor(id)
	if err != nil {
		return nil, err
	}
	d, err := l.resolveDay(day)
	if err != nil {
		return nil, err
	}
	return e.Totals(d), nil
}

func (l *Ledger) selection(id core.DatasetID) (*compare.Selection, error) {
	sel, ok := l.selections[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownDataset, id)
	}
	return sel, nil
}

func (l *Ledger) CompareDate(id core.DatasetID) (core.Day, error) {
	sel, err := l.selection(id)
	if err != nil {
		return "", err
	}
	return sel.Get(), nil
}

// SetCompareDate stores the compare date of id. A request equal to the
// primary date becomes the day before it.
func (l *Ledger) SetCompareDate(id core.DatasetID, day core.Day) (core.Day, error) {
	sel, err := l.selection(id)
	if err != nil {
		return "", err
	}
	d, err := core.ParseDay(string(day))
	if err != nil {
		return "", err
	}
	return sel.Set(l.cursor.Get(), d), nil
}

// Compare totals id at the primary and compare dates.
func (l *Ledger) Compare(id core.DatasetID) (compare.Result, error) {
	s, err := l.store(id)
	if err != nil {
		return compare.Result{}, err
	}
	sel, err := l.selection(id)
	if err != nil {
		return compare.Result{}, err
	}
	return compare.Compare(s, s.Dataset().Total, l.cursor.Get(), sel.Get()), nil
}

// Balance returns the net balance sheet at day (primary date when empty).
func (l *Ledger) Balance(day core.Day) (compare.Sheet, error) {
	d, err := l.resolveDay(day)
	if err != nil {
		return compare.Sheet{}, err
	}
	return l.balance.At(d), nil
}

// BalanceSeries returns the net balance for the days trailing the primary
// date, oldest first.
func (l *Ledger) BalanceSeries(days int) []compare.Point {
	return l.balance.Series(l.cursor.Get(), days)
}

// MonthlySummary compares income sources, purchases and their difference
// between the primary date and the shared monthly compare date.
type MonthlySummary struct {
	Day        core.Day       `json:"day"`
	CompareDay core.Day       `json:"compareDay"`
	Sources    compare.Result `json:"sources"`
	Purchases  compare.Result `json:"purchases"`
	Savings    compare.Result `json:"savings"`
}

func (l *Ledger) Monthly() MonthlySummary {
	primary := l.cursor.Get()
	cmpDay := l.selections[core.MonthlySources].Get()
	sources := l.stores[core.MonthlySources]
	purchases := l.stores[core.MonthlyPurchases]

	savings := func(d core.Day) decimal.Decimal {
		return sources.Total(d).Sub(purchases.Total(d))
	}
	return MonthlySummary{
		Day:        primary,
		CompareDay: cmpDay,
		Sources:    compare.CompareFunc(sources.Total, primary, cmpDay),
		Purchases:  compare.CompareFunc(purchases.Total, primary, cmpDay),
		Savings:    compare.CompareFunc(savings, primary, cmpDay),
	}
}

// ResetMonthlyDay replaces the monthly sources and purchases at the primary
// date with their template rows, every amount zeroed.
func (l *Ledger) ResetMonthlyDay(ctx context.Context) error {
	day := l.cursor.Get()
	for _, id := range []core.DatasetID{core.MonthlySources, core.MonthlyPurchases} {
		s := l.stores[id]
		rows := s.Dataset().Schema.CloneRows(s.Dataset().Template)
		for _, r := range rows {
			r[core.ColAmount] = 0.0
		}
		if err := s.ResetDay(ctx, day, rows); err != nil {
			return fmt.Errorf("reset %s: %w", id, err)
		}
	}
	l.logger.InfoContext(ctx, "Monthly day reset", log.FieldDay, day, log.FieldOperation, log.OpReset)
	return nil
}

// syncTaxDebt keeps the tax row of today's debts equal to the computed tax.
// Past dates are never rewritten.
func (l *Ledger) syncTaxDebt(ctx context.Context) {
	prefix := l.defaults.TaxDebtPrefix
	if prefix == "" || !l.cursor.IsToday() {
		return
	}
	day := l.cursor.Get()
	total := core.ComputeTax(l.Config(ctx)).Total
	_, err := l.stores[core.Debts].Update(ctx, day, func(rows []core.Row) ([]core.Row, error) {
		if !core.SetTaxDebt(rows, prefix, total) {
			return nil, errTaxDebtUnchanged
		}
		return rows, nil
	})
	if err != nil && !errors.Is(err, errTaxDebtUnchanged) {
		l.logger.ErrorContext(ctx, "Failed to update tax debt row", log.FieldError, err)
	}
}

// readSlot decodes a JSON slot into v. A missing slot leaves v untouched;
// corrupt content is logged and also leaves v untouched.
func (l *Ledger) readSlot(ctx context.Context, key string, v any) bool {
	raw, ok, err := l.kv.Get(ctx, key)
	if err != nil {
		l.logger.WarnContext(ctx, "Failed to read slot", log.FieldKey, key, log.FieldError, err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		l.logger.WarnContext(ctx, "Ignoring corrupt slot", log.FieldKey, key, log.FieldError, err)
		return false
	}
	return true
}

// writeSlot persists v best-effort; failures are logged.
func (l *Ledger) writeSlot(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		l.logger.ErrorContext(ctx, "Failed to encode slot", log.FieldKey, key, log.FieldError, err)
		return
	}
	if err := l.kv.Put(ctx, key, raw); err != nil {
		l.events.LogError(ctx, "Failed to persist slot", err, log.ComponentStorage, log.OpPersist,
			log.LogFields{log.FieldKey: key})
	}
}

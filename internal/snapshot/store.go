// Package snapshot keeps one dataset's rows versioned by calendar day.
//
// A Store holds the SnapshotMap of a dataset: day -> rows. Reading a day that
// has never been written synthesizes it from the latest earlier day, or from
// the dataset template when no earlier day exists, and keeps the result so
// later edits at that day start from it.
package snapshot

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"bilant/internal/core"
	"bilant/internal/log"
	"bilant/internal/storage"
)

// MutationObserver is told about every SetRows.
type MutationObserver interface {
	OnMutation(ctx context.Context, dataset core.DatasetID)
}

// ObserverFunc adapts a function to MutationObserver.
type ObserverFunc func(ctx context.Context, dataset core.DatasetID)

func (f ObserverFunc) OnMutation(ctx context.Context, dataset core.DatasetID) { f(ctx, dataset) }

// Store is the SnapshotMap of a single dataset.
type Store struct {
	ds       core.Dataset
	kv       storage.Store
	observer MutationObserver
	logger   *log.Logger
	events   *log.StructuredLogger

	mu    sync.Mutex
	snaps map[core.Day][]core.Row
	days  []core.Day // sorted ascending
}

// NewStore loads the dataset's persisted map. Missing or unreadable state
// yields an empty map; the template then serves every first read.
func NewStore(ctx context.Context, ds core.Dataset, kv storage.Store, observer MutationObserver, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Store{
		ds:       ds,
		kv:       kv,
		observer: observer,
		logger:   logger.WithComponent(log.ComponentSnapshot).With(log.FieldDataset, string(ds.ID)),
		events:   log.NewStructuredLogger(logger),
	}
	s.snaps, s.days = s.load(ctx)
	return s
}

// Dataset returns the dataset description this store serves.
func (s *Store) Dataset() core.Dataset { return s.ds }

// ID returns the dataset ID, which is also the storage key.
func (s *Store) ID() core.DatasetID { return s.ds.ID }

func (s *Store) load(ctx context.Context) (map[core.Day][]core.Row, []core.Day) {
	snaps := make(map[core.Day][]core.Row)

	raw, ok, err := s.kv.Get(ctx, string(s.ds.ID))
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read snapshot map, starting empty", log.FieldError, err)
		return snaps, nil
	}
	if !ok {
		return snaps, nil
	}

	var stored map[string][]core.Row
	if err := json.Unmarshal(raw, &stored); err != nil {
		s.logger.WarnContext(ctx, "Corrupt snapshot map, starting empty", log.FieldError, err)
		return snaps, nil
	}

	days := make([]core.Day, 0, len(stored))
	for key, rows := range stored {
		day, err := core.ParseDay(key)
		if err != nil {
			s.logger.WarnContext(ctx, "Dropping snapshot with invalid date key", log.FieldDay, key)
			continue
		}
		snaps[day] = s.ds.Schema.CloneRows(rows)
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return snaps, days
}

// GetRows returns a copy of the rows at day. An unseen day is backfilled and
// the backfilled snapshot is kept in memory. The result is never nil.
func (s *Store) GetRows(day core.Day) []core.Row {
	day = canonical(day)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ds.Schema.CloneRows(s.ensureLocked(day))
}

// Peek returns what GetRows would return without recording a backfill.
func (s *Store) Peek(day core.Day) []core.Row {
	day = canonical(day)
	s.mu.Lock()
	defer s.mu.Unlock()
	if rows, ok := s.snaps[day]; ok {
		return s.ds.Schema.CloneRows(rows)
	}
	return s.ds.Schema.CloneRows(s.sourceLocked(day))
}

// EnsureDate makes sure a snapshot exists in memory at day.
func (s *Store) EnsureDate(day core.Day) {
	day = canonical(day)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(day)
}

// Total aggregates the rows at day without recording a backfill.
func (s *Store) Total(day core.Day) decimal.Decimal {
	return s.ds.Total(s.Peek(day))
}

func (s *Store) ensureLocked(day core.Day) []core.Row {
	if rows, ok := s.snaps[day]; ok {
		return rows
	}
	rows := s.ds.Schema.CloneRows(s.sourceLocked(day))
	if day.Valid() {
		s.putLocked(day, rows)
		s.logger.Debug("Backfilled snapshot", log.FieldDay, string(day), log.FieldOperation, log.OpBackfill)
	}
	return rows
}

// sourceLocked picks the snapshot of the greatest day <= day, or the template.
func (s *Store) sourceLocked(day core.Day) []core.Row {
	i := sort.Search(len(s.days), func(i int) bool { return s.days[i] > day })
	if i == 0 {
		return s.ds.Template
	}
	return s.snaps[s.days[i-1]]
}

func (s *Store) putLocked(day core.Day, rows []core.Row) {
	if _, ok := s.snaps[day]; !ok {
		i := sort.Search(len(s.days), func(i int) bool { return s.days[i] >= day })
		s.days = append(s.days, "")
		copy(s.days[i+1:], s.days[i:])
		s.days[i] = day
	}
	s.snaps[day] = rows
}

// SetRows replaces the snapshot at day, persists the whole map and notifies
// the observer. A persistence failure is logged; memory stays authoritative.
func (s *Store) SetRows(ctx context.Context, day core.Day, rows []core.Row) error {
	_, err := s.Update(ctx, day, func([]core.Row) ([]core.Row, error) { return rows, nil })
	return err
}

// Update runs fn on a copy of the rows at day and stores what it returns.
// Reading, applying and persisting happen under one lock, so concurrent
// updates of a store never lose each other's changes. An error from fn
// leaves the snapshot unchanged. The observer runs after the lock is
// released.
func (s *Store) Update(ctx context.Context, day core.Day, fn func([]core.Row) ([]core.Row, error)) ([]core.Row, error) {
	d, err := core.ParseDay(string(day))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	next, err := fn(s.ds.Schema.CloneRows(s.ensureLocked(d)))
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.putLocked(d, s.ds.Schema.CloneRows(next))
	saved := s.persistLocked(ctx)
	out := s.ds.Schema.CloneRows(s.snaps[d])
	s.mu.Unlock()

	if saved {
		s.events.LogSnapshotSaved(ctx, string(s.ds.ID), string(d), len(out))
	}
	if s.observer != nil {
		s.observer.OnMutation(ctx, s.ds.ID)
	}
	return out, nil
}

// ResetDay replaces the snapshot at day with rows, or with the template when
// rows is nil. Other days are left untouched.
func (s *Store) ResetDay(ctx context.Context, day core.Day, rows []core.Row) error {
	if rows == nil {
		rows = s.ds.Template
	}
	return s.SetRows(ctx, day, rows)
}

// persistLocked writes the whole map and reports whether it was stored.
func (s *Store) persistLocked(ctx context.Context) bool {
	data, err := json.Marshal(s.snaps)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to encode snapshot map", log.FieldError, err, log.FieldOperation, log.OpPersist)
		return false
	}
	if err := s.kv.Put(ctx, string(s.ds.ID), data); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist snapshot map", log.FieldError, err, log.FieldOperation, log.OpPersist)
		return false
	}
	return true
}

// All returns a deep copy of the whole SnapshotMap.
func (s *Store) All() map[core.Day][]core.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[core.Day][]core.Row, len(s.snaps))
	for day, rows := range s.snaps {
		out[day] = s.ds.Schema.CloneRows(rows)
	}
	return out
}

// Dates returns every day with a snapshot, oldest first.
func (s *Store) Dates() []core.Day {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Day(nil), s.days...)
}

// Reload discards in-memory state and re-reads the persisted map.
func (s *Store) Reload(ctx context.Context) {
	snaps, days := s.load(ctx)
	s.mu.Lock()
	s.snaps, s.days = snaps, days
	s.mu.Unlock()
	s.logger.InfoContext(ctx, "Snapshot map reloaded", "days", len(days))
}

// canonical returns the parsed form of day, or day unchanged when it does
// not parse. Map keys are always canonical.
func canonical(day core.Day) core.Day {
	if d, err := core.ParseDay(string(day)); err == nil {
		return d
	}
	return day
}

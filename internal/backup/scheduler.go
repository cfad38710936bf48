package backup

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"bilant/internal/core"
	"bilant/internal/log"
	"bilant/internal/storage"
)

const defaultDelay = time.Second

// Scheduler exports a backup after the first mutation of each calendar day.
// The guard is the lastBackupDate slot, so it survives restarts, backed by
// an in-memory copy that holds when the slot cannot be written.
//
// Within one process the guard is exclusive. Two processes sharing a store
// may both see a stale slot; the second export is harmless and is not
// prevented.
type Scheduler struct {
	exporter *Exporter
	kv       storage.Store
	clock    core.Clock
	delay    time.Duration
	after    func(time.Duration, func())
	logger   *log.Logger

	mu   sync.Mutex
	last core.Day
}

type Option func(*Scheduler)

// WithDelay sets how long after the mutation the export runs.
func WithDelay(d time.Duration) Option {
	return func(s *Scheduler) { s.delay = d }
}

// WithClock overrides time.Now.
func WithClock(c core.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithAfterFunc replaces the timer used to defer exports. Tests pass a
// function that runs f synchronously.
func WithAfterFunc(f func(time.Duration, func())) Option {
	return func(s *Scheduler) { s.after = f }
}

func NewScheduler(exporter *Exporter, kv storage.Store, logger *log.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Scheduler{
		exporter: exporter,
		kv:       kv,
		clock:    time.Now,
		delay:    defaultDelay,
		after:    func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		logger:   logger.WithComponent(log.ComponentBackup),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LastBackup returns the day of the last automatic export, if any. The
// persisted slot wins; the in-memory day covers a failed write.
func (s *Scheduler) LastBackup(ctx context.Context) (core.Day, bool) {
	if day, ok := s.persisted(ctx); ok {
		return day, true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.last != ""
}

func (s *Scheduler) persisted(ctx context.Context) (core.Day, bool) {
	raw, ok, err := s.kv.Get(ctx, core.KeyLastBackupDate)
	if err != nil || !ok {
		return "", false
	}
	var day core.Day
	if err := json.Unmarshal(raw, &day); err != nil || !day.Valid() {
		return "", false
	}
	return day, true
}

// OnMutation records today as backed up and schedules an export, unless
// that already happened today. A failed write of the marker is logged and
// the export still runs.
func (s *Scheduler) OnMutation(ctx context.Context, dataset core.DatasetID) {
	today := core.Today(s.clock)

	s.mu.Lock()
	if s.last == today {
		s.mu.Unlock()
		return
	}
	if day, ok := s.persisted(ctx); ok && day == today {
		s.last = today
		s.mu.Unlock()
		return
	}
	s.last = today
	s.mu.Unlock()

	raw, _ := json.Marshal(today)
	if err := s.kv.Put(ctx, core.KeyLastBackupDate, raw); err != nil {
		s.logger.ErrorContext(ctx, "Failed to record backup date", log.FieldError, err, log.FieldDay, today)
	}

	s.logger.DebugContext(ctx, "Scheduling daily backup", log.FieldDataset, dataset, log.FieldDay, today)
	bg := context.WithoutCancel(ctx)
	s.after(s.delay, func() {
		if _, err := s.exporter.Export(bg); err != nil {
			s.logger.ErrorContext(bg, "Daily backup failed", log.FieldError, err)
		}
	})
}

// ExportNow runs an export regardless of the daily guard.
func (s *Scheduler) ExportNow(ctx context.Context) (Result, error) {
	return s.exporter.Export(ctx)
}

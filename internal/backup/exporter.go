package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"bilant/internal/core"
	"bilant/internal/log"
	"bilant/internal/storage"
)

// Sink receives encoded bundles.
type Sink interface {
	Name() string
	Put(ctx context.Context, filename string, data []byte) error
}

// Result describes one export.
type Result struct {
	Filename string   `json:"filename"`
	Size     int      `json:"size"`
	Sinks    []string `json:"sinks"`
	Data     []byte   `json:"-"`
}

// Exporter builds bundles from a slot store and fans them out to sinks.
type Exporter struct {
	kv     storage.Store
	clock  core.Clock
	logger *log.Logger

	mu    sync.RWMutex
	sinks []Sink
}

func NewExporter(kv storage.Store, clock core.Clock, logger *log.Logger, sinks ...Sink) *Exporter {
	if logger == nil {
		logger = log.Discard()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Exporter{
		kv:     kv,
		clock:  clock,
		logger: logger.WithComponent(log.ComponentBackup),
		sinks:  sinks,
	}
}

// AddSink registers another destination for future exports.
func (e *Exporter) AddSink(s Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, s)
}

// Snapshot reads every persisted key into a bundle. Values that are not
// valid JSON are skipped with a warning.
func (e *Exporter) Snapshot(ctx context.Context) (Bundle, error) {
	keys, err := e.kv.Keys(ctx)
	if err != nil {
		return Bundle{}, fmt.Errorf("list keys: %w", err)
	}

	b := Bundle{
		Timestamp: e.clock().UTC(),
		Version:   Version,
		Data:      make(map[string]json.RawMessage, len(keys)),
	}

	for _, key := range keys {
		value, ok, err := e.kv.Get(ctx, key)
		if err != nil {
			return Bundle{}, fmt.Errorf("read %s: %w", key, err)
		}
		if !ok {
			continue
		}
		if !json.Valid(value) {
			e.logger.WarnContext(ctx, "Skipping slot with invalid JSON", log.FieldKey, key)
			continue
		}
		b.Data[key] = value
	}
	return b, nil
}

// Export snapshots the store and writes the bundle to every sink
// concurrently. Every sink is attempted; the first failure is returned.
func (e *Exporter) Export(ctx context.Context) (Result, error) {
	b, err := e.Snapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	data, err := b.Encode()
	if err != nil {
		return Result{}, err
	}

	res := Result{Filename: Filename(b.Timestamp), Size: len(data), Data: data}

	e.mu.RLock()
	sinks := append([]Sink(nil), e.sinks...)
	e.mu.RUnlock()

	var g errgroup.Group
	var mu sync.Mutex
	for _, s := range sinks {
		g.Go(func() error {
			if err := s.Put(ctx, res.Filename, data); err != nil {
				e.logger.ErrorContext(ctx, "Backup sink failed",
					log.FieldSink, s.Name(), log.FieldError, err, log.FieldOperation, log.OpExport)
				return fmt.Errorf("sink %s: %w", s.Name(), err)
			}
			mu.Lock()
			res.Sinks = append(res.Sinks, s.Name())
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()

	e.logger.InfoContext(ctx, "Backup exported",
		"filename", res.Filename, log.FieldBytes, res.Size, "sinks", len(res.Sinks), log.FieldOperation, log.OpExport)
	return res, err
}

// Import validates raw and writes every non-null key in one batch. A bundle
// that fails validation writes nothing. It returns the keys written.
func (e *Exporter) Import(ctx context.Context, raw []byte) ([]string, error) {
	b, err := Decode(raw)
	if err != nil {
		return nil, err
	}

	entries := make(map[string][]byte, len(b.Data))
	keys := make([]string, 0, len(b.Data))
	for key, value := range b.Data {
		entries[key] = value
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if err := e.kv.PutAll(ctx, entries); err != nil {
		return nil, fmt.Errorf("write imported keys: %w", err)
	}

	e.logger.InfoContext(ctx, "Backup imported", "keys", len(keys), "version", b.Version, log.FieldOperation, log.OpImport)
	return keys, nil
}

// DirSink writes bundles as files into a directory.
type DirSink struct {
	Dir string
}

func (d DirSink) Name() string { return "dir:" + d.Dir }

func (d DirSink) Put(_ context.Context, filename string, data []byte) error {
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	path := filepath.Join(d.Dir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write backup file: %w", err)
	}
	return nil
}

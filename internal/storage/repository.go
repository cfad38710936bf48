package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is a Store backed by the slots table of a SQLite file.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema ready", "path", dbPath, "version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	slot, err := r.queries.GetSlot(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get slot %s: %w", key, err)
	}
	return slot.Value, true, nil
}

func (r *SQLiteRepository) Put(ctx context.Context, key string, value []byte) error {
	if err := r.queries.UpsertSlot(ctx, UpsertSlotParams{Key: key, Value: value}); err != nil {
		return fmt.Errorf("put slot %s: %w", key, err)
	}
	slog.DebugContext(ctx, "Slot saved to SQLite", "key", key, "bytes", len(value))
	return nil
}

// PutAll writes every entry in one transaction.
func (r *SQLiteRepository) PutAll(ctx context.Context, entries map[string][]byte) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)
	for key, value := range entries {
		if err := qtx.UpsertSlot(ctx, UpsertSlotParams{Key: key, Value: value}); err != nil {
			return fmt.Errorf("put slot %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	slog.InfoContext(ctx, "Slots saved to SQLite", "count", len(entries))
	return nil
}

func (r *SQLiteRepository) Keys(ctx context.Context) ([]string, error) {
	keys, err := r.queries.ListSlotKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list slot keys: %w", err)
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

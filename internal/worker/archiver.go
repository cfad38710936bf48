// Package worker archives backup bundles published on the AMQP queue.
package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"bilant/internal/amqp"
	"bilant/internal/backup"
	"bilant/internal/log"
)

// Archiver writes every received bundle into a directory and keeps at most
// Retain of them, dropping the oldest by file name.
type Archiver struct {
	sink   backup.DirSink
	retain int
	logger *log.Logger

	mu       sync.Mutex
	archived int
	last     string
}

// NewArchiver archives into dir. retain <= 0 keeps every bundle.
func NewArchiver(dir string, retain int, logger *log.Logger) *Archiver {
	if logger == nil {
		logger = log.Discard()
	}
	return &Archiver{
		sink:   backup.DirSink{Dir: dir},
		retain: retain,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleBackupMessage validates and stores one published bundle. A bundle
// that does not decode is rejected so the consumer drops it.
func (a *Archiver) HandleBackupMessage(ctx context.Context, msg *amqp.BackupMessage) error {
	if _, err := backup.Decode(msg.Bundle); err != nil {
		a.logger.WarnContext(ctx, "Rejecting invalid bundle",
			log.FieldMessageID, msg.MessageID, log.FieldError, err)
		return fmt.Errorf("message %s: %w", msg.MessageID, err)
	}

	name := filepath.Base(msg.Filename)
	if err := a.sink.Put(ctx, name, msg.Bundle); err != nil {
		return fmt.Errorf("archive %s: %w", name, err)
	}

	a.mu.Lock()
	a.archived++
	a.last = name
	a.mu.Unlock()

	a.logger.InfoContext(ctx, "Archived backup",
		log.FieldMessageID, msg.MessageID, "filename", name, log.FieldBytes, len(msg.Bundle))

	if err := a.prune(); err != nil {
		a.logger.WarnContext(ctx, "Failed to prune old backups", log.FieldError, err)
	}
	return nil
}

// Stats reports how many bundles were archived and the latest file name.
func (a *Archiver) Stats() (int, string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.archived, a.last
}

// Files lists the archived bundles, oldest first.
func (a *Archiver) Files() ([]string, error) {
	entries, err := os.ReadDir(a.sink.Dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "bilant_backup_") || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name())
	}
	// File names embed a UTC timestamp, so lexical order is time order.
	sort.Strings(names)
	return names, nil
}

func (a *Archiver) prune() error {
	if a.retain <= 0 {
		return nil
	}
	names, err := a.Files()
	if err != nil {
		return err
	}
	for len(names) > a.retain {
		if err := os.Remove(filepath.Join(a.sink.Dir, names[0])); err != nil {
			return err
		}
		names = names[1:]
	}
	return nil
}

package backend

import (
	"context"
	"errors"
	"fmt"

	"bilant/internal/amqp"
	"bilant/internal/backup"
	"bilant/internal/log"
	gsheet "bilant/internal/sheets/google"
	sheetsmem "bilant/internal/sheets/memory"
	"bilant/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend opens the slot store, then attaches the optional sinks and
// the spreadsheet writer. AMQP failures degrade to running without it; a
// misconfigured spreadsheet is an error.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(config)
	case MemoryBackend:
		result, err = f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	cleanups := []CleanupFunc{result.Cleanup}

	if config.BackupDir != "" {
		result.Sinks = append(result.Sinks, backup.DirSink{Dir: config.BackupDir})
		f.logger.Info("Backups written to directory", "dir", config.BackupDir)
	}

	if config.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without it", log.FieldError, err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			result.Sinks = append(result.Sinks, amqpClient)
			cleanups = append(cleanups, amqpClient.Close)
		}
	}

	if config.GoogleSpreadsheetID != "" {
		cli, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:      config.GoogleSpreadsheetID,
			ServiceAccountJSON: config.GoogleServiceAccountJSON,
			ServiceAccountFile: config.GoogleServiceAccountFile,
			TabPrefix:          config.GoogleTabPrefix,
		}, f.logger)
		if err != nil {
			runCleanups(cleanups)
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		result.Sheets = cli
		f.logger.Info("Initialized Google Sheets client")
	}

	result.Cleanup = func() error { return runCleanups(cleanups) }
	return result, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   sqliteRepo,
		Cleanup: sqliteRepo.Close,
	}, nil
}

// createMemoryBackend pairs the memory store with an in-memory table writer so
// pushes work without a spreadsheet. A configured spreadsheet replaces it.
func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	store := storage.NewMemoryStore()

	f.logger.Info("Initialized memory backend")

	return &BackendResult{
		Store:   store,
		Sheets:  sheetsmem.New(),
		Cleanup: store.Close,
	}, nil
}

func runCleanups(cleanups []CleanupFunc) error {
	var errs []error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if cleanups[i] == nil {
			continue
		}
		if err := cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

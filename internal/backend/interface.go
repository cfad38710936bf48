package backend

import (
	"context"

	"bilant/internal/backup"
	"bilant/internal/sheets"
	"bilant/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the slot store plus the optional backup sinks and
// spreadsheet writer built alongside it.
type BackendResult struct {
	Store storage.Store
	Sinks []backup.Sink
	// Sheets is nil for SQLite without a configured spreadsheet.
	Sheets  sheets.TableWriter
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Optional backup sinks
	BackupDir    string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Optional Google Sheets push
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleTabPrefix          string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

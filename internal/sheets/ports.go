package sheets

import (
	"context"

	"bilant/internal/export"
)

// Ports for outbound adapters.
type (
	// TableWriter replaces the contents of a named tab with a table.
	TableWriter interface {
		WriteTable(ctx context.Context, tab string, t export.Table) (updatedRange string, err error)
	}

	// TableReader returns the cells of a named tab.
	TableReader interface {
		ReadTable(ctx context.Context, tab string) ([][]string, error)
	}
)

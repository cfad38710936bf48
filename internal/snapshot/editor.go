package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"bilant/internal/core"
)

var (
	ErrRowIndex      = errors.New("row index out of range")
	ErrUnknownField  = errors.New("unknown field")
	ErrNothingToUndo = errors.New("nothing to undo")
)

type deletion struct {
	row   core.Row
	index int
}

// Editor applies row-level edits to a Store at a given day and keeps a stack
// of deleted rows. Every edit is one Store.Update, so it sees the rows as
// left by the previous edit.
type Editor struct {
	store *Store

	mu   sync.Mutex
	undo []deletion
}

func NewEditor(store *Store) *Editor {
	return &Editor{store: store}
}

// Store returns the underlying snapshot store.
func (e *Editor) Store() *Store { return e.store }

// AddRow appends an empty row at day.
func (e *Editor) AddRow(ctx context.Context, day core.Day) ([]core.Row, error) {
	return e.store.Update(ctx, day, func(rows []core.Row) ([]core.Row, error) {
		return append(rows, e.store.ds.Schema.NewRow()), nil
	})
}

// UpdateCell sets one field of the row at index. Numeric fields accept
// numbers or numeric strings.
func (e *Editor) UpdateCell(ctx context.Context, day core.Day, index int, field string, value any) ([]core.Row, error) {
	if _, ok := e.store.ds.Schema.Field(field); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return e.store.Update(ctx, day, func(rows []core.Row) ([]core.Row, error) {
		if index < 0 || index >= len(rows) {
			return nil, fmt.Errorf("%w: %d of %d", ErrRowIndex, index, len(rows))
		}
		rows[index][field] = value
		return rows, nil
	})
}

// DeleteRow removes the row at index and pushes it on the undo stack.
func (e *Editor) DeleteRow(ctx context.Context, day core.Day, index int) ([]core.Row, error) {
	return e.store.Update(ctx, day, func(rows []core.Row) ([]core.Row, error) {
		if index < 0 || index >= len(rows) {
			return nil, fmt.Errorf("%w: %d of %d", ErrRowIndex, index, len(rows))
		}
		e.mu.Lock()
		e.undo = append(e.undo, deletion{row: rows[index], index: index})
		e.mu.Unlock()
		return append(rows[:index], rows[index+1:]...), nil
	})
}

// Undo restores the most recent deletion at its original position, clamped
// to the current row count.
func (e *Editor) Undo(ctx context.Context, day core.Day) ([]core.Row, error) {
	return e.store.Update(ctx, day, func(rows []core.Row) ([]core.Row, error) {
		e.mu.Lock()
		if len(e.undo) == 0 {
			e.mu.Unlock()
			return nil, ErrNothingToUndo
		}
		last := e.undo[len(e.undo)-1]
		e.undo = e.undo[:len(e.undo)-1]
		e.mu.Unlock()

		idx := min(max(0, last.index), len(rows))
		rows = append(rows, nil)
		copy(rows[idx+1:], rows[idx:])
		rows[idx] = last.row
		return rows, nil
	})
}

// CanUndo reports whether a deletion can be restored.
func (e *Editor) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.undo) > 0
}

// Totals sums every numeric and computed column at day.
func (e *Editor) Totals(day core.Day) map[string]decimal.Decimal {
	ds := e.store.ds
	rows := e.store.GetRows(day)
	out := make(map[string]decimal.Decimal)
	for _, f := range ds.Schema {
		if f.Kind == core.Number {
			out[f.Name] = core.SumField(f.Name)(rows)
		}
	}
	for _, c := range ds.Computed {
		total := decimal.Zero
		for _, r := range rows {
			total = total.Add(c.Compute(r))
		}
		out[c.Name] = total
	}
	return out
}

// Package cursor holds the primary viewing date shared by every dataset.
package cursor

import (
	"sync"

	"bilant/internal/core"
)

// DateEnsurer materializes a snapshot at a day. snapshot.Store satisfies it.
type DateEnsurer interface {
	EnsureDate(day core.Day)
}

// Cursor is the primary date plus the stores that follow it.
type Cursor struct {
	clock core.Clock

	mu       sync.Mutex
	current  core.Day
	ensurers []DateEnsurer
}

// New starts the cursor at today according to clock (nil means wall time).
func New(clock core.Clock, ensurers ...DateEnsurer) *Cursor {
	c := &Cursor{clock: clock, ensurers: ensurers}
	c.current = c.Today()
	return c
}

// Register adds a store that must follow future date changes.
func (c *Cursor) Register(e DateEnsurer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensurers = append(c.ensurers, e)
}

// Get returns the primary date.
func (c *Cursor) Get() core.Day {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Set moves the primary date and makes every registered store hold a
// snapshot at it. Stores are not copied into one another.
func (c *Cursor) Set(day core.Day) error {
	day, err := core.ParseDay(string(day))
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.current = day
	ensurers := append([]DateEnsurer(nil), c.ensurers...)
	c.mu.Unlock()

	for _, e := range ensurers {
		e.EnsureDate(day)
	}
	return nil
}

// Today is read from the clock on every call.
func (c *Cursor) Today() core.Day {
	return core.Today(c.clock)
}

// IsToday reports whether the primary date is the current calendar day.
func (c *Cursor) IsToday() bool {
	return c.Get() == c.Today()
}

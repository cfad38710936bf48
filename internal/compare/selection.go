package compare

import (
	"sync"

	"bilant/internal/core"
)

// Ensurer materializes a snapshot at a day.
type Ensurer interface {
	EnsureDate(day core.Day)
}

// Selection is the compare date of one view. Several stores may share it,
// as the monthly income and purchase tables do.
type Selection struct {
	mu     sync.Mutex
	day    core.Day
	linked []Ensurer
}

// NewSelection starts at the day before primary.
func NewSelection(primary core.Day, linked ...Ensurer) *Selection {
	s := &Selection{day: primary.Prev(), linked: linked}
	s.ensure(s.day)
	return s
}

// Get returns the compare date.
func (s *Selection) Get() core.Day {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.day
}

// Set stores requested as the compare date. A request equal to primary is
// rewritten to the day before primary. The effective day is returned.
func (s *Selection) Set(primary, requested core.Day) core.Day {
	day := requested
	if day == primary {
		day = primary.Prev()
	}
	s.mu.Lock()
	s.day = day
	s.mu.Unlock()
	s.ensure(day)
	return day
}

// Follow re-applies the policy after the primary date moved.
func (s *Selection) Follow(primary core.Day) core.Day {
	s.mu.Lock()
	if s.day != primary {
		day := s.day
		s.mu.Unlock()
		return day
	}
	s.day = primary.Prev()
	day := s.day
	s.mu.Unlock()
	s.ensure(day)
	return day
}

func (s *Selection) ensure(day core.Day) {
	for _, e := range s.linked {
		e.EnsureDate(day)
	}
}

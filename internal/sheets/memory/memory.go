package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"bilant/internal/export"
	ports "bilant/internal/sheets"
)

var ErrNoTab = errors.New("no such tab")

// Store keeps pushed tables in memory, keyed by tab name.
type Store struct {
	mu   sync.Mutex
	tabs map[string][][]string
}

var (
	_ ports.TableWriter = (*Store)(nil)
	_ ports.TableReader = (*Store)(nil)
)

func New() *Store {
	return &Store{tabs: map[string][][]string{}}
}

// WriteTable replaces the tab contents and returns a synthetic range.
func (s *Store) WriteTable(_ context.Context, tab string, t export.Table) (string, error) {
	tab = strings.TrimSpace(tab)
	if tab == "" {
		return "", errors.New("empty tab name")
	}
	records := t.Records()
	copied := make([][]string, len(records))
	for i, rec := range records {
		copied[i] = append([]string(nil), rec...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs[tab] = copied
	return fmt.Sprintf("mem:%s!%d", tab, len(copied)), nil
}

func (s *Store) ReadTable(_ context.Context, tab string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tabs[strings.TrimSpace(tab)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTab, tab)
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

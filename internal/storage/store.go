// Package storage keeps named JSON slots durable across restarts.
//
// Every piece of persisted state (one SnapshotMap per dataset, the tax
// configuration, the installment schedule, projection settings and the
// backup marker) lives in one slot keyed by a stable name.
package storage

import (
	"context"
	"sort"
	"sync"
)

// Store is a key/value slot store. Values are opaque JSON documents.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put creates or replaces key.
	Put(ctx context.Context, key string, value []byte) error
	// PutAll writes every entry or none of them.
	PutAll(ctx context.Context, entries map[string][]byte) error
	// Keys lists every stored key in ascending order.
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.slots[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) PutAll(_ context.Context, entries map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range entries {
		m.slots[k] = append([]byte(nil), v...)
	}
	return nil
}

func (m *MemoryStore) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.slots))
	for k := range m.slots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStore) Close() error { return nil }

// internal/store/memory.go
//
// In-memory implementation of Store.
// Used for ephemeral sessions in development/testing, or when durability is not
// required. Records are kept JSON-encoded so callers never share mutable state
// with the store. Concurrency-safe via RWMutex; state is lost on restart.

package store

import (
	"context"
	"sync"
)

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu      sync.RWMutex      // guards records map
	records map[string][]byte // keyed by storage key
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{records: make(map[string][]byte)}
}

func (m *memory) Save(ctx context.Context, key string, rec *Record) error {
	b, err := encode(rec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = b
	return nil
}

func (m *memory) Load(ctx context.Context, key string) (*Record, error) {
	m.mu.RLock()
	b, ok := m.records[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decode(b)
}

func (m *memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

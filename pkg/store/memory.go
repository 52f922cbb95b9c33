package store

import (
	"context"
	"sync"
)

// MemoryStore keeps documents in a map and counts reads and writes.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	reads  int
	writes int

	// SetHook, when set, runs before every write; a non-nil error aborts the write.
	SetHook func(key string, value []byte) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetHook != nil {
		if err := m.SetHook(key, value); err != nil {
			return err
		}
	}
	m.writes++
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Stats returns the number of Get and successful Set calls so far.
func (m *MemoryStore) Stats() (reads, writes int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reads, m.writes
}

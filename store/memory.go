package store

import (
	"strings"
	"sync"
	"time"
)

// MemoryStore is a map-backed Store for tests and single-process use.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) All(prefix string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entry
	now := time.Now()
	for key, entry := range m.entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if expired(entry, now) {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (m *MemoryStore) Put(entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Key] = entry
	return nil
}

func (m *MemoryStore) Purge(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func expired(entry Entry, now time.Time) bool {
	return !entry.Expires.IsZero() && now.After(entry.Expires)
}

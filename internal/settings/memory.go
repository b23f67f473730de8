package settings

import (
	"context"
	"sync"
)

// MemoryStore keeps documents in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Document)}
}

// Read implements Store.
func (m *MemoryStore) Read(_ context.Context, name string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[name]
	if !ok {
		return nil, nil
	}
	return normalize(doc)
}

// Write implements Store.
func (m *MemoryStore) Write(_ context.Context, name string, fields Document) error {
	cp, err := normalize(fields)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[name] = merge(m.docs[name], cp)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }

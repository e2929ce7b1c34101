package sessionlog

import (
	"context"
	"sort"
	"sync"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory [Store] for tests and DSN-less deployments.
type MemStore struct {
	mu       sync.Mutex
	sessions map[string][]Entry
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[string][]Entry)}
}

// WriteEntry implements [Store].
func (m *MemStore) WriteEntry(_ context.Context, sessionID string, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = append(m.sessions[sessionID], entry)
	return nil
}

// Recent implements [Store].
func (m *MemStore) Recent(_ context.Context, sessionID string, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.sessions[sessionID]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out, nil
}

// SessionIDs lists the sessions holding at least one entry, sorted.
func (m *MemStore) SessionIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

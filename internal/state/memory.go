package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is an in-process SessionStore. It backs tests and the REPL,
// where durability across runs is not wanted.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]byte)}
}

// LoadSession returns a copy of the stored session, or (nil, nil) when
// absent. Copies keep callers from mutating the store's record in place.
func (m *MemoryStore) LoadSession(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	payload, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var s Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

// SaveSession stores a snapshot of the session.
func (m *MemoryStore) SaveSession(_ context.Context, s *Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}

	m.mu.Lock()
	m.sessions[s.ID] = payload
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

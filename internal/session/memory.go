package session

import (
	"context"
	"sync"

	"github.com/m3rciful/rabiesbot/internal/conversation"
)

// MemoryStore keeps sessions in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*conversation.Session
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]*conversation.Session)}
}

// Get returns a copy of the session for id.
func (m *MemoryStore) Get(_ context.Context, id int64) (*conversation.Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, false, nil
	}
	return sess.Clone(), true, nil
}

// Put stores a copy of s, replacing any previous session with the same id.
func (m *MemoryStore) Put(_ context.Context, s *conversation.Session) error {
	if s == nil {
		return ErrNilSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Close() error { return nil }

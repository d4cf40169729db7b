package watcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Manager keeps track of running watch sessions by ID.
type Manager struct {
	sessions map[string]*Watcher
	mu       sync.RWMutex
}

// NewManager creates a new session manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Watcher),
	}
}

// StartSession creates a watcher with a fresh session ID and starts it.
func (m *Manager) StartSession(ctx context.Context, opts Options) (*Watcher, error) {
	w := New(uuid.New().String(), opts)
	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	m.mu.Lock()
	m.sessions[w.ID] = w
	m.mu.Unlock()

	return w, nil
}

// GetSession retrieves a session by ID, nil if not found.
func (m *Manager) GetSession(id string) *Watcher {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// StopSession stops a session and removes it. Returns false when the ID is
// unknown.
func (m *Manager) StopSession(id string) bool {
	m.mu.Lock()
	w, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	w.Stop()
	return true
}

// ListSessions returns the status of all sessions.
func (m *Manager) ListSessions() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	statuses := make([]Status, 0, len(m.sessions))
	for _, w := range m.sessions {
		statuses = append(statuses, w.Status())
	}
	return statuses
}

// StopAll stops every running session.
func (m *Manager) StopAll() {
	m.mu.Lock()
	sessions := make([]*Watcher, 0, len(m.sessions))
	for id, w := range m.sessions {
		sessions = append(sessions, w)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, w := range sessions {
		w.Stop()
	}
}

// Package session owns the per-session conversation windows and the
// mutual-exclusion scope that serializes turns within one session. Turns on
// different sessions never contend.
package session

import (
	"sync"

	"github.com/adam-npc/dialogue-core/internal/agent/memory"
)

type session struct {
	mu  sync.Mutex
	mem *memory.ConversationMemory
}

// Manager maps session ids to their conversation windows. Windows are created
// lazily on first use and live until Remove.
type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*session
	newMemory func() *memory.ConversationMemory
}

// NewManager builds a registry. newMemory constructs the window for a session
// seen for the first time.
func NewManager(newMemory func() *memory.ConversationMemory) *Manager {
	return &Manager{
		sessions:  make(map[string]*session),
		newMemory: newMemory,
	}
}

func (m *Manager) get(sessionID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		s = &session{mem: m.newMemory()}
		m.sessions[sessionID] = s
	}
	return s
}

// Acquire locks the session for the duration of one full turn and returns its
// window plus the release function. A second turn for the same session blocks
// here until the prior turn commits, so no two turns can read the same stale
// context.
func (m *Manager) Acquire(sessionID string) (*memory.ConversationMemory, func()) {
	s := m.get(sessionID)
	s.mu.Lock()
	return s.mem, s.mu.Unlock
}

// Memory returns the session's window without locking. Valid only while the
// caller holds the turn lock from Acquire; graph nodes use this during an
// executing turn.
func (m *Manager) Memory(sessionID string) *memory.ConversationMemory {
	return m.get(sessionID).mem
}

// Remove drops the session entirely. The next turn starts a fresh window.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

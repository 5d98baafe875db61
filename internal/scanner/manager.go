package scanner

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"ms-ticket-lifecycle/internal/logger"
)

// Manager keeps at most one live session per client session id.
type Manager struct {
	parent context.Context
	log    *logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager binds every session to parent; cancelling it tears all down.
func NewManager(parent context.Context, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Discard()
	}
	return &Manager{
		parent:   parent,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// Start begins a session for clientID, first stopping and waiting out any
// session the client already had so two loops never share a device.
func (m *Manager) Start(clientID string, cfg Config) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.sessions[clientID]; ok {
		prev.Stop()
	}
	if cfg.Logger == nil {
		cfg.Logger = m.log
	}

	s := Start(m.parent, uuid.NewString(), cfg)
	m.sessions[clientID] = s
	return s
}

// Stop cancels the client's session. It reports false if there was none.
func (m *Manager) Stop(clientID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[clientID]
	delete(m.sessions, clientID)
	m.mu.Unlock()

	if ok {
		s.Stop()
	}
	return ok
}

// Get returns the client's latest session, finished or not.
func (m *Manager) Get(clientID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[clientID]
	return s, ok
}

// Active counts sessions still sampling.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		select {
		case <-s.Done():
		default:
			n++
		}
	}
	return n
}

// Shutdown stops every session and waits for all sources to be released.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Stop()
		}(s)
	}
	wg.Wait()
}

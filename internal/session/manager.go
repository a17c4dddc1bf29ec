package session

import (
	"sync"

	"github.com/kandev/agentd/internal/adapters"
	"github.com/kandev/agentd/internal/logging"
	"github.com/kandev/agentd/internal/universal"
)

// Manager is the process-wide session registry, keyed by client session id.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	registry *adapters.Registry
	sender   Sender
	log      *logging.Logger
}

func NewManager(registry *adapters.Registry, sender Sender, log *logging.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		registry: registry,
		sender:   sender,
		log:      log,
	}
}

// Create registers a brand-new session for id, failing with SessionExists
// or UnsupportedAgent as appropriate.
func (m *Manager) Create(id string, agent universal.AgentID, opts CreateOptions) (*Session, error) {
	if !agent.Valid() {
		return nil, universal.UnsupportedAgent(string(agent))
	}
	if !opts.PermissionMode.Valid() {
		return nil, universal.InvalidRequest("invalid permission_mode")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[id]; exists {
		return nil, universal.SessionExists(id)
	}

	adapter, ok := m.registry.Get(agent)
	if !ok {
		return nil, universal.UnsupportedAgent(string(agent))
	}

	s := New(id, agent, adapter, m.sender, opts, m.log)
	m.sessions[id] = s
	return s, nil
}

// Get resolves a session by id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, universal.SessionNotFound(id)
	}
	return s, nil
}

// List returns every currently registered session.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Remove drops a session from the registry (does not end it).
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

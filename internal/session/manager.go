package session

import (
	"sync"
	"time"
)

// Default rate-limit intervals (spec.md §4.3/§4.3 SET_NICK).
const (
	DefaultMsgInterval  = time.Second
	DefaultNickInterval = 30 * time.Second
)

// Manager is the Connection Manager: a keyed table of sessions plus an
// id->session index, mutated together or not at all, grounded on
// internal/group/manager.go's roster+rosterMu pairing generalized from
// one map to the dual map spec.md §9 calls for.
type Manager struct {
	mu      sync.RWMutex
	byID    map[string]*Session // session id -> session (every open connection)
	byAgent map[string]*Session // agent id -> session (authenticated only)

	msgInterval  time.Duration
	nickInterval time.Duration
}

func NewManager(msgInterval, nickInterval time.Duration) *Manager {
	if msgInterval <= 0 {
		msgInterval = DefaultMsgInterval
	}
	if nickInterval <= 0 {
		nickInterval = DefaultNickInterval
	}
	return &Manager{
		byID:         make(map[string]*Session),
		byAgent:      make(map[string]*Session),
		msgInterval:  msgInterval,
		nickInterval: nickInterval,
	}
}

// Open registers a new, unauthenticated session.
func (m *Manager) Open(sessionID string, sender Sender) *Session {
	s := newSession(sessionID, sender)
	m.mu.Lock()
	m.byID[sessionID] = s
	m.mu.Unlock()
	return s
}

// Get looks up a session by session id.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[sessionID]
	return s, ok
}

// GetByAgent looks up the live session bound to an agent id.
func (m *Manager) GetByAgent(agentID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byAgent[agentID]
	return s, ok
}

// Bind attaches an authenticated agent id to a session, displacing any
// prior live session for that agent id. The displaced session (if any)
// is returned so the caller can send SESSION_DISPLACED and close it;
// Bind itself does not touch the transport.
func (m *Manager) Bind(sessionID, agentID string) (bound *Session, displaced *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[sessionID]
	if !ok {
		return nil, nil
	}
	if prior, exists := m.byAgent[agentID]; exists && prior.ID != sessionID {
		displaced = prior
		delete(m.byID, prior.ID)
	}
	s.AgentID = agentID
	m.byAgent[agentID] = s
	return s, displaced
}

// Close removes a session from both maps. Safe to call more than once.
func (m *Manager) Close(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[sessionID]
	if !ok {
		return
	}
	delete(m.byID, sessionID)
	if s.AgentID != "" {
		if bound, exists := m.byAgent[s.AgentID]; exists && bound.ID == sessionID {
			delete(m.byAgent, s.AgentID)
		}
	}
}

// All returns every open session (authenticated or not), for LIST_AGENTS
// and broadcast fan-out.
func (m *Manager) All() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.byID))
	for _, s := range m.byID {
		out = append(out, s)
	}
	return out
}

// AllowMessage enforces the per-session MSG rate limit: the boundary is
// inclusive of the configured interval (an arrival exactly `interval`
// after the last is accepted; anything strictly less is rejected).
func (m *Manager) AllowMessage(s *Session, at time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !s.LastMsgAt.IsZero() && at.Sub(s.LastMsgAt) < m.msgInterval {
		return false
	}
	s.LastMsgAt = at
	return true
}

// AllowNickChange enforces the SET_NICK rate limit using the same
// inclusive-boundary rule as AllowMessage.
func (m *Manager) AllowNickChange(s *Session, at time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !s.LastNickAt.IsZero() && at.Sub(s.LastNickAt) < m.nickInterval {
		return false
	}
	s.LastNickAt = at
	return true
}

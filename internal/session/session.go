// Package session tracks live connections: their authentication state,
// channel membership, presence, and rate-limit clocks.
package session

import (
	"crypto/ed25519"
	"time"

	"github.com/agentchat/server/internal/wire"
)

// Sender abstracts the outbound half of a connection so this package
// does not depend on the transport (gorilla/websocket lives one layer
// up, in internal/server).
type Sender interface {
	Send(v any) error
	Close() error
}

// Session is one open connection, authenticated or not.
type Session struct {
	ID     string
	Sender Sender

	AgentID   string
	Name      string
	PubKey    ed25519.PublicKey // nil for ephemeral agents
	Ephemeral bool

	Verified  bool
	Lurk      bool
	LurkUntil time.Time

	Presence wire.Presence
	Status   string

	Channels map[string]bool

	ConnectedAt     time.Time
	LastMsgAt       time.Time
	LastNickAt      time.Time
	LastFileChunkAt time.Time
}

func newSession(id string, sender Sender) *Session {
	return &Session{
		ID:          id,
		Sender:      sender,
		Presence:    wire.PresenceOnline,
		Channels:    make(map[string]bool),
		ConnectedAt: time.Now(),
	}
}

// Authenticated reports whether this session completed the handshake
// (ephemeral agents are authenticated immediately after IDENTIFY).
func (s *Session) Authenticated() bool {
	return s.AgentID != ""
}

// IsLurking reports whether s may not yet send, evaluated at `at`. A
// zero LurkUntil with Lurk set means permanent lurk (ephemeral agents,
// which have no window to wait out).
func (s *Session) IsLurking(at time.Time) bool {
	if !s.Lurk {
		return false
	}
	if s.LurkUntil.IsZero() {
		return true
	}
	return at.Before(s.LurkUntil)
}

// JoinChannel and LeaveChannel mutate this session's side of the
// session<->channel membership; the caller is responsible for the
// symmetric update on the Channel itself.
func (s *Session) JoinChannel(name string)  { s.Channels[name] = true }
func (s *Session) LeaveChannel(name string) { delete(s.Channels, name) }

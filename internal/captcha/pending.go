package captcha

import (
	"fmt"
	"sync"
	"time"
)

// FailAction is the configured behavior when attempts are exhausted.
type FailAction string

const (
	FailDisconnect FailAction = "disconnect"
	FailShadowLurk FailAction = "shadow_lurk"
)

// RegistrationContext is captured at dispatch time so it can be replayed
// once the captcha is solved (the name/pubkey the agent was registering
// with).
type RegistrationContext struct {
	SessionID string
	Name      string
	Pubkey    string
}

// Pending tracks one outstanding captcha bound to a session.
type Pending struct {
	ID         string
	SessionID  string
	Challenge  Challenge
	Attempts   int
	MaxAttempts int
	Reg        RegistrationContext
	ExpiresAt  time.Time
}

// Store tracks pending captchas by session id.
type Store struct {
	mu      sync.Mutex
	bySess  map[string]*Pending
	timeout time.Duration
	maxAtt  int
}

func NewStore(timeout time.Duration, maxAttempts int) *Store {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Store{bySess: make(map[string]*Pending), timeout: timeout, maxAtt: maxAttempts}
}

// Issue creates and tracks a new pending captcha for a session, replacing
// any prior pending captcha for the same session.
func (s *Store) Issue(id, sessionID string, ch Challenge, reg RegistrationContext) *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &Pending{
		ID:          id,
		SessionID:   sessionID,
		Challenge:   ch,
		MaxAttempts: s.maxAtt,
		Reg:         reg,
		ExpiresAt:   time.Now().Add(s.timeout),
	}
	s.bySess[sessionID] = p
	return p
}

// Get returns the pending captcha for a session.
func (s *Store) Get(sessionID string) (*Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.bySess[sessionID]
	return p, ok
}

// Clear removes the pending captcha for a session (success, exhaustion, disconnect).
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bySess, sessionID)
}

// Attempt records one answer attempt, returning whether it solved the
// captcha, whether attempts are now exhausted, and an error only for the
// "no such pending captcha" / "expired" cases.
func (s *Store) Attempt(sessionID, answer string, now time.Time) (solved bool, exhausted bool, err error) {
	s.mu.Lock()
	p, ok := s.bySess[sessionID]
	s.mu.Unlock()
	if !ok {
		return false, false, fmt.Errorf("captcha: no pending captcha for session")
	}
	if now.After(p.ExpiresAt) {
		s.Clear(sessionID)
		return false, false, fmt.Errorf("captcha: expired")
	}

	if Validate(p.Challenge, answer) {
		s.Clear(sessionID)
		return true, false, nil
	}

	s.mu.Lock()
	p.Attempts++
	exhausted = p.Attempts >= p.MaxAttempts
	s.mu.Unlock()
	if exhausted {
		s.Clear(sessionID)
	}
	return false, exhausted, nil
}

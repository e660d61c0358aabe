package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/agentchat/server/internal/wire"
)

// Challenge is a pending proof-of-key handshake bound to one session.
type Challenge struct {
	ID        string
	SessionID string
	Name      string
	Pubkey    ed25519.PublicKey
	Nonce     string
	ExpiresAt time.Time
}

// Handshake tracks pending challenges keyed by session id and by
// challenge id, mirroring the dual-lookup discipline used throughout
// this codebase for session/agent tables.
type Handshake struct {
	mu          sync.Mutex
	bySession   map[string]*Challenge
	byChallenge map[string]*Challenge
	ttl         time.Duration
}

func NewHandshake(ttl time.Duration) *Handshake {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Handshake{
		bySession:   make(map[string]*Challenge),
		byChallenge: make(map[string]*Challenge),
		ttl:         ttl,
	}
}

// Begin allocates a new challenge for sessionID. Fails if one is already pending.
func (h *Handshake) Begin(sessionID, name string, pubkey ed25519.PublicKey) (*Challenge, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.bySession[sessionID]; exists {
		return nil, fmt.Errorf("identity: challenge already pending for session")
	}

	nonce, err := randomHex(16)
	if err != nil {
		return nil, fmt.Errorf("identity: generate nonce: %w", err)
	}
	id, err := randomHex(8)
	if err != nil {
		return nil, fmt.Errorf("identity: generate challenge id: %w", err)
	}

	c := &Challenge{
		ID:        id,
		SessionID: sessionID,
		Name:      name,
		Pubkey:    pubkey,
		Nonce:     nonce,
		ExpiresAt: time.Now().Add(h.ttl),
	}
	h.bySession[sessionID] = c
	h.byChallenge[id] = c
	return c, nil
}

// Lookup returns the pending challenge for a session, if any.
func (h *Handshake) Lookup(sessionID string) (*Challenge, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.bySession[sessionID]
	return c, ok
}

// Resolve removes the challenge for a session (on success, failure, or expiry).
func (h *Handshake) Resolve(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.bySession[sessionID]; ok {
		delete(h.byChallenge, c.ID)
		delete(h.bySession, sessionID)
	}
}

// VerifyAt verifies a VERIFY_IDENTITY attempt for sessionID at the given wall
// clock time. "at" exactly equal to ExpiresAt is treated as expired, per the
// boundary-behavior property in the spec.
func (h *Handshake) VerifyAt(sessionID, challengeID, signatureB64 string, timestamp int64, at time.Time) (*Challenge, error) {
	h.mu.Lock()
	c, ok := h.bySession[sessionID]
	h.mu.Unlock()

	if !ok || c.ID != challengeID {
		return nil, fmt.Errorf("identity: no matching pending challenge")
	}
	if !at.Before(c.ExpiresAt) {
		h.Resolve(sessionID)
		return nil, errExpired
	}

	payload := wire.AuthPayload(c.Nonce, c.ID, timestamp)
	if err := VerifySignature(c.Pubkey, payload, signatureB64); err != nil {
		return nil, errFailed
	}

	h.Resolve(sessionID)
	return c, nil
}

var (
	errExpired = fmt.Errorf("identity: challenge expired")
	errFailed  = fmt.Errorf("identity: signature verification failed")
)

// IsExpired reports whether err is the expiry sentinel.
func IsExpired(err error) bool { return err == errExpired }

// IsVerificationFailed reports whether err is the bad-signature sentinel.
func IsVerificationFailed(err error) bool { return err == errFailed }

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

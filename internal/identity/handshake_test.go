package identity

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"
	"time"

	"github.com/agentchat/server/internal/wire"
)

var stdB64 = base64.StdEncoding

func TestHandshakeVerifySuccess(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}

	h := NewHandshake(time.Minute)
	c, err := h.Begin("sess-1", "alice", pub)
	if err != nil {
		t.Fatal(err)
	}

	ts := time.Now().UnixMilli()
	payload := wire.AuthPayload(c.Nonce, c.ID, ts)
	sig := ed25519.Sign(priv, []byte(payload))

	got, err := h.VerifyAt("sess-1", c.ID, b64(sig), ts, time.Now())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got.Name != "alice" {
		t.Fatalf("unexpected challenge returned: %+v", got)
	}

	// Challenge must be consumed.
	if _, ok := h.Lookup("sess-1"); ok {
		t.Fatal("challenge should be cleared after verification")
	}
}

func TestHandshakeExpiryBoundary(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	h := NewHandshake(time.Minute)
	c, err := h.Begin("sess-2", "bob", pub)
	if err != nil {
		t.Fatal(err)
	}

	ts := time.Now().UnixMilli()
	payload := wire.AuthPayload(c.Nonce, c.ID, ts)
	sig := ed25519.Sign(priv, []byte(payload))

	// Arrival exactly at ExpiresAt must be rejected.
	_, err = h.VerifyAt("sess-2", c.ID, b64(sig), ts, c.ExpiresAt)
	if !IsExpired(err) {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestHandshakeBadSignature(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	_, otherPriv, _ := ed25519.GenerateKey(nil)
	h := NewHandshake(time.Minute)
	c, err := h.Begin("sess-3", "eve", pub)
	if err != nil {
		t.Fatal(err)
	}

	ts := time.Now().UnixMilli()
	payload := wire.AuthPayload(c.Nonce, c.ID, ts)
	sig := ed25519.Sign(otherPriv, []byte(payload))

	_, err = h.VerifyAt("sess-3", c.ID, b64(sig), ts, time.Now())
	if !IsVerificationFailed(err) {
		t.Fatalf("expected verification failure, got %v", err)
	}
}

func TestLurkWindow(t *testing.T) {
	now := time.Now()
	firstSeen := now.Add(-30 * time.Minute).UnixMilli()

	if !LurkWindow(firstSeen, now, time.Time{}, time.Hour) {
		t.Fatal("expected still lurking within window")
	}
	if LurkWindow(firstSeen, now.Add(time.Hour), time.Time{}, time.Hour) {
		t.Fatal("expected lurk to lift after window elapses")
	}
	// Admin open window bypasses regardless of first-seen.
	if LurkWindow(now.UnixMilli(), now, now.Add(time.Minute), time.Hour) {
		t.Fatal("expected open window to bypass lurk")
	}
}

func b64(b []byte) string {
	return stdB64.EncodeToString(b)
}

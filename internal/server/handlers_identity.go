package server

import (
	"crypto/ed25519"
	"time"

	"github.com/google/uuid"

	"github.com/agentchat/server/internal/accesslist"
	"github.com/agentchat/server/internal/captcha"
	"github.com/agentchat/server/internal/identity"
	"github.com/agentchat/server/internal/wire"
)

func handleIdentify(s *Server, c *Conn, frame []byte) {
	sess, ok := s.sessions.Get(c.id)
	if !ok {
		return
	}
	if sess.Authenticated() {
		c.sendError(wire.ErrInvalidMsg, "already identified")
		return
	}
	if _, pending := s.handshake.Lookup(c.id); pending {
		c.sendError(wire.ErrInvalidMsg, "challenge already pending")
		return
	}

	var msg wire.IdentifyMsg
	if err := wire.Decode(frame, &msg); err != nil {
		c.sendError(wire.ErrInvalidMsg, "malformed IDENTIFY")
		return
	}

	if msg.Pubkey == "" {
		if !s.allowlistGate("") {
			c.sendError(wire.ErrNotAllowed, "anonymous identities are not permitted")
			_ = c.Close()
			return
		}
		s.captchaGateAndProceed(c, msg.Name, "")
		return
	}

	pubkey, err := identity.ParsePublicKey(msg.Pubkey)
	if err != nil {
		c.sendError(wire.ErrInvalidMsg, "invalid public key")
		return
	}
	id := identity.DerivePersistent(pubkey)
	if s.banlist.Contains(id) || s.banlist.Contains(msg.Pubkey) {
		c.sendError(wire.ErrBanned, "this identity is banned")
		_ = c.Close()
		return
	}
	if !s.allowlistGate(msg.Pubkey) {
		c.sendError(wire.ErrNotAllowed, "this public key is not allowlisted")
		_ = c.Close()
		return
	}

	ch, err := s.handshake.Begin(c.id, msg.Name, pubkey)
	if err != nil {
		c.sendError(wire.ErrInvalidMsg, err.Error())
		return
	}
	_ = c.Send(wire.WithType(wire.TypeChallenge, map[string]any{
		"challenge_id": ch.ID,
		"nonce":        ch.Nonce,
		"expires_at":   ch.ExpiresAt.UnixMilli(),
	}))
}

func handleVerifyIdentity(s *Server, c *Conn, frame []byte) {
	var msg wire.VerifyIdentityMsg
	if err := wire.Decode(frame, &msg); err != nil {
		c.sendError(wire.ErrInvalidMsg, "malformed VERIFY_IDENTITY")
		return
	}

	ch, err := s.handshake.VerifyAt(c.id, msg.ChallengeID, msg.Signature, msg.Timestamp, time.Now())
	if err != nil {
		if identity.IsExpired(err) {
			c.sendError(wire.ErrVerificationExpired, "challenge expired")
		} else {
			c.sendError(wire.ErrVerificationFailed, "signature verification failed")
		}
		_ = c.Close()
		return
	}

	pubkeyB64 := encodePubkey(ch.Pubkey)
	s.captchaGateAndProceed(c, ch.Name, pubkeyB64)
}

func handleCaptchaResponse(s *Server, c *Conn, frame []byte) {
	var msg wire.CaptchaResponseMsg
	if err := wire.Decode(frame, &msg); err != nil {
		c.sendError(wire.ErrInvalidMsg, "malformed CAPTCHA_RESPONSE")
		return
	}

	pending, ok := s.captcha.Get(c.id)
	if !ok {
		c.sendError(wire.ErrInvalidMsg, "no pending captcha")
		return
	}
	reg := pending.Reg

	solved, exhausted, err := s.captcha.Attempt(c.id, msg.Answer, time.Now())
	if err != nil {
		c.sendError(wire.ErrCaptchaExpired, "captcha expired")
		_ = c.Close()
		return
	}
	if solved {
		s.finalizeRegistration(c, reg.Name, reg.Pubkey, false)
		return
	}
	if !exhausted {
		c.sendError(wire.ErrCaptchaFailed, "incorrect answer")
		return
	}

	switch captcha.FailAction(s.cfg.Captcha.FailAction) {
	case captcha.FailShadowLurk:
		s.finalizeRegistration(c, reg.Name, reg.Pubkey, true)
	default:
		c.sendError(wire.ErrCaptchaFailed, "attempts exhausted")
		_ = c.Close()
	}
}

// captchaGateAndProceed decides whether a CAPTCHA_CHALLENGE must be
// dispatched before registration completes.
func (s *Server) captchaGateAndProceed(c *Conn, name, pubkeyB64 string) {
	cfg := s.cfg.Captcha
	if !cfg.Enabled || (cfg.SkipAllowlisted && s.allowlist.Contains(pubkeyB64)) {
		s.finalizeRegistration(c, name, pubkeyB64, false)
		return
	}

	ch := captcha.Generate(captcha.Difficulty(cfg.Difficulty))
	id := uuid.NewString()
	s.captcha.Issue(id, c.id, ch, captcha.RegistrationContext{
		SessionID: c.id,
		Name:      name,
		Pubkey:    pubkeyB64,
	})
	_ = c.Send(wire.WithType(wire.TypeCaptchaChallenge, map[string]any{
		"captcha_id": id,
		"question":   ch.Question,
	}))
}

// finalizeRegistration binds the session to its derived agent id,
// resolves lurk/verified state, and sends WELCOME. forcePermanentLurk is
// set by the shadow_lurk captcha fail-action.
func (s *Server) finalizeRegistration(c *Conn, name, pubkeyB64 string, forcePermanentLurk bool) {
	now := time.Now()
	ephemeral := pubkeyB64 == ""

	var (
		id       string
		pubkey   ed25519.PublicKey
		verified bool
		lurk     bool
		lurkTill time.Time
	)

	if ephemeral {
		seed := uuid.New()
		id = identity.DeriveEphemeral(seed[:])
		lurk = true
	} else {
		pk, err := identity.ParsePublicKey(pubkeyB64)
		if err != nil {
			c.sendError(wire.ErrInvalidMsg, "invalid public key")
			return
		}
		pubkey = pk
		id = identity.DerivePersistent(pk)

		firstSeenMs, _, err := s.firstSeen.Touch(pubkeyB64, now)
		if err != nil {
			s.log.Warn("first_seen persist failed", "agent", id, "error", err)
			lurk = true
		} else {
			lurk = identity.LurkWindow(firstSeenMs, now, s.openWindow(), s.cfg.Server.LurkWindow)
			if lurk {
				lurkTill = time.UnixMilli(firstSeenMs).Add(s.cfg.Server.LurkWindow)
			}
		}
		verified = s.allowlist.Contains(id) || s.allowlist.Contains(pubkeyB64)
	}

	if forcePermanentLurk {
		lurk = true
		lurkTill = time.Time{}
	}

	bound, displaced := s.sessions.Bind(c.id, id)
	if bound == nil {
		return
	}
	if displaced != nil {
		_ = displaced.Sender.Send(wire.WithType(wire.TypeSessionDisplaced, map[string]any{
			"reason": "re-authenticated from another session",
		}))
		_ = displaced.Sender.Close()
	}

	bound.Name = name
	bound.PubKey = pubkey
	bound.Ephemeral = ephemeral
	bound.Lurk = lurk
	bound.LurkUntil = lurkTill
	bound.Verified = verified

	s.handshake.Resolve(c.id)
	s.captcha.Clear(c.id)

	_ = c.Send(wire.WithType(wire.TypeWelcome, map[string]any{
		"agent_id": agentRef(id),
		"name":     name,
		"verified": verified,
		"lurk":     lurk,
		"presence": string(bound.Presence),
	}))
}

func (s *Server) allowlistGate(key string) bool {
	return accesslist.Gate(s.cfg.AccessList.Enabled, accesslist.Policy(s.cfg.AccessList.Policy), s.allowlist, key)
}

func (s *Server) openWindow() time.Time {
	s.openWindowMu.RLock()
	defer s.openWindowMu.RUnlock()
	return s.openWindowUntil
}

func encodePubkey(pk ed25519.PublicKey) string {
	if len(pk) == 0 {
		return ""
	}
	return identity.EncodePublicKey(pk)
}

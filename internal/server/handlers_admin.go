package server

import (
	"time"

	"github.com/agentchat/server/internal/accesslist"
	"github.com/agentchat/server/internal/wire"
)

func requireAdmin(s *Server, c *Conn, msg wire.AdminMsg) bool {
	if !accesslist.ValidAdminKey(s.cfg.Server.AdminKey, msg.AdminKey) {
		c.sendError(wire.ErrAuthRequired, "invalid admin key")
		return false
	}
	return true
}

func decodeAdmin(c *Conn, frame []byte) (wire.AdminMsg, bool) {
	var msg wire.AdminMsg
	if err := wire.Decode(frame, &msg); err != nil {
		c.sendError(wire.ErrInvalidMsg, "malformed admin message")
		return msg, false
	}
	return msg, true
}

func handleAdminApprove(s *Server, c *Conn, frame []byte) {
	msg, ok := decodeAdmin(c, frame)
	if !ok || !requireAdmin(s, c, msg) {
		return
	}
	if err := s.allowlist.Add(msg.Target, msg.Note); err != nil {
		s.log.Warn("allowlist add failed", "target", msg.Target, "error", err)
	}
	_ = c.Send(wire.WithType(wire.TypeAdminResult, map[string]any{"action": "approve", "target": msg.Target}))
}

func handleAdminRevoke(s *Server, c *Conn, frame []byte) {
	msg, ok := decodeAdmin(c, frame)
	if !ok || !requireAdmin(s, c, msg) {
		return
	}
	if err := s.allowlist.Remove(msg.Target); err != nil {
		s.log.Warn("allowlist remove failed", "target", msg.Target, "error", err)
	}
	_ = c.Send(wire.WithType(wire.TypeAdminResult, map[string]any{"action": "revoke", "target": msg.Target}))
}

func handleAdminList(s *Server, c *Conn, frame []byte) {
	msg, ok := decodeAdmin(c, frame)
	if !ok || !requireAdmin(s, c, msg) {
		return
	}
	agents := make([]map[string]any, 0)
	for _, sess := range s.sessions.All() {
		if !sess.Authenticated() {
			continue
		}
		agents = append(agents, map[string]any{
			"id": agentRef(sess.AgentID), "name": sess.Name,
			"presence": string(sess.Presence), "verified": sess.Verified, "lurk": sess.IsLurking(time.Now()),
		})
	}
	allowed := make([]string, 0)
	for k := range s.allowlist.All() {
		allowed = append(allowed, k)
	}
	banned := make([]string, 0)
	for k := range s.banlist.All() {
		banned = append(banned, k)
	}
	_ = c.Send(wire.WithType(wire.TypeAdminResult, map[string]any{
		"action": "list", "online": agents, "allowlist": allowed, "banlist": banned,
	}))
}

func handleAdminKick(s *Server, c *Conn, frame []byte) {
	msg, ok := decodeAdmin(c, frame)
	if !ok || !requireAdmin(s, c, msg) {
		return
	}
	if sess, ok := s.sessions.GetByAgent(stripAt(msg.Target)); ok {
		_ = sess.Sender.Send(wire.WithType(wire.TypeKicked, map[string]any{"note": msg.Note}))
		_ = sess.Sender.Close()
	}
	_ = c.Send(wire.WithType(wire.TypeAdminResult, map[string]any{"action": "kick", "target": msg.Target}))
}

func handleAdminBan(s *Server, c *Conn, frame []byte) {
	msg, ok := decodeAdmin(c, frame)
	if !ok || !requireAdmin(s, c, msg) {
		return
	}
	if err := s.banlist.Add(msg.Target, msg.Note); err != nil {
		s.log.Warn("banlist add failed", "target", msg.Target, "error", err)
	}
	if sess, ok := s.sessions.GetByAgent(stripAt(msg.Target)); ok {
		_ = sess.Sender.Send(wire.WithType(wire.TypeBanned, map[string]any{"note": msg.Note}))
		_ = sess.Sender.Close()
	}
	_ = c.Send(wire.WithType(wire.TypeAdminResult, map[string]any{"action": "ban", "target": msg.Target}))
}

func handleAdminUnban(s *Server, c *Conn, frame []byte) {
	msg, ok := decodeAdmin(c, frame)
	if !ok || !requireAdmin(s, c, msg) {
		return
	}
	if err := s.banlist.Remove(msg.Target); err != nil {
		s.log.Warn("banlist remove failed", "target", msg.Target, "error", err)
	}
	_ = c.Send(wire.WithType(wire.TypeAdminResult, map[string]any{"action": "unban", "target": msg.Target}))
}

func handleAdminVerify(s *Server, c *Conn, frame []byte) {
	msg, ok := decodeAdmin(c, frame)
	if !ok || !requireAdmin(s, c, msg) {
		return
	}
	sess, ok := s.sessions.GetByAgent(stripAt(msg.Target))
	if !ok {
		c.sendError(wire.ErrAgentNotFound, "target is not online")
		return
	}
	sess.Verified = !sess.Verified
	_ = c.Send(wire.WithType(wire.TypeAdminResult, map[string]any{
		"action": "verify", "target": msg.Target, "verified": sess.Verified,
	}))
}

func handleAdminMOTD(s *Server, c *Conn, frame []byte) {
	msg, ok := decodeAdmin(c, frame)
	if !ok || !requireAdmin(s, c, msg) {
		return
	}
	s.motdMu.Lock()
	s.motd = msg.Text
	s.motdMu.Unlock()

	payload := wire.WithType(wire.TypeMOTDUpdate, map[string]any{"text": msg.Text})
	for _, sess := range s.sessions.All() {
		_ = sess.Sender.Send(payload)
	}
	_ = c.Send(wire.WithType(wire.TypeAdminResult, map[string]any{"action": "motd"}))
}

func handleAdminOpenWindow(s *Server, c *Conn, frame []byte) {
	msg, ok := decodeAdmin(c, frame)
	if !ok || !requireAdmin(s, c, msg) {
		return
	}
	s.openWindowMu.Lock()
	s.openWindowUntil = time.Now().Add(time.Duration(msg.Duration) * time.Millisecond)
	s.openWindowMu.Unlock()
	_ = c.Send(wire.WithType(wire.TypeAdminResult, map[string]any{
		"action": "open_window", "until": s.openWindow().UnixMilli(),
	}))
}

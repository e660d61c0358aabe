package server

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentchat/server/internal/channel"
	"github.com/agentchat/server/internal/redact"
	"github.com/agentchat/server/internal/session"
	"github.com/agentchat/server/internal/wire"
)

func handleMsg(s *Server, c *Conn, frame []byte) {
	sess, ok := s.requireAuth(c)
	if !ok {
		return
	}
	now := time.Now()
	if sess.IsLurking(now) {
		c.sendError(wire.ErrLurkMode, "cannot send while lurking")
		return
	}
	if !s.sessions.AllowMessage(sess, now) {
		c.sendError(wire.ErrRateLimited, "message rate limit exceeded")
		return
	}

	var msg wire.ChatMsg
	if err := wire.Decode(frame, &msg); err != nil {
		c.sendError(wire.ErrInvalidMsg, "malformed MSG")
		return
	}

	result := redact.Redact(msg.Content)
	if result.Count > 0 {
		s.log.Info("redacted secret-shaped content", "agent", sess.AgentID, "count", result.Count, "patterns", result.Matched)
	}
	stripped, callbacks := ExtractCallbacks(result.Text)
	s.scheduleCallbacks(sess, callbacks)
	if stripped == "" && len(callbacks) > 0 {
		return
	}

	msgID := uuid.NewString()
	from := agentRef(sess.AgentID)

	if strings.HasPrefix(msg.To, "#") {
		ch, ok := s.channels.Get(msg.To)
		if !ok {
			c.sendError(wire.ErrChannelNotFound, "no such channel")
			return
		}
		if !ch.IsMember(sess.AgentID) {
			c.sendError(wire.ErrNotInvited, "not a member of this channel")
			return
		}
		ch.Append(channel.ReplayEntry{MsgID: msgID, From: from, Content: stripped, Timestamp: now})
		payload := wire.WithType(wire.TypeMsg, map[string]any{
			"msg_id": msgID, "channel": msg.To, "from": from, "content": stripped, "timestamp": now.UnixMilli(),
		})
		s.broadcastToChannel(ch, payload)
		return
	}

	target, ok := s.sessions.GetByAgent(stripAt(msg.To))
	if !ok {
		c.sendError(wire.ErrAgentNotFound, "no such agent")
		return
	}
	payload := wire.WithType(wire.TypeMsg, map[string]any{
		"msg_id": msgID, "to": msg.To, "from": from, "content": stripped, "timestamp": now.UnixMilli(),
	})
	_ = target.Sender.Send(payload)
	_ = sess.Sender.Send(payload)
}

func (s *Server) scheduleCallbacks(sess *session.Session, callbacks []Callback) {
	for _, cb := range callbacks {
		agentID := sess.AgentID
		payload := cb.Payload
		key := "callback:" + uuid.NewString()
		s.timers.Set(key, time.Duration(cb.Seconds)*time.Second, func() {
			s.post(func(s *Server) {
				if t, ok := s.sessions.GetByAgent(agentID); ok {
					_ = t.Sender.Send(wire.WithType(wire.TypeCallback, map[string]any{"content": payload}))
				}
			})
		})
	}
}

func handleJoin(s *Server, c *Conn, frame []byte) {
	sess, ok := s.requireAuth(c)
	if !ok {
		return
	}
	var msg wire.JoinMsg
	if err := wire.Decode(frame, &msg); err != nil || !channel.ValidName(msg.Channel) {
		c.sendError(wire.ErrInvalidName, "invalid channel name")
		return
	}

	ch, err := s.channels.GetOrCreate(msg.Channel)
	if err != nil {
		c.sendError(wire.ErrInvalidName, err.Error())
		return
	}
	if ch.VerifiedOnly && !sess.Verified {
		c.sendError(wire.ErrNotAllowed, "channel requires a verified agent")
		return
	}
	if ch.InviteOnly && !ch.IsInvited(sess.AgentID) && !ch.IsMember(sess.AgentID) {
		c.sendError(wire.ErrNotInvited, "channel is invite-only")
		return
	}

	newJoin := ch.Join(sess.AgentID)
	sess.JoinChannel(msg.Channel)

	if newJoin {
		for _, m := range ch.Members() {
			if m == sess.AgentID {
				continue
			}
			if t, ok := s.sessions.GetByAgent(m); ok {
				_ = t.Sender.Send(wire.WithType(wire.TypeAgentJoined, map[string]any{
					"channel": msg.Channel, "agent": agentRef(sess.AgentID), "name": sess.Name,
				}))
			}
		}
	}

	members := make([]string, 0, ch.MemberCount())
	for _, m := range ch.Members() {
		members = append(members, agentRef(m))
	}
	_ = sess.Sender.Send(wire.WithType(wire.TypeJoined, map[string]any{
		"channel": msg.Channel, "members": members,
	}))
	if newJoin {
		_ = sess.Sender.Send(wire.WithType(wire.TypeMsg, map[string]any{
			"channel": msg.Channel, "from": "@server", "content": "welcome to " + msg.Channel, "system": true,
		}))
	}
	for _, entry := range ch.Replay() {
		_ = sess.Sender.Send(wire.WithType(wire.TypeMsg, map[string]any{
			"channel": msg.Channel, "msg_id": entry.MsgID, "from": entry.From,
			"content": entry.Content, "timestamp": entry.Timestamp.UnixMilli(), "replay": true,
		}))
	}
}

func handleLeave(s *Server, c *Conn, frame []byte) {
	sess, ok := s.requireAuth(c)
	if !ok {
		return
	}
	var msg wire.LeaveMsg
	if err := wire.Decode(frame, &msg); err != nil {
		c.sendError(wire.ErrInvalidMsg, "malformed LEAVE")
		return
	}
	ch, ok := s.channels.Get(msg.Channel)
	if !ok {
		return
	}
	if !ch.Leave(sess.AgentID) {
		return
	}
	sess.LeaveChannel(msg.Channel)

	_ = sess.Sender.Send(wire.WithType(wire.TypeLeft, map[string]any{"channel": msg.Channel}))
	s.broadcastToChannel(ch, wire.WithType(wire.TypeAgentLeft, map[string]any{
		"channel": msg.Channel, "agent": agentRef(sess.AgentID),
	}))
}

func handleListChannels(s *Server, c *Conn, frame []byte) {
	sess, _ := s.sessions.Get(c.id)
	authed := sess != nil && sess.Authenticated()

	list := make([]map[string]any, 0)
	for _, ch := range s.channels.List() {
		if ch.InviteOnly {
			continue
		}
		entry := map[string]any{"name": ch.Name, "members": ch.MemberCount()}
		if authed {
			entry["verified_only"] = ch.VerifiedOnly
		}
		list = append(list, entry)
	}
	_ = c.Send(wire.WithType(wire.TypeChannels, map[string]any{"channels": list}))
}

func handleListAgents(s *Server, c *Conn, frame []byte) {
	if _, ok := s.requireAuth(c); !ok {
		return
	}
	agents := make([]map[string]any, 0)
	for _, other := range s.sessions.All() {
		if !other.Authenticated() {
			continue
		}
		agents = append(agents, map[string]any{
			"id": agentRef(other.AgentID), "name": other.Name,
			"presence": string(other.Presence), "status": other.Status, "verified": other.Verified,
		})
	}
	_ = c.Send(wire.WithType(wire.TypeAgents, map[string]any{"agents": agents}))
}

func handleCreateChannel(s *Server, c *Conn, frame []byte) {
	sess, ok := s.requireAuth(c)
	if !ok {
		return
	}
	var msg wire.CreateChannelMsg
	if err := wire.Decode(frame, &msg); err != nil || !channel.ValidName(msg.Channel) {
		c.sendError(wire.ErrInvalidName, "invalid channel name")
		return
	}
	ch, err := s.channels.Create(msg.Channel, msg.InviteOnly, msg.VerifiedOnly)
	if err != nil {
		c.sendError(wire.ErrChannelExists, err.Error())
		return
	}
	ch.Join(sess.AgentID)
	sess.JoinChannel(msg.Channel)
	_ = sess.Sender.Send(wire.WithType(wire.TypeJoined, map[string]any{
		"channel": msg.Channel, "members": []string{agentRef(sess.AgentID)},
	}))
}

func handleInvite(s *Server, c *Conn, frame []byte) {
	sess, ok := s.requireAuth(c)
	if !ok {
		return
	}
	var msg wire.InviteMsg
	if err := wire.Decode(frame, &msg); err != nil {
		c.sendError(wire.ErrInvalidMsg, "malformed INVITE")
		return
	}
	ch, ok := s.channels.Get(msg.Channel)
	if !ok {
		c.sendError(wire.ErrChannelNotFound, "no such channel")
		return
	}
	if !ch.IsMember(sess.AgentID) {
		c.sendError(wire.ErrNotAllowed, "must be a channel member to invite")
		return
	}
	targetID := stripAt(msg.Agent)
	ch.Invite(targetID)
	if target, ok := s.sessions.GetByAgent(targetID); ok {
		_ = target.Sender.Send(wire.WithType(wire.TypeInvite, map[string]any{
			"channel": msg.Channel, "from": agentRef(sess.AgentID),
		}))
	}
}

var reservedNicks = map[string]bool{"server": true, "admin": true, "system": true}

func handleSetNick(s *Server, c *Conn, frame []byte) {
	sess, ok := s.requireAuth(c)
	if !ok {
		return
	}
	if !s.sessions.AllowNickChange(sess, time.Now()) {
		c.sendError(wire.ErrRateLimited, "nick change rate limit exceeded")
		return
	}
	var msg wire.SetNickMsg
	if err := wire.Decode(frame, &msg); err != nil || strings.TrimSpace(msg.Name) == "" {
		c.sendError(wire.ErrInvalidName, "invalid name")
		return
	}
	if reservedNicks[strings.ToLower(msg.Name)] {
		c.sendError(wire.ErrInvalidName, "reserved name")
		return
	}
	sess.Name = msg.Name
	for chName := range sess.Channels {
		if ch, ok := s.channels.Get(chName); ok {
			s.broadcastToChannel(ch, wire.WithType(wire.TypeNickChanged, map[string]any{
				"channel": chName, "agent": agentRef(sess.AgentID), "name": msg.Name,
			}))
		}
	}
}

func handleSetPresence(s *Server, c *Conn, frame []byte) {
	sess, ok := s.requireAuth(c)
	if !ok {
		return
	}
	var msg wire.SetPresenceMsg
	if err := wire.Decode(frame, &msg); err != nil {
		c.sendError(wire.ErrInvalidMsg, "malformed SET_PRESENCE")
		return
	}
	switch wire.Presence(msg.Presence) {
	case wire.PresenceOnline, wire.PresenceAway, wire.PresenceOffline:
	default:
		c.sendError(wire.ErrInvalidMsg, "invalid presence value")
		return
	}
	sess.Presence = wire.Presence(msg.Presence)
	sess.Status = msg.Status

	for id := range s.unionOfChannelMembers(sess) {
		if t, ok := s.sessions.GetByAgent(id); ok {
			_ = t.Sender.Send(wire.WithType(wire.TypePresenceChanged, map[string]any{
				"agent": agentRef(sess.AgentID), "presence": msg.Presence, "status": msg.Status,
			}))
		}
	}
}

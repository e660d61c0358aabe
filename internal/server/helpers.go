package server

import (
	"github.com/agentchat/server/internal/arbitration"
	"github.com/agentchat/server/internal/channel"
	"github.com/agentchat/server/internal/proposal"
	"github.com/agentchat/server/internal/session"
	"github.com/agentchat/server/internal/wire"
)

// requireAuth fetches the session and rejects with AUTH_REQUIRED if it
// has not completed IDENTIFY.
func (s *Server) requireAuth(c *Conn) (*session.Session, bool) {
	sess, ok := s.sessions.Get(c.id)
	if !ok || !sess.Authenticated() {
		c.sendError(wire.ErrAuthRequired, "this operation requires IDENTIFY")
		return nil, false
	}
	return sess, true
}

// requirePersistent additionally rejects ephemeral/keyless agents for
// signed operations.
func (s *Server) requirePersistent(c *Conn) (*session.Session, bool) {
	sess, ok := s.requireAuth(c)
	if !ok {
		return nil, false
	}
	if sess.Ephemeral || sess.PubKey == nil {
		c.sendError(wire.ErrNoPubkey, "this operation requires a persistent identity")
		return nil, false
	}
	return sess, true
}

func agentRef(id string) string { return "@" + id }

// stripAt converts a wire-facing "@<id>" reference back to the raw
// agent id used as the session/channel map key. Safe on refs that are
// already bare.
func stripAt(ref string) string {
	if len(ref) > 0 && ref[0] == '@' {
		return ref[1:]
	}
	return ref
}

// broadcastToChannel sends payload to every current member's session,
// best-effort (a member with no live session is silently skipped).
func (s *Server) broadcastToChannel(ch *channel.Channel, payload any) {
	for _, member := range ch.Members() {
		if sess, ok := s.sessions.GetByAgent(member); ok {
			_ = sess.Sender.Send(payload)
		}
	}
}

// broadcastAgentLeft notifies every channel the departing session was a
// member of.
func (s *Server) broadcastAgentLeft(sess *session.Session) {
	for name := range sess.Channels {
		ch, ok := s.channels.Get(name)
		if !ok {
			continue
		}
		ch.Leave(sess.AgentID)
		s.broadcastToChannel(ch, wire.WithType(wire.TypeAgentLeft, map[string]any{
			"channel": name,
			"agent":   agentRef(sess.AgentID),
		}))
	}
}

// unionOfChannelMembers returns the deduplicated set of agent ids across
// every channel sess belongs to, used for PRESENCE_CHANGED fan-out.
func (s *Server) unionOfChannelMembers(sess *session.Session) map[string]bool {
	out := make(map[string]bool)
	for name := range sess.Channels {
		ch, ok := s.channels.Get(name)
		if !ok {
			continue
		}
		for _, m := range ch.Members() {
			out[m] = true
		}
	}
	return out
}

// notifyProposalParties delivers payload to both sides of a proposal,
// best-effort. p.From/p.To are stored "@"-prefixed; the session index is
// keyed by the bare agent id.
func (s *Server) notifyProposalParties(p *proposal.Proposal, payload any) {
	for _, agent := range []string{p.From, p.To} {
		if sess, ok := s.sessions.GetByAgent(stripAt(agent)); ok {
			_ = sess.Sender.Send(payload)
		}
	}
}

// notifyDisputeParties delivers payload to a dispute's disputant and
// respondent, best-effort.
func (s *Server) notifyDisputeParties(d *arbitration.Dispute, payload any) {
	for _, agent := range []string{d.Disputant, d.Respondent} {
		if sess, ok := s.sessions.GetByAgent(stripAt(agent)); ok {
			_ = sess.Sender.Send(payload)
		}
	}
}

// notifyPanel delivers payload to every arbiter currently seated on a
// dispute's panel, best-effort.
func (s *Server) notifyPanel(d *arbitration.Dispute, payload any) {
	for _, slot := range d.Panel {
		if sess, ok := s.sessions.GetByAgent(stripAt(slot.AgentID)); ok {
			_ = sess.Sender.Send(payload)
		}
	}
}

// notifyDisputeAndPanel delivers payload to both parties and the full panel.
func (s *Server) notifyDisputeAndPanel(d *arbitration.Dispute, payload any) {
	s.notifyDisputeParties(d, payload)
	s.notifyPanel(d, payload)
}

package server

import (
	"time"

	"github.com/google/uuid"

	"github.com/agentchat/server/internal/identity"
	"github.com/agentchat/server/internal/wire"
)

const verifyRequestTimeout = 30 * time.Second

func handleVerifyRequest(s *Server, c *Conn, frame []byte) {
	sess, ok := s.requireAuth(c)
	if !ok {
		return
	}
	var msg wire.VerifyRequestMsg
	if err := wire.Decode(frame, &msg); err != nil {
		c.sendError(wire.ErrInvalidMsg, "malformed VERIFY_REQUEST")
		return
	}
	targetID := stripAt(msg.Target)
	target, ok := s.sessions.GetByAgent(targetID)
	if !ok || target.PubKey == nil {
		c.sendError(wire.ErrAgentNotFound, "target not available for verification")
		return
	}

	requestID := uuid.NewString()
	s.verifyReqs[requestID] = &pendingVerify{
		RequestID: requestID, From: sess.AgentID, Target: targetID, Nonce: msg.Nonce,
		Deadline: time.Now().Add(verifyRequestTimeout), RequesterSessionID: sess.ID,
	}
	_ = target.Sender.Send(wire.WithType(wire.TypeVerifyRequest, map[string]any{
		"request_id": requestID, "from": agentRef(sess.AgentID), "nonce": msg.Nonce,
	}))
	s.timers.Set("verify-expire:"+sess.ID, verifyRequestTimeout, func() {
		s.post(func(s *Server) { s.expireVerifyRequest(requestID) })
	})
}

func (s *Server) expireVerifyRequest(requestID string) {
	pv, ok := s.verifyReqs[requestID]
	if !ok {
		return
	}
	delete(s.verifyReqs, requestID)
	if sess, ok := s.sessions.GetByAgent(pv.From); ok {
		_ = sess.Sender.Send(wire.WithType(wire.TypeVerifyFailed, map[string]any{
			"request_id": requestID, "target": agentRef(pv.Target), "reason": "timeout",
		}))
	}
}

func handleVerifyResponse(s *Server, c *Conn, frame []byte) {
	sess, ok := s.requireAuth(c)
	if !ok {
		return
	}
	var msg wire.VerifyResponseMsg
	if err := wire.Decode(frame, &msg); err != nil {
		c.sendError(wire.ErrInvalidMsg, "malformed VERIFY_RESPONSE")
		return
	}
	pv, ok := s.verifyReqs[msg.RequestID]
	if !ok {
		c.sendError(wire.ErrInvalidMsg, "no such pending verification")
		return
	}
	if pv.Target != sess.AgentID {
		c.sendError(wire.ErrNotAllowed, "not the target of this verification request")
		return
	}
	delete(s.verifyReqs, msg.RequestID)
	s.timers.Cancel("verify-expire:" + pv.RequesterSessionID)

	requester, reqOK := s.sessions.GetByAgent(pv.From)
	verified := sess.PubKey != nil && identity.VerifySignature(sess.PubKey, wire.VerifyResponsePayload(pv.Nonce), msg.Signature) == nil

	if !verified {
		if reqOK {
			_ = requester.Sender.Send(wire.WithType(wire.TypeVerifyFailed, map[string]any{
				"request_id": msg.RequestID, "target": agentRef(sess.AgentID), "reason": "signature_mismatch",
			}))
		}
		return
	}
	if reqOK {
		_ = requester.Sender.Send(wire.WithType(wire.TypeVerifySuccess, map[string]any{
			"request_id": msg.RequestID, "target": agentRef(sess.AgentID), "pubkey": encodePubkey(sess.PubKey),
		}))
	}
}

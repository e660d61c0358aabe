package server

import (
	"context"
	"time"

	"github.com/agentchat/server/internal/hooks"
	"github.com/agentchat/server/internal/proposal"
	"github.com/agentchat/server/internal/redact"
	"github.com/agentchat/server/internal/wire"
)

func mapProposalErr(err error) wire.ErrCode {
	switch {
	case proposal.IsVerificationError(err):
		return wire.ErrVerificationFailed
	case proposal.IsNotPartyError(err):
		return wire.ErrNotProposalParty
	case proposal.IsNotPendingError(err):
		return wire.ErrInvalidProposal
	case proposal.IsInsufficientReputation(err):
		return wire.ErrInsufficientRep
	default:
		return wire.ErrProposalNotFound
	}
}

func handleProposal(s *Server, c *Conn, frame []byte) {
	sess, ok := s.requirePersistent(c)
	if !ok {
		return
	}
	var msg wire.ProposalMsg
	if err := wire.Decode(frame, &msg); err != nil {
		c.sendError(wire.ErrInvalidMsg, "malformed PROPOSAL")
		return
	}
	target, ok := s.sessions.GetByAgent(stripAt(msg.To))
	if !ok {
		c.sendError(wire.ErrAgentNotFound, "no such agent")
		return
	}

	p := &proposal.Proposal{
		From:        agentRef(sess.AgentID),
		To:          msg.To,
		Task:        msg.Task,
		Amount:      msg.Amount,
		Currency:    msg.Currency,
		PaymentCode: msg.PaymentCode,
		EloStakeFrom: msg.EloStakeSelf,
		ExpiresAt:   time.UnixMilli(msg.ExpiresAt),
		Signature:   msg.Signature,
	}
	if err := s.proposals.Create(sess.PubKey, p); err != nil {
		c.sendError(mapProposalErr(err), "proposal signature verification failed")
		return
	}
	p.Task = redact.Redact(p.Task).Text

	payload := wire.WithType(wire.TypeProposal, map[string]any{
		"proposal_id": p.ID, "from": p.From, "to": p.To, "task": p.Task,
		"amount": p.Amount, "currency": p.Currency, "payment_code": p.PaymentCode,
		"elo_stake_self": p.EloStakeFrom, "expires_at": p.ExpiresAt.UnixMilli(),
	})
	_ = target.Sender.Send(payload)
	_ = sess.Sender.Send(payload)
}

func handleAccept(s *Server, c *Conn, frame []byte) {
	sess, ok := s.requirePersistent(c)
	if !ok {
		return
	}
	var msg wire.AcceptMsg
	if err := wire.Decode(frame, &msg); err != nil {
		c.sendError(wire.ErrInvalidMsg, "malformed ACCEPT")
		return
	}
	p, err := s.proposals.Accept(context.Background(), sess.PubKey, msg.ProposalID, agentRef(sess.AgentID), msg.EloStake, msg.Signature)
	if err != nil {
		c.sendError(mapProposalErr(err), err.Error())
		return
	}
	s.hooks.Fire(context.Background(), hooks.Event{
		Kind: "escrow_opened", Subject: p.ID, Data: map[string]any{"from": p.From, "to": p.To},
	})
	s.notifyProposalParties(p, wire.WithType(wire.TypeAccept, map[string]any{
		"proposal_id": p.ID, "status": string(p.Status), "stakes_escrowed": p.StakesEscrowed,
	}))
}

func handleReject(s *Server, c *Conn, frame []byte) {
	sess, ok := s.requirePersistent(c)
	if !ok {
		return
	}
	var msg wire.RejectMsg
	if err := wire.Decode(frame, &msg); err != nil {
		c.sendError(wire.ErrInvalidMsg, "malformed REJECT")
		return
	}
	p, err := s.proposals.Reject(sess.PubKey, msg.ProposalID, agentRef(sess.AgentID), msg.Signature)
	if err != nil {
		c.sendError(mapProposalErr(err), err.Error())
		return
	}
	s.notifyProposalParties(p, wire.WithType(wire.TypeReject, map[string]any{
		"proposal_id": p.ID, "status": string(p.Status),
	}))
}

func handleComplete(s *Server, c *Conn, frame []byte) {
	sess, ok := s.requirePersistent(c)
	if !ok {
		return
	}
	var msg wire.CompleteMsg
	if err := wire.Decode(frame, &msg); err != nil {
		c.sendError(wire.ErrInvalidMsg, "malformed COMPLETE")
		return
	}
	p, changes, err := s.proposals.Complete(context.Background(), sess.PubKey, msg.ProposalID, agentRef(sess.AgentID), msg.Signature)
	if err != nil && p == nil {
		c.sendError(mapProposalErr(err), err.Error())
		return
	}
	var ratingChanges any
	if err != nil {
		s.log.Warn("reputation settlement failed on completion", "proposal", p.ID, "error", err)
	} else {
		wireChanges := make(map[string]int, len(changes))
		for agent, delta := range changes {
			wireChanges[agentRef(agent)] = delta
		}
		ratingChanges = wireChanges
		s.hooks.Fire(context.Background(), hooks.Event{
			Kind: "completion", Subject: p.ID, Data: map[string]any{"from": p.From, "to": p.To},
		})
	}
	s.notifyProposalParties(p, wire.WithType(wire.TypeComplete, map[string]any{
		"proposal_id": p.ID, "status": string(p.Status), "rating_changes": ratingChanges,
	}))
}

package server

import (
	"context"
	"time"

	"github.com/agentchat/server/internal/arbitration"
	"github.com/agentchat/server/internal/hooks"
	"github.com/agentchat/server/internal/proposal"
	"github.com/agentchat/server/internal/redact"
	"github.com/agentchat/server/internal/wire"
)

func mapArbitrationErr(err error) wire.ErrCode {
	switch err {
	case arbitration.ErrDisputeExists:
		return wire.ErrDisputeExists
	case arbitration.ErrDisputeNotFound:
		return wire.ErrDisputeNotFound
	case arbitration.ErrNotParty:
		return wire.ErrDisputeNotParty
	case arbitration.ErrNotArbiter:
		return wire.ErrDisputeNotArbiter
	case arbitration.ErrCommitmentMismatch:
		return wire.ErrCommitmentMismatch
	case arbitration.ErrVerification:
		return wire.ErrVerificationFailed
	case arbitration.ErrDeadlinePassed:
		return wire.ErrDisputeDeadlinePast
	default:
		return wire.ErrDisputeNotFound
	}
}

func handleDisputeIntent(s *Server, c *Conn, frame []byte) {
	sess, ok := s.requirePersistent(c)
	if !ok {
		return
	}
	var msg wire.DisputeIntentMsg
	if err := wire.Decode(frame, &msg); err != nil {
		c.sendError(wire.ErrInvalidMsg, "malformed DISPUTE_INTENT")
		return
	}
	p, ok := s.proposals.Get(msg.ProposalID)
	if !ok {
		c.sendError(wire.ErrProposalNotFound, "no such proposal")
		return
	}
	if p.Status != proposal.StatusAccepted {
		c.sendError(wire.ErrInvalidProposal, "proposal is not in a disputable state")
		return
	}
	self := agentRef(sess.AgentID)
	var respondent string
	switch self {
	case p.From:
		respondent = p.To
	case p.To:
		respondent = p.From
	default:
		c.sendError(wire.ErrNotProposalParty, "not a party to this proposal")
		return
	}

	d, err := s.arbitration.Intent(sess.PubKey, msg.ProposalID, self, respondent, msg.Commitment, msg.Signature)
	if err != nil {
		c.sendError(mapArbitrationErr(err), err.Error())
		return
	}
	if _, err := s.proposals.MarkDisputed(msg.ProposalID); err != nil {
		s.log.Warn("mark disputed failed", "proposal", msg.ProposalID, "error", err)
	}

	_ = sess.Sender.Send(wire.WithType(wire.TypeDisputeIntentAck, map[string]any{
		"dispute_id": d.ID, "server_nonce": d.ServerNonce, "reveal_deadline": d.RevealDeadline.UnixMilli(),
	}))
	s.timers.Set("dispute-reveal:"+d.ID, time.Until(d.RevealDeadline), func() {
		s.post(func(s *Server) { s.expireRevealDeadline(d.ID) })
	})
}

func (s *Server) expireRevealDeadline(disputeID string) {
	d, ok := s.arbitration.Get(disputeID)
	if !ok {
		return
	}
	d.Lock()
	stale := d.Phase == arbitration.PhaseRevealPending && !time.Now().Before(d.RevealDeadline)
	if stale {
		d.Phase = arbitration.PhaseFallback
	}
	d.Unlock()
	if stale {
		s.notifyDisputeParties(d, wire.WithType(wire.TypeDisputeFallback, map[string]any{
			"dispute_id": d.ID, "reason": "reveal_timeout",
		}))
	}
}

func handleDisputeReveal(s *Server, c *Conn, frame []byte) {
	sess, ok := s.requirePersistent(c)
	if !ok {
		return
	}
	var msg wire.DisputeRevealMsg
	if err := wire.Decode(frame, &msg); err != nil {
		c.sendError(wire.ErrInvalidMsg, "malformed DISPUTE_REVEAL")
		return
	}
	reason := redact.Redact(msg.Reason).Text
	d, err := s.arbitration.Reveal(context.Background(), sess.PubKey, msg.DisputeID, msg.Nonce, reason, msg.Signature, time.Now())
	if err != nil {
		if d != nil && d.Phase == arbitration.PhaseFallback {
			s.notifyDisputeParties(d, wire.WithType(wire.TypeDisputeFallback, map[string]any{
				"dispute_id": d.ID, "reason": "reveal_timeout",
			}))
			return
		}
		c.sendError(mapArbitrationErr(err), err.Error())
		return
	}
	s.timers.Cancel("dispute-reveal:" + d.ID)

	if d.Phase == arbitration.PhaseFallback {
		s.notifyDisputeParties(d, wire.WithType(wire.TypeDisputeFallback, map[string]any{
			"dispute_id": d.ID, "reason": "insufficient_pool",
		}))
		return
	}

	panelIDs := make([]string, 0, len(d.Panel))
	for _, slot := range d.Panel {
		panelIDs = append(panelIDs, agentRef(slot.AgentID))
	}
	s.notifyDisputeParties(d, wire.WithType(wire.TypePanelFormed, map[string]any{
		"dispute_id": d.ID, "panel": panelIDs,
	}))
	s.notifyPanel(d, wire.WithType(wire.TypeArbiterAssigned, map[string]any{
		"dispute_id": d.ID, "proposal_id": d.ProposalID,
	}))
	s.timers.Set("dispute-response:"+d.ID, time.Until(d.ResponseDeadline), func() {
		s.post(func(s *Server) { s.expireResponseDeadline(d.ID) })
	})
}

func (s *Server) expireResponseDeadline(disputeID string) {
	d, ok := s.arbitration.Get(disputeID)
	if !ok {
		return
	}
	d.Lock()
	stale := d.Phase == arbitration.PhaseArbiterResponse && !time.Now().Before(d.ResponseDeadline)
	if stale {
		d.Phase = arbitration.PhaseFallback
	}
	d.Unlock()
	if stale {
		s.notifyDisputeAndPanel(d, wire.WithType(wire.TypeDisputeFallback, map[string]any{
			"dispute_id": d.ID, "reason": "response_timeout",
		}))
	}
}

func handleEvidence(s *Server, c *Conn, frame []byte) {
	sess, ok := s.requirePersistent(c)
	if !ok {
		return
	}
	var msg wire.EvidenceMsg
	if err := wire.Decode(frame, &msg); err != nil {
		c.sendError(wire.ErrInvalidMsg, "malformed EVIDENCE")
		return
	}
	statement := redact.Redact(msg.Statement).Text
	d, caseReady, err := s.arbitration.SubmitEvidence(msg.DisputeID, agentRef(sess.AgentID), msg.Items, statement, time.Now())
	if err != nil {
		c.sendError(mapArbitrationErr(err), err.Error())
		return
	}
	if caseReady {
		s.timers.Cancel("dispute-evidence:" + d.ID)
		s.timers.Set("dispute-vote:"+d.ID, time.Until(d.VoteDeadline), func() {
			s.post(func(s *Server) { s.expireVoteDeadline(d.ID) })
		})
		s.notifyDisputeAndPanel(d, wire.WithType(wire.TypeCaseReady, map[string]any{"dispute_id": d.ID}))
	}
}

func (s *Server) expireEvidenceDeadline(disputeID string) {
	d, err := s.arbitration.ExpireEvidenceWindow(disputeID, time.Now())
	if err != nil || d == nil || d.Phase != arbitration.PhaseDeliberation {
		return
	}
	s.timers.Set("dispute-vote:"+d.ID, time.Until(d.VoteDeadline), func() {
		s.post(func(s *Server) { s.expireVoteDeadline(d.ID) })
	})
	s.notifyDisputeAndPanel(d, wire.WithType(wire.TypeCaseReady, map[string]any{"dispute_id": d.ID}))
}

func handleArbiterAccept(s *Server, c *Conn, frame []byte) {
	sess, ok := s.requirePersistent(c)
	if !ok {
		return
	}
	var msg wire.ArbiterAcceptMsg
	if err := wire.Decode(frame, &msg); err != nil {
		c.sendError(wire.ErrInvalidMsg, "malformed ARBITER_ACCEPT")
		return
	}
	d, err := s.arbitration.Accept(sess.PubKey, msg.DisputeID, sess.AgentID, msg.Signature)
	if err != nil {
		c.sendError(mapArbitrationErr(err), err.Error())
		return
	}
	if d.Phase == arbitration.PhaseEvidence {
		s.timers.Cancel("dispute-response:" + d.ID)
		s.timers.Set("dispute-evidence:"+d.ID, time.Until(d.EvidenceDeadline), func() {
			s.post(func(s *Server) { s.expireEvidenceDeadline(d.ID) })
		})
	}
}

func handleArbiterDecline(s *Server, c *Conn, frame []byte) {
	sess, ok := s.requirePersistent(c)
	if !ok {
		return
	}
	var msg wire.ArbiterDeclineMsg
	if err := wire.Decode(frame, &msg); err != nil {
		c.sendError(wire.ErrInvalidMsg, "malformed ARBITER_DECLINE")
		return
	}
	d, err := s.arbitration.Decline(context.Background(), sess.PubKey, msg.DisputeID, sess.AgentID, msg.Signature)
	if err != nil {
		c.sendError(mapArbitrationErr(err), err.Error())
		return
	}
	if d.Phase == arbitration.PhaseFallback {
		s.timers.Cancel("dispute-response:" + d.ID)
		s.notifyDisputeAndPanel(d, wire.WithType(wire.TypeDisputeFallback, map[string]any{
			"dispute_id": d.ID, "reason": "replacement_exhausted",
		}))
		return
	}
	s.notifyPanel(d, wire.WithType(wire.TypeArbiterAssigned, map[string]any{
		"dispute_id": d.ID, "proposal_id": d.ProposalID,
	}))
}

func handleArbiterVote(s *Server, c *Conn, frame []byte) {
	sess, ok := s.requirePersistent(c)
	if !ok {
		return
	}
	var msg wire.ArbiterVoteMsg
	if err := wire.Decode(frame, &msg); err != nil {
		c.sendError(wire.ErrInvalidMsg, "malformed ARBITER_VOTE")
		return
	}
	reasoning := redact.Redact(msg.Reasoning).Text
	d, resolved, err := s.arbitration.Vote(sess.PubKey, msg.DisputeID, sess.AgentID, arbitration.Verdict(msg.Verdict), reasoning, msg.Signature)
	if err != nil {
		c.sendError(mapArbitrationErr(err), err.Error())
		return
	}
	if resolved {
		s.timers.Cancel("dispute-vote:" + d.ID)
		s.settleDispute(d)
	}
}

func (s *Server) expireVoteDeadline(disputeID string) {
	d, err := s.arbitration.ExpireVoteDeadline(disputeID)
	if err != nil || d == nil || d.Phase != arbitration.PhaseResolved {
		return
	}
	s.settleDispute(d)
}

func (s *Server) settleDispute(d *arbitration.Dispute) {
	ctx := context.Background()
	if err := s.arbitration.Settle(ctx, d); err != nil {
		s.log.Warn("verdict settlement failed", "dispute", d.ID, "error", err)
	}
	s.hooks.Fire(ctx, hooks.Event{
		Kind: "verdict_resolved", Subject: d.ID,
		Data: map[string]any{"proposal_id": d.ProposalID, "verdict": string(d.Verdict)},
	})
	s.notifyDisputeAndPanel(d, wire.WithType(wire.TypeVerdict, map[string]any{
		"dispute_id": d.ID, "verdict": string(d.Verdict),
	}))
	s.notifyDisputeAndPanel(d, wire.WithType(wire.TypeSettlementDone, map[string]any{
		"dispute_id": d.ID, "verdict": string(d.Verdict),
	}))
}

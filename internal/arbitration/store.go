package arbitration

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/agentchat/server/internal/identity"
	"github.com/agentchat/server/internal/reputation"
	"github.com/agentchat/server/internal/wire"
)

// PoolProvider resolves the current candidate pool (every connected
// persistent, non-away/offline agent with its reputation snapshot). The
// arbitration package does not own session or reputation state directly;
// the server wires this from internal/session + internal/reputation.
type PoolProvider func(ctx context.Context) ([]Candidate, error)

// Store is the Arbitration Store: dispute records in a commit-reveal
// state machine, indexed by id and by proposal.
type Store struct {
	mu         sync.RWMutex
	byID       map[string]*Dispute
	byProposal map[string]string

	rep  reputation.Store
	pool PoolProvider

	responseTimeout time.Duration
	revealTimeout   time.Duration
	evidenceTimeout time.Duration
	voteTimeout     time.Duration
}

func NewStore(rep reputation.Store, pool PoolProvider) *Store {
	return &Store{
		byID:            make(map[string]*Dispute),
		byProposal:      make(map[string]string),
		rep:             rep,
		pool:            pool,
		responseTimeout: 2 * time.Minute,
		revealTimeout:   5 * time.Minute,
		evidenceTimeout: 10 * time.Minute,
		voteTimeout:     10 * time.Minute,
	}
}

func newDisputeID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err == nil {
		return "disp-" + hex.EncodeToString(b[:])
	}
	return fmt.Sprintf("disp-%d", time.Now().UnixNano())
}

func randomNonce() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

func commitmentHash(nonce, reason string) string {
	sum := sha256.Sum256([]byte(nonce + reason))
	return hex.EncodeToString(sum[:])
}

// stripAt converts a wire-facing "@<id>" reference back to the bare
// agent id used by the candidate pool and the Reputation Store. Dispute
// records keep Disputant/Respondent "@"-prefixed for the wire layer;
// this package's own comparisons need the bare form.
func stripAt(ref string) string {
	if len(ref) > 0 && ref[0] == '@' {
		return ref[1:]
	}
	return ref
}

var (
	ErrDisputeExists       = fmt.Errorf("arbitration: an active dispute already exists for this proposal")
	ErrDisputeNotFound     = fmt.Errorf("arbitration: dispute not found")
	ErrNotParty            = fmt.Errorf("arbitration: caller is not a party to this dispute")
	ErrNotArbiter          = fmt.Errorf("arbitration: caller is not an arbiter on this dispute")
	ErrWrongPhase          = fmt.Errorf("arbitration: operation not valid in current phase")
	ErrCommitmentMismatch  = fmt.Errorf("arbitration: revealed nonce does not match commitment")
	ErrVerification        = fmt.Errorf("arbitration: signature verification failed")
	ErrDeadlinePassed      = fmt.Errorf("arbitration: deadline has passed")
)

// Intent files a DISPUTE_INTENT: records the commitment, starts the
// reveal timeout, and returns the server nonce to the disputant.
func (s *Store) Intent(disputantPub ed25519.PublicKey, proposalID, disputant, respondent, commitment, signature string) (*Dispute, error) {
	payload := wire.DisputeIntentPayload(proposalID, disputant, commitment)
	if err := identity.VerifySignature(disputantPub, payload, signature); err != nil {
		return nil, ErrVerification
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byProposal[proposalID]; exists {
		return nil, ErrDisputeExists
	}

	serverNonce, err := randomNonce()
	if err != nil {
		return nil, fmt.Errorf("arbitration: generate server nonce: %w", err)
	}

	d := &Dispute{
		ID:             newDisputeID(),
		ProposalID:     proposalID,
		Disputant:      disputant,
		Respondent:     respondent,
		Commitment:     commitment,
		ServerNonce:    serverNonce,
		Phase:          PhaseRevealPending,
		RevealDeadline: time.Now().Add(s.revealTimeout),
		CreatedAt:      time.Now(),
	}
	s.byID[d.ID] = d
	s.byProposal[proposalID] = d.ID

	return d, nil
}

// Get returns a dispute by id.
func (s *Store) Get(id string) (*Dispute, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byID[id]
	return d, ok
}

// activePanelCount counts how many non-terminal disputes agentID
// currently serves on as an accepted or pending arbiter, used by the
// eligibility pool's <3-active-panels rule.
func (s *Store) activePanelCount(agentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, d := range s.byID {
		if d.Phase == PhaseResolved || d.Phase == PhaseFallback {
			continue
		}
		for _, slot := range d.Panel {
			if slot.AgentID == agentID && (slot.Status == SlotPending || slot.Status == SlotAccepted) {
				count++
			}
		}
	}
	return count
}

// Reveal processes DISPUTE_REVEAL under the dispute's lock: verifies the
// preimage against the commitment, builds the eligibility pool, and
// deterministically selects a panel (or moves to fallback).
func (s *Store) Reveal(ctx context.Context, disputantPub ed25519.PublicKey, disputeID, nonce, reason, signature string, now time.Time) (*Dispute, error) {
	d, ok := s.Get(disputeID)
	if !ok {
		return nil, ErrDisputeNotFound
	}

	d.Lock()
	defer d.Unlock()

	if d.Phase != PhaseRevealPending {
		return nil, ErrWrongPhase
	}
	if !now.Before(d.RevealDeadline) {
		d.Phase = PhaseFallback
		return d, ErrDeadlinePassed
	}

	payload := wire.DisputeRevealPayload(disputeID, nonce, reason)
	if err := identity.VerifySignature(disputantPub, payload, signature); err != nil {
		return nil, ErrVerification
	}
	if commitmentHash(nonce, reason) != d.Commitment {
		return nil, ErrCommitmentMismatch
	}

	d.RevealedNonce = nonce
	d.Reason = reason

	pool, err := s.pool(ctx)
	if err != nil {
		return nil, fmt.Errorf("arbitration: resolve candidate pool: %w", err)
	}
	parties := map[string]bool{stripAt(d.Disputant): true, stripAt(d.Respondent): true}
	selected, ok := SelectPanel(pool, parties, s.activePanelCount, d.ServerNonce, nonce, PanelSize)
	if !ok {
		d.Phase = PhaseFallback
		return d, nil
	}

	d.Panel = make([]ArbiterSlot, len(selected))
	for i, id := range selected {
		d.Panel[i] = ArbiterSlot{AgentID: id, Status: SlotPending}
	}
	d.Phase = PhaseArbiterResponse
	d.ResponseDeadline = now.Add(s.responseTimeout)
	return d, nil
}

func slotIndex(d *Dispute, agentID string) int {
	for i := range d.Panel {
		if d.Panel[i].AgentID == agentID {
			return i
		}
	}
	return -1
}

// Accept processes ARBITER_ACCEPT.
func (s *Store) Accept(arbiterPub ed25519.PublicKey, disputeID, arbiterID, signature string) (*Dispute, error) {
	d, ok := s.Get(disputeID)
	if !ok {
		return nil, ErrDisputeNotFound
	}
	d.Lock()
	defer d.Unlock()

	if d.Phase != PhaseArbiterResponse {
		return nil, ErrWrongPhase
	}
	idx := slotIndex(d, arbiterID)
	if idx < 0 || d.Panel[idx].Status != SlotPending {
		return nil, ErrNotArbiter
	}
	payload := wire.ArbiterAcceptPayload(disputeID, arbiterID)
	if err := identity.VerifySignature(arbiterPub, payload, signature); err != nil {
		return nil, ErrVerification
	}
	d.Panel[idx].Status = SlotAccepted

	if allAccepted(d.Panel) {
		d.Phase = PhaseEvidence
		d.EvidenceDeadline = time.Now().Add(s.evidenceTimeout)
	}
	return d, nil
}

func allAccepted(panel []ArbiterSlot) bool {
	for _, s := range panel {
		if s.Status != SlotAccepted {
			return false
		}
	}
	return len(panel) > 0
}

// Decline processes ARBITER_DECLINE: replaces the slot via a capped
// replacement draw, falling back if the cap is exceeded or no
// candidates remain.
func (s *Store) Decline(ctx context.Context, arbiterPub ed25519.PublicKey, disputeID, arbiterID, signature string) (*Dispute, error) {
	d, ok := s.Get(disputeID)
	if !ok {
		return nil, ErrDisputeNotFound
	}
	d.Lock()
	defer d.Unlock()

	if d.Phase != PhaseArbiterResponse {
		return nil, ErrWrongPhase
	}
	idx := slotIndex(d, arbiterID)
	if idx < 0 || d.Panel[idx].Status != SlotPending {
		return nil, ErrNotArbiter
	}
	payload := wire.ArbiterDeclinePayload(disputeID, arbiterID)
	if err := identity.VerifySignature(arbiterPub, payload, signature); err != nil {
		return nil, ErrVerification
	}
	d.Panel[idx].Status = SlotDeclined

	d.ReplacementRounds++
	if d.ReplacementRounds > MaxReplacementRounds {
		d.Phase = PhaseFallback
		return d, nil
	}

	pool, err := s.pool(ctx)
	if err != nil {
		return nil, fmt.Errorf("arbitration: resolve candidate pool: %w", err)
	}
	excluded := map[string]bool{stripAt(d.Disputant): true, stripAt(d.Respondent): true}
	for _, slot := range d.Panel {
		excluded[slot.AgentID] = true
	}
	replacement, ok := SelectReplacement(pool, excluded, s.activePanelCount, d.ServerNonce, d.RevealedNonce, d.ReplacementRounds)
	if !ok {
		d.Phase = PhaseFallback
		return d, nil
	}
	d.Panel[idx] = ArbiterSlot{AgentID: replacement, Status: SlotPending}
	return d, nil
}

// SubmitEvidence records one party's evidence bundle. Each party may
// submit exactly once; once submitted (or the deadline passes) further
// submission fails.
func (s *Store) SubmitEvidence(disputeID, party string, items []string, statement string, now time.Time) (*Dispute, bool, error) {
	d, ok := s.Get(disputeID)
	if !ok {
		return nil, false, ErrDisputeNotFound
	}
	d.Lock()
	defer d.Unlock()

	if d.Phase != PhaseEvidence {
		return nil, false, ErrWrongPhase
	}
	if !now.Before(d.EvidenceDeadline) {
		return nil, false, ErrDeadlinePassed
	}

	switch party {
	case d.Disputant:
		if d.DisputantEvidence.Submitted {
			return nil, false, fmt.Errorf("arbitration: evidence already submitted")
		}
		d.DisputantEvidence = EvidencePacket{Items: items, Statement: statement, Submitted: true}
	case d.Respondent:
		if d.RespondentEvidence.Submitted {
			return nil, false, fmt.Errorf("arbitration: evidence already submitted")
		}
		d.RespondentEvidence = EvidencePacket{Items: items, Statement: statement, Submitted: true}
	default:
		return nil, false, ErrNotParty
	}

	caseReady := d.DisputantEvidence.Submitted && d.RespondentEvidence.Submitted
	if caseReady {
		s.beginDeliberationLocked(d, now)
	}
	return d, caseReady, nil
}

// ExpireEvidenceWindow moves a dispute whose evidence deadline has
// passed into deliberation regardless of submission state, per spec.md
// "both bundles (or the deadline) trigger CASE_READY."
func (s *Store) ExpireEvidenceWindow(disputeID string, now time.Time) (*Dispute, error) {
	d, ok := s.Get(disputeID)
	if !ok {
		return nil, ErrDisputeNotFound
	}
	d.Lock()
	defer d.Unlock()
	if d.Phase != PhaseEvidence {
		return d, nil
	}
	s.beginDeliberationLocked(d, now)
	return d, nil
}

func (s *Store) beginDeliberationLocked(d *Dispute, now time.Time) {
	d.Phase = PhaseDeliberation
	d.VoteDeadline = now.Add(s.voteTimeout)
}

// Vote processes ARBITER_VOTE. If every accepted arbiter has now voted,
// the dispute resolves immediately.
func (s *Store) Vote(arbiterPub ed25519.PublicKey, disputeID, arbiterID string, verdict Verdict, reasoning, signature string) (*Dispute, bool, error) {
	d, ok := s.Get(disputeID)
	if !ok {
		return nil, false, ErrDisputeNotFound
	}
	d.Lock()
	defer d.Unlock()

	if d.Phase != PhaseDeliberation {
		return nil, false, ErrWrongPhase
	}
	idx := slotIndex(d, arbiterID)
	if idx < 0 || d.Panel[idx].Status != SlotAccepted {
		return nil, false, ErrNotArbiter
	}
	payload := wire.ArbiterVotePayload(disputeID, arbiterID, string(verdict))
	if err := identity.VerifySignature(arbiterPub, payload, signature); err != nil {
		return nil, false, ErrVerification
	}

	d.Panel[idx].Status = SlotVoted
	d.Panel[idx].Vote = verdict
	d.Panel[idx].Reasoning = reasoning

	resolved := false
	if allVotedOrTerminal(d.Panel) {
		d.Verdict = TallyVerdict(d.Panel)
		d.Phase = PhaseResolved
		resolved = true
	}
	return d, resolved, nil
}

func allVotedOrTerminal(panel []ArbiterSlot) bool {
	for _, s := range panel {
		if s.Status == SlotAccepted {
			return false
		}
	}
	return true
}

// ExpireVoteDeadline forfeits any accepted-but-not-voted arbiters and
// resolves the dispute on the votes cast so far.
func (s *Store) ExpireVoteDeadline(disputeID string) (*Dispute, error) {
	d, ok := s.Get(disputeID)
	if !ok {
		return nil, ErrDisputeNotFound
	}
	d.Lock()
	defer d.Unlock()
	if d.Phase != PhaseDeliberation {
		return d, nil
	}
	for i := range d.Panel {
		if d.Panel[i].Status == SlotAccepted {
			d.Panel[i].Status = SlotForfeited
		}
	}
	d.Verdict = TallyVerdict(d.Panel)
	d.Phase = PhaseResolved
	return d, nil
}

// Settle applies the resolved verdict to the Reputation Store and
// returns the per-agent rating changes for VERDICT/SETTLEMENT_COMPLETE.
func (s *Store) Settle(ctx context.Context, d *Dispute) error {
	d.Lock()
	verdict := d.Verdict
	majority := MajorityVoters(d.Panel, verdict)
	forfeited := ForfeitedArbiters(d.Panel)
	disputant, respondent := d.Disputant, d.Respondent
	proposalID, disputeID := d.ProposalID, d.ID
	d.Unlock()

	return s.rep.ApplyVerdictSettlement(ctx, reputation.VerdictSettlement{
		DisputeID:    disputeID,
		ProposalID:   proposalID,
		Verdict:      string(verdict),
		Disputant:    stripAt(disputant),
		Respondent:   stripAt(respondent),
		ArbiterVotes: majority,
		Forfeited:    forfeited,
	})
}

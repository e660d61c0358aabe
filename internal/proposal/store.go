package proposal

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/agentchat/server/internal/identity"
	"github.com/agentchat/server/internal/reputation"
	"github.com/agentchat/server/internal/wire"
)

// Store is the finite-state machine over proposals, indexed by id and by owner.
type Store struct {
	mu         sync.RWMutex
	byID       map[string]*Proposal
	byOwner    map[string][]string // agent id -> proposal ids (from or to)
	reputation reputation.Store
}

func NewStore(rep reputation.Store) *Store {
	return &Store{
		byID:       make(map[string]*Proposal),
		byOwner:    make(map[string][]string),
		reputation: rep,
	}
}

func newProposalID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err == nil {
		return "prop-" + hex.EncodeToString(b[:])
	}
	return fmt.Sprintf("prop-%d", time.Now().UnixNano())
}

// Create validates the proposer's signature and inserts a new pending proposal.
func (s *Store) Create(fromPub ed25519.PublicKey, p *Proposal) error {
	payload := wire.ProposalPayload(p.From, p.To, p.Task, p.Amount, p.Currency, p.ExpiresAt.UnixMilli())
	if err := identity.VerifySignature(fromPub, payload, p.Signature); err != nil {
		return errVerification
	}

	p.ID = newProposalID()
	p.Status = StatusPending
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[p.ID] = p
	s.byOwner[p.From] = append(s.byOwner[p.From], p.ID)
	s.byOwner[p.To] = append(s.byOwner[p.To], p.ID)
	return nil
}

// Get returns a proposal by id.
func (s *Store) Get(id string) (*Proposal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	return p, ok
}

// ForAgent returns every proposal id where agent is either party.
func (s *Store) ForAgent(agent string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.byOwner[agent]))
	copy(out, s.byOwner[agent])
	return out
}

var (
	errVerification = fmt.Errorf("proposal: signature verification failed")
	errNotPending   = fmt.Errorf("proposal: not pending")
	errNotParty     = fmt.Errorf("proposal: caller is not a party to this proposal")
	errInsufficient = fmt.Errorf("proposal: insufficient reputation to stake")
)

func IsVerificationError(err error) bool      { return err == errVerification }
func IsNotPendingError(err error) bool        { return err == errNotPending }
func IsNotPartyError(err error) bool          { return err == errNotParty }
func IsInsufficientReputation(err error) bool { return err == errInsufficient }

// stripAt converts a wire-facing "@<id>" reference back to the bare
// agent id the Reputation Store is keyed by. Proposal.From/To stay
// "@"-prefixed for the wire layer; reputation lookups need the bare form.
func stripAt(ref string) string {
	if len(ref) > 0 && ref[0] == '@' {
		return ref[1:]
	}
	return ref
}

// Accept verifies the acceptor's signature over the ACCEPT payload,
// performs reputation stake pre-flight for both parties, and on success
// opens escrow and transitions pending -> accepted. On
// INSUFFICIENT_REPUTATION the proposal remains pending.
func (s *Store) Accept(ctx context.Context, acceptorPub ed25519.PublicKey, proposalID, acceptor string, eloStake int, signature string) (*Proposal, error) {
	s.mu.Lock()
	p, ok := s.byID[proposalID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("proposal: not found")
	}
	if p.To != acceptor {
		return nil, errNotParty
	}
	if p.Status != StatusPending {
		return nil, errNotPending
	}

	payload := wire.AcceptPayload(proposalID, acceptor, eloStake)
	if err := identity.VerifySignature(acceptorPub, payload, signature); err != nil {
		return nil, errVerification
	}

	if p.EloStakeFrom > 0 {
		ok, _, err := s.reputation.CanStake(ctx, stripAt(p.From), p.EloStakeFrom)
		if err != nil {
			return nil, fmt.Errorf("proposal: canStake(proposer): %w", err)
		}
		if !ok {
			return nil, errInsufficient
		}
	}
	if eloStake > 0 {
		ok, _, err := s.reputation.CanStake(ctx, stripAt(acceptor), eloStake)
		if err != nil {
			return nil, fmt.Errorf("proposal: canStake(acceptor): %w", err)
		}
		if !ok {
			return nil, errInsufficient
		}
	}

	s.mu.Lock()
	p.EloStakeTo = eloStake
	p.Status = StatusAccepted
	p.UpdatedAt = time.Now()
	s.mu.Unlock()

	escrowErr := s.reputation.CreateEscrow(ctx, proposalID, stripAt(p.From), stripAt(p.To), p.ExpiresAt)
	s.mu.Lock()
	p.StakesEscrowed = escrowErr == nil
	s.mu.Unlock()
	// Escrow failure after a successful ACCEPT leaves the proposal
	// accepted but with stakes_escrowed=false; log-and-proceed per
	// spec.md §7, never reject the already-verified acceptance.

	return p, nil
}

// Reject verifies the rejecter's signature over the REJECT payload and
// transitions pending -> rejected.
func (s *Store) Reject(rejecterPub ed25519.PublicKey, proposalID, rejecter, signature string) (*Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[proposalID]
	if !ok {
		return nil, fmt.Errorf("proposal: not found")
	}
	if p.To != rejecter && p.From != rejecter {
		return nil, errNotParty
	}
	if p.Status != StatusPending {
		return nil, errNotPending
	}
	payload := wire.RejectPayload(proposalID, rejecter)
	if err := identity.VerifySignature(rejecterPub, payload, signature); err != nil {
		return nil, errVerification
	}
	p.Status = StatusRejected
	p.UpdatedAt = time.Now()
	return p, nil
}

// Complete verifies the completer's signature over the COMPLETE
// payload, settles reputation (favoring the completing party), and
// transitions accepted -> completed. Reputation failures are logged by
// the caller and do not roll back the state transition (spec.md §7).
func (s *Store) Complete(ctx context.Context, completerPub ed25519.PublicKey, proposalID, completer, signature string) (*Proposal, reputation.RatingChanges, error) {
	s.mu.Lock()
	p, ok := s.byID[proposalID]
	s.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("proposal: not found")
	}
	if p.To != completer && p.From != completer {
		return nil, nil, errNotParty
	}
	if p.Status != StatusAccepted {
		return nil, nil, errNotPending
	}
	payload := wire.CompletePayload(proposalID, completer)
	if err := identity.VerifySignature(completerPub, payload, signature); err != nil {
		return nil, nil, errVerification
	}

	other := p.From
	if completer == p.From {
		other = p.To
	}

	s.mu.Lock()
	p.Status = StatusCompleted
	p.UpdatedAt = time.Now()
	s.mu.Unlock()

	changes, err := s.reputation.ProcessCompletion(ctx, reputation.CompletionInput{
		ProposalID: proposalID, CompletingParty: stripAt(completer), OtherParty: stripAt(other),
	})
	if err != nil {
		// rating_changes: null rather than rolling back; see spec.md §7.
		return p, nil, fmt.Errorf("proposal: reputation settlement failed: %w", err)
	}
	return p, changes, nil
}

// MarkDisputed transitions accepted -> disputed. Called by the
// arbitration subsystem once DISPUTE_INTENT is accepted.
func (s *Store) MarkDisputed(proposalID string) (*Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[proposalID]
	if !ok {
		return nil, fmt.Errorf("proposal: not found")
	}
	if p.Status != StatusAccepted {
		return nil, errNotPending
	}
	p.Status = StatusDisputed
	p.UpdatedAt = time.Now()
	return p, nil
}

// SweepExpired transitions every pending proposal whose ExpiresAt has
// passed into StatusExpired, returning the ids that changed.
func (s *Store) SweepExpired(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []string
	for id, p := range s.byID {
		if p.Status == StatusPending && !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt) {
			p.Status = StatusExpired
			p.UpdatedAt = now
			expired = append(expired, id)
		}
	}
	return expired
}

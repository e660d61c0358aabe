package reputation

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type escrowRecord struct {
	ProposerSide string
	AcceptorSide string
	ExpiresAt    time.Time
	Settled      bool
}

// MemoryStore is an in-process map-backed Reputation Store, suitable for
// tests and ephemeral deployments.
type MemoryStore struct {
	mu       sync.Mutex
	ratings  map[string]Rating
	escrows  map[string]*escrowRecord
	initial  int
}

// NewMemoryStore creates an in-process store. New agents start at
// initialRating (spec.md leaves the starting rating to the
// implementation; 1000 is this repo's default, see DESIGN.md).
func NewMemoryStore(initialRating int) *MemoryStore {
	if initialRating <= 0 {
		initialRating = 1000
	}
	return &MemoryStore{
		ratings: make(map[string]Rating),
		escrows: make(map[string]*escrowRecord),
		initial: initialRating,
	}
}

func (m *MemoryStore) getLocked(agent string) Rating {
	r, ok := m.ratings[agent]
	if !ok {
		r = Rating{Rating: m.initial, Transactions: 0}
		m.ratings[agent] = r
	}
	return r
}

func (m *MemoryStore) GetRating(ctx context.Context, agent string) (Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(agent), nil
}

func (m *MemoryStore) CanStake(ctx context.Context, agent string, amount int) (bool, string, error) {
	if amount <= 0 {
		return true, "", nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.getLocked(agent)
	if r.Rating-amount < RatingFloor {
		return false, fmt.Sprintf("stake would drop rating below floor %d", RatingFloor), nil
	}
	return true, "", nil
}

func (m *MemoryStore) CreateEscrow(ctx context.Context, proposalID, proposerSide, acceptorSide string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.escrows[proposalID] = &escrowRecord{ProposerSide: proposerSide, AcceptorSide: acceptorSide, ExpiresAt: expiresAt}
	return nil
}

func (m *MemoryStore) ProcessCompletion(ctx context.Context, in CompletionInput) (RatingChanges, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	completing := m.getLocked(in.CompletingParty)
	other := m.getLocked(in.OtherParty)

	completing.Rating += 15
	completing.Transactions++
	other.Rating += 5
	other.Transactions++

	m.ratings[in.CompletingParty] = completing
	m.ratings[in.OtherParty] = other

	if esc, ok := m.escrows[in.ProposalID]; ok {
		esc.Settled = true
	}

	return RatingChanges{in.CompletingParty: 15, in.OtherParty: 5}, nil
}

func (m *MemoryStore) ProcessDispute(ctx context.Context, in DisputeInput) (RatingChanges, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	disputant := m.getLocked(in.Disputant)
	respondent := m.getLocked(in.Respondent)
	disputant.Transactions++
	respondent.Transactions++
	m.ratings[in.Disputant] = disputant
	m.ratings[in.Respondent] = respondent

	if esc, ok := m.escrows[in.ProposalID]; ok {
		esc.Settled = true
	}
	return RatingChanges{}, nil
}

func (m *MemoryStore) ApplyVerdictSettlement(ctx context.Context, s VerdictSettlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	disputant := m.getLocked(s.Disputant)
	respondent := m.getLocked(s.Respondent)

	switch s.Verdict {
	case "for-disputant":
		disputant.Rating += 20
		respondent.Rating -= 20
	case "for-respondent":
		respondent.Rating += 20
		disputant.Rating -= 20
	case "split":
		// Canonical no-majority outcome: no rating movement between the
		// parties themselves; see DESIGN.md Open Question decision.
	}
	disputant.Transactions++
	respondent.Transactions++
	m.ratings[s.Disputant] = disputant
	m.ratings[s.Respondent] = respondent

	for arbiter, votedMajority := range s.ArbiterVotes {
		a := m.getLocked(arbiter)
		if votedMajority {
			a.Rating += ArbiterReward
		}
		m.ratings[arbiter] = a
	}
	for _, arbiter := range s.Forfeited {
		a := m.getLocked(arbiter)
		a.Rating -= ArbiterStake
		m.ratings[arbiter] = a
	}

	if esc, ok := m.escrows[s.ProposalID]; ok {
		esc.Settled = true
	}
	return nil
}

func (m *MemoryStore) MigrateAgentID(ctx context.Context, oldID, newID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.ratings[oldID]; ok {
		m.ratings[newID] = r
		delete(m.ratings, oldID)
	}
	return nil
}

// Package reputation defines the external Reputation Store contract
// (spec.md §6) and ships an in-process and a sqlite-backed
// implementation of it.
package reputation

import (
	"context"
	"time"
)

// Rating is an agent's current standing.
type Rating struct {
	Rating       int
	Transactions int
}

// CompletionInput describes a proposal completion settlement.
type CompletionInput struct {
	ProposalID      string
	CompletingParty string
	OtherParty      string
}

// DisputeInput describes a legacy (non-arbitrated) dispute settlement.
type DisputeInput struct {
	ProposalID string
	Disputant  string
	Respondent string
}

// VerdictSettlement describes an arbitration panel's settlement.
type VerdictSettlement struct {
	DisputeID     string
	ProposalID    string
	Verdict       string // "for-disputant", "for-respondent", "split"
	Disputant     string
	Respondent    string
	ArbiterVotes  map[string]bool // arbiter id -> voted with majority
	Forfeited     []string        // arbiter ids who never voted
}

// RatingChanges maps agent id to signed rating delta.
type RatingChanges map[string]int

// Store is the minimal external contract every Reputation Store
// implementation (in-process or persistent) must satisfy.
type Store interface {
	GetRating(ctx context.Context, agent string) (Rating, error)
	CanStake(ctx context.Context, agent string, amount int) (bool, string, error)
	CreateEscrow(ctx context.Context, proposalID, proposerSide, acceptorSide string, expiresAt time.Time) error
	ProcessCompletion(ctx context.Context, in CompletionInput) (RatingChanges, error)
	ProcessDispute(ctx context.Context, in DisputeInput) (RatingChanges, error)
	ApplyVerdictSettlement(ctx context.Context, s VerdictSettlement) error
	MigrateAgentID(ctx context.Context, oldID, newID string) error
}

// Arbitration reward/penalty constants (spec.md §4.5).
const (
	MinRating       = 1200
	MinTransactions = 10
	ArbiterStake    = 50
	ArbiterReward   = 10
	RatingFloor     = 100
)

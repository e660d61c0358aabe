package reputation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS agent_ratings (
	agent_id TEXT PRIMARY KEY,
	rating INTEGER NOT NULL,
	transactions INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS escrows (
	proposal_id TEXT PRIMARY KEY,
	proposer_side TEXT,
	acceptor_side TEXT,
	expires_at DATETIME,
	settled BOOLEAN NOT NULL DEFAULT 0
);
`

// SQLiteStore is a sqlite-backed Reputation Store, opened with the same
// WAL-mode-plus-busy-timeout pragma and schema-on-open style as the
// teacher's sqlite-backed stores.
type SQLiteStore struct {
	db      *sql.DB
	initial int
}

// NewSQLiteStore opens (creating if absent) a sqlite reputation database at dbPath.
func NewSQLiteStore(dbPath string, initialRating int) (*SQLiteStore, error) {
	if initialRating <= 0 {
		initialRating = 1000
	}
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("reputation: open sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("reputation: apply schema: %w", err)
	}
	return &SQLiteStore{db: db, initial: initialRating}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) ensureRow(ctx context.Context, agent string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_ratings (agent_id, rating, transactions) VALUES (?, ?, 0)
		 ON CONFLICT(agent_id) DO NOTHING`, agent, s.initial)
	return err
}

func (s *SQLiteStore) GetRating(ctx context.Context, agent string) (Rating, error) {
	if err := s.ensureRow(ctx, agent); err != nil {
		return Rating{}, fmt.Errorf("reputation: ensure row: %w", err)
	}
	var r Rating
	row := s.db.QueryRowContext(ctx, `SELECT rating, transactions FROM agent_ratings WHERE agent_id = ?`, agent)
	if err := row.Scan(&r.Rating, &r.Transactions); err != nil {
		return Rating{}, fmt.Errorf("reputation: scan rating: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) CanStake(ctx context.Context, agent string, amount int) (bool, string, error) {
	if amount <= 0 {
		return true, "", nil
	}
	r, err := s.GetRating(ctx, agent)
	if err != nil {
		return false, "", err
	}
	if r.Rating-amount < RatingFloor {
		return false, fmt.Sprintf("stake would drop rating below floor %d", RatingFloor), nil
	}
	return true, "", nil
}

func (s *SQLiteStore) CreateEscrow(ctx context.Context, proposalID, proposerSide, acceptorSide string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO escrows (proposal_id, proposer_side, acceptor_side, expires_at, settled)
		 VALUES (?, ?, ?, ?, 0)
		 ON CONFLICT(proposal_id) DO UPDATE SET proposer_side=excluded.proposer_side, acceptor_side=excluded.acceptor_side, expires_at=excluded.expires_at`,
		proposalID, proposerSide, acceptorSide, expiresAt)
	if err != nil {
		return fmt.Errorf("reputation: create escrow: %w", err)
	}
	return nil
}

func (s *SQLiteStore) adjust(ctx context.Context, agent string, delta int) error {
	if err := s.ensureRow(ctx, agent); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE agent_ratings SET rating = rating + ?, transactions = transactions + 1 WHERE agent_id = ?`,
		delta, agent)
	return err
}

func (s *SQLiteStore) settleEscrow(ctx context.Context, proposalID string) {
	_, _ = s.db.ExecContext(ctx, `UPDATE escrows SET settled = 1 WHERE proposal_id = ?`, proposalID)
}

func (s *SQLiteStore) ProcessCompletion(ctx context.Context, in CompletionInput) (RatingChanges, error) {
	if err := s.adjust(ctx, in.CompletingParty, 15); err != nil {
		return nil, fmt.Errorf("reputation: completion settle completer: %w", err)
	}
	if err := s.adjust(ctx, in.OtherParty, 5); err != nil {
		return nil, fmt.Errorf("reputation: completion settle other: %w", err)
	}
	s.settleEscrow(ctx, in.ProposalID)
	return RatingChanges{in.CompletingParty: 15, in.OtherParty: 5}, nil
}

func (s *SQLiteStore) ProcessDispute(ctx context.Context, in DisputeInput) (RatingChanges, error) {
	if err := s.adjust(ctx, in.Disputant, 0); err != nil {
		return nil, fmt.Errorf("reputation: dispute touch disputant: %w", err)
	}
	if err := s.adjust(ctx, in.Respondent, 0); err != nil {
		return nil, fmt.Errorf("reputation: dispute touch respondent: %w", err)
	}
	s.settleEscrow(ctx, in.ProposalID)
	return RatingChanges{}, nil
}

func (s *SQLiteStore) ApplyVerdictSettlement(ctx context.Context, v VerdictSettlement) error {
	disputantDelta, respondentDelta := 0, 0
	switch v.Verdict {
	case "for-disputant":
		disputantDelta, respondentDelta = 20, -20
	case "for-respondent":
		disputantDelta, respondentDelta = -20, 20
	case "split":
		// no movement between parties; see DESIGN.md Open Question decision.
	}
	if err := s.adjust(ctx, v.Disputant, disputantDelta); err != nil {
		return fmt.Errorf("reputation: verdict settle disputant: %w", err)
	}
	if err := s.adjust(ctx, v.Respondent, respondentDelta); err != nil {
		return fmt.Errorf("reputation: verdict settle respondent: %w", err)
	}
	for arbiter, votedMajority := range v.ArbiterVotes {
		delta := 0
		if votedMajority {
			delta = ArbiterReward
		}
		if err := s.adjust(ctx, arbiter, delta); err != nil {
			return fmt.Errorf("reputation: verdict settle arbiter %s: %w", arbiter, err)
		}
	}
	for _, arbiter := range v.Forfeited {
		if err := s.adjust(ctx, arbiter, -ArbiterStake); err != nil {
			return fmt.Errorf("reputation: verdict forfeit arbiter %s: %w", arbiter, err)
		}
	}
	s.settleEscrow(ctx, v.ProposalID)
	return nil
}

func (s *SQLiteStore) MigrateAgentID(ctx context.Context, oldID, newID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE OR REPLACE agent_ratings SET agent_id = ? WHERE agent_id = ?`, newID, oldID)
	if err != nil {
		return fmt.Errorf("reputation: migrate agent id: %w", err)
	}
	return nil
}

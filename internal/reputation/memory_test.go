package reputation

import (
	"context"
	"testing"
)

func TestCanStakeFloor(t *testing.T) {
	s := NewMemoryStore(150)
	ctx := context.Background()
	ok, reason, err := s.CanStake(ctx, "@a", 100)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("expected stake to breach floor, reason=%q", reason)
	}

	ok, _, err = s.CanStake(ctx, "@b", 10)
	if err != nil || !ok {
		t.Fatalf("expected small stake to pass: ok=%v err=%v", ok, err)
	}
}

func TestProcessCompletionChanges(t *testing.T) {
	s := NewMemoryStore(1000)
	ctx := context.Background()
	changes, err := s.ProcessCompletion(ctx, CompletionInput{ProposalID: "p1", CompletingParty: "@b", OtherParty: "@a"})
	if err != nil {
		t.Fatal(err)
	}
	if changes["@b"] <= 0 {
		t.Fatal("completer should gain rating")
	}
	r, _ := s.GetRating(ctx, "@b")
	if r.Transactions != 1 {
		t.Fatalf("expected 1 transaction, got %d", r.Transactions)
	}
}

func TestVerdictSettlementSplitNoMovement(t *testing.T) {
	s := NewMemoryStore(1000)
	ctx := context.Background()
	before, _ := s.GetRating(ctx, "@disputant")
	err := s.ApplyVerdictSettlement(ctx, VerdictSettlement{
		Disputant: "@disputant", Respondent: "@respondent", Verdict: "split",
	})
	if err != nil {
		t.Fatal(err)
	}
	after, _ := s.GetRating(ctx, "@disputant")
	if after.Rating != before.Rating {
		t.Fatalf("expected no rating movement on split, before=%d after=%d", before.Rating, after.Rating)
	}
}

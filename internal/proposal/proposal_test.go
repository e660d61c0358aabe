package proposal

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"testing"
	"time"

	"github.com/agentchat/server/internal/reputation"
	"github.com/agentchat/server/internal/wire"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusAccepted, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusCompleted, false},
		{StatusAccepted, StatusCompleted, true},
		{StatusAccepted, StatusDisputed, true},
		{StatusAccepted, StatusRejected, false},
		{StatusCompleted, StatusAccepted, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s,%s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestHappyPath(t *testing.T) {
	pubA, privA, _ := ed25519.GenerateKey(nil)
	pubB, privB, _ := ed25519.GenerateKey(nil)
	rep := reputation.NewMemoryStore(1300)
	store := NewStore(rep)
	ctx := context.Background()

	expires := time.Now().Add(time.Hour)
	p := &Proposal{From: "@a", To: "@b", Task: "write docs", Amount: 10, Currency: "USD", ExpiresAt: expires, EloStakeFrom: 50}
	payload := wire.ProposalPayload(p.From, p.To, p.Task, p.Amount, p.Currency, expires.UnixMilli())
	p.Signature = base64.StdEncoding.EncodeToString(ed25519.Sign(privA, []byte(payload)))

	if err := store.Create(pubA, p); err != nil {
		t.Fatal(err)
	}
	if p.Status != StatusPending {
		t.Fatalf("expected pending, got %s", p.Status)
	}

	acceptPayload := wire.AcceptPayload(p.ID, "@b", 50)
	acceptSig := base64.StdEncoding.EncodeToString(ed25519.Sign(privB, []byte(acceptPayload)))
	accepted, err := store.Accept(ctx, pubB, p.ID, "@b", 50, acceptSig)
	if err != nil {
		t.Fatal(err)
	}
	if accepted.Status != StatusAccepted {
		t.Fatalf("expected accepted, got %s", accepted.Status)
	}
	if !accepted.StakesEscrowed {
		t.Fatal("expected stakes escrowed")
	}

	completePayload := wire.CompletePayload(p.ID, "@b")
	completeSig := base64.StdEncoding.EncodeToString(ed25519.Sign(privB, []byte(completePayload)))
	completed, changes, err := store.Complete(ctx, pubB, p.ID, "@b", completeSig)
	if err != nil {
		t.Fatal(err)
	}
	if completed.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}
	if changes["b"] <= 0 {
		t.Fatal("expected completer to gain rating")
	}
}

func TestAcceptInsufficientReputationStaysPending(t *testing.T) {
	pubA, privA, _ := ed25519.GenerateKey(nil)
	pubB, privB, _ := ed25519.GenerateKey(nil)
	rep := reputation.NewMemoryStore(150) // low rating
	store := NewStore(rep)
	ctx := context.Background()

	expires := time.Now().Add(time.Hour)
	p := &Proposal{From: "@a", To: "@b", Task: "t", Amount: 1, Currency: "USD", ExpiresAt: expires, EloStakeFrom: 100}
	payload := wire.ProposalPayload(p.From, p.To, p.Task, p.Amount, p.Currency, expires.UnixMilli())
	p.Signature = base64.StdEncoding.EncodeToString(ed25519.Sign(privA, []byte(payload)))
	if err := store.Create(pubA, p); err != nil {
		t.Fatal(err)
	}

	acceptPayload := wire.AcceptPayload(p.ID, "@b", 0)
	acceptSig := base64.StdEncoding.EncodeToString(ed25519.Sign(privB, []byte(acceptPayload)))
	_, err := store.Accept(ctx, pubB, p.ID, "@b", 0, acceptSig)
	if !IsInsufficientReputation(err) {
		t.Fatalf("expected insufficient reputation error, got %v", err)
	}
	got, _ := store.Get(p.ID)
	if got.Status != StatusPending {
		t.Fatalf("expected proposal to remain pending, got %s", got.Status)
	}
}

func TestSweepExpired(t *testing.T) {
	pubA, privA, _ := ed25519.GenerateKey(nil)
	rep := reputation.NewMemoryStore(1000)
	store := NewStore(rep)

	past := time.Now().Add(-time.Minute)
	p := &Proposal{From: "@a", To: "@b", Task: "t", Amount: 1, Currency: "USD", ExpiresAt: past}
	payload := wire.ProposalPayload(p.From, p.To, p.Task, p.Amount, p.Currency, past.UnixMilli())
	p.Signature = base64.StdEncoding.EncodeToString(ed25519.Sign(privA, []byte(payload)))
	if err := store.Create(pubA, p); err != nil {
		t.Fatal(err)
	}

	expired := store.SweepExpired(time.Now())
	if len(expired) != 1 {
		t.Fatalf("expected one expired proposal, got %d", len(expired))
	}
	got, _ := store.Get(p.ID)
	if got.Status != StatusExpired {
		t.Fatalf("expected expired, got %s", got.Status)
	}
}

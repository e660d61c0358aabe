package channel

import "testing"

func TestJoinIdempotent(t *testing.T) {
	s := NewStore(10)
	c, err := s.Create("#general", false, false)
	if err != nil {
		t.Fatal(err)
	}

	if !c.Join("@a1") {
		t.Fatal("first join should succeed")
	}
	if c.Join("@a1") {
		t.Fatal("second join should be idempotent (report false)")
	}
	if c.MemberCount() != 1 {
		t.Fatalf("expected 1 member, got %d", c.MemberCount())
	}
}

func TestInviteOnlyGate(t *testing.T) {
	s := NewStore(10)
	c, _ := s.Create("#secret", true, false)

	if err := c.CanJoin("@a1", false); err == nil {
		t.Fatal("expected rejection without invite")
	}
	c.Invite("@a1")
	if err := c.CanJoin("@a1", false); err != nil {
		t.Fatalf("expected admission after invite: %v", err)
	}
}

func TestVerifiedOnlyGate(t *testing.T) {
	s := NewStore(10)
	c, _ := s.Create("#verified", false, true)
	if err := c.CanJoin("@a1", false); err == nil {
		t.Fatal("expected rejection for unverified agent")
	}
	if err := c.CanJoin("@a1", true); err != nil {
		t.Fatalf("expected admission for verified agent: %v", err)
	}
}

func TestReplayRingEviction(t *testing.T) {
	s := NewStore(3)
	c, _ := s.Create("#ring", false, false)
	for i := 0; i < 5; i++ {
		c.Append(ReplayEntry{MsgID: string(rune('a' + i))})
	}
	replay := c.Replay()
	if len(replay) != 3 {
		t.Fatalf("expected ring capped at 3, got %d", len(replay))
	}
	if replay[0].MsgID != "c" {
		t.Fatalf("expected oldest retained entry to be 'c', got %q", replay[0].MsgID)
	}
}

func TestRemoveAgentFromAllChannels(t *testing.T) {
	s := NewStore(10)
	c1, _ := s.Create("#a", false, false)
	c2, _ := s.Create("#b", false, false)
	c1.Join("@x")
	c2.Join("@x")

	s.RemoveAgent("@x")

	if c1.IsMember("@x") || c2.IsMember("@x") {
		t.Fatal("expected agent removed from all channels")
	}
}

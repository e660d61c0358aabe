package session

import (
	"testing"
	"time"
)

type fakeSender struct {
	sent   []any
	closed bool
}

func (f *fakeSender) Send(v any) error { f.sent = append(f.sent, v); return nil }
func (f *fakeSender) Close() error     { f.closed = true; return nil }

func TestBindDisplacesPriorSession(t *testing.T) {
	m := NewManager(0, 0)
	first := m.Open("sess-1", &fakeSender{})
	second := m.Open("sess-2", &fakeSender{})

	_, displaced := m.Bind("sess-1", "@agent")
	if displaced != nil {
		t.Fatal("expected no displacement on first bind")
	}

	bound, displaced := m.Bind("sess-2", "@agent")
	if bound != second {
		t.Fatal("expected sess-2 to become the bound session")
	}
	if displaced == nil || displaced.ID != first.ID {
		t.Fatal("expected sess-1 to be displaced")
	}

	current, ok := m.GetByAgent("@agent")
	if !ok || current.ID != "sess-2" {
		t.Fatalf("expected @agent bound to sess-2, got %+v ok=%v", current, ok)
	}
	if _, stillOpen := m.Get("sess-1"); stillOpen {
		t.Fatal("expected displaced session removed from id index")
	}
}

func TestCloseRemovesFromBothMaps(t *testing.T) {
	m := NewManager(0, 0)
	m.Open("sess-1", &fakeSender{})
	m.Bind("sess-1", "@agent")

	m.Close("sess-1")

	if _, ok := m.Get("sess-1"); ok {
		t.Fatal("expected session removed from id index")
	}
	if _, ok := m.GetByAgent("@agent"); ok {
		t.Fatal("expected session removed from agent index")
	}
}

func TestAllowMessageRateLimitBoundary(t *testing.T) {
	m := NewManager(time.Second, 0)
	s := m.Open("sess-1", &fakeSender{})

	base := time.Now()
	if !m.AllowMessage(s, base) {
		t.Fatal("expected first message to be allowed")
	}
	if m.AllowMessage(s, base.Add(999*time.Millisecond)) {
		t.Fatal("expected message 1ms under the limit to be rejected")
	}
	if !m.AllowMessage(s, base.Add(time.Second)) {
		t.Fatal("expected message exactly at the limit to be allowed")
	}
}

func TestAllowNickChangeRateLimit(t *testing.T) {
	m := NewManager(0, 30*time.Second)
	s := m.Open("sess-1", &fakeSender{})

	base := time.Now()
	if !m.AllowNickChange(s, base) {
		t.Fatal("expected first nick change to be allowed")
	}
	if m.AllowNickChange(s, base.Add(29*time.Second)) {
		t.Fatal("expected nick change under the limit to be rejected")
	}
}

package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSetCancelsPrior(t *testing.T) {
	s := NewStore()
	var fired int32

	s.Set("k", 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	s.Set("k", 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	time.Sleep(60 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Fatalf("expected exactly one fire after re-Set, got %d", got)
	}
}

func TestCancelPreventsFire(t *testing.T) {
	s := NewStore()
	var fired int32
	s.Set("k", 10*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	if !s.Cancel("k") {
		t.Fatal("expected Cancel to report a pending timer was stopped")
	}
	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatal("expected cancelled timer not to fire")
	}
}

func TestPending(t *testing.T) {
	s := NewStore()
	if s.Pending("k") {
		t.Fatal("expected no pending timer initially")
	}
	s.Set("k", time.Minute, func() {})
	if !s.Pending("k") {
		t.Fatal("expected pending timer after Set")
	}
}

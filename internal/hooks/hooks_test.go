package hooks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestFireDeliversToSubscribers(t *testing.T) {
	d := NewDispatcher()
	var mu sync.Mutex
	var got []string

	d.Subscribe("verdict_resolved", func(ctx context.Context, ev Event) error {
		mu.Lock()
		got = append(got, ev.Subject)
		mu.Unlock()
		return nil
	})

	d.Fire(context.Background(), Event{Kind: "verdict_resolved", Subject: "disp-1"})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "disp-1" {
		t.Fatalf("expected one delivery for disp-1, got %v", got)
	}
}

func TestFireSwallowsHandlerError(t *testing.T) {
	d := NewDispatcher()
	called := make(chan struct{}, 1)
	d.Subscribe("escrow_opened", func(ctx context.Context, ev Event) error {
		called <- struct{}{}
		return errors.New("downstream unavailable")
	})

	d.Fire(context.Background(), Event{Kind: "escrow_opened", Subject: "p-1"})

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("expected handler to be invoked despite returning an error")
	}
}

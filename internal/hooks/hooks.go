// Package hooks dispatches fire-and-forget notifications for escrow and
// verdict events. Delivery failures are logged and never propagate back
// to the handler that triggered them, the same best-effort discipline
// internal/approval/manager.go uses around its timeline writes.
package hooks

import (
	"context"
	"log/slog"
	"sync"
)

// Event is one hook notification.
type Event struct {
	Kind    string // "escrow_opened", "escrow_settled", "verdict_resolved", "completion"
	Subject string // proposal id or dispute id
	Data    map[string]any
}

// Handler receives a fired event. A returned error is logged; it never
// reaches the original caller.
type Handler func(ctx context.Context, ev Event) error

// Dispatcher holds per-kind subscriber lists, grounded on
// internal/bus/bus.go's subs map[string][]func(...) dispatch table.
type Dispatcher struct {
	mu   sync.RWMutex
	subs map[string][]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{subs: make(map[string][]Handler)}
}

// Subscribe registers fn for every Fire of the given kind.
func (d *Dispatcher) Subscribe(kind string, fn Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs[kind] = append(d.subs[kind], fn)
}

// Fire dispatches ev to every subscriber of ev.Kind in its own
// goroutine. It never blocks the caller and never returns an error;
// each handler's failure is logged independently.
func (d *Dispatcher) Fire(ctx context.Context, ev Event) {
	d.mu.RLock()
	handlers := append([]Handler(nil), d.subs[ev.Kind]...)
	d.mu.RUnlock()

	for _, h := range handlers {
		go func(h Handler) {
			if err := h(ctx, ev); err != nil {
				slog.Warn("hook delivery failed", "kind", ev.Kind, "subject", ev.Subject, "error", err)
			}
		}(h)
	}
}

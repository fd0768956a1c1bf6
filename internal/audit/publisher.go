package audit

import (
	"context"
	"sync"
	"time"

	"waypost/pkg/requestcontext"
)

// Publisher captures structured audit events. Implementations must be safe
// for concurrent use; Emit must never block a request on a slow sink.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Decorate fills request-scoped metadata and the timestamp on an event.
func Decorate(ctx context.Context, event Event) Event {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = requestcontext.UserAgent(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	return event
}

// MemoryPublisher is an append-only in-memory sink for tests and dev runs.
type MemoryPublisher struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Emit(ctx context.Context, event Event) error {
	event = Decorate(ctx, event)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a snapshot of everything emitted so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// EventsSince filters the snapshot by timestamp; handy in tests asserting
// on a single operation's trail.
func (p *MemoryPublisher) EventsSince(cutoff time.Time) []Event {
	var out []Event
	for _, e := range p.Events() {
		if !e.Timestamp.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

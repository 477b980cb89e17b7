package events

import (
	"context"
	"sync"
	"time"

	"github.com/fieldrover/wayfarer/internal/models"
)

// Ring stores the last N events in memory. It implements Sink, so it can
// sit next to the database sink and feed the introspection endpoints.
type Ring struct {
	mu     sync.Mutex
	size   int
	events []models.Event
	next   int
	full   bool
}

// NewRing returns a ring buffer sized for the provided event count.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = 1
	}
	return &Ring{
		size:   size,
		events: make([]models.Event, size),
	}
}

// Add stores an event in the ring buffer.
func (r *Ring) Add(event models.Event) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[r.next] = event
	r.next++
	if r.next >= r.size {
		r.next = 0
		r.full = true
	}
}

// Snapshot returns the buffered events in chronological order.
func (r *Ring) Snapshot() []models.Event {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]models.Event, r.next)
		copy(out, r.events[:r.next])
		return out
	}

	out := make([]models.Event, r.size)
	copy(out, r.events[r.next:])
	copy(out[r.size-r.next:], r.events[:r.next])
	return out
}

// Emit buffers the event, stamping the timestamp if unset.
func (r *Ring) Emit(ctx context.Context, event *models.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	r.Add(*event)
	return nil
}

// Close is a no-op.
func (r *Ring) Close() error {
	return nil
}

// Package broadcast fans attendance notifications out to connected
// dashboards.  Delivery is best effort: a failed or slow subscriber never
// blocks or fails the decision that produced the event.
package broadcast

import (
	"context"
	"sync"
)

// Event names sent to subscribers.
const (
	EventStudentLogged         = "student:logged"
	EventCountCurrentlyInside  = "student:count_currently_inside"
	EventCountCurrentlyOutside = "student:count_currently_outside"
)

// Event is one notification frame: {"event": "...", "data": ...}.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// Broadcaster publishes events to whoever is listening.
type Broadcaster interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps every published event in memory.  Err, when set, is
// returned from Publish after the event is recorded.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.Err
}

// Events returns a copy of the events recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Names returns the recorded event names in publish order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Name)
	}
	return out
}

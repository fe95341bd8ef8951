/*
events.go - Typed transition events

PURPOSE:
  Every request state change is observable: the lifecycle emits a typed
  event that an external notification component can consume. Delivery is
  not the engine's concern; the sink runs synchronously and must not
  block or fail the transition.
*/
package leave

import "time"

type EventKind string

const (
	EventSubmitted         EventKind = "request_submitted"
	EventApproved          EventKind = "request_approved"
	EventRejected          EventKind = "request_rejected"
	EventPaidStatusChanged EventKind = "paid_status_changed"
)

// Event is a snapshot of a request at the moment of a transition.
type Event struct {
	Kind    EventKind
	Request LeaveRequest
	Actor   string
	At      time.Time
}

// EventSink receives transition events. Implementations must be fast and
// non-blocking; anything slow belongs behind a queue outside the engine.
type EventSink interface {
	Emit(e Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(Event)

func (f EventSinkFunc) Emit(e Event) { f(e) }

// NoopSink discards events.
type NoopSink struct{}

func (NoopSink) Emit(Event) {}

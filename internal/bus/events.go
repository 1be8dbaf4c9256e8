// Package bus provides the in-process event bus connecting the engine's
// delivery pipeline to its observers: the audit writer, push channels, and
// the CLI. It is thread-safe pub/sub with typed subscriptions and a bounded
// replay history.
package bus

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies an event on the bus.
type EventType string

const (
	// EventTick is published once per evaluation cycle, whatever the
	// outcome. Silent cycles carry no interruption fields.
	EventTick EventType = "tick"

	// EventDelivered is published after an interruption is handed to the
	// output channel. The audit writer persists exactly these.
	EventDelivered EventType = "delivered"

	// EventDeliveryFailed is published when the output channel rejected an
	// utterance. The interruption is not retried within the cycle.
	EventDeliveryFailed EventType = "delivery_failed"

	// EventHandled is published when the caller acknowledges an
	// interruption.
	EventHandled EventType = "handled"
)

// Event is one record on the bus.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Subject is the business/user the engine is scoped to.
	Subject string `json:"subject,omitempty"`

	// Interruption details, present on delivered/delivery_failed/handled.
	InterruptionID string `json:"interruption_id,omitempty"`
	Trigger        string `json:"trigger,omitempty"`
	Priority       string `json:"priority,omitempty"`
	Message        string `json:"message,omitempty"`

	// Error carries the failure on delivery_failed events.
	Error string `json:"error,omitempty"`
}

// NewEvent creates an event with a fresh id and timestamp.
func NewEvent(t EventType) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now(),
	}
}

// Package eventbus publishes assignment events to downstream consumers. The
// write path never talks to the broker: services append rows to the event
// outbox inside their own transactions, and the relay in this package leases
// those rows and publishes them with at-least-once delivery. Consumers must
// deduplicate on the envelope id.
package eventbus

import (
	"encoding/json"
	"time"
)

// Meta carries the delivery metadata every event shares.
type Meta struct {
	// ID is stable across republish attempts; consumers dedup on it.
	ID string `json:"id"`
	// Type is the routing key, e.g. conversation.assigned.v1.
	Type string `json:"type"`
	// Producer names the emitting service.
	Producer string `json:"producer,omitempty"`
	// CorrelationID ties the event back to the conversation it concerns.
	CorrelationID string `json:"correlation_id,omitempty"`
	// Time is when the underlying state change was recorded, not when the
	// relay got around to publishing it.
	Time time.Time `json:"time"`
}

// Envelope is the wire format for published events.
type Envelope struct {
	Meta Meta            `json:"meta"`
	Data json.RawMessage `json:"data"`
}

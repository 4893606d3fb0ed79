package streamstore

import (
	"time"

	"github.com/google/uuid"
)

// Event is a domain event describing a change that has happened to an aggregate.
//
// EventType is the closed kind tag of the event. It is stored next to every
// serialized payload and is the key for projection routing.
type Event interface {
	AggregateID() string
	EventType() string
}

// Envelope wraps an Event with the data assigned when it was appended to a stream.
type Envelope struct {
	EventID     uuid.UUID
	StreamID    string
	AggregateID string
	Metadata    map[string]any
	Event       Event
	Version     uint64
	OccurredAt  time.Time
}

package fixtures

import (
	"time"

	"github.com/google/uuid"
	es "github.com/terraskye/streamstore"
)

// EnvelopeOption is a functional option for configuring an Envelope.
type EnvelopeOption func(*es.Envelope)

// NewEnvelope creates an Envelope at version 1 of the event's aggregate stream.
func NewEnvelope(event es.Event, opts ...EnvelopeOption) *es.Envelope {
	env := &es.Envelope{
		EventID:     uuid.New(),
		StreamID:    event.AggregateID(),
		AggregateID: event.AggregateID(),
		Event:       event,
		Version:     1,
		OccurredAt:  time.Now(),
		Metadata:    make(map[string]any),
	}

	for _, opt := range opts {
		opt(env)
	}

	return env
}

// WithStreamID overrides the stream ID (defaults to event's AggregateID).
func WithStreamID(id string) EnvelopeOption {
	return func(e *es.Envelope) {
		e.StreamID = id
	}
}

// WithVersion sets the stream version.
func WithVersion(v uint64) EnvelopeOption {
	return func(e *es.Envelope) {
		e.Version = v
	}
}

// EnvelopesFromEvents wraps events in envelopes with versions 1..n.
func EnvelopesFromEvents(events ...es.Event) []*es.Envelope {
	envelopes := make([]*es.Envelope, len(events))
	for i, event := range events {
		envelopes[i] = NewEnvelope(event, WithVersion(uint64(i+1)))
	}
	return envelopes
}

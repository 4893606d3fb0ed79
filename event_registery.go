package streamstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventRegistry maps event kind tags to decoders. It is the serialization
// boundary of the store: every event row carries the kind next to a JSON payload
// and only registered kinds can be read back.
//
// A registry is built at the composition root and passed to the stream store;
// there is no process-wide registry.
type EventRegistry struct {
	mu       sync.RWMutex
	decoders map[string]func(data []byte) (Event, error)
}

// NewEventRegistry creates an empty registry.
func NewEventRegistry() *EventRegistry {
	return &EventRegistry{
		decoders: make(map[string]func(data []byte) (Event, error)),
	}
}

// RegisterEvent registers the event type E under the kind returned by the
// EventType method of its zero value. E must be a value type so that decoding
// produces values equal to the ones that were appended.
//
// Panics if the kind is empty or already registered.
//
// Example Usage:
//
//	reg := NewEventRegistry()
//	RegisterEvent[InventoryItemCreated](reg)
func RegisterEvent[E Event](r *EventRegistry) {
	var zero E
	RegisterEventByName(r, zero.EventType(), func(data []byte) (Event, error) {
		var ev E
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	})
}

// RegisterEventByName registers a decoder under a custom kind.
//
// Panics if the kind is empty, the decoder is nil or the kind is already registered.
func RegisterEventByName(r *EventRegistry, kind string, decode func(data []byte) (Event, error)) {
	if kind == "" {
		panic("cannot register event with empty kind")
	}
	if decode == nil {
		panic("cannot register nil decoder")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.decoders[kind]; exists {
		panic(fmt.Sprintf("event already registered: %s", kind))
	}
	r.decoders[kind] = decode
}

// Marshal returns the kind tag and JSON payload of ev.
func (r *EventRegistry) Marshal(ev Event) (string, []byte, error) {
	if ev == nil {
		return "", nil, fmt.Errorf("marshal event: %w: nil event", ErrInvalidEventBatch)
	}
	kind := ev.EventType()

	r.mu.RLock()
	_, ok := r.decoders[kind]
	r.mu.RUnlock()
	if !ok {
		return "", nil, fmt.Errorf("marshal event %q: %w", kind, ErrUnknownEventType)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return "", nil, fmt.Errorf("marshal event %q: %w", kind, err)
	}
	return kind, data, nil
}

// Unmarshal decodes a payload stored under kind.
func (r *EventRegistry) Unmarshal(kind string, data []byte) (Event, error) {
	r.mu.RLock()
	decode, ok := r.decoders[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unmarshal event %q: %w", kind, ErrUnknownEventType)
	}
	ev, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal event %q: %w", kind, err)
	}
	return ev, nil
}

// Kinds returns the registered kinds, sorted.
func (r *EventRegistry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.decoders))
	for kind := range r.decoders {
		out = append(out, kind)
	}
	sort.Strings(out)
	return out
}

// storedEvent is the JSON document kept in the Data column of an event row.
type storedEvent struct {
	EventID     uuid.UUID       `json:"event_id"`
	AggregateID string          `json:"aggregate_id"`
	EventType   string          `json:"event_type"`
	Data        json.RawMessage `json:"data"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// encodeEnvelope turns env into the event row stored in its stream partition.
func (r *EventRegistry) encodeEnvelope(env *Envelope) (Row, error) {
	kind, payload, err := r.Marshal(env.Event)
	if err != nil {
		return Row{}, err
	}

	data, err := json.Marshal(storedEvent{
		EventID:     env.EventID,
		AggregateID: env.AggregateID,
		EventType:   kind,
		Data:        payload,
		Metadata:    env.Metadata,
		OccurredAt:  env.OccurredAt,
	})
	if err != nil {
		return Row{}, fmt.Errorf("marshal envelope %s: %w", env.EventID, err)
	}

	return Row{
		PartitionKey: env.StreamID,
		RowKey:       EventRowKey(env.Version),
		Kind:         kind,
		Version:      env.Version,
		Data:         data,
	}, nil
}

// decodeEnvelope reverses encodeEnvelope.
func (r *EventRegistry) decodeEnvelope(row Row) (*Envelope, error) {
	var stored storedEvent
	if err := json.Unmarshal(row.Data, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal event row %s/%s: %w", row.PartitionKey, row.RowKey, err)
	}

	kind := stored.EventType
	if kind == "" {
		kind = row.Kind
	}
	ev, err := r.Unmarshal(kind, stored.Data)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		EventID:     stored.EventID,
		StreamID:    row.PartitionKey,
		AggregateID: stored.AggregateID,
		Metadata:    stored.Metadata,
		Event:       ev,
		Version:     row.Version,
		OccurredAt:  stored.OccurredAt,
	}, nil
}

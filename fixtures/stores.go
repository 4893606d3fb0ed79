package fixtures

import (
	"context"
	"fmt"
	"sync"

	es "github.com/terraskye/streamstore"
)

var _ es.EventStore = (*StoreSpy)(nil)

// StoreSpy is a configurable mock EventStore for testing.
// It tracks calls and allows injecting custom behavior or failures.
// Without overrides it behaves like a version-checking in-memory store.
type StoreSpy struct {
	mu sync.Mutex

	// Function overrides for custom behavior
	AppendFn func(ctx context.Context, streamID string, events []es.Event, expectedVersion uint64) (uint64, error)
	ReadFn   func(ctx context.Context, streamID string) ([]*es.Envelope, error)

	// Call tracking
	AppendCalls int
	ReadCalls   int

	// Captured arguments from last call
	LastAppendStreamID string
	LastAppendEvents   []es.Event
	LastAppendVersion  uint64
	LastReadStreamID   string

	// Pre-configured data
	events map[string][]*es.Envelope // streamID -> envelopes

	// Error injection
	readErr   error
	appendErr error
}

// NewStoreSpy creates a new StoreSpy with default behavior.
func NewStoreSpy() *StoreSpy {
	return &StoreSpy{
		events: make(map[string][]*es.Envelope),
	}
}

// WithEvents pre-populates the store with events for a stream, numbered 1..n.
func (s *StoreSpy) WithEvents(streamID string, events ...es.Event) *StoreSpy {
	envelopes := EnvelopesFromEvents(events...)
	for _, env := range envelopes {
		env.StreamID = streamID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[streamID] = envelopes
	return s
}

// FailOnRead configures the store to return an error on reads.
func (s *StoreSpy) FailOnRead(err error) *StoreSpy {
	s.readErr = err
	return s
}

// FailOnAppend configures the store to return an error on appends.
func (s *StoreSpy) FailOnAppend(err error) *StoreSpy {
	s.appendErr = err
	return s
}

// Append implements EventStore.Append.
func (s *StoreSpy) Append(ctx context.Context, streamID string, events []es.Event, expectedVersion uint64) (uint64, error) {
	s.mu.Lock()
	s.AppendCalls++
	s.LastAppendStreamID = streamID
	s.LastAppendEvents = events
	s.LastAppendVersion = expectedVersion
	s.mu.Unlock()

	if s.AppendFn != nil {
		return s.AppendFn(ctx, streamID, events, expectedVersion)
	}
	if s.appendErr != nil {
		return 0, s.appendErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := uint64(len(s.events[streamID]))
	if current != expectedVersion {
		return 0, &es.StreamRevisionConflictError{
			Stream:          streamID,
			ExpectedVersion: expectedVersion,
			ActualVersion:   current,
		}
	}
	for _, ev := range events {
		current++
		env := NewEnvelope(ev, WithStreamID(streamID), WithVersion(current))
		s.events[streamID] = append(s.events[streamID], env)
	}
	return current, nil
}

// Read implements EventStore.Read.
func (s *StoreSpy) Read(ctx context.Context, streamID string) ([]*es.Envelope, error) {
	s.mu.Lock()
	s.ReadCalls++
	s.LastReadStreamID = streamID
	s.mu.Unlock()

	if s.ReadFn != nil {
		return s.ReadFn(ctx, streamID)
	}
	if s.readErr != nil {
		return nil, s.readErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	events, ok := s.events[streamID]
	if !ok {
		return nil, fmt.Errorf("read stream %q: %w", streamID, es.ErrStreamNotFound)
	}
	return append([]*es.Envelope(nil), events...), nil
}

// Pre-built store scenarios.

// FailingStore returns a StoreSpy that fails on all operations.
func FailingStore(err error) *StoreSpy {
	return NewStoreSpy().FailOnRead(err).FailOnAppend(err)
}

// ConcurrencyConflictStore returns a StoreSpy whose appends always lose to a
// competing writer.
func ConcurrencyConflictStore(streamID string, actual uint64) *StoreSpy {
	store := NewStoreSpy()
	store.AppendFn = func(ctx context.Context, _ string, events []es.Event, expectedVersion uint64) (uint64, error) {
		return 0, &es.StreamRevisionConflictError{
			Stream:          streamID,
			ExpectedVersion: expectedVersion,
			ActualVersion:   actual,
		}
	}
	return store
}

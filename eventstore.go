package streamstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EventStore defines the contract of the stream engine: one append-only event
// log per aggregate, each mapped to one backend partition.
//
// Implementations must guarantee:
//   - Events of a stream carry the gap-free versions 1..N.
//   - Append fails with an error matching ErrConcurrencyConflict when the stream
//     is not at expectedVersion, or when a competing writer wins at commit time.
//   - Read returns events ordered by version ascending.
type EventStore interface {
	// Append adds events to the stream in input order, assigning versions
	// expectedVersion+1 .. expectedVersion+len(events), and returns the new
	// stream version.
	Append(ctx context.Context, streamID string, events []Event, expectedVersion uint64) (uint64, error)

	// Read returns every event of the stream. It fails with ErrStreamNotFound
	// when the stream does not exist.
	Read(ctx context.Context, streamID string) ([]*Envelope, error)
}

var _ EventStore = (*StreamStore)(nil)

// StreamStore is the EventStore built on a Backend. Every Append is one atomic
// partition write holding the head row, the new event rows and the read-model
// Includes computed for those events.
type StreamStore struct {
	backend       Backend
	registry      *EventRegistry
	projector     Projector
	now           func() time.Time
	metadataFuncs []func(ctx context.Context) map[string]any
	logger        *logrus.Entry
}

// StreamStoreOption configures a StreamStore.
type StreamStoreOption func(*StreamStore)

// WithClock sets the clock used for Envelope.OccurredAt.
func WithClock(now func() time.Time) StreamStoreOption {
	return func(s *StreamStore) { s.now = now }
}

// WithMetadataExtractor adds a function whose result is merged into the metadata
// of every appended envelope. Extractors are applied in registration order.
func WithMetadataExtractor(fn func(ctx context.Context) map[string]any) StreamStoreOption {
	return func(s *StreamStore) {
		s.metadataFuncs = append(s.metadataFuncs, fn)
	}
}

// WithLogger sets the logger used for conflict and backend failure diagnostics.
func WithLogger(logger *logrus.Entry) StreamStoreOption {
	return func(s *StreamStore) { s.logger = logger }
}

// NewStreamStore creates a StreamStore. projector may be nil when no read model
// is maintained.
func NewStreamStore(backend Backend, registry *EventRegistry, projector Projector, opts ...StreamStoreOption) *StreamStore {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &StreamStore{
		backend:   backend,
		registry:  registry,
		projector: projector,
		now:       time.Now,
		logger:    logrus.NewEntry(discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append implements EventStore.
func (s *StreamStore) Append(ctx context.Context, streamID string, events []Event, expectedVersion uint64) (uint64, error) {
	if streamID == "" {
		return 0, fmt.Errorf("append: %w: empty stream id", ErrInvalidEventBatch)
	}

	partition, err := s.backend.TryOpenPartition(ctx, streamID)
	if err != nil {
		s.logger.WithError(err).WithField("stream", streamID).Warn("open partition failed")
		return 0, fmt.Errorf("append to stream %q: %w", streamID, WrapBackendError("open partition", err))
	}

	var current uint64
	if partition.Exists {
		current = partition.Version
	}
	if current != expectedVersion {
		s.logger.WithFields(logrus.Fields{
			"stream":   streamID,
			"expected": expectedVersion,
			"actual":   current,
		}).Debug("version mismatch")
		return 0, &StreamRevisionConflictError{
			Stream:          streamID,
			ExpectedVersion: expectedVersion,
			ActualVersion:   current,
		}
	}

	if len(events) == 0 {
		return expectedVersion, nil
	}

	metadata := make(map[string]any)
	for _, fn := range s.metadataFuncs {
		maps.Copy(metadata, fn(ctx))
	}

	batch := newPendingBatch(s.backend, streamID)
	eventRows := make([]RowOperation, 0, len(events))

	for i, ev := range events {
		if ev == nil {
			return 0, fmt.Errorf("append to stream %q: %w: nil event at index %d", streamID, ErrInvalidEventBatch, i)
		}

		env := &Envelope{
			EventID:     uuid.New(),
			StreamID:    streamID,
			AggregateID: ev.AggregateID(),
			Metadata:    maps.Clone(metadata),
			Event:       ev,
			Version:     expectedVersion + uint64(i) + 1,
			OccurredAt:  s.now(),
		}

		row, err := s.registry.encodeEnvelope(env)
		if err != nil {
			return 0, fmt.Errorf("append to stream %q: %w", streamID, err)
		}
		eventRows = append(eventRows, RowOperation{Op: OpInsert, Row: row})

		if s.projector == nil {
			continue
		}
		includes, err := s.projector.Compute(ctx, env, batch)
		if err != nil {
			return 0, fmt.Errorf("project %s (version %d) of stream %q: %w", ev.EventType(), env.Version, streamID, err)
		}
		for _, inc := range includes {
			if err := batch.add(inc); err != nil {
				return 0, fmt.Errorf("project %s (version %d) of stream %q: %w", ev.EventType(), env.Version, streamID, err)
			}
		}
	}

	newVersion := expectedVersion + uint64(len(events))
	head := Row{
		PartitionKey: streamID,
		RowKey:       HeadRowKey,
		Kind:         "stream",
		Version:      newVersion,
	}

	ops := make([]RowOperation, 0, 1+len(eventRows)+len(batch.order))
	if partition.Exists {
		head.ETag = partition.ETag
		ops = append(ops, RowOperation{Op: OpReplace, Row: head})
	} else {
		ops = append(ops, RowOperation{Op: OpInsert, Row: head})
	}
	ops = append(ops, eventRows...)
	ops = append(ops, batch.operations()...)

	if err := s.backend.WriteAtomic(ctx, streamID, ops); err != nil {
		if errors.Is(err, ErrConditionFailed) {
			s.logger.WithField("stream", streamID).WithField("expected", expectedVersion).Debug("commit lost to competing writer")
			return 0, &StreamRevisionConflictError{
				Stream:          streamID,
				ExpectedVersion: expectedVersion,
				Err:             err,
			}
		}
		s.logger.WithError(err).WithField("stream", streamID).Warn("atomic write failed")
		return 0, fmt.Errorf("append to stream %q: %w", streamID, WrapBackendError("write", err))
	}

	return newVersion, nil
}

// Read implements EventStore.
func (s *StreamStore) Read(ctx context.Context, streamID string) ([]*Envelope, error) {
	partition, err := s.backend.TryOpenPartition(ctx, streamID)
	if err != nil {
		return nil, fmt.Errorf("read stream %q: %w", streamID, WrapBackendError("open partition", err))
	}
	if !partition.Exists {
		return nil, fmt.Errorf("read stream %q: %w", streamID, ErrStreamNotFound)
	}

	rows, err := s.backend.QueryByPartitionAndKeyPrefix(ctx, streamID, EventRowPrefix)
	if err != nil {
		return nil, fmt.Errorf("read stream %q: %w", streamID, WrapBackendError("query", err))
	}

	envelopes := make([]*Envelope, 0, len(rows))
	for i, row := range rows {
		env, err := s.registry.decodeEnvelope(row)
		if err != nil {
			return nil, fmt.Errorf("read stream %q: %w", streamID, err)
		}
		if env.Version != uint64(i)+1 {
			return nil, fmt.Errorf("read stream %q: %w: found version %d at position %d", streamID, ErrStreamCorrupted, env.Version, i+1)
		}
		envelopes = append(envelopes, env)
	}

	if uint64(len(envelopes)) != partition.Version {
		return nil, fmt.Errorf("read stream %q: %w: head at version %d, %d events stored", streamID, ErrStreamCorrupted, partition.Version, len(envelopes))
	}
	return envelopes, nil
}

// Version returns the current version of a stream and whether it exists.
func (s *StreamStore) Version(ctx context.Context, streamID string) (uint64, bool, error) {
	partition, err := s.backend.TryOpenPartition(ctx, streamID)
	if err != nil {
		return 0, false, WrapBackendError("open partition", err)
	}
	return partition.Version, partition.Exists, nil
}

package streamstore

import (
	"context"
	"errors"
	"fmt"
)

// StreamNamer maps an aggregate id to the stream (partition) it lives in.
type StreamNamer func(id string) string

// Repository loads aggregates by replaying their streams and saves the events
// they raise.
type Repository[T Aggregate] struct {
	store   EventStore
	factory func(id string) T
	namer   StreamNamer
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*repositoryOptions)

type repositoryOptions struct {
	namer StreamNamer
}

// WithStreamNamer sets the id to stream mapping. The default uses the id as is.
func WithStreamNamer(namer StreamNamer) RepositoryOption {
	return func(o *repositoryOptions) { o.namer = namer }
}

// WithStreamKind names streams PartitionKey(kind, id).
func WithStreamKind(kind string) RepositoryOption {
	return WithStreamNamer(func(id string) string { return PartitionKey(kind, id) })
}

// NewRepository creates a Repository. factory returns a zero-valued aggregate
// for an id.
func NewRepository[T Aggregate](store EventStore, factory func(id string) T, opts ...RepositoryOption) *Repository[T] {
	cfg := repositoryOptions{
		namer: func(id string) string { return id },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Repository[T]{
		store:   store,
		factory: factory,
		namer:   cfg.namer,
	}
}

// StreamID returns the stream of the aggregate id.
func (r *Repository[T]) StreamID(id string) string {
	return r.namer(id)
}

// New returns a fresh aggregate at version 0, for commands creating aggregates.
func (r *Repository[T]) New(id string) T {
	return r.factory(id)
}

// Load rebuilds the aggregate id from its stream. It fails with
// ErrAggregateNotFound when the stream does not exist.
func (r *Repository[T]) Load(ctx context.Context, id string) (T, error) {
	var zero T

	envelopes, err := r.store.Read(ctx, r.namer(id))
	if err != nil {
		if errors.Is(err, ErrStreamNotFound) {
			return zero, fmt.Errorf("load aggregate %q: %w", id, ErrAggregateNotFound)
		}
		return zero, fmt.Errorf("load aggregate %q: %w", id, err)
	}

	agg := r.factory(id)
	var version uint64
	for _, env := range envelopes {
		agg.ApplyEvent(env.Event)
		version = env.Version
	}
	agg.SetAggregateVersion(version)
	agg.ClearUncommittedEvents()
	return agg, nil
}

// Save appends the uncommitted events of agg, expecting the stream to still be
// at the version agg was loaded at. Conflicts are returned unchanged; retrying is
// up to the caller.
func (r *Repository[T]) Save(ctx context.Context, agg T) error {
	events := agg.UncommittedEvents()
	if len(events) == 0 {
		return nil
	}

	version, err := r.store.Append(ctx, r.namer(agg.AggregateID()), events, agg.AggregateVersion())
	if err != nil {
		return err
	}

	agg.SetAggregateVersion(version)
	agg.ClearUncommittedEvents()
	return nil
}

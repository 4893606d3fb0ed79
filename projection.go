package streamstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Fetcher reads the current rows of the partition an event is being appended to.
// It never mutates and its reads are not part of the atomic commit.
type Fetcher interface {
	Fetch(ctx context.Context, rowKey string) (Row, bool, error)
}

// ProjectionFunc computes the read-model mutations caused by one event.
type ProjectionFunc func(ctx context.Context, env *Envelope, fetch Fetcher) ([]Include, error)

// ProjectionMiddleware decorates the projection functions registered for kind.
type ProjectionMiddleware func(kind string, next ProjectionFunc) ProjectionFunc

// Projector computes the Includes of an event about to be committed.
type Projector interface {
	Compute(ctx context.Context, env *Envelope, fetch Fetcher) ([]Include, error)
}

// ProjectionRouter maps event kinds to projection functions. Several functions
// may be registered for one kind; their Includes are concatenated in
// registration order. Kinds without functions produce no Includes.
type ProjectionRouter struct {
	mu          sync.RWMutex
	handlers    map[string][]ProjectionFunc
	middlewares []ProjectionMiddleware
}

// NewProjectionRouter creates an empty router.
func NewProjectionRouter(middlewares ...ProjectionMiddleware) *ProjectionRouter {
	return &ProjectionRouter{
		handlers:    make(map[string][]ProjectionFunc),
		middlewares: middlewares,
	}
}

// Register adds fn for events of kind. Middlewares passed to NewProjectionRouter
// wrap fn at registration time, the first one outermost.
//
// Panics if fn is nil or kind is empty.
func (r *ProjectionRouter) Register(kind string, fn ProjectionFunc) {
	if kind == "" {
		panic("cannot register projection for empty event kind")
	}
	if fn == nil {
		panic(fmt.Sprintf("nil projection for event %s", kind))
	}

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		fn = r.middlewares[i](kind, fn)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = append(r.handlers[kind], fn)
}

// OnProjection registers a strongly-typed projection for the event type E.
//
// Example Usage:
//
//	OnProjection(router, func(ctx context.Context, env *Envelope, ev ItemCreated, f Fetcher) ([]Include, error) {
//	    inc, err := InsertEntity(itemRowKey(ev.ID), "item", ItemView{Name: ev.Name})
//	    return []Include{inc}, err
//	})
func OnProjection[E Event](r *ProjectionRouter, fn func(ctx context.Context, env *Envelope, ev E, fetch Fetcher) ([]Include, error)) {
	var zero E
	kind := zero.EventType()
	r.Register(kind, func(ctx context.Context, env *Envelope, fetch Fetcher) ([]Include, error) {
		ev, ok := env.Event.(E)
		if !ok {
			return nil, fmt.Errorf("projection for %s received %T", kind, env.Event)
		}
		return fn(ctx, env, ev, fetch)
	})
}

// Compute runs every projection registered for the kind of env.Event and
// concatenates their Includes. The first error stops the computation.
func (r *ProjectionRouter) Compute(ctx context.Context, env *Envelope, fetch Fetcher) ([]Include, error) {
	r.mu.RLock()
	handlers := r.handlers[env.Event.EventType()]
	r.mu.RUnlock()

	var out []Include
	for _, h := range handlers {
		includes, err := h(ctx, env, fetch)
		if err != nil {
			return nil, err
		}
		out = append(out, includes...)
	}
	return out, nil
}

// Kinds returns the sorted event kinds that have at least one projection.
func (r *ProjectionRouter) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.handlers))
	for kind := range r.handlers {
		out = append(out, kind)
	}
	sort.Strings(out)
	return out
}

package streamstore

import (
	"context"
	"fmt"
	"sync"
)

// Query is a request for read-model data. QueryType is its closed kind tag.
type Query interface {
	QueryType() string
}

// QueryHandler answers queries of type Q with results of type R.
type QueryHandler[Q Query, R any] interface {
	HandleQuery(ctx context.Context, qry Q) (R, error)
}

// queryHandlerFunc is a helper type to allow ordinary functions to
// implement QueryHandler[Q,R].
type queryHandlerFunc[Q Query, R any] func(ctx context.Context, qry Q) (R, error)

// HandleQuery calls the underlying function.
func (f queryHandlerFunc[Q, R]) HandleQuery(ctx context.Context, qry Q) (R, error) {
	return f(ctx, qry)
}

// NewQueryHandlerFunc creates a QueryHandler from a function.
//
// Example Usage:
//
//	handler := NewQueryHandlerFunc(func(ctx context.Context, q GetItem) (ItemDetails, error) {
//	    return facade.GetInventoryItemDetails(ctx, q.ID)
//	})
func NewQueryHandlerFunc[Q Query, R any](fn func(ctx context.Context, qry Q) (R, error)) QueryHandler[Q, R] {
	return queryHandlerFunc[Q, R](fn)
}

// QueryBus is a registry of query handlers keyed by query kind.
type QueryBus struct {
	mu       sync.RWMutex
	handlers map[string]any
}

// NewQueryBus creates an empty QueryBus.
func NewQueryBus() *QueryBus {
	return &QueryBus{handlers: make(map[string]any)}
}

// RegisterQueryHandler registers handler for the kind of Q. A second
// registration fails with ErrDuplicateHandler.
func RegisterQueryHandler[Q Query, R any](bus *QueryBus, handler QueryHandler[Q, R]) error {
	var zero Q
	kind := zero.QueryType()

	bus.mu.Lock()
	defer bus.mu.Unlock()

	if _, exists := bus.handlers[kind]; exists {
		return fmt.Errorf("register query handler for %s: %w", kind, ErrDuplicateHandler)
	}
	bus.handlers[kind] = handler
	return nil
}

// Ask runs the handler registered for qry. It fails with ErrUnhandledQuery when
// no handler exists and reports a handler registered with a different result
// type as an error.
func Ask[Q Query, R any](ctx context.Context, bus *QueryBus, qry Q) (R, error) {
	var zero R
	kind := qry.QueryType()

	bus.mu.RLock()
	h, ok := bus.handlers[kind]
	bus.mu.RUnlock()

	if !ok {
		return zero, fmt.Errorf("ask %s: %w", kind, ErrUnhandledQuery)
	}
	handler, ok := h.(QueryHandler[Q, R])
	if !ok {
		return zero, fmt.Errorf("ask %s: handler type mismatch, want result %T", kind, zero)
	}
	return handler.HandleQuery(ctx, qry)
}

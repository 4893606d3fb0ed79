package streamstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// CommandHandlerFunc is the untyped form of a CommandHandler as stored by the
// CommandBus.
type CommandHandlerFunc func(ctx context.Context, cmd Command) error

// CommandMiddleware decorates the handler registered for kind.
type CommandMiddleware func(kind string, next CommandHandlerFunc) CommandHandlerFunc

// CommandBus routes each command to the single handler registered for its kind.
// Handlers run synchronously on the caller's goroutine and their errors are
// returned unmodified.
//
// The bus supports:
//   - Typed command registration using generics
//   - Middlewares applied at registration time
//   - Panic recovery in handlers
type CommandBus struct {
	mu          sync.RWMutex
	handlers    map[string]CommandHandlerFunc
	middlewares []CommandMiddleware
}

// NewCommandBus creates an empty CommandBus.
//
// Example:
//
//	bus := NewCommandBus()
//	if err := Register(bus, handleCreateItem); err != nil { ... }
//	err := bus.Send(ctx, CreateItem{ID: id, Name: "Widget"})
func NewCommandBus() *CommandBus {
	return &CommandBus{
		handlers: make(map[string]CommandHandlerFunc),
	}
}

// Use appends middlewares. They only wrap handlers registered afterwards, the
// first middleware outermost.
func (b *CommandBus) Use(middlewares ...CommandMiddleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middlewares = append(b.middlewares, middlewares...)
}

// RegisterFunc registers fn for commands of kind. A second registration for the
// same kind fails with ErrDuplicateHandler and keeps the first handler.
func (b *CommandBus) RegisterFunc(kind string, fn CommandHandlerFunc) error {
	if kind == "" {
		return fmt.Errorf("register command handler: empty command kind")
	}
	if fn == nil {
		return fmt.Errorf("register command handler for %s: nil handler", kind)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[kind]; exists {
		return fmt.Errorf("register command handler for %s: %w", kind, ErrDuplicateHandler)
	}
	for i := len(b.middlewares) - 1; i >= 0; i-- {
		fn = b.middlewares[i](kind, fn)
	}
	b.handlers[kind] = fn
	return nil
}

// Register adds a typed command handler to the bus. The kind is taken from the
// zero value of C.
//
// Example:
//
//	err := Register(bus, handleCheckIn)
func Register[C Command](b *CommandBus, handler CommandHandler[C]) error {
	var zero C
	kind := zero.CommandType()
	if handler == nil {
		return fmt.Errorf("register command handler for %s: nil handler", kind)
	}
	return b.RegisterFunc(kind, func(ctx context.Context, cmd Command) error {
		c, ok := cmd.(C)
		if !ok {
			return fmt.Errorf("expected command type %s but got %T", kind, cmd)
		}
		return handler(ctx, c)
	})
}

// Send dispatches cmd to its handler and returns the handler's error. It fails
// with ErrUnhandledCommand when no handler is registered for the kind.
func (b *CommandBus) Send(ctx context.Context, cmd Command) (err error) {
	if cmd == nil {
		return fmt.Errorf("send: nil command")
	}
	kind := cmd.CommandType()

	b.mu.RLock()
	h, exists := b.handlers[kind]
	b.mu.RUnlock()

	if !exists {
		return fmt.Errorf("send %s: %w", kind, ErrUnhandledCommand)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler for %s: %v", kind, r)
		}
	}()

	return h(ctx, cmd)
}

// Kinds returns the sorted command kinds with a registered handler.
func (b *CommandBus) Kinds() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.handlers))
	for kind := range b.handlers {
		out = append(out, kind)
	}
	sort.Strings(out)
	return out
}

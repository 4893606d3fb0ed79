package streamstore

import (
	"context"
	"errors"
	"fmt"
)

// CommandHandler defines a function type for handling commands of a specific type.
//
// C represents the concrete command type implementing the Command interface.
//
// A CommandHandler implements the business logic of one command: it loads the
// target aggregate, lets it decide which events happen and persists them.
// Handlers are registered on a CommandBus, which routes commands by kind.
//
// Notes:
//   - Implementations should treat the command as immutable.
//   - Handlers should not panic; all errors should be returned.
type CommandHandler[C Command] func(ctx context.Context, command C) error

// Decider executes cmd against agg. It raises events on the aggregate (see
// Raise) or returns an error when cmd violates a business rule. Raising no
// events is a successful no-op.
type Decider[T Aggregate, C Command] func(ctx context.Context, agg T, cmd C) error

// CommandHandlerOption configures NewCommandHandler.
type CommandHandlerOption func(configuration *handlerOptions)

type handlerOptions struct {
	// newAggregate makes the handler start from a fresh aggregate instead of
	// loading it; used by creation commands.
	newAggregate bool
}

// WithNewAggregate makes the handler create the aggregate instead of loading it.
// Saving then expects the stream not to exist, so creating an id twice fails
// with ErrConcurrencyConflict.
func WithNewAggregate() CommandHandlerOption {
	return func(cfg *handlerOptions) { cfg.newAggregate = true }
}

// NewCommandHandler returns a generic command handler for aggregates of type T.
//
// It performs the following steps:
//  1. Load the aggregate from its stream, or create it with WithNewAggregate.
//  2. If the command implements ExpectedVersioner and carries a version, check
//     it against the loaded version.
//  3. Run decide, which raises the new events on the aggregate.
//  4. Save the uncommitted events, expecting the loaded version.
//
// Behavior Details:
//   - Errors of decide are reported as business rule violations, unless they
//     already are one or carry a store error kind such as ErrBackendUnavailable.
//   - Concurrency conflicts are returned as is; the handler never retries.
//
// Example Usage:
//
//	handler := NewCommandHandler(repo, func(ctx context.Context, item *Item, cmd CheckIn) error {
//	    return item.CheckIn(cmd.Count)
//	})
func NewCommandHandler[T Aggregate, C Command](
	repo *Repository[T],
	decide Decider[T, C],
	opts ...CommandHandlerOption,
) CommandHandler[C] {
	cfg := &handlerOptions{}
	for _, o := range opts {
		o(cfg)
	}

	return func(ctx context.Context, command C) error {
		id := command.AggregateID()
		kind := command.CommandType()

		var agg T
		if cfg.newAggregate {
			agg = repo.New(id)
		} else {
			loaded, err := repo.Load(ctx, id)
			if err != nil {
				return fmt.Errorf("handle command %s for aggregate %q: %w", kind, id, err)
			}
			agg = loaded
		}

		if ev, ok := any(command).(ExpectedVersioner); ok {
			if expected, supplied := ev.ExpectedVersion(); supplied && expected != agg.AggregateVersion() {
				return fmt.Errorf("handle command %s for aggregate %q: %w", kind, id, &StreamRevisionConflictError{
					Stream:          repo.StreamID(id),
					ExpectedVersion: expected,
					ActualVersion:   agg.AggregateVersion(),
				})
			}
		}

		if err := decide(ctx, agg, command); err != nil {
			if errors.Is(err, ErrBusinessRuleViolation) || isStoreError(err) {
				return fmt.Errorf("handle command %s for aggregate %q: %w", kind, id, err)
			}
			return fmt.Errorf("handle command %s for aggregate %q: %w: %w", kind, id, ErrBusinessRuleViolation, err)
		}

		if err := repo.Save(ctx, agg); err != nil {
			return fmt.Errorf("handle command %s for aggregate %q: %w", kind, id, err)
		}
		return nil
	}
}

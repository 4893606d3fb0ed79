package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	es "github.com/terraskye/streamstore"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// WithCommandTelemetry wraps a CommandHandler with OpenTelemetry tracing and metrics.
//
// The wrapper performs the following steps for each command execution:
//  1. Starts a span named after the command kind.
//  2. Attaches the command kind and aggregate ID.
//  3. Tracks the in-flight command metric around the call.
//  4. Invokes the underlying command handler.
//  5. Records the duration and classifies the outcome:
//     - concurrency conflicts are counted and added as a span event;
//     - business rule violations leave the span status Ok;
//     - any other error marks the span as failed.
//
// Example Usage:
//
//	handler := WithCommandTelemetry(myCommandHandler)
//	err := handler(ctx, myCommand)
func WithCommandTelemetry[C es.Command](next es.CommandHandler[C], opts ...Option) es.CommandHandler[C] {
	var zero C
	instrumented := instrumentCommand(zero.CommandType(), func(ctx context.Context, cmd es.Command) error {
		return next(ctx, cmd.(C))
	}, newConfig(opts))

	return func(ctx context.Context, cmd C) error {
		return instrumented(ctx, cmd)
	}
}

// CommandMiddleware returns a CommandBus middleware instrumenting every
// handler registered after it.
func CommandMiddleware(opts ...Option) es.CommandMiddleware {
	cfg := newConfig(opts)
	return func(kind string, next es.CommandHandlerFunc) es.CommandHandlerFunc {
		return instrumentCommand(kind, next, cfg)
	}
}

func instrumentCommand(commandType string, next es.CommandHandlerFunc, cfg *config) es.CommandHandlerFunc {
	kindAttr := metric.WithAttributes(AttrCommandType.String(commandType))

	return func(ctx context.Context, cmd es.Command) error {
		attr := cfg.spanAttributes(ctx,
			AttrCommandType.String(commandType),
			AttrAggregateID.String(cmd.AggregateID()),
		)

		ctx, span := tracer.Start(ctx, fmt.Sprintf("command.handle %s", commandType),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attr...),
		)
		defer span.End()

		CommandsInFlight.Add(ctx, 1, kindAttr)
		defer CommandsInFlight.Add(ctx, -1, kindAttr)

		startTime := time.Now()
		err := next(ctx, cmd)
		CommandsDuration.Record(ctx, float64(time.Since(startTime).Milliseconds()), kindAttr)

		if err == nil {
			span.SetStatus(codes.Ok, "")
			CommandsHandled.Add(ctx, 1, kindAttr)
			return nil
		}

		CommandsFailed.Add(ctx, 1, kindAttr)

		var conflict *es.StreamRevisionConflictError
		if errors.As(err, &conflict) {
			ConcurrencyConflicts.Add(ctx, 1, kindAttr)
			span.AddEvent("concurrency_conflict", trace.WithAttributes(
				AttrStreamID.String(conflict.Stream),
				AttrExpectedVer.Int64(int64(conflict.ExpectedVersion)),
			))
		}

		if errors.Is(err, es.ErrBusinessRuleViolation) {
			// the command was rejected; the system worked as intended
			span.SetStatus(codes.Ok, fmt.Sprintf("business rule violation: %v", err))
			span.AddEvent("business_rule_violation", trace.WithAttributes(
				AttrCommandType.String(commandType),
				AttrAggregateID.String(cmd.AggregateID()),
			))
			return err
		}

		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err, trace.WithAttributes(attribute.String("command", commandType)))
		return err
	}
}

package otel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	es "github.com/terraskye/streamstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// The package tracer delegates to the first provider installed globally, so
// every test shares one recorder.
var recorder = tracetest.NewSpanRecorder()

func TestMain(m *testing.M) {
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	otel.SetTextMapPropagator(propagation.TraceContext{})
	os.Exit(m.Run())
}

func lastSpan(t *testing.T, name string) sdktrace.ReadOnlySpan {
	t.Helper()

	spans := recorder.Ended()
	for i := len(spans) - 1; i >= 0; i-- {
		if spans[i].Name() == name {
			return spans[i]
		}
	}
	t.Fatalf("no span named %q", name)
	return nil
}

func hasEvent(span sdktrace.ReadOnlySpan, name string) bool {
	for _, ev := range span.Events() {
		if ev.Name == name {
			return true
		}
	}
	return false
}

func attr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

type reserveSeat struct{ ID string }

func (c reserveSeat) AggregateID() string { return c.ID }
func (c reserveSeat) CommandType() string { return "ReserveSeat" }

func TestCommandTelemetry(t *testing.T) {
	ruleErr := fmt.Errorf("%w: sold out", es.ErrBusinessRuleViolation)
	conflict := &es.StreamRevisionConflictError{Stream: "Seats|1", ExpectedVersion: 2, ActualVersion: 3}

	tests := []struct {
		name       string
		err        error
		wantStatus codes.Code
		wantEvent  string
	}{
		{name: "success", wantStatus: codes.Ok},
		{name: "business rule violation", err: ruleErr, wantStatus: codes.Ok, wantEvent: "business_rule_violation"},
		{name: "concurrency conflict", err: conflict, wantStatus: codes.Error, wantEvent: "concurrency_conflict"},
		{name: "failure", err: errors.New("boom"), wantStatus: codes.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := WithCommandTelemetry[reserveSeat](func(ctx context.Context, cmd reserveSeat) error {
				return tt.err
			})

			if err := handler(t.Context(), reserveSeat{ID: "1"}); !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}

			span := lastSpan(t, "command.handle ReserveSeat")
			if span.Status().Code != tt.wantStatus {
				t.Fatalf("expected status %v, got %v", tt.wantStatus, span.Status().Code)
			}
			if tt.wantEvent != "" && !hasEvent(span, tt.wantEvent) {
				t.Fatalf("expected span event %q", tt.wantEvent)
			}
		})
	}
}

func TestCommandMiddleware(t *testing.T) {
	bus := es.NewCommandBus()
	bus.Use(CommandMiddleware(WithAttributes(attribute.String("tenant", "t1"))))
	if err := bus.RegisterFunc("CancelSeat", func(ctx context.Context, cmd es.Command) error { return nil }); err != nil {
		t.Fatal(err)
	}

	if err := bus.Send(t.Context(), cancelSeat{ID: "9"}); err != nil {
		t.Fatal(err)
	}

	span := lastSpan(t, "command.handle CancelSeat")
	if v, ok := attr(span, "tenant"); !ok || v.AsString() != "t1" {
		t.Fatalf("expected default attribute, got %v", span.Attributes())
	}
	if v, _ := attr(span, AttrAggregateID); v.AsString() != "9" {
		t.Fatalf("expected aggregate id 9, got %q", v.AsString())
	}
}

type cancelSeat struct{ ID string }

func (c cancelSeat) AggregateID() string { return c.ID }
func (c cancelSeat) CommandType() string { return "CancelSeat" }

type storeStub struct {
	appendFn func(ctx context.Context, streamID string, events []es.Event, expected uint64) (uint64, error)
	readFn   func(ctx context.Context, streamID string) ([]*es.Envelope, error)
}

func (s storeStub) Append(ctx context.Context, streamID string, events []es.Event, expected uint64) (uint64, error) {
	return s.appendFn(ctx, streamID, events, expected)
}

func (s storeStub) Read(ctx context.Context, streamID string) ([]*es.Envelope, error) {
	return s.readFn(ctx, streamID)
}

func TestEventStoreTelemetry(t *testing.T) {
	store := WithEventStoreTelemetry(storeStub{
		appendFn: func(ctx context.Context, streamID string, events []es.Event, expected uint64) (uint64, error) {
			if expected != 0 {
				return 0, &es.StreamRevisionConflictError{Stream: streamID, ExpectedVersion: expected}
			}
			return uint64(len(events)), nil
		},
		readFn: func(ctx context.Context, streamID string) ([]*es.Envelope, error) {
			return nil, fmt.Errorf("read %s: %w", streamID, es.ErrStreamNotFound)
		},
	})

	t.Run("append", func(t *testing.T) {
		version, err := store.Append(t.Context(), "Seats|1", []es.Event{nil, nil}, 0)
		if err != nil || version != 2 {
			t.Fatalf("Append = %d, %v", version, err)
		}
		span := lastSpan(t, "EventStore.Append")
		if v, _ := attr(span, AttrStreamVersion); v.AsInt64() != 2 {
			t.Fatalf("expected stream version 2, got %d", v.AsInt64())
		}
	})

	t.Run("append conflict", func(t *testing.T) {
		if _, err := store.Append(t.Context(), "Seats|1", nil, 5); !errors.Is(err, es.ErrConcurrencyConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
		span := lastSpan(t, "EventStore.Append")
		if !hasEvent(span, "concurrency_conflict") || span.Status().Code != codes.Error {
			t.Fatalf("expected a failed span with a conflict event")
		}
	})

	t.Run("read not found is not a span error", func(t *testing.T) {
		if _, err := store.Read(t.Context(), "Seats|2"); !errors.Is(err, es.ErrStreamNotFound) {
			t.Fatalf("expected ErrStreamNotFound, got %v", err)
		}
		if span := lastSpan(t, "EventStore.Read"); span.Status().Code == codes.Error {
			t.Fatal("expected span status not to be an error")
		}
	})
}

type seatReserved struct{ ID string }

func (e seatReserved) AggregateID() string { return e.ID }
func (e seatReserved) EventType() string   { return "SeatReserved" }

func TestProjectionTelemetry(t *testing.T) {
	router := es.NewProjectionRouter(WithProjectionTelemetry())
	router.Register("SeatReserved", func(ctx context.Context, env *es.Envelope, fetch es.Fetcher) ([]es.Include, error) {
		include, err := es.InsertEntity("seat|"+env.AggregateID, "seat", map[string]string{"id": env.AggregateID})
		return []es.Include{include}, err
	})

	env := &es.Envelope{StreamID: "Seats|1", AggregateID: "1", Version: 1, Event: seatReserved{ID: "1"}}
	if _, err := router.Compute(t.Context(), env, nil); err != nil {
		t.Fatal(err)
	}

	span := lastSpan(t, "projection.compute SeatReserved")
	if v, _ := attr(span, AttrIncludeCount); v.AsInt64() != 1 {
		t.Fatalf("expected 1 include, got %d", v.AsInt64())
	}
}

type seatCount struct{}

func (seatCount) QueryType() string { return "SeatCount" }

func TestQueryTelemetry(t *testing.T) {
	cause := es.WrapBackendError("scan", errors.New("timeout"))
	handler := WithQueryTelemetry(es.NewQueryHandlerFunc(func(ctx context.Context, q seatCount) (int, error) {
		return 0, cause
	}))

	if _, err := handler.HandleQuery(t.Context(), seatCount{}); !errors.Is(err, es.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if span := lastSpan(t, "query.handle SeatCount"); span.Status().Code != codes.Error {
		t.Fatalf("expected error status, got %v", span.Status().Code)
	}
}

func TestTraceMetadata(t *testing.T) {
	if md := TraceMetadata(t.Context()); len(md) != 0 {
		t.Fatalf("expected no metadata outside a span, got %v", md)
	}

	ctx, span := tracer.Start(t.Context(), "outer")
	defer span.End()

	md := TraceMetadata(ctx)
	if md["correlationId"] != span.SpanContext().TraceID().String() {
		t.Fatalf("expected correlationId to be the trace id, got %v", md["correlationId"])
	}
	if _, ok := md["traceparent"]; !ok {
		t.Fatalf("expected traceparent in metadata, got %v", md)
	}
}

package otel

import (
	"context"
	"errors"
	"time"

	es "github.com/terraskye/streamstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var _ es.EventStore = (*TelemetryStore)(nil)

// TelemetryStore decorates an EventStore with spans and metrics.
type TelemetryStore struct {
	next es.EventStore
	cfg  *config
}

// WithEventStoreTelemetry wraps next.
func WithEventStoreTelemetry(next es.EventStore, opts ...Option) *TelemetryStore {
	return &TelemetryStore{next: next, cfg: newConfig(opts)}
}

// Append with metrics + span
func (t *TelemetryStore) Append(ctx context.Context, streamID string, events []es.Event, expectedVersion uint64) (uint64, error) {
	ctx, span := tracer.Start(ctx, "EventStore.Append",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(t.cfg.spanAttributes(ctx,
			AttrOperation.String("append"),
			AttrStreamID.String(streamID),
			AttrExpectedVer.Int64(int64(expectedVersion)),
			AttrEventCount.Int(len(events)),
		)...),
	)
	defer span.End()

	start := time.Now()
	version, err := t.next.Append(ctx, streamID, events, expectedVersion)
	EventStoreDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(AttrOperation.String("append")),
	)
	EventStoreAppends.Add(ctx, 1)

	if err != nil {
		if errors.Is(err, es.ErrConcurrencyConflict) {
			ConcurrencyConflicts.Add(ctx, 1, metric.WithAttributes(AttrOperation.String("append")))
			span.AddEvent("concurrency_conflict")
		} else {
			EventStoreErrors.Add(ctx, 1, metric.WithAttributes(AttrOperation.String("append")))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return version, err
	}

	EventsAppended.Add(ctx, int64(len(events)))
	StreamVersionGauge.Record(ctx, int64(version), metric.WithAttributes(AttrStreamID.String(streamID)))
	span.SetAttributes(AttrStreamVersion.Int64(int64(version)))
	span.SetStatus(codes.Ok, "")
	return version, nil
}

// Read with metrics + span
func (t *TelemetryStore) Read(ctx context.Context, streamID string) ([]*es.Envelope, error) {
	ctx, span := tracer.Start(ctx, "EventStore.Read",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(t.cfg.spanAttributes(ctx,
			AttrOperation.String("read"),
			AttrStreamID.String(streamID),
		)...),
	)
	defer span.End()

	start := time.Now()
	envelopes, err := t.next.Read(ctx, streamID)
	EventStoreDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(AttrOperation.String("read")),
	)
	EventStoreReads.Add(ctx, 1)

	if err != nil {
		if !errors.Is(err, es.ErrStreamNotFound) {
			EventStoreErrors.Add(ctx, 1, metric.WithAttributes(AttrOperation.String("read")))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	EventsLoaded.Add(ctx, int64(len(envelopes)))
	span.SetAttributes(AttrEventCount.Int(len(envelopes)))
	return envelopes, nil
}

// TraceMetadata injects the active trace context into event metadata. Use it
// with streamstore.WithMetadataExtractor.
func TraceMetadata(ctx context.Context) map[string]any {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	md := make(map[string]any, len(carrier)+1)
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		md["correlationId"] = sc.TraceID().String()
	}
	for key, value := range carrier {
		md[key] = value
	}
	return md
}

package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	es "github.com/terraskye/streamstore"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// WithQueryTelemetry wraps a QueryHandler with OpenTelemetry tracing and metrics.
//
// Example Usage:
//
//	handler := WithQueryTelemetry(myQueryHandler)
//	result, err := handler.HandleQuery(ctx, myQuery)
func WithQueryTelemetry[Q es.Query, R any](next es.QueryHandler[Q, R], opts ...Option) es.QueryHandler[Q, R] {
	var zero Q
	return &telemetryQueryHandler[Q, R]{
		next:      next,
		queryType: zero.QueryType(),
		cfg:       newConfig(opts),
	}
}

type telemetryQueryHandler[Q es.Query, R any] struct {
	next      es.QueryHandler[Q, R]
	queryType string
	cfg       *config
}

func (h *telemetryQueryHandler[Q, R]) HandleQuery(ctx context.Context, qry Q) (R, error) {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("query.handle %s", h.queryType),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(h.cfg.spanAttributes(ctx, AttrQueryType.String(h.queryType))...),
	)
	defer span.End()

	kindAttr := metric.WithAttributes(AttrQueryType.String(h.queryType))

	startTime := time.Now()
	result, err := h.next.HandleQuery(ctx, qry)
	QueriesDuration.Record(ctx, float64(time.Since(startTime).Milliseconds()), kindAttr)

	if err != nil {
		errorType := "handler_error"
		if errors.Is(err, es.ErrBackendUnavailable) {
			errorType = "backend_unavailable"
		}
		QueriesFailed.Add(ctx, 1, metric.WithAttributes(
			AttrQueryType.String(h.queryType),
			AttrErrorType.String(errorType),
		))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	QueriesHandled.Add(ctx, 1, kindAttr)
	span.SetStatus(codes.Ok, "")
	return result, nil
}

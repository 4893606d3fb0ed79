package otel

import (
	"context"
	"fmt"

	es "github.com/terraskye/streamstore"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// WithProjectionTelemetry returns a ProjectionRouter middleware recording a
// span per projection function and counting the Includes it produced.
func WithProjectionTelemetry(opts ...Option) es.ProjectionMiddleware {
	cfg := newConfig(opts)

	return func(kind string, next es.ProjectionFunc) es.ProjectionFunc {
		kindAttr := metric.WithAttributes(AttrEventType.String(kind))

		return func(ctx context.Context, env *es.Envelope, fetch es.Fetcher) ([]es.Include, error) {
			ctx, span := tracer.Start(ctx, fmt.Sprintf("projection.compute %s", kind),
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(cfg.spanAttributes(ctx,
					AttrEventType.String(kind),
					AttrEventID.String(env.EventID.String()),
					AttrStreamID.String(env.StreamID),
					AttrStreamVersion.Int64(int64(env.Version)),
				)...),
			)
			defer span.End()

			ProjectionsComputed.Add(ctx, 1, kindAttr)

			includes, err := next(ctx, env, fetch)
			if err != nil {
				ProjectionErrors.Add(ctx, 1, kindAttr)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}

			ProjectionIncludes.Add(ctx, int64(len(includes)), kindAttr)
			span.SetAttributes(AttrIncludeCount.Int(len(includes)))
			span.SetStatus(codes.Ok, "")
			return includes, nil
		}
	}
}

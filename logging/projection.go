package logging

import (
	"context"
	"log/slog"

	es "github.com/terraskye/streamstore"
)

// WithProjectionLogging returns a ProjectionRouter middleware that logs every
// projection run at debug level and failures at error level.
func WithProjectionLogging(logger *slog.Logger) es.ProjectionMiddleware {
	return func(_ string, next es.ProjectionFunc) es.ProjectionFunc {
		return func(ctx context.Context, env *es.Envelope, fetch es.Fetcher) ([]es.Include, error) {
			ctx = es.WithEnvelope(ctx, env)

			l := logger.With(
				"event-type", es.EventTypeFromContext(ctx),
				"stream-id", es.StreamIDFromContext(ctx),
				"event-id", es.EventIDFromContext(ctx).String(),
				"version", es.VersionFromContext(ctx),
				"aggregateId", es.AggregateIDFromContext(ctx),
				"occurred-at", es.OccurredAtFromContext(ctx),
			)
			if correlationID, ok := es.MetadataFromContext(ctx)["correlationId"]; ok {
				l = l.With("correlation-id", correlationID)
			}

			l.DebugContext(ctx, "projection started")

			includes, err := next(ctx, env, fetch)
			if err != nil {
				l.ErrorContext(ctx, "error computing projection", "error", err)
				return nil, err
			}

			l.DebugContext(ctx, "projection computed", "includes", len(includes))
			return includes, nil
		}
	}
}

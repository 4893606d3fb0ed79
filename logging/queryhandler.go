package logging

import (
	"context"

	"github.com/sirupsen/logrus"
	es "github.com/terraskye/streamstore"
)

type queryHandlerLogger[Q es.Query, R any] struct {
	logger *logrus.Entry
	next   es.QueryHandler[Q, R]
}

func (q *queryHandlerLogger[Q, R]) HandleQuery(ctx context.Context, qry Q) (R, error) {
	kind := qry.QueryType()
	q.logger.WithContext(ctx).Debugf("Query: %s", kind)

	result, err := q.next.HandleQuery(ctx, qry)
	if err != nil {
		q.logger.WithContext(ctx).Errorf("Query failed: %s: %v", kind, err)
	}

	return result, err
}

// WithQueryLogging wraps a QueryHandler with logging functionality.
// It logs the query kind before execution, and logs errors if the query fails.
func WithQueryLogging[Q es.Query, R any](logger *logrus.Entry, next es.QueryHandler[Q, R]) es.QueryHandler[Q, R] {
	return &queryHandlerLogger[Q, R]{
		logger: logger,
		next:   next,
	}
}

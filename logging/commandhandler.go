package logging

import (
	"context"

	"github.com/sirupsen/logrus"
	es "github.com/terraskye/streamstore"
)

// WithCommandLogging wraps a CommandHandler with logging functionality.
// It logs the command kind and aggregate ID before execution, and logs
// errors if the command fails.
func WithCommandLogging[C es.Command](logger *logrus.Entry, next es.CommandHandler[C]) es.CommandHandler[C] {
	return func(ctx context.Context, command C) error {
		return logCommand(logger, command.CommandType(), command, func(ctx context.Context) error {
			return next(ctx, command)
		})(ctx)
	}
}

// CommandMiddleware returns a CommandBus middleware logging every command
// dispatched to handlers registered after it.
func CommandMiddleware(logger *logrus.Entry) es.CommandMiddleware {
	return func(kind string, next es.CommandHandlerFunc) es.CommandHandlerFunc {
		return func(ctx context.Context, cmd es.Command) error {
			return logCommand(logger, kind, cmd, func(ctx context.Context) error {
				return next(ctx, cmd)
			})(ctx)
		}
	}
}

func logCommand(logger *logrus.Entry, kind string, cmd es.Command, call func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		entry := logger.WithContext(ctx).WithFields(logrus.Fields{
			"command":     kind,
			"aggregateId": cmd.AggregateID(),
		})
		entry.Infof("Dispatch: %s (aggregateID: %s)", kind, cmd.AggregateID())

		err := call(ctx)
		if err != nil {
			entry.WithError(err).Errorf("Dispatch failed: %s (aggregateID: %s)", kind, cmd.AggregateID())
		}
		return err
	}
}

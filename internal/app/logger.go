package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/sirupsen/logrus"

	"github.com/terraskye/streamstore/internal/config"
)

// NewLogger builds the process logger from cfg, writing to out.
func NewLogger(cfg config.Config, out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// projectionLogger returns a slog logger writing to the output of logger at
// the same level and format.
func projectionLogger(logger *logrus.Logger) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(logger.GetLevel())}
	if _, ok := logger.Formatter.(*logrus.JSONFormatter); ok {
		return slog.New(slog.NewJSONHandler(logger.Out, opts))
	}
	return slog.New(slog.NewTextHandler(logger.Out, opts))
}

func slogLevel(level logrus.Level) slog.Level {
	switch {
	case level >= logrus.DebugLevel:
		return slog.LevelDebug
	case level == logrus.InfoLevel:
		return slog.LevelInfo
	case level == logrus.WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// Package main starts the inventory HTTP service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	es "github.com/terraskye/streamstore"
	"github.com/terraskye/streamstore/internal/app"
	"github.com/terraskye/streamstore/internal/config"
	"github.com/terraskye/streamstore/internal/httpapi"
	"github.com/terraskye/streamstore/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("inventoryd: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	logger, err := app.NewLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	gin.SetMode(gin.ReleaseMode)

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: es.InstrumentationVersion,
		Endpoint:       cfg.OTelEndpoint,
	})
	if err != nil {
		return err
	}

	backend, closeBackend, err := app.OpenBackend(ctx, cfg)
	if err != nil {
		return err
	}

	a, err := app.New(backend, logger)
	if err != nil {
		return errors.Join(err, closeBackend())
	}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Handler:     httpapi.NewHandler(a.Commands, a.Queries, cfg.RetryMaxElapsed),
		Logger:      logrus.NewEntry(logger).WithField("component", "http"),
		ServiceName: cfg.ServiceName,
	})
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":    cfg.HTTPAddr,
			"backend": cfg.Backend,
		}).Info("HTTP server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return errors.Join(fmt.Errorf("serve: %w", err), closeBackend(), shutdownTracing(context.Background()))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	return errors.Join(
		server.Shutdown(shutdownCtx),
		closeBackend(),
		shutdownTracing(shutdownCtx),
	)
}

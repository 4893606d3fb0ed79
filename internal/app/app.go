package app

import (
	"errors"

	"github.com/sirupsen/logrus"

	es "github.com/terraskye/streamstore"
	"github.com/terraskye/streamstore/internal/inventory"
	"github.com/terraskye/streamstore/logging"
	"github.com/terraskye/streamstore/otel"
)

// App holds the wired inventory service.
type App struct {
	Store    es.EventStore
	Streams  *es.StreamStore
	Commands *es.CommandBus
	Queries  *es.QueryBus
	Facade   *inventory.ReadModelFacade
}

// New wires the inventory service on backend.
func New(backend es.Backend, logger *logrus.Logger) (*App, error) {
	entry := logrus.NewEntry(logger)

	registry := es.NewEventRegistry()
	inventory.RegisterEvents(registry)

	router := es.NewProjectionRouter(
		otel.WithProjectionTelemetry(),
		logging.WithProjectionLogging(projectionLogger(logger)),
	)
	inventory.RegisterProjections(router)

	streams := es.NewStreamStore(backend, registry, router,
		es.WithLogger(entry.WithField("component", "streamstore")),
		es.WithMetadataExtractor(otel.TraceMetadata),
	)
	store := otel.WithEventStoreTelemetry(streams)

	commands := es.NewCommandBus()
	commands.Use(
		otel.CommandMiddleware(),
		logging.CommandMiddleware(entry.WithField("component", "commands")),
	)
	if err := inventory.Register(commands, inventory.NewRepository(store)); err != nil {
		return nil, err
	}

	facade := inventory.NewReadModelFacade(backend)
	queries := es.NewQueryBus()
	queryLog := entry.WithField("component", "queries")
	err := errors.Join(
		es.RegisterQueryHandler(queries,
			otel.WithQueryTelemetry(logging.WithQueryLogging(queryLog, facade.ItemsHandler()))),
		es.RegisterQueryHandler(queries,
			otel.WithQueryTelemetry(logging.WithQueryLogging(queryLog, facade.DetailsHandler()))),
	)
	if err != nil {
		return nil, err
	}

	return &App{
		Store:    store,
		Streams:  streams,
		Commands: commands,
		Queries:  queries,
		Facade:   facade,
	}, nil
}

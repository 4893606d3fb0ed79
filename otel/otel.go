package otel

import (
	es "github.com/terraskye/streamstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/terraskye/streamstore"
)

// Semantic attribute keys following OpenTelemetry conventions
const (
	// Command attributes
	AttrCommandType = attribute.Key("streamstore.command.type")
	AttrAggregateID = attribute.Key("streamstore.aggregate.id")

	// Stream attributes
	AttrStreamID      = attribute.Key("streamstore.stream.id")
	AttrStreamVersion = attribute.Key("streamstore.stream.version")
	AttrExpectedVer   = attribute.Key("streamstore.stream.expected_version")

	// Event attributes
	AttrEventType  = attribute.Key("streamstore.event.type")
	AttrEventID    = attribute.Key("streamstore.event.id")
	AttrEventCount = attribute.Key("streamstore.events.count")

	// Projection attributes
	AttrIncludeCount = attribute.Key("streamstore.projection.includes")

	// Query attributes
	AttrQueryType = attribute.Key("streamstore.query.type")

	// Error attributes
	AttrErrorType = attribute.Key("streamstore.error.type")

	// Operation attributes
	AttrOperation = attribute.Key("streamstore.operation")
)

var (
	meter  = otel.Meter(instrumentationName, metric.WithInstrumentationVersion(es.InstrumentationVersion))
	tracer = otel.Tracer(instrumentationName, trace.WithInstrumentationVersion(es.InstrumentationVersion))

	// Command metrics
	CommandsHandled, _ = meter.Int64Counter(
		"streamstore.commands.handled",
		metric.WithDescription("Total number of commands handled"),
		metric.WithUnit("{command}"),
	)

	CommandsDuration, _ = meter.Float64Histogram(
		"streamstore.commands.duration",
		metric.WithDescription("Command handling duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000),
	)

	CommandsInFlight, _ = meter.Int64UpDownCounter(
		"streamstore.commands.in_flight",
		metric.WithDescription("Number of commands currently being processed"),
		metric.WithUnit("{command}"),
	)

	CommandsFailed, _ = meter.Int64Counter(
		"streamstore.commands.failed",
		metric.WithDescription("Number of failed commands"),
		metric.WithUnit("{command}"),
	)

	// Event metrics
	EventsAppended, _ = meter.Int64Counter(
		"streamstore.events.appended",
		metric.WithDescription("Number of events appended to streams"),
		metric.WithUnit("{event}"),
	)

	EventsLoaded, _ = meter.Int64Counter(
		"streamstore.events.loaded",
		metric.WithDescription("Number of events loaded from streams"),
		metric.WithUnit("{event}"),
	)

	// Projection metrics
	ProjectionsComputed, _ = meter.Int64Counter(
		"streamstore.projections.computed",
		metric.WithDescription("Number of projection functions run"),
		metric.WithUnit("{projection}"),
	)

	ProjectionIncludes, _ = meter.Int64Counter(
		"streamstore.projections.includes",
		metric.WithDescription("Number of read-model row operations produced by projections"),
		metric.WithUnit("{row}"),
	)

	ProjectionErrors, _ = meter.Int64Counter(
		"streamstore.projections.errors",
		metric.WithDescription("Number of failed projection functions"),
		metric.WithUnit("{error}"),
	)

	// Query metrics
	QueriesHandled, _ = meter.Int64Counter(
		"streamstore.queries.handled",
		metric.WithDescription("Total number of queries handled"),
		metric.WithUnit("{query}"),
	)

	QueriesDuration, _ = meter.Float64Histogram(
		"streamstore.queries.duration",
		metric.WithDescription("Query handling duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)

	QueriesFailed, _ = meter.Int64Counter(
		"streamstore.queries.failed",
		metric.WithDescription("Number of failed queries"),
		metric.WithUnit("{query}"),
	)

	// EventStore metrics
	EventStoreAppends, _ = meter.Int64Counter(
		"streamstore.eventstore.appends",
		metric.WithDescription("Number of append operations"),
		metric.WithUnit("{operation}"),
	)

	EventStoreReads, _ = meter.Int64Counter(
		"streamstore.eventstore.reads",
		metric.WithDescription("Number of read operations"),
		metric.WithUnit("{operation}"),
	)

	EventStoreDuration, _ = meter.Float64Histogram(
		"streamstore.eventstore.duration",
		metric.WithDescription("Event store operation duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)

	EventStoreErrors, _ = meter.Int64Counter(
		"streamstore.eventstore.errors",
		metric.WithDescription("Number of event store errors"),
		metric.WithUnit("{error}"),
	)

	// System metrics
	ConcurrencyConflicts, _ = meter.Int64Counter(
		"streamstore.concurrency.conflicts",
		metric.WithDescription("Number of concurrency conflicts"),
		metric.WithUnit("{conflict}"),
	)

	StreamVersionGauge, _ = meter.Int64Gauge(
		"streamstore.stream.version",
		metric.WithDescription("Current version of streams"),
		metric.WithUnit("{version}"),
	)
)

package streamstore

// InstrumentationVersion is reported as the version of the tracer and meter.
const InstrumentationVersion = "0.1.0"

package streamstore

// Command is an intent to change one aggregate.
//
// CommandType is the closed kind tag used to route the command to its handler.
type Command interface {
	AggregateID() string
	CommandType() string
}

// ExpectedVersioner is implemented by commands that carry the aggregate version
// the caller based its decision on. The bool result reports whether a version
// was supplied at all.
type ExpectedVersioner interface {
	ExpectedVersion() (uint64, bool)
}

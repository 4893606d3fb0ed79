package streamstore

// Aggregate is the interface that all aggregates must implement.
type Aggregate interface {

	// AggregateID returns the unique identifier of the aggregate.
	AggregateID() string

	// AggregateVersion returns the version the aggregate was loaded at.
	AggregateVersion() uint64

	// SetAggregateVersion sets the version of the aggregate.
	SetAggregateVersion(version uint64)

	// UncommittedEvents returns all the events that are currently uncommitted.
	UncommittedEvents() []Event

	// ClearUncommittedEvents clears all uncommitted events from the aggregate.
	ClearUncommittedEvents()

	// AppendEvent buffers a newly raised event.
	AppendEvent(event Event)

	// ApplyEvent folds event into the aggregate state. It is used both for
	// replaying history and for newly raised events.
	ApplyEvent(event Event)
}

// AggregateBase implements the bookkeeping part of Aggregate. Embed it and
// implement ApplyEvent.
type AggregateBase struct {
	id     string
	v      uint64
	events []Event
}

// NewAggregateBase creates an aggregate base.
func NewAggregateBase(id string) *AggregateBase {
	return &AggregateBase{
		id:     id,
		events: make([]Event, 0),
	}
}

// AggregateID implements the AggregateID method of the Aggregate interface.
func (a *AggregateBase) AggregateID() string {
	return a.id
}

// AggregateVersion implements the AggregateVersion method of the Aggregate interface.
func (a *AggregateBase) AggregateVersion() uint64 {
	return a.v
}

// SetAggregateVersion implements the SetAggregateVersion method of the Aggregate interface.
func (a *AggregateBase) SetAggregateVersion(v uint64) {
	a.v = v
}

// UncommittedEvents implements the UncommittedEvents method of the Aggregate interface.
func (a *AggregateBase) UncommittedEvents() []Event {
	return a.events
}

// ClearUncommittedEvents implements the ClearUncommittedEvents method of the Aggregate interface.
func (a *AggregateBase) ClearUncommittedEvents() {
	a.events = nil
}

// AppendEvent appends an event for later retrieval by UncommittedEvents.
func (a *AggregateBase) AppendEvent(event Event) {
	a.events = append(a.events, event)
}

// Raise applies event to agg and buffers it as uncommitted.
func Raise(agg Aggregate, event Event) {
	agg.ApplyEvent(event)
	agg.AppendEvent(event)
}

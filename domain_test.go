package streamstore_test

import (
	"context"
	"errors"
	"fmt"

	es "github.com/terraskye/streamstore"
)

// A small counter domain shared by the external tests of this package.

const counterKind = "Counter"

type counterOpened struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (e counterOpened) EventType() string   { return "CounterOpened" }
func (e counterOpened) AggregateID() string { return e.ID }

type counterIncremented struct {
	ID string `json:"id"`
	By int    `json:"by"`
}

func (e counterIncremented) EventType() string   { return "CounterIncremented" }
func (e counterIncremented) AggregateID() string { return e.ID }

type counterClosed struct {
	ID string `json:"id"`
}

func (e counterClosed) EventType() string   { return "CounterClosed" }
func (e counterClosed) AggregateID() string { return e.ID }

type unknownEvent struct {
	ID string `json:"id"`
}

func (e unknownEvent) EventType() string   { return "Unknown" }
func (e unknownEvent) AggregateID() string { return e.ID }

func newCounterRegistry() *es.EventRegistry {
	r := es.NewEventRegistry()
	es.RegisterEvent[counterOpened](r)
	es.RegisterEvent[counterIncremented](r)
	es.RegisterEvent[counterClosed](r)
	return r
}

type counterView struct {
	Name    string `json:"name"`
	Total   int    `json:"total"`
	Version uint64 `json:"version"`
}

func counterRowKey(id string) string { return "counter|" + id }

func newCounterRouter(mw ...es.ProjectionMiddleware) *es.ProjectionRouter {
	router := es.NewProjectionRouter(mw...)

	es.OnProjection(router, func(ctx context.Context, env *es.Envelope, ev counterOpened, _ es.Fetcher) ([]es.Include, error) {
		inc, err := es.InsertEntity(counterRowKey(ev.ID), "counter", counterView{Name: ev.Name, Version: env.Version})
		return []es.Include{inc}, err
	})
	es.OnProjection(router, func(ctx context.Context, env *es.Envelope, ev counterIncremented, f es.Fetcher) ([]es.Include, error) {
		view, err := es.FetchEntity[counterView](ctx, f, counterRowKey(ev.ID))
		if err != nil {
			return nil, err
		}
		view.Value.Total += ev.By
		view.Value.Version = env.Version
		inc, err := es.ReplaceEntity("counter", view)
		return []es.Include{inc}, err
	})
	es.OnProjection(router, func(ctx context.Context, env *es.Envelope, ev counterClosed, f es.Fetcher) ([]es.Include, error) {
		view, err := es.FetchEntity[counterView](ctx, f, counterRowKey(ev.ID))
		if err != nil {
			return nil, err
		}
		return []es.Include{es.DeleteEntity(view)}, nil
	})
	return router
}

var errCounterClosed = fmt.Errorf("%w: counter is closed", es.ErrBusinessRuleViolation)

type counter struct {
	*es.AggregateBase
	name   string
	total  int
	closed bool
}

func newCounter(id string) *counter {
	return &counter{AggregateBase: es.NewAggregateBase(id)}
}

func (c *counter) ApplyEvent(event es.Event) {
	switch ev := event.(type) {
	case counterOpened:
		c.name = ev.Name
	case counterIncremented:
		c.total += ev.By
	case counterClosed:
		c.closed = true
	}
}

func (c *counter) Increment(by int) error {
	if c.closed {
		return errCounterClosed
	}
	if by <= 0 {
		return errors.New("increment must be positive")
	}
	es.Raise(c, counterIncremented{ID: c.AggregateID(), By: by})
	return nil
}

type openCounter struct {
	ID   string
	Name string
}

func (c openCounter) AggregateID() string { return c.ID }
func (c openCounter) CommandType() string { return "OpenCounter" }

type incrementCounter struct {
	ID       string
	By       int
	Expected uint64
}

func (c incrementCounter) AggregateID() string { return c.ID }
func (c incrementCounter) CommandType() string { return "IncrementCounter" }

func (c incrementCounter) ExpectedVersion() (uint64, bool) { return c.Expected, c.Expected != 0 }

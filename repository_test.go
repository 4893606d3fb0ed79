package streamstore_test

import (
	"errors"
	"sync"
	"testing"

	es "github.com/terraskye/streamstore"
	"github.com/terraskye/streamstore/backend/memory"
	"github.com/terraskye/streamstore/fixtures"
)

func newCounterRepo(store es.EventStore) *es.Repository[*counter] {
	return es.NewRepository(store, newCounter, es.WithStreamKind(counterKind))
}

func TestRaise(t *testing.T) {
	c := newCounter("1")

	es.Raise(c, counterIncremented{ID: "1", By: 2})

	if c.total != 2 {
		t.Fatalf("expected the event to be applied, total = %d", c.total)
	}
	if len(c.UncommittedEvents()) != 1 {
		t.Fatalf("expected 1 uncommitted event, got %d", len(c.UncommittedEvents()))
	}
	if c.AggregateVersion() != 0 {
		t.Fatalf("raising must not move the version, got %d", c.AggregateVersion())
	}
}

func TestRepository_StreamID(t *testing.T) {
	tests := []struct {
		name string
		opts []es.RepositoryOption
		want string
	}{
		{"default uses the id", nil, "42"},
		{"stream kind", []es.RepositoryOption{es.WithStreamKind("Counter")}, "Counter|42"},
		{"custom namer", []es.RepositoryOption{es.WithStreamNamer(func(id string) string { return "c-" + id })}, "c-42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := es.NewRepository(fixtures.NewStoreSpy(), newCounter, tt.opts...)
			if got := repo.StreamID("42"); got != tt.want {
				t.Fatalf("StreamID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRepository_Load(t *testing.T) {
	ctx := t.Context()

	t.Run("replays events", func(t *testing.T) {
		store := fixtures.NewStoreSpy().WithEvents("Counter|1",
			counterOpened{ID: "1", Name: "Widget"},
			counterIncremented{ID: "1", By: 5},
			counterIncremented{ID: "1", By: 3},
		)

		c, err := newCounterRepo(store).Load(ctx, "1")
		if err != nil {
			t.Fatal(err)
		}
		if c.name != "Widget" || c.total != 8 {
			t.Fatalf("unexpected state %+v", c)
		}
		if c.AggregateVersion() != 3 {
			t.Fatalf("expected version 3, got %d", c.AggregateVersion())
		}
		if len(c.UncommittedEvents()) != 0 {
			t.Fatal("replayed events must not be uncommitted")
		}
		if store.LastReadStreamID != "Counter|1" {
			t.Fatalf("read stream %q", store.LastReadStreamID)
		}
	})

	t.Run("unknown aggregate", func(t *testing.T) {
		_, err := newCounterRepo(fixtures.NewStoreSpy()).Load(ctx, "missing")
		if !errors.Is(err, es.ErrAggregateNotFound) {
			t.Fatalf("expected ErrAggregateNotFound, got %v", err)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		cause := &es.BackendError{Op: "query", Err: errors.New("timeout")}
		_, err := newCounterRepo(fixtures.FailingStore(cause)).Load(ctx, "1")
		if !errors.Is(err, es.ErrBackendUnavailable) || errors.Is(err, es.ErrAggregateNotFound) {
			t.Fatalf("expected backend failure, got %v", err)
		}
	})
}

func TestRepository_Save(t *testing.T) {
	ctx := t.Context()

	t.Run("nothing to save", func(t *testing.T) {
		store := fixtures.NewStoreSpy()
		if err := newCounterRepo(store).Save(ctx, newCounter("1")); err != nil {
			t.Fatal(err)
		}
		if store.AppendCalls != 0 {
			t.Fatalf("expected no append, got %d", store.AppendCalls)
		}
	})

	t.Run("appends at the loaded version", func(t *testing.T) {
		store := fixtures.NewStoreSpy().WithEvents("Counter|1", counterOpened{ID: "1"})
		repo := newCounterRepo(store)

		c, err := repo.Load(ctx, "1")
		if err != nil {
			t.Fatal(err)
		}
		if err := c.Increment(2); err != nil {
			t.Fatal(err)
		}
		if err := repo.Save(ctx, c); err != nil {
			t.Fatal(err)
		}

		if store.LastAppendVersion != 1 || store.LastAppendStreamID != "Counter|1" {
			t.Fatalf("appended to %q at %d", store.LastAppendStreamID, store.LastAppendVersion)
		}
		if c.AggregateVersion() != 2 || len(c.UncommittedEvents()) != 0 {
			t.Fatalf("expected version 2 and no uncommitted events, got %d / %d",
				c.AggregateVersion(), len(c.UncommittedEvents()))
		}
	})

	t.Run("conflict is returned unchanged", func(t *testing.T) {
		store := fixtures.ConcurrencyConflictStore("Counter|1", 4)
		c := newCounter("1")
		es.Raise(c, counterOpened{ID: "1"})

		err := newCounterRepo(store).Save(ctx, c)
		var conflict *es.StreamRevisionConflictError
		if !errors.As(err, &conflict) || conflict.ActualVersion != 4 {
			t.Fatalf("expected StreamRevisionConflictError, got %v", err)
		}
		if len(c.UncommittedEvents()) != 1 {
			t.Fatal("a failed save must keep the uncommitted events")
		}
	})
}

func TestRepository_ConcurrentSavesOfLoadedAggregate(t *testing.T) {
	ctx := t.Context()
	mem := memory.NewBackend()
	repo := newCounterRepo(newCounterStore(mem))

	opened := newCounter("1")
	es.Raise(opened, counterOpened{ID: "1", Name: "Widget"})
	if err := repo.Save(ctx, opened); err != nil {
		t.Fatal(err)
	}

	// both copies start from version 1 and raise a different number of events
	increments := [][]int{{2}, {3, 4}}
	copies := make([]*counter, len(increments))
	for i, bys := range increments {
		c, err := repo.Load(ctx, "1")
		if err != nil {
			t.Fatal(err)
		}
		if c.AggregateVersion() != 1 {
			t.Fatalf("expected loaded version 1, got %d", c.AggregateVersion())
		}
		for _, by := range bys {
			if err := c.Increment(by); err != nil {
				t.Fatal(err)
			}
		}
		copies[i] = c
	}

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, len(copies))
	)
	for i, c := range copies {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = repo.Save(ctx, c)
		}()
	}
	close(start)
	wg.Wait()

	winner := -1
	for i, err := range errs {
		switch {
		case err == nil:
			if winner != -1 {
				t.Fatal("expected exactly one save to win")
			}
			winner = i
		case !errors.Is(err, es.ErrConcurrencyConflict):
			t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
		}
	}
	if winner == -1 {
		t.Fatal("expected one save to win")
	}

	want := copies[winner]
	wantVersion := uint64(1 + len(increments[winner]))
	if want.AggregateVersion() != wantVersion {
		t.Fatalf("expected winner at version %d, got %d", wantVersion, want.AggregateVersion())
	}

	reloaded, err := repo.Load(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.AggregateVersion() != wantVersion || reloaded.total != want.total {
		t.Fatalf("expected total %d at version %d, got %d at %d",
			want.total, wantVersion, reloaded.total, reloaded.AggregateVersion())
	}

	model := es.NewReadModel[counterView](mem, "counter|")
	view, ok, err := model.Get(ctx, repo.StreamID("1"), counterRowKey("1"))
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if view.Value != (counterView{Name: "Widget", Total: want.total, Version: wantVersion}) {
		t.Fatalf("read model %+v does not match the winner", view.Value)
	}
}

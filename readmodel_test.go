package streamstore_test

import (
	"context"
	"errors"
	"testing"

	es "github.com/terraskye/streamstore"
	"github.com/terraskye/streamstore/backend/memory"
)

type mapFetcher map[string]es.Row

func (m mapFetcher) Fetch(_ context.Context, key string) (es.Row, bool, error) {
	row, ok := m[key]
	return row, ok, nil
}

func TestEntityIncludes(t *testing.T) {
	inc, err := es.InsertEntity("counter|1", "counter", counterView{Name: "Widget"})
	if err != nil {
		t.Fatal(err)
	}
	if inc.Op != es.OpInsert || inc.Row.RowKey != "counter|1" || inc.Row.Kind != "counter" {
		t.Fatalf("unexpected insert %+v", inc)
	}

	entity := es.Entity[counterView]{RowKey: "counter|1", ETag: "e1", Value: counterView{Total: 2}}
	inc, err = es.ReplaceEntity("counter", entity)
	if err != nil {
		t.Fatal(err)
	}
	if inc.Op != es.OpReplace || inc.Row.ETag != "e1" {
		t.Fatalf("unexpected replace %+v", inc)
	}

	inc = es.DeleteEntity(entity)
	if inc.Op != es.OpDelete || inc.Row.ETag != "e1" || inc.Row.RowKey != "counter|1" {
		t.Fatalf("unexpected delete %+v", inc)
	}
}

func TestFetchEntity(t *testing.T) {
	f := mapFetcher{
		"counter|1": {RowKey: "counter|1", ETag: "e1", Data: []byte(`{"name":"Widget","total":3}`)},
		"counter|2": {RowKey: "counter|2", Data: []byte(`{`)},
	}

	entity, err := es.FetchEntity[counterView](t.Context(), f, "counter|1")
	if err != nil {
		t.Fatal(err)
	}
	if entity.ETag != "e1" || entity.Value.Name != "Widget" || entity.Value.Total != 3 {
		t.Fatalf("unexpected entity %+v", entity)
	}

	if _, err := es.FetchEntity[counterView](t.Context(), f, "counter|missing"); !errors.Is(err, es.ErrCorruptProjectionState) {
		t.Fatalf("expected ErrCorruptProjectionState, got %v", err)
	}
	if _, err := es.FetchEntity[counterView](t.Context(), f, "counter|2"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestReadModel(t *testing.T) {
	ctx := t.Context()
	mem := memory.NewBackend()
	store := newCounterStore(mem)

	for _, id := range []string{"b", "a"} {
		_, err := store.Append(ctx, es.PartitionKey(counterKind, id), []es.Event{
			counterOpened{ID: id, Name: "counter " + id},
			counterIncremented{ID: id, By: 1},
		}, 0)
		if err != nil {
			t.Fatal(err)
		}
	}
	model := es.NewReadModel[counterView](mem, "counter|")

	t.Run("get", func(t *testing.T) {
		entity, ok, err := model.Get(ctx, "Counter|a", counterRowKey("a"))
		if err != nil || !ok {
			t.Fatalf("Get() = %v, %v", ok, err)
		}
		if entity.Value.Name != "counter a" || entity.Value.Total != 1 {
			t.Fatalf("unexpected entity %+v", entity)
		}

		if _, ok, err := model.Get(ctx, "Counter|a", counterRowKey("b")); ok || err != nil {
			t.Fatalf("rows of another partition must not be visible, got %v, %v", ok, err)
		}
	})

	t.Run("list partition", func(t *testing.T) {
		it, err := model.List(ctx, "Counter|b")
		if err != nil {
			t.Fatal(err)
		}
		entities, err := it.All(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(entities) != 1 || entities[0].Value.Name != "counter b" {
			t.Fatalf("unexpected entities %+v", entities)
		}
	})

	t.Run("list all", func(t *testing.T) {
		it, err := model.ListAll(ctx)
		if err != nil {
			t.Fatal(err)
		}
		entities, err := it.All(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(entities) != 2 {
			t.Fatalf("expected 2 entities, got %d", len(entities))
		}
		if entities[0].Value.Name != "counter a" || entities[1].Value.Name != "counter b" {
			t.Fatalf("expected partition order, got %+v", entities)
		}
	})

	t.Run("reserved rows are skipped", func(t *testing.T) {
		it, err := es.NewReadModel[counterView](mem, "").List(ctx, "Counter|a")
		if err != nil {
			t.Fatal(err)
		}
		entities, err := it.All(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(entities) != 1 {
			t.Fatalf("expected only the read-model row, got %d", len(entities))
		}
	})
}

type nonScanningBackend struct {
	es.Backend
}

func TestReadModel_ListAllUnsupported(t *testing.T) {
	model := es.NewReadModel[counterView](nonScanningBackend{memory.NewBackend()}, "counter|")

	if _, err := model.ListAll(t.Context()); !errors.Is(err, es.ErrScanUnsupported) {
		t.Fatalf("expected ErrScanUnsupported, got %v", err)
	}
}

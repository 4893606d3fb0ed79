package memory_test

import (
	"errors"
	"testing"

	es "github.com/terraskye/streamstore"
	"github.com/terraskye/streamstore/backend/memory"
	"github.com/terraskye/streamstore/fixtures"
)

func TestBackend(t *testing.T) {
	fixtures.RunBackendSuite(t, func(t *testing.T) es.Backend {
		return memory.NewBackend()
	})
}

func TestBackend_RowsAreCopied(t *testing.T) {
	b := memory.NewBackend()
	ctx := t.Context()

	data := []byte(`{"a":1}`)
	err := b.WriteAtomic(ctx, "p", []es.RowOperation{{Op: es.OpInsert, Row: es.Row{RowKey: "item|1", Data: data}}})
	if err != nil {
		t.Fatal(err)
	}
	data[0] = 'X'

	rows, err := b.QueryByPartitionAndKeyPrefix(ctx, "p", "item|")
	if err != nil {
		t.Fatal(err)
	}
	if string(rows[0].Data) != `{"a":1}` {
		t.Fatalf("stored data aliased caller slice: %s", rows[0].Data)
	}

	rows[0].Data[0] = 'Y'
	again, _ := b.QueryByPartitionAndKeyPrefix(ctx, "p", "item|")
	if string(again[0].Data) != `{"a":1}` {
		t.Fatalf("query result aliased stored data: %s", again[0].Data)
	}
}

func TestBackend_DuplicateRowInBatch(t *testing.T) {
	b := memory.NewBackend()
	ctx := t.Context()

	err := b.WriteAtomic(ctx, "p", []es.RowOperation{
		{Op: es.OpInsert, Row: es.Row{RowKey: "item|1", Data: []byte(`{}`)}},
		{Op: es.OpReplace, Row: es.Row{RowKey: "item|1", ETag: es.AnyETag, Data: []byte(`{}`)}},
	})
	if !errors.Is(err, es.ErrInvalidEventBatch) {
		t.Fatalf("expected ErrInvalidEventBatch, got %v", err)
	}
	if wrapped := es.WrapBackendError("write", err); errors.Is(wrapped, es.ErrBackendUnavailable) {
		t.Fatalf("a rejected batch must not read as an unavailable backend: %v", wrapped)
	}

	if rows, _ := b.QueryByPartitionAndKeyPrefix(ctx, "p", ""); len(rows) != 0 {
		t.Fatalf("expected nothing written, got %d rows", len(rows))
	}
}

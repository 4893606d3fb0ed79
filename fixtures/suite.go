package fixtures

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	es "github.com/terraskye/streamstore"
)

// RunBackendSuite checks that a Backend honors the contract the stream engine
// depends on. newBackend is called once per subtest; partition keys are unique
// per run, so backends pointing at shared databases can be reused.
func RunBackendSuite(t *testing.T, newBackend func(t *testing.T) es.Backend) {
	t.Helper()

	t.Run("missing partition does not exist", func(t *testing.T) {
		b := newBackend(t)
		p, err := b.TryOpenPartition(t.Context(), uniqueKey("missing"))
		if err != nil {
			t.Fatalf("TryOpenPartition: %v", err)
		}
		if p.Exists || p.Version != 0 {
			t.Fatalf("expected missing partition, got %+v", p)
		}
	})

	t.Run("insert creates head and rows", func(t *testing.T) {
		b := newBackend(t)
		ctx := t.Context()
		key := uniqueKey("insert")

		mustWrite(t, b, key,
			insertOp(es.HeadRowKey, "stream", 2, nil),
			insertOp(es.EventRowKey(1), "A", 1, []byte(`{"n":1}`)),
			insertOp(es.EventRowKey(2), "B", 2, []byte(`{"n":2}`)),
			insertOp("item|1", "item", 0, []byte(`{"name":"x"}`)),
		)

		p, err := b.TryOpenPartition(ctx, key)
		if err != nil {
			t.Fatalf("TryOpenPartition: %v", err)
		}
		if !p.Exists || p.Version != 2 || p.ETag == "" {
			t.Fatalf("unexpected partition %+v", p)
		}

		rows, err := b.QueryByPartitionAndKeyPrefix(ctx, key, es.EventRowPrefix)
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("expected 2 event rows, got %d", len(rows))
		}
		if rows[0].RowKey != es.EventRowKey(1) || rows[1].RowKey != es.EventRowKey(2) {
			t.Fatalf("rows not ordered by key: %q, %q", rows[0].RowKey, rows[1].RowKey)
		}
		if rows[1].Kind != "B" || rows[1].Version != 2 || !bytes.Equal(rows[1].Data, []byte(`{"n":2}`)) {
			t.Fatalf("row not preserved: %+v", rows[1])
		}
		if rows[0].PartitionKey != key || rows[0].ETag == "" {
			t.Fatalf("row missing partition key or etag: %+v", rows[0])
		}
	})

	t.Run("prefix query is scoped to the partition", func(t *testing.T) {
		b := newBackend(t)
		ctx := t.Context()
		k1, k2 := uniqueKey("scope"), uniqueKey("scope")

		mustWrite(t, b, k1, insertOp("item|a", "item", 0, []byte(`{}`)))
		mustWrite(t, b, k2, insertOp("item|b", "item", 0, []byte(`{}`)))

		rows, err := b.QueryByPartitionAndKeyPrefix(ctx, k1, "item|")
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if len(rows) != 1 || rows[0].RowKey != "item|a" {
			t.Fatalf("expected only item|a, got %+v", rows)
		}
	})

	t.Run("insert of existing row fails the whole batch", func(t *testing.T) {
		b := newBackend(t)
		ctx := t.Context()
		key := uniqueKey("atomic")

		mustWrite(t, b, key, insertOp(es.HeadRowKey, "stream", 1, nil))

		err := b.WriteAtomic(ctx, key, []es.RowOperation{
			insertOp("item|new", "item", 0, []byte(`{}`)),
			insertOp(es.HeadRowKey, "stream", 2, nil),
		})
		if !errors.Is(err, es.ErrConditionFailed) {
			t.Fatalf("expected ErrConditionFailed, got %v", err)
		}

		rows, err := b.QueryByPartitionAndKeyPrefix(ctx, key, "item|")
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if len(rows) != 0 {
			t.Fatalf("failed batch left %d rows behind", len(rows))
		}
		p, _ := b.TryOpenPartition(ctx, key)
		if p.Version != 1 {
			t.Fatalf("head changed by failed batch: %+v", p)
		}
	})

	t.Run("replace checks etag", func(t *testing.T) {
		b := newBackend(t)
		ctx := t.Context()
		key := uniqueKey("replace")

		mustWrite(t, b, key, insertOp(es.HeadRowKey, "stream", 1, nil))
		p, _ := b.TryOpenPartition(ctx, key)

		err := b.WriteAtomic(ctx, key, []es.RowOperation{replaceOp(es.HeadRowKey, "stream", 2, "stale-etag")})
		if !errors.Is(err, es.ErrConditionFailed) {
			t.Fatalf("expected ErrConditionFailed for stale etag, got %v", err)
		}

		mustWrite(t, b, key, replaceOp(es.HeadRowKey, "stream", 2, p.ETag))
		p2, _ := b.TryOpenPartition(ctx, key)
		if p2.Version != 2 {
			t.Fatalf("expected version 2, got %d", p2.Version)
		}
		if p2.ETag == p.ETag {
			t.Fatal("replace must assign a new etag")
		}

		err = b.WriteAtomic(ctx, key, []es.RowOperation{replaceOp(es.HeadRowKey, "stream", 3, p.ETag)})
		if !errors.Is(err, es.ErrConditionFailed) {
			t.Fatalf("expected ErrConditionFailed for superseded etag, got %v", err)
		}

		mustWrite(t, b, key, replaceOp(es.HeadRowKey, "stream", 3, es.AnyETag))
		p3, _ := b.TryOpenPartition(ctx, key)
		if p3.Version != 3 {
			t.Fatalf("wildcard replace not applied: %+v", p3)
		}
	})

	t.Run("replace of missing row fails", func(t *testing.T) {
		b := newBackend(t)
		err := b.WriteAtomic(t.Context(), uniqueKey("replace-missing"), []es.RowOperation{
			replaceOp("item|x", "item", 0, es.AnyETag),
		})
		if !errors.Is(err, es.ErrConditionFailed) {
			t.Fatalf("expected ErrConditionFailed, got %v", err)
		}
	})

	t.Run("delete removes row", func(t *testing.T) {
		b := newBackend(t)
		ctx := t.Context()
		key := uniqueKey("delete")

		mustWrite(t, b, key, insertOp("item|d", "item", 0, []byte(`{}`)))
		rows, _ := b.QueryByPartitionAndKeyPrefix(ctx, key, "item|d")
		if len(rows) != 1 {
			t.Fatalf("expected row, got %d", len(rows))
		}

		mustWrite(t, b, key, es.RowOperation{Op: es.OpDelete, Row: es.Row{RowKey: "item|d", ETag: rows[0].ETag}})

		rows, _ = b.QueryByPartitionAndKeyPrefix(ctx, key, "item|d")
		if len(rows) != 0 {
			t.Fatalf("row still present after delete: %+v", rows)
		}

		err := b.WriteAtomic(ctx, key, []es.RowOperation{{Op: es.OpDelete, Row: es.Row{RowKey: "item|d", ETag: es.AnyETag}}})
		if !errors.Is(err, es.ErrConditionFailed) {
			t.Fatalf("expected ErrConditionFailed deleting missing row, got %v", err)
		}
	})

	t.Run("concurrent conditional writes have one winner", func(t *testing.T) {
		b := newBackend(t)
		ctx := t.Context()
		key := uniqueKey("race")

		mustWrite(t, b, key, insertOp(es.HeadRowKey, "stream", 1, nil))
		p, _ := b.TryOpenPartition(ctx, key)

		const writers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			wins      int
			conflicts int
		)
		for i := range writers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := b.WriteAtomic(ctx, key, []es.RowOperation{
					replaceOp(es.HeadRowKey, "stream", 2, p.ETag),
					insertOp(es.EventRowKey(2), "E", 2, []byte(`{}`)),
				})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case errors.Is(err, es.ErrConditionFailed):
					conflicts++
				default:
					t.Errorf("writer %d: unexpected error %v", i, err)
				}
			}(i)
		}
		wg.Wait()

		if wins != 1 || conflicts != writers-1 {
			t.Fatalf("expected exactly one winner, got %d wins and %d conflicts", wins, conflicts)
		}
	})

	t.Run("cross-partition scan", func(t *testing.T) {
		b := newBackend(t)
		scanner, ok := b.(es.PartitionScanner)
		if !ok {
			t.Skip("backend does not implement PartitionScanner")
		}
		ctx := t.Context()
		prefix := "scan-" + uuid.NewString()[:8] + "|"

		mustWrite(t, b, uniqueKey("scan"), insertOp(prefix+"1", "item", 0, []byte(`{}`)))
		mustWrite(t, b, uniqueKey("scan"), insertOp(prefix+"2", "item", 0, []byte(`{}`)))

		rows, err := scanner.QueryByKeyPrefix(ctx, prefix)
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(rows))
		}
	})

	t.Run("cancelled context fails", func(t *testing.T) {
		b := newBackend(t)
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := b.TryOpenPartition(ctx, uniqueKey("cancel"))
		if err == nil {
			t.Fatal("expected error on cancelled context")
		}
		if errors.Is(err, es.ErrConditionFailed) {
			t.Fatalf("cancellation must not look like a condition failure: %v", err)
		}
	})
}

func uniqueKey(name string) string {
	return es.PartitionKey("suite-"+name, uuid.NewString())
}

func insertOp(rowKey, kind string, version uint64, data []byte) es.RowOperation {
	return es.RowOperation{Op: es.OpInsert, Row: es.Row{RowKey: rowKey, Kind: kind, Version: version, Data: data}}
}

func replaceOp(rowKey, kind string, version uint64, etag string) es.RowOperation {
	return es.RowOperation{Op: es.OpReplace, Row: es.Row{RowKey: rowKey, Kind: kind, Version: version, ETag: etag}}
}

func mustWrite(t *testing.T, b es.Backend, key string, ops ...es.RowOperation) {
	t.Helper()
	if err := b.WriteAtomic(t.Context(), key, ops); err != nil {
		t.Fatalf("WriteAtomic(%s): %v", key, err)
	}
}

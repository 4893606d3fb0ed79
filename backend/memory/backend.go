package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	es "github.com/terraskye/streamstore"
)

var (
	_ es.Backend          = (*Backend)(nil)
	_ es.PartitionScanner = (*Backend)(nil)
)

// Backend keeps partitions in process memory. WriteAtomic holds a single lock,
// so a batch is applied entirely or not at all.
type Backend struct {
	mu         sync.RWMutex
	partitions map[string]map[string]es.Row
}

// NewBackend creates an empty Backend.
func NewBackend() *Backend {
	return &Backend{
		partitions: make(map[string]map[string]es.Row),
	}
}

// TryOpenPartition implements es.Backend.
func (b *Backend) TryOpenPartition(ctx context.Context, key string) (es.Partition, error) {
	if err := ctx.Err(); err != nil {
		return es.Partition{}, es.WrapBackendError("open partition", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	head, ok := b.partitions[key][es.HeadRowKey]
	if !ok {
		return es.Partition{Key: key}, nil
	}
	return es.Partition{Key: key, Exists: true, Version: head.Version, ETag: head.ETag}, nil
}

// WriteAtomic implements es.Backend.
func (b *Backend) WriteAtomic(ctx context.Context, key string, ops []es.RowOperation) error {
	if err := ctx.Err(); err != nil {
		return es.WrapBackendError("write", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	rows := b.partitions[key]

	// check every condition before touching anything
	seen := make(map[string]struct{}, len(ops))
	for i, op := range ops {
		if _, dup := seen[op.Row.RowKey]; dup {
			return fmt.Errorf("write partition %q: row %q appears twice in one batch: %w", key, op.Row.RowKey, es.ErrInvalidEventBatch)
		}
		seen[op.Row.RowKey] = struct{}{}

		current, exists := rows[op.Row.RowKey]
		switch op.Op {
		case es.OpInsert:
			if exists {
				return fmt.Errorf("write partition %q: op %d: insert %q: row exists: %w", key, i, op.Row.RowKey, es.ErrConditionFailed)
			}
		case es.OpReplace, es.OpDelete:
			if !exists {
				return fmt.Errorf("write partition %q: op %d: %s %q: row missing: %w", key, i, op.Op, op.Row.RowKey, es.ErrConditionFailed)
			}
			if op.Row.ETag != es.AnyETag && op.Row.ETag != current.ETag {
				return fmt.Errorf("write partition %q: op %d: %s %q: etag mismatch: %w", key, i, op.Op, op.Row.RowKey, es.ErrConditionFailed)
			}
		default:
			return fmt.Errorf("write partition %q: op %d: unknown operation %d", key, i, op.Op)
		}
	}

	if rows == nil {
		rows = make(map[string]es.Row)
		b.partitions[key] = rows
	}

	for _, op := range ops {
		if op.Op == es.OpDelete {
			delete(rows, op.Row.RowKey)
			continue
		}
		row := op.Row
		row.PartitionKey = key
		row.ETag = uuid.NewString()
		row.Data = append([]byte(nil), op.Row.Data...)
		rows[row.RowKey] = row
	}
	return nil
}

// QueryByPartitionAndKeyPrefix implements es.Backend.
func (b *Backend) QueryByPartitionAndKeyPrefix(ctx context.Context, key, prefix string) ([]es.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, es.WrapBackendError("query", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	return collect(b.partitions[key], prefix, nil), nil
}

// QueryByKeyPrefix implements es.PartitionScanner.
func (b *Backend) QueryByKeyPrefix(ctx context.Context, prefix string) ([]es.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, es.WrapBackendError("scan", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.partitions))
	for k := range b.partitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []es.Row
	for _, k := range keys {
		out = collect(b.partitions[k], prefix, out)
	}
	return out, nil
}

func collect(rows map[string]es.Row, prefix string, out []es.Row) []es.Row {
	start := len(out)
	for rk, row := range rows {
		if strings.HasPrefix(rk, prefix) {
			row.Data = append([]byte(nil), row.Data...)
			out = append(out, row)
		}
	}
	sort.Slice(out[start:], func(i, j int) bool {
		return out[start+i].RowKey < out[start+j].RowKey
	})
	return out
}

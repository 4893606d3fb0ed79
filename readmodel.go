package streamstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Include is a pending mutation of one read-model row. Includes are computed
// while an event is appended and committed in the same atomic write as the
// event rows; they are never persisted on their own.
type Include struct {
	Op  RowOp
	Row Row
}

// Entity is a decoded read-model row.
type Entity[T any] struct {
	RowKey string
	ETag   string
	Value  T
}

// InsertEntity returns an Include creating the row rowKey with value.
func InsertEntity[T any](rowKey, kind string, value T) (Include, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return Include{}, fmt.Errorf("marshal entity %s: %w", rowKey, err)
	}
	return Include{
		Op:  OpInsert,
		Row: Row{RowKey: rowKey, Kind: kind, Data: data},
	}, nil
}

// ReplaceEntity returns an Include overwriting the row of e with e.Value. The
// write only succeeds if the row still carries e.ETag.
func ReplaceEntity[T any](kind string, e Entity[T]) (Include, error) {
	data, err := json.Marshal(e.Value)
	if err != nil {
		return Include{}, fmt.Errorf("marshal entity %s: %w", e.RowKey, err)
	}
	return Include{
		Op:  OpReplace,
		Row: Row{RowKey: e.RowKey, Kind: kind, ETag: e.ETag, Data: data},
	}, nil
}

// DeleteEntity returns an Include removing the row of e if it still carries e.ETag.
func DeleteEntity[T any](e Entity[T]) Include {
	return Include{
		Op:  OpDelete,
		Row: Row{RowKey: e.RowKey, ETag: e.ETag},
	}
}

// DecodeEntity decodes a read-model row into T.
func DecodeEntity[T any](row Row) (Entity[T], error) {
	var value T
	if err := json.Unmarshal(row.Data, &value); err != nil {
		return Entity[T]{}, fmt.Errorf("unmarshal entity %s/%s: %w", row.PartitionKey, row.RowKey, err)
	}
	return Entity[T]{RowKey: row.RowKey, ETag: row.ETag, Value: value}, nil
}

// FetchEntity reads the current read-model row rowKey through f. A missing row is
// reported as ErrCorruptProjectionState: an aggregate with events must have its row.
func FetchEntity[T any](ctx context.Context, f Fetcher, rowKey string) (Entity[T], error) {
	row, ok, err := f.Fetch(ctx, rowKey)
	if err != nil {
		return Entity[T]{}, err
	}
	if !ok {
		return Entity[T]{}, fmt.Errorf("fetch entity %s: %w", rowKey, ErrCorruptProjectionState)
	}
	return DecodeEntity[T](row)
}

// ReadModel is the query side of a denormalized entity type stored next to the
// event rows of its aggregate. Rows are only ever written through Includes.
type ReadModel[T any] struct {
	backend Backend
	prefix  string
}

// NewReadModel creates a ReadModel for the rows whose key starts with prefix.
func NewReadModel[T any](backend Backend, prefix string) *ReadModel[T] {
	return &ReadModel[T]{backend: backend, prefix: prefix}
}

// Get returns the row rowKey of the partition. The bool result is false when the
// row does not exist.
func (m *ReadModel[T]) Get(ctx context.Context, partitionKey, rowKey string) (Entity[T], bool, error) {
	rows, err := m.backend.QueryByPartitionAndKeyPrefix(ctx, partitionKey, rowKey)
	if err != nil {
		return Entity[T]{}, false, WrapBackendError("query", err)
	}
	for _, row := range rows {
		if row.RowKey != rowKey {
			continue
		}
		entity, err := DecodeEntity[T](row)
		if err != nil {
			return Entity[T]{}, false, err
		}
		return entity, true, nil
	}
	return Entity[T]{}, false, nil
}

// List iterates the entities of one partition.
func (m *ReadModel[T]) List(ctx context.Context, partitionKey string) (*Iterator[Entity[T]], error) {
	rows, err := m.backend.QueryByPartitionAndKeyPrefix(ctx, partitionKey, m.prefix)
	if err != nil {
		return nil, WrapBackendError("query", err)
	}
	return m.decodeRows(rows), nil
}

// ListAll iterates the entities of every partition. It requires a backend
// implementing PartitionScanner.
func (m *ReadModel[T]) ListAll(ctx context.Context) (*Iterator[Entity[T]], error) {
	scanner, ok := m.backend.(PartitionScanner)
	if !ok {
		return nil, fmt.Errorf("list %q: %w", m.prefix, ErrScanUnsupported)
	}
	rows, err := scanner.QueryByKeyPrefix(ctx, m.prefix)
	if err != nil {
		return nil, WrapBackendError("scan", err)
	}
	return m.decodeRows(rows), nil
}

func (m *ReadModel[T]) decodeRows(rows []Row) *Iterator[Entity[T]] {
	index := 0
	return NewIteratorFunc(func(ctx context.Context) (Entity[T], error) {
		for index < len(rows) {
			row := rows[index]
			index++
			// Prefix scans may match reserved stream rows when the prefix is short.
			if strings.HasPrefix(row.RowKey, EventRowPrefix) || row.RowKey == HeadRowKey {
				continue
			}
			return DecodeEntity[T](row)
		}
		return Entity[T]{}, io.EOF
	})
}

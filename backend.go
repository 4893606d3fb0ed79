package streamstore

import (
	"context"
	"fmt"
)

// Reserved row keys inside a stream partition.
const (
	// HeadRowKey is the row holding the current version of the stream.
	HeadRowKey = "SS-HEAD"

	// EventRowPrefix prefixes every event row of a stream.
	EventRowPrefix = "SS-SE-"

	// AnyETag disables the ETag check of a Replace or Delete.
	AnyETag = "*"
)

// EventRowKey returns the row key of the event stored at version. Versions are
// zero padded so lexical order equals version order.
func EventRowKey(version uint64) string {
	return fmt.Sprintf("%s%010d", EventRowPrefix, version)
}

// Row is one entity of a partition as seen by the backend.
type Row struct {
	PartitionKey string
	RowKey       string
	Kind         string
	Version      uint64
	ETag         string
	Data         []byte
}

// RowOp is the kind of mutation applied to a row.
type RowOp int

const (
	// OpInsert creates a row and fails if it already exists.
	OpInsert RowOp = iota + 1
	// OpReplace overwrites an existing row whose ETag matches.
	OpReplace
	// OpDelete removes an existing row whose ETag matches.
	OpDelete
)

func (o RowOp) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpReplace:
		return "replace"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("RowOp(%d)", int(o))
	}
}

// RowOperation is one entry of an atomic partition write. For Replace and Delete
// Row.ETag holds the expected current ETag, or AnyETag.
type RowOperation struct {
	Op  RowOp
	Row Row
}

// Partition describes the head of a stream partition.
type Partition struct {
	Key     string
	Exists  bool
	Version uint64
	ETag    string
}

// Backend is the storage capability the stream engine is built on: conditional
// single-row writes with a concurrency token, atomic multi-row writes scoped to one
// partition and range scans by partition and row key prefix.
//
// Implementations must:
//   - apply all operations of one WriteAtomic call or none of them;
//   - fail WriteAtomic with an error matching ErrConditionFailed when any
//     operation's condition does not hold;
//   - assign a fresh ETag to every inserted or replaced row;
//   - return rows of QueryByPartitionAndKeyPrefix ordered by row key ascending;
//   - report transport and driver failures as errors matching ErrBackendUnavailable.
type Backend interface {
	// TryOpenPartition reads the head row of the partition.
	TryOpenPartition(ctx context.Context, key string) (Partition, error)

	// WriteAtomic applies ops to the partition as one indivisible write.
	WriteAtomic(ctx context.Context, key string, ops []RowOperation) error

	// QueryByPartitionAndKeyPrefix returns the rows of the partition whose key
	// starts with prefix.
	QueryByPartitionAndKeyPrefix(ctx context.Context, key, prefix string) ([]Row, error)
}

// PartitionScanner is implemented by backends able to read rows across partitions.
// The read is not atomic and is only meant for list queries on read models.
type PartitionScanner interface {
	QueryByKeyPrefix(ctx context.Context, prefix string) ([]Row, error)
}

// PartitionKey derives the partition key of an aggregate stream, "<kind>|<id>".
func PartitionKey(kind, id string) string {
	return kind + "|" + id
}

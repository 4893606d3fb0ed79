package streamstore

import (
	"context"
	"fmt"
	"strings"
)

// pendingRow is the coalesced effect of all Includes on one row key within a
// single Append.
type pendingRow struct {
	op   RowOp // 0 when the Includes cancelled out
	row  Row
	etag string // ETag of the committed row the batch started from
}

// pendingBatch collects the Includes of one Append and serves projection reads
// for the partition, overlaying the Includes computed for earlier events of the
// same batch on top of the committed rows.
type pendingBatch struct {
	backend   Backend
	partition string
	order     []string
	rows      map[string]*pendingRow
}

func newPendingBatch(backend Backend, partition string) *pendingBatch {
	return &pendingBatch{
		backend:   backend,
		partition: partition,
		rows:      make(map[string]*pendingRow),
	}
}

// Fetch implements Fetcher.
func (b *pendingBatch) Fetch(ctx context.Context, rowKey string) (Row, bool, error) {
	if p, ok := b.rows[rowKey]; ok {
		switch p.op {
		case OpInsert, OpReplace:
			row := p.row
			row.ETag = p.etag
			return row, true, nil
		default:
			return Row{}, false, nil
		}
	}

	rows, err := b.backend.QueryByPartitionAndKeyPrefix(ctx, b.partition, rowKey)
	if err != nil {
		return Row{}, false, WrapBackendError("fetch", err)
	}
	for _, row := range rows {
		if row.RowKey == rowKey {
			return row, true, nil
		}
	}
	return Row{}, false, nil
}

// add merges inc into the batch.
func (b *pendingBatch) add(inc Include) error {
	key := inc.Row.RowKey
	if key == "" || key == HeadRowKey || strings.HasPrefix(key, EventRowPrefix) {
		return fmt.Errorf("%w: include targets reserved row key %q", ErrInvalidEventBatch, key)
	}
	inc.Row.PartitionKey = b.partition

	p, ok := b.rows[key]
	if !ok {
		b.rows[key] = &pendingRow{op: inc.Op, row: inc.Row, etag: inc.Row.ETag}
		b.order = append(b.order, key)
		return nil
	}

	invalid := fmt.Errorf("%w: %s of row %q after %s in the same batch", ErrInvalidEventBatch, inc.Op, key, p.op)

	switch p.op {
	case OpInsert:
		switch inc.Op {
		case OpReplace:
			p.row = inc.Row
		case OpDelete:
			p.op = 0
		default:
			return invalid
		}
	case OpReplace:
		switch inc.Op {
		case OpReplace:
			p.row = inc.Row
		case OpDelete:
			p.op = OpDelete
			p.row = inc.Row
		default:
			return invalid
		}
	case OpDelete:
		if inc.Op != OpInsert {
			return invalid
		}
		// The committed row still exists until the batch lands.
		p.op = OpReplace
		p.row = inc.Row
	case 0:
		if inc.Op != OpInsert {
			return invalid
		}
		p.op = OpInsert
		p.row = inc.Row
	default:
		return invalid
	}
	return nil
}

// operations returns the coalesced row operations in first-touch order.
func (b *pendingBatch) operations() []RowOperation {
	ops := make([]RowOperation, 0, len(b.order))
	for _, key := range b.order {
		p := b.rows[key]
		if p.op == 0 {
			continue
		}
		row := p.row
		if p.op == OpInsert {
			row.ETag = ""
		} else {
			row.ETag = p.etag
		}
		ops = append(ops, RowOperation{Op: p.op, Row: row})
	}
	return ops
}

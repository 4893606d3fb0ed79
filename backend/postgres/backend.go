// Package postgres stores stream partitions in PostgreSQL through pgx.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	es "github.com/terraskye/streamstore"
)

//go:embed schema.sql
var schema string

var (
	_ es.Backend          = (*Backend)(nil)
	_ es.PartitionScanner = (*Backend)(nil)
)

// Backend implements es.Backend on a pgx connection pool.
type Backend struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Backend, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	b, err := New(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

// New wraps an existing pool and ensures the schema exists.
func New(ctx context.Context, pool *pgxpool.Pool) (*Backend, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Backend{pool: pool}, nil
}

// Close closes the pool.
func (b *Backend) Close() {
	b.pool.Close()
}

// TryOpenPartition implements es.Backend.
func (b *Backend) TryOpenPartition(ctx context.Context, key string) (es.Partition, error) {
	var (
		version int64
		etag    string
	)
	err := b.pool.QueryRow(ctx,
		`SELECT version, etag FROM stream_rows WHERE partition_key = $1 AND row_key = $2`,
		key, es.HeadRowKey,
	).Scan(&version, &etag)
	if errors.Is(err, pgx.ErrNoRows) {
		return es.Partition{Key: key}, nil
	}
	if err != nil {
		return es.Partition{}, es.WrapBackendError("open partition", err)
	}
	return es.Partition{Key: key, Exists: true, Version: uint64(version), ETag: etag}, nil
}

// WriteAtomic implements es.Backend with one read-committed transaction. Row
// locks taken by UPDATE and DELETE make a competing writer re-check the etag
// after the winner commits.
func (b *Backend) WriteAtomic(ctx context.Context, key string, ops []es.RowOperation) error {
	tx, err := b.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return es.WrapBackendError("begin", err)
	}
	defer tx.Rollback(ctx)

	for i, op := range ops {
		if err := apply(ctx, tx, key, op); err != nil {
			if errors.Is(err, es.ErrConditionFailed) {
				return fmt.Errorf("write partition %q: op %d: %w", key, i, err)
			}
			return es.WrapBackendError("write", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if isContention(err) {
			return fmt.Errorf("write partition %q: commit: %w: %v", key, es.ErrConditionFailed, err)
		}
		return es.WrapBackendError("commit", err)
	}
	return nil
}

func apply(ctx context.Context, tx pgx.Tx, key string, op es.RowOperation) error {
	row := op.Row
	var (
		tag pgconn.CommandTag
		err error
	)
	switch op.Op {
	case es.OpInsert:
		_, err = tx.Exec(ctx,
			`INSERT INTO stream_rows (partition_key, row_key, kind, version, etag, data) VALUES ($1, $2, $3, $4, $5, $6)`,
			key, row.RowKey, row.Kind, int64(row.Version), uuid.NewString(), row.Data,
		)
		if err != nil {
			if isDuplicate(err) || isContention(err) {
				return fmt.Errorf("insert %q: row exists: %w", row.RowKey, es.ErrConditionFailed)
			}
			return fmt.Errorf("insert %q: %w", row.RowKey, err)
		}
		return nil

	case es.OpReplace:
		if row.ETag == es.AnyETag {
			tag, err = tx.Exec(ctx,
				`UPDATE stream_rows SET kind = $1, version = $2, etag = $3, data = $4 WHERE partition_key = $5 AND row_key = $6`,
				row.Kind, int64(row.Version), uuid.NewString(), row.Data, key, row.RowKey,
			)
		} else {
			tag, err = tx.Exec(ctx,
				`UPDATE stream_rows SET kind = $1, version = $2, etag = $3, data = $4 WHERE partition_key = $5 AND row_key = $6 AND etag = $7`,
				row.Kind, int64(row.Version), uuid.NewString(), row.Data, key, row.RowKey, row.ETag,
			)
		}

	case es.OpDelete:
		if row.ETag == es.AnyETag {
			tag, err = tx.Exec(ctx,
				`DELETE FROM stream_rows WHERE partition_key = $1 AND row_key = $2`,
				key, row.RowKey,
			)
		} else {
			tag, err = tx.Exec(ctx,
				`DELETE FROM stream_rows WHERE partition_key = $1 AND row_key = $2 AND etag = $3`,
				key, row.RowKey, row.ETag,
			)
		}

	default:
		return fmt.Errorf("unknown row operation %d", op.Op)
	}

	if err != nil {
		if isContention(err) {
			return fmt.Errorf("%s %q: %w: %v", op.Op, row.RowKey, es.ErrConditionFailed, err)
		}
		return fmt.Errorf("%s %q: %w", op.Op, row.RowKey, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %q: row missing or etag changed: %w", op.Op, row.RowKey, es.ErrConditionFailed)
	}
	return nil
}

// QueryByPartitionAndKeyPrefix implements es.Backend.
func (b *Backend) QueryByPartitionAndKeyPrefix(ctx context.Context, key, prefix string) ([]es.Row, error) {
	return b.query(ctx, "query",
		`SELECT partition_key, row_key, kind, version, etag, data FROM stream_rows
		 WHERE partition_key = $1 AND starts_with(row_key, $2)
		 ORDER BY row_key`,
		key, prefix,
	)
}

// QueryByKeyPrefix implements es.PartitionScanner.
func (b *Backend) QueryByKeyPrefix(ctx context.Context, prefix string) ([]es.Row, error) {
	return b.query(ctx, "scan",
		`SELECT partition_key, row_key, kind, version, etag, data FROM stream_rows
		 WHERE starts_with(row_key, $1)
		 ORDER BY partition_key, row_key`,
		prefix,
	)
}

func (b *Backend) query(ctx context.Context, op, sql string, args ...any) ([]es.Row, error) {
	rows, err := b.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, es.WrapBackendError(op, err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (es.Row, error) {
		var (
			row     es.Row
			version int64
		)
		err := r.Scan(&row.PartitionKey, &row.RowKey, &row.Kind, &version, &row.ETag, &row.Data)
		row.Version = uint64(version)
		return row, err
	})
	if err != nil {
		return nil, es.WrapBackendError(op, err)
	}
	return out, nil
}

func isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" // unique_violation
}

func isContention(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return true
	}
	return false
}

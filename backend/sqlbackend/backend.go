// Package sqlbackend stores stream partitions in a single SQL table. SQLite and
// MySQL are supported; each atomic write is one database transaction.
package sqlbackend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	es "github.com/terraskye/streamstore"
	"github.com/terraskye/streamstore/backend/sqlbackend/migrations"
)

var (
	_ es.Backend          = (*Backend)(nil)
	_ es.PartitionScanner = (*Backend)(nil)
)

// Backend implements es.Backend on database/sql.
type Backend struct {
	sqlDB   *sql.DB
	dialect Dialect
}

// New wraps an open database and applies the embedded migrations of dialect.
func New(ctx context.Context, sqlDB *sql.DB, dialect Dialect) (*Backend, error) {
	if err := ApplyMigrations(ctx, sqlDB, dialect, migrations.FS); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Backend{sqlDB: sqlDB, dialect: dialect}, nil
}

// OpenSQLite opens (creating if needed) the SQLite database at path.
func OpenSQLite(ctx context.Context, path string) (*Backend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open(SQLite.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer at a time; SQLite serializes writes anyway
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	b, err := New(ctx, sqlDB, SQLite)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return b, nil
}

// OpenMySQL connects to MySQL with dsn.
func OpenMySQL(ctx context.Context, dsn string) (*Backend, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("mysql dsn is required")
	}
	sqlDB, err := sql.Open(MySQL.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping mysql db: %w", err)
	}
	b, err := New(ctx, sqlDB, MySQL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return b, nil
}

// Close closes the database handle.
func (b *Backend) Close() error {
	if b == nil || b.sqlDB == nil {
		return nil
	}
	return b.sqlDB.Close()
}

// TryOpenPartition implements es.Backend.
func (b *Backend) TryOpenPartition(ctx context.Context, key string) (es.Partition, error) {
	var (
		version uint64
		etag    string
	)
	err := b.sqlDB.QueryRowContext(ctx,
		`SELECT version, etag FROM stream_rows WHERE partition_key = ? AND row_key = ?`,
		key, es.HeadRowKey,
	).Scan(&version, &etag)
	if errors.Is(err, sql.ErrNoRows) {
		return es.Partition{Key: key}, nil
	}
	if err != nil {
		return es.Partition{}, es.WrapBackendError("open partition", err)
	}
	return es.Partition{Key: key, Exists: true, Version: version, ETag: etag}, nil
}

// WriteAtomic implements es.Backend. The operations run in one transaction;
// the first failed condition rolls everything back.
func (b *Backend) WriteAtomic(ctx context.Context, key string, ops []es.RowOperation) error {
	tx, err := b.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return es.WrapBackendError("begin", err)
	}
	defer tx.Rollback()

	for i, op := range ops {
		if err := b.apply(ctx, tx, key, op); err != nil {
			if errors.Is(err, es.ErrConditionFailed) {
				return fmt.Errorf("write partition %q: op %d: %w", key, i, err)
			}
			return es.WrapBackendError("write", err)
		}
	}

	if err := tx.Commit(); err != nil {
		if b.dialect.isContention(err) {
			return fmt.Errorf("write partition %q: commit: %w: %v", key, es.ErrConditionFailed, err)
		}
		return es.WrapBackendError("commit", err)
	}
	return nil
}

func (b *Backend) apply(ctx context.Context, tx *sql.Tx, key string, op es.RowOperation) error {
	row := op.Row
	switch op.Op {
	case es.OpInsert:
		_, err := tx.ExecContext(ctx,
			`INSERT INTO stream_rows (partition_key, row_key, kind, version, etag, data) VALUES (?, ?, ?, ?, ?, ?)`,
			key, row.RowKey, row.Kind, row.Version, uuid.NewString(), row.Data,
		)
		if err != nil {
			if b.dialect.isDuplicate(err) || b.dialect.isContention(err) {
				return fmt.Errorf("insert %q: row exists: %w", row.RowKey, es.ErrConditionFailed)
			}
			return fmt.Errorf("insert %q: %w", row.RowKey, err)
		}
		return nil

	case es.OpReplace:
		query := `UPDATE stream_rows SET kind = ?, version = ?, etag = ?, data = ? WHERE partition_key = ? AND row_key = ?`
		args := []any{row.Kind, row.Version, uuid.NewString(), row.Data, key, row.RowKey}
		if row.ETag != es.AnyETag {
			query += ` AND etag = ?`
			args = append(args, row.ETag)
		}
		return b.execConditional(ctx, tx, "replace", row.RowKey, query, args...)

	case es.OpDelete:
		query := `DELETE FROM stream_rows WHERE partition_key = ? AND row_key = ?`
		args := []any{key, row.RowKey}
		if row.ETag != es.AnyETag {
			query += ` AND etag = ?`
			args = append(args, row.ETag)
		}
		return b.execConditional(ctx, tx, "delete", row.RowKey, query, args...)

	default:
		return fmt.Errorf("unknown row operation %d", op.Op)
	}
}

func (b *Backend) execConditional(ctx context.Context, tx *sql.Tx, op, rowKey, query string, args ...any) error {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if b.dialect.isContention(err) {
			return fmt.Errorf("%s %q: %w: %v", op, rowKey, es.ErrConditionFailed, err)
		}
		return fmt.Errorf("%s %q: %w", op, rowKey, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %q: rows affected: %w", op, rowKey, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %q: row missing or etag changed: %w", op, rowKey, es.ErrConditionFailed)
	}
	return nil
}

// QueryByPartitionAndKeyPrefix implements es.Backend.
func (b *Backend) QueryByPartitionAndKeyPrefix(ctx context.Context, key, prefix string) ([]es.Row, error) {
	query := `SELECT partition_key, row_key, kind, version, etag, data FROM stream_rows WHERE partition_key = ?`
	args := []any{key}
	query, args = withPrefix(query, args, prefix)
	query += ` ORDER BY row_key`
	return b.queryRows(ctx, "query", query, args...)
}

// QueryByKeyPrefix implements es.PartitionScanner.
func (b *Backend) QueryByKeyPrefix(ctx context.Context, prefix string) ([]es.Row, error) {
	query := `SELECT partition_key, row_key, kind, version, etag, data FROM stream_rows WHERE 1 = 1`
	query, args := withPrefix(query, nil, prefix)
	query += ` ORDER BY partition_key, row_key`
	return b.queryRows(ctx, "scan", query, args...)
}

func (b *Backend) queryRows(ctx context.Context, op, query string, args ...any) ([]es.Row, error) {
	rows, err := b.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, es.WrapBackendError(op, err)
	}
	defer rows.Close()

	var out []es.Row
	for rows.Next() {
		var (
			row          es.Row
			partitionKey []byte
			rowKey       []byte
		)
		if err := rows.Scan(&partitionKey, &rowKey, &row.Kind, &row.Version, &row.ETag, &row.Data); err != nil {
			return nil, es.WrapBackendError(op, err)
		}
		row.PartitionKey = string(partitionKey)
		row.RowKey = string(rowKey)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, es.WrapBackendError(op, err)
	}
	return out, nil
}

// withPrefix restricts row_key to the half-open range [prefix, PrefixEnd(prefix)),
// which compares bytes on both engines, unlike LIKE.
func withPrefix(query string, args []any, prefix string) (string, []any) {
	if prefix == "" {
		return query, args
	}
	query += ` AND row_key >= ?`
	args = append(args, prefix)
	if end, ok := PrefixEnd(prefix); ok {
		query += ` AND row_key < ?`
		args = append(args, end)
	}
	return query, args
}

// PrefixEnd returns the smallest string greater than every string starting with
// prefix. ok is false when no such string exists (prefix is all 0xff bytes).
func PrefixEnd(prefix string) (string, bool) {
	end := []byte(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return string(end[:i+1]), true
		}
	}
	return "", false
}

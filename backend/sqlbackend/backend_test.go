package sqlbackend_test

import (
	"os"
	"path/filepath"
	"testing"

	es "github.com/terraskye/streamstore"
	"github.com/terraskye/streamstore/backend/sqlbackend"
	"github.com/terraskye/streamstore/fixtures"
)

func openSQLite(t *testing.T) *sqlbackend.Backend {
	t.Helper()
	b, err := sqlbackend.OpenSQLite(t.Context(), filepath.Join(t.TempDir(), "streams.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func getMySQLBackend(t *testing.T) *sqlbackend.Backend {
	t.Helper()
	dsn := os.Getenv("STREAMSTORE_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("MySQL not available: STREAMSTORE_TEST_MYSQL_DSN not set")
	}
	b, err := sqlbackend.OpenMySQL(t.Context(), dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestSQLiteBackend(t *testing.T) {
	fixtures.RunBackendSuite(t, func(t *testing.T) es.Backend {
		return openSQLite(t)
	})
}

func TestMySQLBackend(t *testing.T) {
	fixtures.RunBackendSuite(t, func(t *testing.T) es.Backend {
		return getMySQLBackend(t)
	})
}

func TestSQLite_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streams.db")

	for i := range 2 {
		b, err := sqlbackend.OpenSQLite(t.Context(), path)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		if err := b.Close(); err != nil {
			t.Fatalf("close #%d: %v", i+1, err)
		}
	}
}

func TestSQLite_PrefixIsCaseSensitive(t *testing.T) {
	b := openSQLite(t)
	ctx := t.Context()

	err := b.WriteAtomic(ctx, "p", []es.RowOperation{
		{Op: es.OpInsert, Row: es.Row{RowKey: "item|a", Kind: "item"}},
		{Op: es.OpInsert, Row: es.Row{RowKey: "ITEM|b", Kind: "item"}},
		{Op: es.OpInsert, Row: es.Row{RowKey: "item_c", Kind: "item"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	rows, err := b.QueryByPartitionAndKeyPrefix(ctx, "p", "item|")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].RowKey != "item|a" {
		t.Fatalf("expected only item|a, got %+v", rows)
	}
}

func TestPrefixEnd(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
		ok     bool
	}{
		{prefix: "item|", want: "item}", ok: true},
		{prefix: "SS-SE-", want: "SS-SE.", ok: true},
		{prefix: "a\xff", want: "b", ok: true},
		{prefix: "\xff\xff", want: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			got, ok := sqlbackend.PrefixEnd(tt.prefix)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("PrefixEnd(%q) = %q, %v; want %q, %v", tt.prefix, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestExtractUpMigration(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE x (id INT);\n-- +migrate Down\nDROP TABLE x;\n"
	got := sqlbackend.ExtractUpMigration(content)
	if got != "\nCREATE TABLE x (id INT);\n" {
		t.Fatalf("unexpected up section %q", got)
	}
}

package postgres_test

import (
	"os"
	"testing"

	es "github.com/terraskye/streamstore"
	"github.com/terraskye/streamstore/backend/postgres"
	"github.com/terraskye/streamstore/fixtures"
)

func getPostgresBackend(t *testing.T) *postgres.Backend {
	t.Helper()
	dsn := os.Getenv("STREAMSTORE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PostgreSQL not available: STREAMSTORE_TEST_POSTGRES_DSN not set")
	}
	b, err := postgres.Open(t.Context(), dsn)
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func TestPostgresBackend(t *testing.T) {
	fixtures.RunBackendSuite(t, func(t *testing.T) es.Backend {
		return getPostgresBackend(t)
	})
}

package app

import (
	"context"
	"fmt"

	es "github.com/terraskye/streamstore"
	"github.com/terraskye/streamstore/backend/memory"
	"github.com/terraskye/streamstore/backend/postgres"
	"github.com/terraskye/streamstore/backend/redis"
	"github.com/terraskye/streamstore/backend/sqlbackend"
	"github.com/terraskye/streamstore/internal/config"
)

// OpenBackend connects the backend selected by cfg. The returned close function
// releases its connections.
func OpenBackend(ctx context.Context, cfg config.Config) (es.Backend, func() error, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.NewBackend(), func() error { return nil }, nil

	case config.BackendSQLite:
		b, err := sqlbackend.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite backend: %w", err)
		}
		return b, b.Close, nil

	case config.BackendMySQL:
		b, err := sqlbackend.OpenMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql backend: %w", err)
		}
		return b, b.Close, nil

	case config.BackendPostgres:
		b, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres backend: %w", err)
		}
		return b, func() error { b.Close(); return nil }, nil

	case config.BackendRedis:
		b, err := redis.Open(ctx, cfg.RedisAddr, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis backend: %w", err)
		}
		return b, b.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

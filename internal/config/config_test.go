package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default addr :8080, got %q", cfg.HTTPAddr)
	}
	if cfg.Backend != BackendMemory {
		t.Fatalf("expected memory backend, got %q", cfg.Backend)
	}
	if cfg.RetryMaxElapsed != 2*time.Second || cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected durations %v / %v", cfg.RetryMaxElapsed, cfg.ShutdownTimeout)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STREAMSTORE_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("STREAMSTORE_BACKEND", "postgres")
	t.Setenv("STREAMSTORE_POSTGRES_DSN", "postgres://localhost/streamstore")
	t.Setenv("STREAMSTORE_RETRY_MAX_ELAPSED", "500ms")
	t.Setenv("STREAMSTORE_OTEL_ENDPOINT", "stdout")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:9000" || cfg.Backend != BackendPostgres {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.RetryMaxElapsed != 500*time.Millisecond || cfg.OTelEndpoint != "stdout" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("STREAMSTORE_SHUTDOWN_TIMEOUT", "soon")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Backend:         BackendMemory,
		LogFormat:       "text",
		RedisAddr:       "localhost:6379",
		SQLitePath:      "db",
		ShutdownTimeout: time.Second,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Backend = "cassandra" }, `unknown backend "cassandra"`},
		{"mysql without dsn", func(c *Config) { c.Backend = BackendMySQL }, "STREAMSTORE_MYSQL_DSN"},
		{"postgres without dsn", func(c *Config) { c.Backend = BackendPostgres }, "STREAMSTORE_POSTGRES_DSN"},
		{"sqlite without path", func(c *Config) { c.Backend = BackendSQLite; c.SQLitePath = "" }, "STREAMSTORE_SQLITE_PATH"},
		{"redis without addr", func(c *Config) { c.Backend = BackendRedis; c.RedisAddr = "" }, "STREAMSTORE_REDIS_ADDR"},
		{"unknown log format", func(c *Config) { c.LogFormat = "xml" }, `unknown log format "xml"`},
		{"zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }, "STREAMSTORE_SHUTDOWN_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

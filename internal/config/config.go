package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Backend names accepted in STREAMSTORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendMySQL    = "mysql"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the process configuration of inventoryd.
type Config struct {
	HTTPAddr string `env:"STREAMSTORE_HTTP_ADDR" envDefault:":8080"`

	Backend     string `env:"STREAMSTORE_BACKEND"      envDefault:"memory"`
	SQLitePath  string `env:"STREAMSTORE_SQLITE_PATH"  envDefault:"streamstore.db"`
	MySQLDSN    string `env:"STREAMSTORE_MYSQL_DSN"`
	PostgresDSN string `env:"STREAMSTORE_POSTGRES_DSN"`
	RedisAddr   string `env:"STREAMSTORE_REDIS_ADDR"   envDefault:"localhost:6379"`
	RedisPrefix string `env:"STREAMSTORE_REDIS_PREFIX" envDefault:"streamstore:"`

	LogLevel  string `env:"STREAMSTORE_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"STREAMSTORE_LOG_FORMAT" envDefault:"text"`

	// OTelEndpoint is an OTLP/HTTP endpoint, "stdout" to print spans, or empty
	// to disable tracing.
	OTelEndpoint string `env:"STREAMSTORE_OTEL_ENDPOINT"`
	ServiceName  string `env:"STREAMSTORE_SERVICE_NAME" envDefault:"inventoryd"`

	RetryMaxElapsed time.Duration `env:"STREAMSTORE_RETRY_MAX_ELAPSED" envDefault:"2s"`
	ShutdownTimeout time.Duration `env:"STREAMSTORE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the configuration.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports inconsistent settings.
func (c Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("STREAMSTORE_SQLITE_PATH is required for the sqlite backend"))
		}
	case BackendMySQL:
		if c.MySQLDSN == "" {
			errs = append(errs, errors.New("STREAMSTORE_MYSQL_DSN is required for the mysql backend"))
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("STREAMSTORE_POSTGRES_DSN is required for the postgres backend"))
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("STREAMSTORE_REDIS_ADDR is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}

	if c.RetryMaxElapsed < 0 {
		errs = append(errs, errors.New("STREAMSTORE_RETRY_MAX_ELAPSED must not be negative"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("STREAMSTORE_SHUTDOWN_TIMEOUT must be positive"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "agenthub.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "AGENTHUB_PORT")
	setString(&cfg.Server.CORSOrigin, "AGENTHUB_CORS_ORIGIN")
	setInt64(&cfg.Server.BodyLimit, "AGENTHUB_BODY_LIMIT")

	setString(&cfg.Agent.Name, "AGENTHUB_AGENT_NAME")
	setString(&cfg.Agent.Description, "AGENTHUB_AGENT_DESCRIPTION")
	setString(&cfg.Agent.Version, "AGENTHUB_AGENT_VERSION")

	setString(&cfg.Storage.Backend, "AGENTHUB_STORAGE_BACKEND")
	setString(&cfg.Storage.SQLitePath, "AGENTHUB_SQLITE_PATH")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "AGENTHUB_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "AGENTHUB_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "AGENTHUB_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "AGENTHUB_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "AGENTHUB_PG_HEALTH_CHECK")

	setString(&cfg.Events.Backend, "AGENTHUB_EVENTS_BACKEND")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.SubjectPrefix, "AGENTHUB_NATS_SUBJECT_PREFIX")

	setString(&cfg.Logging.Level, "AGENTHUB_LOG_LEVEL")
	setString(&cfg.Logging.Service, "AGENTHUB_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "AGENTHUB_LOG_ASYNC")
	setString(&cfg.Otel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")

	setInt(&cfg.Breaker.MaxFailures, "AGENTHUB_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "AGENTHUB_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "AGENTHUB_RATE_RPS")
	setInt(&cfg.Rate.Burst, "AGENTHUB_RATE_BURST")
	setInt64(&cfg.Cache.MaxSizeMB, "AGENTHUB_CACHE_SIZE_MB")
	setDuration(&cfg.Idempotency.TTL, "AGENTHUB_IDEMPOTENCY_TTL")
	setInt(&cfg.Dispatch.MaxConcurrent, "AGENTHUB_DISPATCH_MAX_CONCURRENT")
}

// validate checks that required fields are set and selectors are known.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Storage.Backend {
	case StorageMemory:
	case StoragePostgres:
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for postgres storage")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	case StorageSQLite:
		if cfg.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required for sqlite storage")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	switch cfg.Events.Backend {
	case EventsStream:
	case EventsNATS:
		if cfg.NATS.URL == "" {
			return errors.New("nats.url is required for nats events")
		}
	default:
		return fmt.Errorf("unknown events backend %q", cfg.Events.Backend)
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

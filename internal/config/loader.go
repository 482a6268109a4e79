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
const DefaultConfigFile = "switchyard.yaml"

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
	setString(&cfg.Server.Port, "SWITCHYARD_PORT")
	setString(&cfg.Server.CORSOrigin, "SWITCHYARD_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "SWITCHYARD_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "SWITCHYARD_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "SWITCHYARD_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "SWITCHYARD_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "SWITCHYARD_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "SWITCHYARD_LOG_LEVEL")
	setString(&cfg.Logging.Service, "SWITCHYARD_LOG_SERVICE")
	setInt64(&cfg.Cache.MaxSizeMB, "SWITCHYARD_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "SWITCHYARD_CACHE_TTL")
	setString(&cfg.Registry.AgentsDir, "SWITCHYARD_AGENTS_DIR")
	setFloat64(&cfg.Gate.ConfidenceThreshold, "SWITCHYARD_GATE_THRESHOLD")
	setDuration(&cfg.Gate.RateWindow, "SWITCHYARD_GATE_RATE_WINDOW")
	setInt(&cfg.Gate.RateLimit, "SWITCHYARD_GATE_RATE_LIMIT")
	setInt(&cfg.Gate.BulkThreshold, "SWITCHYARD_GATE_BULK_THRESHOLD")
	setDuration(&cfg.Gate.ApprovalTimeout, "SWITCHYARD_GATE_APPROVAL_TIMEOUT")
	setInt(&cfg.Orchestrator.MaxHandoffs, "SWITCHYARD_ORCH_MAX_HANDOFFS")
	setInt(&cfg.Orchestrator.MaxConcurrentRuns, "SWITCHYARD_ORCH_MAX_CONCURRENT")
	setString(&cfg.Auth.APIKeyHash, "SWITCHYARD_API_KEY_HASH")
	setBool(&cfg.Telemetry.Enabled, "SWITCHYARD_OTEL_ENABLED")
	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.MCP.Enabled, "SWITCHYARD_MCP_ENABLED")
	setString(&cfg.MCP.Addr, "SWITCHYARD_MCP_ADDR")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Gate.ConfidenceThreshold < 0 || cfg.Gate.ConfidenceThreshold > 1 {
		return errors.New("gate.confidence_threshold must be in [0,1]")
	}
	if cfg.Gate.RateLimit < 1 {
		return errors.New("gate.rate_limit must be >= 1")
	}
	if cfg.Orchestrator.MaxHandoffs < 0 {
		return errors.New("orchestrator.max_handoffs must be >= 0")
	}
	if cfg.Orchestrator.MaxConcurrentRuns < 1 {
		return errors.New("orchestrator.max_concurrent_runs must be >= 1")
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

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
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

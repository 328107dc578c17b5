package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Prefix is the environment variable prefix, e.g. KINJO_HTTP_PORT.
const Prefix = "KINJO"

// Config holds the configuration for the kinjo binaries.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string      `envconfig:"LOG_LEVEL" default:"info"`

	// HTTP Configuration
	HTTPPort               int `envconfig:"HTTP_PORT" default:"8080"`
	ShutdownTimeoutSeconds int `envconfig:"SHUTDOWN_TIMEOUT_SECONDS" default:"10"`

	// Storage: postgres | sqlite | auto
	DBDriver    string `envconfig:"DB_DRIVER" default:"auto"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:""`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"true"`

	// Narrative generation: none | ollama
	NarrativeProvider       string `envconfig:"NARRATIVE_PROVIDER" default:"none"`
	NarrativeURL            string `envconfig:"NARRATIVE_URL" default:"http://localhost:11434"`
	NarrativeModel          string `envconfig:"NARRATIVE_MODEL" default:"llama3.2"`
	NarrativeTimeoutSeconds int    `envconfig:"NARRATIVE_TIMEOUT_SECONDS" default:"20"`
	NarrativeRatePerMinute  int    `envconfig:"NARRATIVE_RATE_PER_MINUTE" default:"30"`

	RegenerateDebounceSeconds int `envconfig:"REGENERATE_DEBOUNCE_SECONDS" default:"60"`

	// Health checks
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`

	// Outbox worker
	OutboxBatchSize  int `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
	OutboxIntervalMS int `envconfig:"OUTBOX_INTERVAL_MS" default:"2000"`

	// Development authentication: api key -> user id
	DevAPIKeys map[string]string `envconfig:"DEV_API_KEYS" default:""`
}

// ResolveDefaults validates the drivers and derives DBDriver and SQLitePath when unset.
func (c *Config) ResolveDefaults() error {
	if c.DBDriver == "" || c.DBDriver == "auto" {
		if c.PostgresDSN != "" {
			c.DBDriver = "postgres"
		} else {
			c.DBDriver = "sqlite"
		}
	}
	switch c.DBDriver {
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("DB_DRIVER=postgres requires POSTGRES_DSN")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			c.SQLitePath = filepath.Join("data", "kinjo.db")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}

	switch c.NarrativeProvider {
	case "", "none":
		c.NarrativeProvider = "none"
	case "ollama":
		if c.NarrativeURL == "" {
			return fmt.Errorf("NARRATIVE_PROVIDER=ollama requires NARRATIVE_URL")
		}
	default:
		return fmt.Errorf("unsupported NARRATIVE_PROVIDER: %s", c.NarrativeProvider)
	}

	if c.RegenerateDebounceSeconds < 0 {
		return fmt.Errorf("REGENERATE_DEBOUNCE_SECONDS must be >= 0")
	}
	return nil
}

// New creates a new Config by parsing environment variables prefixed with KINJO_.
// Example: KINJO_HTTP_PORT, KINJO_POSTGRES_DSN
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Int("port", cfg.HTTPPort).
		Bool("postgres_dsn_present", cfg.PostgresDSN != "").
		Str("sqlite_path", cfg.SQLitePath).
		Str("narrative_provider", cfg.NarrativeProvider).
		Str("narrative_model", cfg.NarrativeModel).
		Int("regenerate_debounce_seconds", cfg.RegenerateDebounceSeconds).
		Int("dev_api_keys", len(cfg.DevAPIKeys)).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	return &Config{
		Environment:               EnvTesting,
		LogLevel:                  "debug",
		HTTPPort:                  8080,
		ShutdownTimeoutSeconds:    1,
		DBDriver:                  "sqlite",
		SQLitePath:                filepath.Join("testdata", "kinjo.db"),
		AutoMigrate:               true,
		NarrativeProvider:         "none",
		NarrativeTimeoutSeconds:   2,
		NarrativeRatePerMinute:    60,
		RegenerateDebounceSeconds: 60,
		HealthIntervalSeconds:     1,
		HealthProbeTimeoutSeconds: 1,
		OutboxBatchSize:           10,
		OutboxIntervalMS:          100,
		DevAPIKeys:                map[string]string{"test-key": "test-user"},
	}
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func (c *Config) NarrativeTimeout() time.Duration {
	return time.Duration(c.NarrativeTimeoutSeconds) * time.Second
}

func (c *Config) RegenerateDebounce() time.Duration {
	return time.Duration(c.RegenerateDebounceSeconds) * time.Second
}

func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.HealthIntervalSeconds) * time.Second
}

func (c *Config) HealthProbeTimeout() time.Duration {
	return time.Duration(c.HealthProbeTimeoutSeconds) * time.Second
}

func (c *Config) OutboxInterval() time.Duration {
	return time.Duration(c.OutboxIntervalMS) * time.Millisecond
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

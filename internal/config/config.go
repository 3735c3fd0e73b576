package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Event store modes
const (
	// ModeSync appends events in the request that produced them.
	ModeSync = "sync"
	// ModeAsync queues events for the event-store listener.
	ModeAsync = "async"
)

// Event store backends
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	NumWorkers  int    `env:"NUM_WORKERS" envDefault:"16"`

	EventStoreMode    string `env:"EVENT_STORE_MODE" envDefault:"sync"`
	EventStoreBackend string `env:"EVENT_STORE_BACKEND" envDefault:"postgres"`
	SQLitePath        string `env:"SQLITE_PATH" envDefault:"marketplace-events.db"`

	WebhookTimeout     time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`
	CBFailureThreshold int           `env:"CB_FAILURE_THRESHOLD" envDefault:"5"`
	CBCooldown         time.Duration `env:"CB_COOLDOWN" envDefault:"30s"`

	GithubAPIURL    string `env:"GITHUB_API_URL" envDefault:"https://api.github.com"`
	GithubToken     string `env:"GITHUB_TOKEN"`
	GithubRateLimit int    `env:"GITHUB_RATE_LIMIT" envDefault:"10"`

	OtelEndpoint string `env:"OTEL_ENDPOINT"`

	ConsumerPollInterval time.Duration `env:"CONSUMER_POLL_INTERVAL" envDefault:"100ms"`
	ConsumerMaxAttempts  int           `env:"CONSUMER_MAX_ATTEMPTS" envDefault:"5"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	switch cfg.EventStoreMode {
	case ModeSync, ModeAsync:
	default:
		return nil, fmt.Errorf("EVENT_STORE_MODE must be %q or %q, got %q", ModeSync, ModeAsync, cfg.EventStoreMode)
	}
	switch cfg.EventStoreBackend {
	case BackendPostgres, BackendSQLite:
	default:
		return nil, fmt.Errorf("EVENT_STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendSQLite, cfg.EventStoreBackend)
	}
	if cfg.NumWorkers <= 0 {
		return nil, fmt.Errorf("NUM_WORKERS must be positive, got %d", cfg.NumWorkers)
	}

	return &cfg, nil
}

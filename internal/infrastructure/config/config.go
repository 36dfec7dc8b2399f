package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/driftwatch/driftwatch/internal/infrastructure/governor"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Sources   SourcesConfig
	Governor  GovernorConfig
	Fetch     FetchConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// SourcesConfig holds the source limits file location.
type SourcesConfig struct {
	// Path points at a YAML, TOML, or JSON limits file. Empty means the
	// built-in source table.
	Path string `envconfig:"SOURCES_PATH" default:""`
}

// GovernorConfig holds the shared failure policy knobs.
type GovernorConfig struct {
	TripThreshold  int           `envconfig:"GOVERNOR_TRIP_THRESHOLD" default:"5"`
	BaseBackoff    time.Duration `envconfig:"GOVERNOR_BASE_BACKOFF" default:"1s"`
	MaxBackoff     time.Duration `envconfig:"GOVERNOR_MAX_BACKOFF" default:"60s"`
	ThrottleFactor int           `envconfig:"GOVERNOR_THROTTLE_FACTOR" default:"3"`
}

// FetchConfig holds upstream HTTP client configuration.
type FetchConfig struct {
	Timeout   time.Duration `envconfig:"FETCH_TIMEOUT" default:"10s"`
	UserAgent string        `envconfig:"FETCH_USER_AGENT" default:"driftwatch/1.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Governor: GovernorConfig{
			TripThreshold:  5,
			BaseBackoff:    time.Second,
			MaxBackoff:     60 * time.Second,
			ThrottleFactor: 3,
		},
		Fetch: FetchConfig{
			Timeout:   10 * time.Second,
			UserAgent: "driftwatch/1.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Policy builds the governor failure policy from the configured knobs.
func (c GovernorConfig) Policy() governor.Policy {
	p := governor.DefaultPolicy()
	p.TripThreshold = c.TripThreshold
	p.BaseBackoff = c.BaseBackoff
	p.MaxBackoff = c.MaxBackoff
	p.ThrottleFactor = c.ThrottleFactor
	return p
}

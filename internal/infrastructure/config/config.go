package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Docs      DocsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	PublicURL       string        `envconfig:"PUBLIC_URL" default:"https://registry.cpm.chungindustries.com"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// StorageConfig holds registry storage configuration.
type StorageConfig struct {
	Dir            string `envconfig:"STORAGE_DIR" default:"./storage"`
	MaxUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"33554432"`
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

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Enabled bool `envconfig:"CORS_ENABLED" default:"false"`
}

// DocsConfig holds API documentation settings.
type DocsConfig struct {
	SpecPath string `envconfig:"API_SPEC_PATH" default:"openapi.yaml"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
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
			Port:            "8000",
			Host:            "0.0.0.0",
			PublicURL:       "https://registry.cpm.chungindustries.com",
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Dir:            "./storage",
			MaxUploadBytes: 32 << 20,
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
		CORS: CORSConfig{
			Enabled: false,
		},
		Docs: DocsConfig{
			SpecPath: "openapi.yaml",
		},
	}
}

// Validate checks values envconfig cannot check on its own.
func (c *Config) Validate() error {
	if c.Storage.Dir == "" {
		return errors.New("invalid config: STORAGE_DIR must not be empty")
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("invalid config: MAX_UPLOAD_BYTES must be positive, got %d", c.Storage.MaxUploadBytes)
	}
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("invalid config: PORT %q is not a valid port", c.Server.Port)
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return errors.New("invalid config: RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

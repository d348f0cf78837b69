// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the server configuration
type Config struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	StorageType   string `env:"STORAGE_TYPE" envDefault:"memory"`
	RedisURL      string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	MongoURI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"boardgames"`

	JWTSecret             string        `env:"JWT_SECRET"`
	TokenTTL              time.Duration `env:"TOKEN_TTL" envDefault:"1440h"`
	ValidationKeyTTL      time.Duration `env:"VALIDATION_KEY_TTL" envDefault:"12h"`
	RequireConfirmedEmail bool          `env:"REQUIRE_CONFIRMED_EMAIL" envDefault:"false"`
	PublicURL             string        `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`

	BGGBaseURL    string        `env:"BGG_BASE_URL" envDefault:"https://boardgamegeek.com/xmlapi2"`
	BGGTimeout    time.Duration `env:"BGG_TIMEOUT" envDefault:"10s"`
	BGGMaxRetries uint64        `env:"BGG_MAX_RETRIES" envDefault:"3"`
	BGGRateLimit  float64       `env:"BGG_RATE_LIMIT" envDefault:"2"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the server configuration
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

// Validate checks settings that depend on each other
func (c Config) Validate() error {
	switch c.StorageType {
	case "memory", "redis", "mongo":
	default:
		return fmt.Errorf("invalid STORAGE_TYPE %q: must be memory, redis or mongo", c.StorageType)
	}
	if c.StorageType != "memory" && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required unless STORAGE_TYPE is memory")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a LOG_LEVEL value to a slog.Level
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid LOG_LEVEL %q", s)
}

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Port string `env:"PORT" envDefault:"8080"`

	DatabaseURL string `env:"DATABASE_URL"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"false"`

	// An empty REDIS_URL runs a single instance without rate limits.
	RedisURL  string `env:"REDIS_URL" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret   string        `env:"JWT_SECRET"`
	JWTExpiry   time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`
	AdminSecret string        `env:"ADMIN_SECRET"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	FeedCapacity         int `env:"FEED_CAPACITY" envDefault:"50"`
	FeedSubscriberBuffer int `env:"FEED_SUBSCRIBER_BUFFER" envDefault:"64"`

	BetMaxRetries int `env:"BET_MAX_RETRIES" envDefault:"3"`
	BetRateLimit  int `env:"BET_RATE_LIMIT" envDefault:"30"`
}

// Load parses the environment. A .env file, if any, must already be loaded.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters in production")
	}
	if c.FeedCapacity <= 0 {
		return fmt.Errorf("FEED_CAPACITY must be positive, got %d", c.FeedCapacity)
	}
	if c.FeedSubscriberBuffer <= 0 {
		return fmt.Errorf("FEED_SUBSCRIBER_BUFFER must be positive, got %d", c.FeedSubscriberBuffer)
	}
	if c.BetMaxRetries < 0 {
		return fmt.Errorf("BET_MAX_RETRIES must not be negative, got %d", c.BetMaxRetries)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

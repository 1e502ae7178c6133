package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development" validate:"oneof=development test staging production"`
	Port        string `env:"PORT" default:"8080" validate:"required,numeric"`
	LogLevel    string `env:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat   string `env:"LOG_FORMAT" default:"text" validate:"oneof=text json"`
	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`
	CatalogPath string `env:"CATALOG_PATH" default:"content/rules.yaml" validate:"required"`

	CounterStore   string `env:"COUNTER_STORE" default:"memory" validate:"oneof=memory redis postgres"`
	RateLimitStore string `env:"RATE_LIMIT_STORE" default:"memory" validate:"oneof=memory redis"`

	FingerprintSecret string `env:"FINGERPRINT_SECRET"`
	TrustProxy        bool   `env:"TRUST_PROXY" default:"false"`

	RateLimitVoteMax       int           `env:"RATE_LIMIT_VOTE_MAX" default:"10" validate:"gt=0"`
	RateLimitVoteWindow    time.Duration `env:"RATE_LIMIT_VOTE_WINDOW" default:"60s" validate:"gt=0"`
	RateLimitViewMax       int           `env:"RATE_LIMIT_VIEW_MAX" default:"30" validate:"gt=0"`
	RateLimitViewWindow    time.Duration `env:"RATE_LIMIT_VIEW_WINDOW" default:"60s" validate:"gt=0"`
	RateLimitCopyMax       int           `env:"RATE_LIMIT_COPY_MAX" default:"20" validate:"gt=0"`
	RateLimitCopyWindow    time.Duration `env:"RATE_LIMIT_COPY_WINDOW" default:"60s" validate:"gt=0"`
	RateLimitGeneralMax    int           `env:"RATE_LIMIT_GENERAL_MAX" default:"60" validate:"gt=0"`
	RateLimitGeneralWindow time.Duration `env:"RATE_LIMIT_GENERAL_WINDOW" default:"60s" validate:"gt=0"`

	GuardCapacity         int           `env:"GUARD_CAPACITY" default:"10000" validate:"gt=0"`
	GuardShards           int           `env:"GUARD_SHARDS" default:"16" validate:"gt=0"`
	GuardTTL              time.Duration `env:"GUARD_TTL" default:"24h" validate:"gt=0"`
	GuardMinInterval      time.Duration `env:"GUARD_MIN_INTERVAL" default:"1s"`
	GuardChangeWindow     time.Duration `env:"GUARD_CHANGE_WINDOW" default:"60s" validate:"gt=0"`
	GuardMaxChanges       int           `env:"GUARD_MAX_CHANGES" default:"3" validate:"gte=0"`
	GuardEvictionInterval time.Duration `env:"GUARD_EVICTION_INTERVAL" default:"5m" validate:"gt=0"`

	FloodRate  float64 `env:"FLOOD_RATE" default:"20" validate:"gt=0"`
	FloodBurst int     `env:"FLOOD_BURST" default:"40" validate:"gt=0"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	usesRedis := cfg.CounterStore == BackendRedis || cfg.RateLimitStore == BackendRedis
	if usesRedis && cfg.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when a redis backend is selected")
	}
	if cfg.CounterStore == BackendPostgres && cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when COUNTER_STORE=postgres")
	}

	if !cfg.IsProduction() {
		return nil
	}

	// In-process stores lose state on restart and are not shared between replicas.
	if cfg.CounterStore == BackendMemory {
		return fmt.Errorf("COUNTER_STORE=memory is not allowed in production")
	}
	if strings.TrimSpace(cfg.FingerprintSecret) == "" {
		return fmt.Errorf("FINGERPRINT_SECRET is required in production")
	}
	if cfg.RateLimitStore == BackendMemory {
		return fmt.Errorf("RATE_LIMIT_STORE=memory is not allowed in production")
	}

	return nil
}

// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the pool engine.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	NATS      NATSConfig
	Auth      AuthConfig
	Pool      PoolConfig
	Scheduler SchedulerConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds PostgreSQL configuration. An empty URL selects the
// in-memory store.
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds the read-through cache configuration. An empty URL
// disables caching.
type RedisConfig struct {
	URL      string
	CacheTTL time.Duration
}

// NATSConfig holds the event publisher configuration. An empty URL disables
// publishing.
type NATSConfig struct {
	URL string
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret    string
	AdminWallets []string
}

// PoolConfig holds accounting settings.
type PoolConfig struct {
	AcceptedCurrencies []string
	MaxDeposit         decimal.Decimal // zero disables
	MaxUserDeposited   decimal.Decimal // zero disables
}

// SchedulerConfig holds background job settings.
type SchedulerConfig struct {
	// RecalcSchedule is a cron spec for allocation recompute and share
	// audit. Empty disables the job.
	RecalcSchedule string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	ttl, err := time.ParseDuration(getEnv("CACHE_TTL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("config: CACHE_TTL: %w", err)
	}

	maxDeposit, err := getDecimal("MAX_DEPOSIT")
	if err != nil {
		return nil, err
	}
	maxUser, err := getDecimal("MAX_USER_DEPOSITED")
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			CacheTTL: ttl,
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET", ""),
			AdminWallets: getList("ADMIN_WALLETS", ""),
		},
		Pool: PoolConfig{
			AcceptedCurrencies: getList("ACCEPTED_CURRENCIES", "USDC"),
			MaxDeposit:         maxDeposit,
			MaxUserDeposited:   maxUser,
		},
		Scheduler: SchedulerConfig{
			RecalcSchedule: getEnv("RECALC_SCHEDULE", ""),
		},
	}, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getList splits a comma-separated variable, dropping empty entries.
func getList(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getDecimal(key string) (decimal.Decimal, error) {
	raw := getEnv(key, "0")
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: %s: %w", key, err)
	}
	if v.IsNegative() {
		return decimal.Zero, fmt.Errorf("config: %s must not be negative", key)
	}
	return v, nil
}

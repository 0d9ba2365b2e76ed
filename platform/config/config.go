// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides access token validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
	GetAuthCookieName() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetRateLimitPerMinute() int
}

// DiscoveryConfig provides settings for the live discovery service client.
type DiscoveryConfig interface {
	GetDiscoveryBaseURL() string
	GetDiscoveryAPIKey() string
	GetDiscoveryTimeout() time.Duration
	GetDiscoveryBackfillTimeout() time.Duration
}

// SearchConfig provides limits for the lead delivery coordinator.
type SearchConfig interface {
	GetSearchDefaultLimit() int
	GetSearchMaxLimit() int
	GetDeliveryHistoryCap() int
}

// SchedulerConfig provides settings for the asynq client and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// IdempotencyConfig provides settings for request replay protection.
type IdempotencyConfig interface {
	GetIdempotencyTTL() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	HTTPAddr                 string
	DatabaseURL              string
	JWTAccessSecret          string
	AuthCookieName           string
	CORSAllowAll             bool
	CORSOrigins              []string
	CORSAllowCreds           bool
	RateLimitPerMinute       int
	DiscoveryBaseURL         string
	DiscoveryAPIKey          string
	DiscoveryTimeout         time.Duration
	DiscoveryBackfillTimeout time.Duration
	SearchDefaultLimit       int
	SearchMaxLimit           int
	DeliveryHistoryCap       int
	RedisURL                 string
	RedisTLSInsecure         bool
	AsynqQueueName           string
	AsynqConcurrency         int
	IdempotencyTTL           time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }
func (c *Config) GetAuthCookieName() string  { return c.AuthCookieName }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string        { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool      { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string   { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool    { return c.CORSAllowCreds }
func (c *Config) GetRateLimitPerMinute() int { return c.RateLimitPerMinute }

// DiscoveryConfig implementation
func (c *Config) GetDiscoveryBaseURL() string         { return c.DiscoveryBaseURL }
func (c *Config) GetDiscoveryAPIKey() string          { return c.DiscoveryAPIKey }
func (c *Config) GetDiscoveryTimeout() time.Duration  { return c.DiscoveryTimeout }
func (c *Config) GetDiscoveryBackfillTimeout() time.Duration {
	return c.DiscoveryBackfillTimeout
}

// SearchConfig implementation
func (c *Config) GetSearchDefaultLimit() int { return c.SearchDefaultLimit }
func (c *Config) GetSearchMaxLimit() int     { return c.SearchMaxLimit }
func (c *Config) GetDeliveryHistoryCap() int { return c.DeliveryHistoryCap }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// IdempotencyConfig implementation
func (c *Config) GetIdempotencyTTL() time.Duration { return c.IdempotencyTTL }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	// VPS_API_BASE is the name the dashboard deployment used for the same setting.
	discoveryBaseURL := getEnv("DISCOVERY_BASE_URL", getEnv("VPS_API_BASE", ""))

	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		JWTAccessSecret:          getEnv("AUTH_JWT_SECRET", ""),
		AuthCookieName:           getEnv("AUTH_COOKIE_NAME", "sb-access-token"),
		CORSAllowAll:             corsAllowAll,
		CORSOrigins:              corsOrigins,
		CORSAllowCreds:           strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RateLimitPerMinute:       mustInt(getEnv("RATE_LIMIT_PER_MINUTE", "120")),
		DiscoveryBaseURL:         strings.TrimRight(strings.TrimSpace(discoveryBaseURL), "/"),
		DiscoveryAPIKey:          getEnv("DISCOVERY_API_KEY", ""),
		DiscoveryTimeout:         mustDuration(getEnv("DISCOVERY_TIMEOUT", "30s")),
		DiscoveryBackfillTimeout: mustDuration(getEnv("DISCOVERY_BACKFILL_TIMEOUT", "2m")),
		SearchDefaultLimit:       mustInt(getEnv("SEARCH_DEFAULT_LIMIT", "3")),
		SearchMaxLimit:           mustInt(getEnv("SEARCH_MAX_LIMIT", "200")),
		DeliveryHistoryCap:       mustInt(getEnv("DELIVERY_HISTORY_CAP", "5000")),
		RedisURL:                 getEnv("REDIS_URL", ""),
		RedisTLSInsecure:         strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:           getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:         mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		IdempotencyTTL:           mustDuration(getEnv("IDEMPOTENCY_TTL", "10m")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	if c.DiscoveryBaseURL == "" {
		return fmt.Errorf("DISCOVERY_BASE_URL is required")
	}
	if c.DiscoveryTimeout <= 0 {
		return fmt.Errorf("DISCOVERY_TIMEOUT must be a positive duration")
	}
	if c.SearchMaxLimit < 1 {
		return fmt.Errorf("SEARCH_MAX_LIMIT must be at least 1")
	}
	if c.SearchDefaultLimit < 1 || c.SearchDefaultLimit > c.SearchMaxLimit {
		return fmt.Errorf("SEARCH_DEFAULT_LIMIT must be between 1 and SEARCH_MAX_LIMIT")
	}
	if c.DeliveryHistoryCap < 1 {
		return fmt.Errorf("DELIVERY_HISTORY_CAP must be at least 1")
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}

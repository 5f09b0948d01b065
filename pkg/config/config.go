// Package config loads all service configuration from the environment.
// Every variable carries the RAPORHUB_ prefix and has a sensible default;
// only the upstream authority URL is mandatory.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/raporhub/raporhub/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Upstream      UpstreamConfig
	Redis         RedisConfig
	Catalog       CatalogConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// UpstreamConfig holds the reporting authority client configuration
type UpstreamConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// RedisConfig holds the local cache configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// PrefsTTL bounds how stale a cached pinned-report list may get
	PrefsTTL time.Duration
}

// CatalogConfig holds catalog resolver configuration
type CatalogConfig struct {
	// RulesPath points at an optional JSON file overriding the built-in
	// classification rules; empty means built-ins only
	RulesPath string

	CacheSize int
	CacheTTL  time.Duration

	// RefreshSchedule is a cron expression for re-warming cached tenant
	// catalogs; empty disables the job
	RefreshSchedule string
}

// AuditConfig holds the audit trail configuration
type AuditConfig struct {
	// SQLitePath is the audit database file; empty disables auditing
	SQLitePath string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("RAPORHUB_HOST", "0.0.0.0"),
			Port:            getEnv("RAPORHUB_PORT", "8080"),
			ReadTimeout:     getEnvDuration("RAPORHUB_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("RAPORHUB_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("RAPORHUB_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("RAPORHUB_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("RAPORHUB_HEALTH_PORT", "9090"),
		},
		Upstream: UpstreamConfig{
			BaseURL: getEnv("RAPORHUB_UPSTREAM_URL", ""),
			Token:   getEnv("RAPORHUB_UPSTREAM_TOKEN", ""),
			Timeout: getEnvDuration("RAPORHUB_UPSTREAM_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("RAPORHUB_REDIS_ADDR", ""),
			Password: getEnv("RAPORHUB_REDIS_PASSWORD", ""),
			DB:       getEnvInt("RAPORHUB_REDIS_DB", 0),
			PrefsTTL: getEnvDuration("RAPORHUB_PREFS_TTL", 24*time.Hour),
		},
		Catalog: CatalogConfig{
			RulesPath:       getEnv("RAPORHUB_CATALOG_RULES_PATH", ""),
			CacheSize:       getEnvInt("RAPORHUB_CATALOG_CACHE_SIZE", 256),
			CacheTTL:        getEnvDuration("RAPORHUB_CATALOG_CACHE_TTL", 5*time.Minute),
			RefreshSchedule: getEnv("RAPORHUB_CATALOG_REFRESH_SCHEDULE", "@every 15m"),
		},
		Audit: AuditConfig{
			SQLitePath: getEnv("RAPORHUB_AUDIT_DB_PATH", "raporhub-audit.db"),
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.ParseLogLevel(getEnv("RAPORHUB_LOG_LEVEL", "info")),
			MetricsEnabled:     getEnvBool("RAPORHUB_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("RAPORHUB_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("RAPORHUB_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("RAPORHUB_OTEL_SERVICE_NAME", "raporhub"),
			OTelServiceVersion: getEnv("RAPORHUB_OTEL_SERVICE_VERSION", "dev"),
			OTelInsecure:       getEnvBool("RAPORHUB_OTEL_INSECURE", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("RAPORHUB_UPSTREAM_URL is required")
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream timeout must be positive")
	}

	if c.Catalog.CacheSize <= 0 {
		return fmt.Errorf("catalog cache size must be positive")
	}
	if c.Catalog.CacheTTL <= 0 {
		return fmt.Errorf("catalog cache TTL must be positive")
	}

	if c.Redis.PrefsTTL <= 0 {
		return fmt.Errorf("preference cache TTL must be positive")
	}

	return nil
}

// getEnv returns an environment variable or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

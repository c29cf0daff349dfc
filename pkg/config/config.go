// Package config loads application configuration from ATRIUM_* environment
// variables and validates it before the server starts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/atriumhq/atrium/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Identity      IdentityConfig
	Session       SessionConfig
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
}

// DatabaseConfig holds the role/workspace store configuration
type DatabaseConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	ConnTimeout time.Duration
}

// RedisConfig holds the optional shared namespace cache configuration.
// An empty URL disables the L2 cache.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// IdentityConfig holds the external identity provider settings
type IdentityConfig struct {
	IssuerURL string
	Audience  string
}

// SessionConfig holds session token minting settings
type SessionConfig struct {
	Secret string
	TTL    time.Duration
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("ATRIUM_HOST", "0.0.0.0"),
			Port:            getEnv("ATRIUM_PORT", "8080"),
			ReadTimeout:     getEnvDuration("ATRIUM_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("ATRIUM_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("ATRIUM_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("ATRIUM_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:         getEnv("ATRIUM_POSTGRES_URL", ""),
			MaxConns:    getEnvInt("ATRIUM_POSTGRES_MAX_CONNS", 25),
			MinConns:    getEnvInt("ATRIUM_POSTGRES_MIN_CONNS", 5),
			ConnTimeout: getEnvDuration("ATRIUM_POSTGRES_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			URL:      getEnv("ATRIUM_REDIS_URL", ""),
			Password: getEnv("ATRIUM_REDIS_PASSWORD", ""),
			DB:       getEnvInt("ATRIUM_REDIS_DB", 0),
		},
		Identity: IdentityConfig{
			IssuerURL: getEnv("ATRIUM_IDENTITY_ISSUER_URL", ""),
			Audience:  getEnv("ATRIUM_IDENTITY_AUDIENCE", ""),
		},
		Session: SessionConfig{
			Secret: getEnv("ATRIUM_SESSION_SECRET", ""),
			TTL:    getEnvDuration("ATRIUM_SESSION_TTL", 8*time.Hour),
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.ParseLogLevel(getEnv("ATRIUM_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("ATRIUM_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Identity.IssuerURL == "" {
		return fmt.Errorf("identity issuer URL is required")
	}
	if c.Identity.Audience == "" {
		return fmt.Errorf("identity audience is required")
	}
	if c.Session.Secret == "" {
		return fmt.Errorf("session token secret is required")
	}
	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("session token secret must be at least 32 bytes")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	return nil
}

// getEnv returns an environment variable value or a default
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

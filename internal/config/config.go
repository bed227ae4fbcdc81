package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	Service ServiceConfig
	Matrix  MatrixConfig
	Cache   CacheConfig
	NATS    NATSConfig
	Auth    AuthConfig
	Logging LoggingConfig
}

// ServiceConfig holds service-level configuration
type ServiceConfig struct {
	Name    string
	Version string
	Port    int
}

// MatrixConfig holds the homeserver connection settings
type MatrixConfig struct {
	HomeserverURL  string
	UserID         string
	AccessToken    string
	RequestTimeout string
}

// CacheConfig holds profile cache configuration
type CacheConfig struct {
	Backend     string // "lru" or "ristretto"
	Capacity    int    // max entries per bounded cache partition
	NumCounters int64  // Ristretto: counters for TinyLFU admission
	BufferItems int64  // Ristretto: buffer size for async operations
}

// NATSConfig holds membership feed configuration
type NATSConfig struct {
	Embedded     bool
	ServerURL    string
	DataDir      string
	Subject      string
	StartTimeout string
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	config := &Config{
		Service: ServiceConfig{
			Name:    getEnvOrDefault("SERVICE_NAME", "profile-service"),
			Version: getEnvOrDefault("SERVICE_VERSION", "v1"),
			Port:    getEnvIntOrDefault("SERVICE_PORT", 8080),
		},
		Matrix: MatrixConfig{
			HomeserverURL:  getEnvOrDefault("MATRIX_HOMESERVER_URL", ""),
			UserID:         getEnvOrDefault("MATRIX_USER_ID", ""),
			AccessToken:    getEnvOrDefault("MATRIX_ACCESS_TOKEN", ""),
			RequestTimeout: getEnvOrDefault("MATRIX_REQUEST_TIMEOUT", "30s"),
		},
		Cache: CacheConfig{
			Backend:     getEnvOrDefault("CACHE_BACKEND", "lru"),
			Capacity:    getEnvIntOrDefault("CACHE_CAPACITY", 500),
			NumCounters: getEnvInt64OrDefault("CACHE_NUM_COUNTERS", 0),
			BufferItems: getEnvInt64OrDefault("CACHE_BUFFER_ITEMS", 64),
		},
		NATS: NATSConfig{
			Embedded:     getEnvBoolOrDefault("NATS_EMBEDDED", true),
			ServerURL:    getEnvOrDefault("NATS_SERVER_URL", ""),
			DataDir:      getEnvOrDefault("NATS_DATA_DIR", ""),
			Subject:      getEnvOrDefault("NATS_MEMBERSHIP_SUBJECT", "healthchat.membership"),
			StartTimeout: getEnvOrDefault("NATS_START_TIMEOUT", "15s"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnvOrDefault("JWT_SECRET", ""),
			JWTIssuer: getEnvOrDefault("JWT_ISSUER", "healthchat"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	// Validate required fields
	if config.Matrix.HomeserverURL == "" {
		return nil, fmt.Errorf("MATRIX_HOMESERVER_URL environment variable is required")
	}
	if config.Matrix.UserID == "" {
		return nil, fmt.Errorf("MATRIX_USER_ID environment variable is required")
	}
	if config.Matrix.AccessToken == "" {
		return nil, fmt.Errorf("MATRIX_ACCESS_TOKEN environment variable is required")
	}
	if config.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	return config, nil
}

// GetRequestTimeout returns the Matrix request timeout as a duration
func (c *MatrixConfig) GetRequestTimeout() (time.Duration, error) {
	return time.ParseDuration(c.RequestTimeout)
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

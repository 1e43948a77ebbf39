// Package config provides centralized configuration management for the application.
// Settings come from environment variables, optionally layered over a YAML
// file, with defaults for everything but the database URL. The result is
// validated on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Import     ImportConfig
	Query      QueryConfig
	Rate       RateLimitConfig
	Security   SecurityConfig
	Logging    LoggingConfig
	Retention  RetentionConfig
	Migrations MigrationsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is the maximum duration for writing response (default: 120s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"120s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds read requests; imports are not cut off by it (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// ConnectRetries is how many times to retry the initial connection (default: 5)
	ConnectRetries int `env:"DB_CONNECT_RETRIES" default:"5"`

	// ConnectBackoff is the initial delay between connection attempts (default: 1s)
	ConnectBackoff time.Duration `env:"DB_CONNECT_BACKOFF" default:"1s"`
}

// ImportConfig holds upload processing settings.
type ImportConfig struct {
	// MaxPayloadSize is the maximum upload body size in bytes (default: 100MB)
	MaxPayloadSize int64 `env:"IMPORT_MAX_PAYLOAD_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of parallel imports (default: 5)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an import slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// BatchSize is the number of rows copied per batch (default: 1000)
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"1000"`
}

// QueryConfig holds listing and search settings.
type QueryConfig struct {
	// DefaultPageSize applies when a request omits pageSize (default: 20)
	DefaultPageSize int `env:"QUERY_DEFAULT_PAGE_SIZE" default:"20"`

	// MaxPageSize caps pageSize (default: 200)
	MaxPageSize int `env:"QUERY_MAX_PAGE_SIZE" default:"200"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ImportLimit is requests per minute for the import endpoint (default: 10)
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// CORSOrigins lists allowed browser origins (default: *)
	CORSOrigins []string `env:"CORS_ORIGINS" default:"*"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	// RequireAPIKey rejects /api requests without a valid key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// RetentionConfig holds audit retention settings.
type RetentionConfig struct {
	// ProcessingErrorDays is how long failure records are kept (default: 30)
	ProcessingErrorDays int `env:"RETENTION_PROCESSING_ERROR_DAYS" default:"30"`

	// CheckInterval is how often the retention job runs (default: 24h)
	CheckInterval time.Duration `env:"RETENTION_CHECK_INTERVAL" default:"24h"`
}

// MigrationsConfig controls schema migrations at startup.
type MigrationsConfig struct {
	// AutoMigrate applies pending migrations before serving (default: true)
	AutoMigrate bool `env:"AUTO_MIGRATE" default:"true"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Package config centralizes configuration for the import service. All
// settings come from environment variables (plus an optional .env file
// loaded in main), defaults are applied for anything unset, and the whole
// result is validated on startup so misconfiguration fails fast.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Upload   UploadConfig
	Database DatabaseConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading the request body
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing the response
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout caps graceful shutdown
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// BackendConfig points at the ERP backend that receives finished batches.
type BackendConfig struct {
	// URL is the backend base URL (required), e.g. https://erp.internal
	URL string `env:"BACKEND_URL" envAlt:"ERP_BACKEND_URL" required:"true"`

	// APIKey authenticates submit calls; empty disables the header
	APIKey string `env:"BACKEND_API_KEY"`

	// Timeout is the per-submit HTTP timeout. There is no retry: a
	// failed submit is reported once and the user resubmits.
	Timeout time.Duration `env:"BACKEND_TIMEOUT" default:"30s"`
}

// UploadConfig holds file upload and session settings.
type UploadConfig struct {
	// MaxFileSize is the maximum upload size in bytes (default: 20MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"20971520"`

	// MaxConcurrentLoads caps parallel file decodes (default: 4)
	MaxConcurrentLoads int `env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// LoadWait is how long to wait for a decode slot (default: 15s)
	LoadWait time.Duration `env:"UPLOAD_LOAD_WAIT" default:"15s"`

	// SessionTTL is how long an idle review session survives
	SessionTTL time.Duration `env:"UPLOAD_SESSION_TTL" default:"30m"`

	// DoneLinger is how long a submitted session stays visible
	DoneLinger time.Duration `env:"UPLOAD_DONE_LINGER" default:"15s"`

	// SweepInterval is how often expired sessions are swept
	SweepInterval time.Duration `env:"UPLOAD_SWEEP_INTERVAL" default:"1m"`
}

// DatabaseConfig holds the optional submission-history database. When URL
// is empty the service runs without history.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the pool ceiling (default: 8)
	MaxConns int `env:"DB_MAX_CONNS" default:"8"`

	// MinConns is the number of connections kept warm (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`
}

// RateLimitConfig holds per-IP request limits.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default limit per IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`
}

// SecurityConfig holds inbound auth settings.
type SecurityConfig struct {
	// RequireAPIKey gates /api behind X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is the comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum level: debug, info, warn, error
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is text or json
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port form.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// HistoryEnabled reports whether the submission-history store should run.
func (c *Config) HistoryEnabled() bool {
	return c.Database.URL != ""
}

// itoa converts an int to string without pulling strconv into this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}

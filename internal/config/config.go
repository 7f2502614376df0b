// Package config provides environment-driven configuration for the
// automation engine.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all application configuration values.
type Config struct {
	DatabaseURL Secret
	Port        string
	ListenHost  string
	CORSOrigins []string
	LogLevel    string

	// Worker tuning.
	ActionBatchSize   int
	ReportBatchSize   int
	ActionMaxRetries  int
	ReportMaxRetries  int
	RetryDelay        time.Duration
	ActionMaxAttempts int
	ReportMaxAttempts int
	WorkerInterval    time.Duration
	// WorkerReapAfter resets stuck claims older than this; zero disables.
	WorkerReapAfter time.Duration

	// Report upload target.
	ReportUploadBaseURL string
	ReportUploadURL     string
	ReportUploadMethod  string
	ReportUploadHeaders map[string]string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:         Secret(envOrDefault("DATABASE_URL", "")),
		Port:                envOrDefault("PORT", "3030"),
		ListenHost:          envOrDefault("LISTEN_HOST", "127.0.0.1"),
		LogLevel:            envOrDefault("LOG_LEVEL", "info"),
		ReportUploadBaseURL: envOrDefault("REPORT_UPLOAD_BASE_URL", ""),
		ReportUploadURL:     envOrDefault("REPORT_UPLOAD_URL", ""),
		ReportUploadMethod:  envOrDefault("REPORT_UPLOAD_METHOD", "PUT"),
	}

	var err error
	if cfg.ActionBatchSize, err = envInt("ACTION_BATCH_SIZE", 25, 1, 1000); err != nil {
		return nil, err
	}
	if cfg.ReportBatchSize, err = envInt("REPORT_BATCH_SIZE", 10, 1, 1000); err != nil {
		return nil, err
	}
	if cfg.ActionMaxRetries, err = envInt("ACTION_MAX_RETRIES", 2, 0, 10); err != nil {
		return nil, err
	}
	if cfg.ReportMaxRetries, err = envInt("REPORT_MAX_RETRIES", 1, 0, 10); err != nil {
		return nil, err
	}
	if cfg.ActionMaxAttempts, err = envInt("ACTION_MAX_ATTEMPTS", 5, 1, 100); err != nil {
		return nil, err
	}
	if cfg.ReportMaxAttempts, err = envInt("REPORT_MAX_ATTEMPTS", 3, 1, 100); err != nil {
		return nil, err
	}
	if cfg.RetryDelay, err = envDuration("RETRY_DELAY", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.WorkerInterval, err = envDuration("WORKER_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.WorkerReapAfter, err = envDuration("WORKER_REAP_AFTER", 0); err != nil {
		return nil, err
	}

	if raw := os.Getenv("REPORT_UPLOAD_HEADERS"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.ReportUploadHeaders); err != nil {
			return nil, fmt.Errorf("REPORT_UPLOAD_HEADERS must be a JSON object of strings: %w", err)
		}
	}

	origins := envOrDefault("CORS_ORIGINS", "http://localhost:3002")
	cfg.CORSOrigins = strings.Split(origins, ",")

	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

func (c *Config) validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateNetwork(); err != nil {
		return err
	}

	if err := c.validateCORS(); err != nil {
		return err
	}

	return c.validateUpload()
}

func (c *Config) validateDatabase() error {
	if c.DatabaseURL.Value() == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	dbURL, err := url.Parse(c.DatabaseURL.Value())
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}

	if dbURL.Scheme != "postgres" && dbURL.Scheme != "postgresql" {
		return fmt.Errorf("DATABASE_URL scheme must be postgres:// or postgresql://")
	}

	if dbURL.Hostname() == "" {
		return fmt.Errorf("DATABASE_URL must include a host")
	}

	dbHost := dbURL.Hostname()
	if dbHost != "localhost" && dbHost != "127.0.0.1" && dbHost != "::1" {
		sslmode := dbURL.Query().Get("sslmode")
		if sslmode == "disable" {
			return fmt.Errorf("DATABASE_URL sslmode=disable is not allowed for non-local host %q", dbHost)
		}
	}

	return nil
}

func (c *Config) validateNetwork() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid integer: %w", err)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	return nil
}

func (c *Config) validateCORS() error {
	for _, origin := range c.CORSOrigins {
		if origin == "*" {
			return fmt.Errorf("CORS_ORIGINS must not contain wildcard '*'")
		}
		if strings.ContainsAny(origin, "*?[]") {
			return fmt.Errorf("CORS_ORIGINS must not contain glob characters (*?[]), got %q", origin)
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("CORS_ORIGINS contains invalid origin %q (must have scheme and host)", origin)
		}
	}

	return nil
}

func (c *Config) validateUpload() error {
	if c.ReportUploadBaseURL != "" && c.ReportUploadURL != "" {
		return fmt.Errorf("REPORT_UPLOAD_BASE_URL and REPORT_UPLOAD_URL are mutually exclusive")
	}

	for _, target := range []string{c.ReportUploadBaseURL, c.ReportUploadURL} {
		if target == "" {
			continue
		}
		u, err := url.ParseRequestURI(target)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("report upload target must be an http(s) URL, got %q", target)
		}
	}

	switch c.ReportUploadMethod {
	case "PUT", "POST":
	default:
		return fmt.Errorf("REPORT_UPLOAD_METHOD must be PUT or POST, got %q", c.ReportUploadMethod)
	}

	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envInt(key string, fallback, minVal, maxVal int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < minVal || v > maxVal {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", key, minVal, maxVal)
	}

	return v, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	v, err := time.ParseDuration(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative duration (e.g. 500ms, 30s)", key)
	}

	return v, nil
}

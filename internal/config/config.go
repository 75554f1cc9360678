package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/lamim/questionforge/pkg/models"
)

// Config represents the complete client configuration
type Config struct {
	Server     ServerConfig            `toml:"server"`
	Polling    PollingConfig           `toml:"polling"`
	Generation models.GenerationParams `toml:"generation"` // Defaults for the submission form
	Session    SessionConfig           `toml:"session"`
}

// ServerConfig describes the question-generation service endpoint
type ServerConfig struct {
	BaseURL            string `toml:"base_url"`
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds"` // 0 = no timeout
	RequestsPerMinute  int    `toml:"requests_per_minute"`
	MaxRetries         int    `toml:"max_retries"`         // Retries for idempotent requests only
	MaxBackoffSeconds  int    `toml:"max_backoff_seconds"` // Cap for retry backoff
}

// PollingConfig controls the job status poller
type PollingConfig struct {
	IntervalSeconds        int `toml:"interval_seconds"`
	MaxConsecutiveFailures int `toml:"max_consecutive_failures"`
	MaxBackoffSeconds      int `toml:"max_backoff_seconds"`
}

// SessionConfig controls where session state lives
type SessionConfig struct {
	StateDir                string `toml:"state_dir"`
	MaxRegenerationAttempts int    `toml:"max_regeneration_attempts"` // Used when the server omits it
}

// Secrets holds sensitive credentials loaded from environment variables
type Secrets struct {
	APIKey string
}

const (
	// MaxRequestsPerMinute bounds the client-side rate limit
	MaxRequestsPerMinute = 6000
	// MaxPollIntervalSeconds bounds the poll interval
	MaxPollIntervalSeconds = 3600
	// MaxRegenerationAttemptsLimit bounds the local attempt ceiling
	MaxRegenerationAttemptsLimit = 100
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.BaseURL) == "" {
		return fmt.Errorf("server.base_url is required")
	}
	if c.Server.HTTPTimeoutSeconds < 0 {
		return fmt.Errorf("server.http_timeout_seconds must not be negative (got %d)", c.Server.HTTPTimeoutSeconds)
	}
	if c.Server.RequestsPerMinute < 1 || c.Server.RequestsPerMinute > MaxRequestsPerMinute {
		return fmt.Errorf("server.requests_per_minute must be between 1 and %d (got %d)",
			MaxRequestsPerMinute, c.Server.RequestsPerMinute)
	}
	if c.Server.MaxRetries < 0 {
		return fmt.Errorf("server.max_retries must not be negative (got %d)", c.Server.MaxRetries)
	}
	if c.Server.MaxBackoffSeconds < 1 {
		return fmt.Errorf("server.max_backoff_seconds must be at least 1 (got %d)", c.Server.MaxBackoffSeconds)
	}

	if c.Polling.IntervalSeconds < 1 || c.Polling.IntervalSeconds > MaxPollIntervalSeconds {
		return fmt.Errorf("polling.interval_seconds must be between 1 and %d (got %d)",
			MaxPollIntervalSeconds, c.Polling.IntervalSeconds)
	}
	if c.Polling.MaxConsecutiveFailures < 1 {
		return fmt.Errorf("polling.max_consecutive_failures must be at least 1 (got %d)",
			c.Polling.MaxConsecutiveFailures)
	}
	if c.Polling.MaxBackoffSeconds < c.Polling.IntervalSeconds {
		return fmt.Errorf("polling.max_backoff_seconds (%d) must not be below polling.interval_seconds (%d)",
			c.Polling.MaxBackoffSeconds, c.Polling.IntervalSeconds)
	}

	if err := c.Generation.Validate(); err != nil {
		return fmt.Errorf("generation: %w", err)
	}

	if strings.TrimSpace(c.Session.StateDir) == "" {
		return fmt.Errorf("session.state_dir is required")
	}
	if c.Session.MaxRegenerationAttempts < 1 || c.Session.MaxRegenerationAttempts > MaxRegenerationAttemptsLimit {
		return fmt.Errorf("session.max_regeneration_attempts must be between 1 and %d (got %d)",
			MaxRegenerationAttemptsLimit, c.Session.MaxRegenerationAttempts)
	}

	return nil
}

// HTTPTimeout returns the per-request timeout
func (s ServerConfig) HTTPTimeout() time.Duration {
	return time.Duration(s.HTTPTimeoutSeconds) * time.Second
}

// MaxBackoff returns the retry backoff cap
func (s ServerConfig) MaxBackoff() time.Duration {
	return time.Duration(s.MaxBackoffSeconds) * time.Second
}

// Interval returns the time between status fetches
func (p PollingConfig) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

// MaxBackoff returns the cap on the delay after repeated poll failures
func (p PollingConfig) MaxBackoff() time.Duration {
	return time.Duration(p.MaxBackoffSeconds) * time.Second
}

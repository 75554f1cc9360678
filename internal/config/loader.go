package config

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/lamim/questionforge/pkg/models"
)

const (
	// EnvBaseURL overrides server.base_url
	EnvBaseURL = "QUESTIONFORGE_API_URL"
	// EnvAPIKey holds the optional bearer token
	EnvAPIKey = "QUESTIONFORGE_API_KEY"
)

// Load reads and parses the configuration file and environment variables.
// A missing file is not an error: defaults apply.
func Load(configPath string) (*Config, *Secrets, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// defaults only
		case err != nil:
			return nil, nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			// Decode over the defaults so keys absent from the file keep their default
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		cfg.Server.BaseURL = v
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.ValidateInputs(); err != nil {
		return nil, nil, fmt.Errorf("input validation failed: %w", err)
	}

	secrets, err := LoadSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	return cfg, secrets, nil
}

// LoadSecrets reads credentials from the environment
func LoadSecrets() (*Secrets, error) {
	key := strings.TrimSpace(os.Getenv(EnvAPIKey))
	if containsControlChars(key) {
		return nil, fmt.Errorf("%s contains invalid control characters", EnvAPIKey)
	}
	return &Secrets{APIKey: key}, nil
}

// applyDefaults fills fields that were explicitly zeroed where zero is never meaningful
func applyDefaults(cfg *Config) {
	cfg.Server.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Server.BaseURL), "/")
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = DefaultBaseURL
	}
	if cfg.Server.RequestsPerMinute == 0 {
		cfg.Server.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if cfg.Server.MaxBackoffSeconds == 0 {
		cfg.Server.MaxBackoffSeconds = DefaultMaxBackoffSeconds
	}

	if cfg.Polling.IntervalSeconds == 0 {
		cfg.Polling.IntervalSeconds = DefaultPollIntervalSeconds
	}
	if cfg.Polling.MaxConsecutiveFailures == 0 {
		cfg.Polling.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	if cfg.Polling.MaxBackoffSeconds == 0 {
		cfg.Polling.MaxBackoffSeconds = DefaultMaxBackoffSeconds
	}

	if cfg.Session.StateDir == "" {
		cfg.Session.StateDir = DefaultStateDir
	}
	if cfg.Session.MaxRegenerationAttempts == 0 {
		cfg.Session.MaxRegenerationAttempts = models.DefaultMaxRegenerationAttempts
	}
}

// Marshal renders the configuration as TOML
func Marshal(cfg *Config) ([]byte, error) {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Hash identifies the server a session's job ids belong to
func (c *Config) Hash() string {
	hash := sha256.Sum256([]byte(c.Server.BaseURL))
	return fmt.Sprintf("%x", hash[:8])
}

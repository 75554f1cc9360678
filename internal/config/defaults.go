package config

import "github.com/lamim/questionforge/pkg/models"

const (
	// DefaultBaseURL is where the question-generation service listens by default
	DefaultBaseURL = "http://localhost:8002"

	DefaultHTTPTimeoutSeconds     = 120
	DefaultRequestsPerMinute      = 120
	DefaultMaxRetries             = 3
	DefaultMaxBackoffSeconds      = 60
	DefaultPollIntervalSeconds    = 5
	DefaultMaxConsecutiveFailures = 10
	DefaultStateDir               = "output"
)

// Default returns a configuration with every field at its default value
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:            DefaultBaseURL,
			HTTPTimeoutSeconds: DefaultHTTPTimeoutSeconds,
			RequestsPerMinute:  DefaultRequestsPerMinute,
			MaxRetries:         DefaultMaxRetries,
			MaxBackoffSeconds:  DefaultMaxBackoffSeconds,
		},
		Polling: PollingConfig{
			IntervalSeconds:        DefaultPollIntervalSeconds,
			MaxConsecutiveFailures: DefaultMaxConsecutiveFailures,
			MaxBackoffSeconds:      DefaultMaxBackoffSeconds,
		},
		Generation: models.DefaultGenerationParams(),
		Session: SessionConfig{
			StateDir:                DefaultStateDir,
			MaxRegenerationAttempts: models.DefaultMaxRegenerationAttempts,
		},
	}
}

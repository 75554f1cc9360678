// Package backoff computes capped exponential delays with optional jitter.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Config for exponential backoff. Zero values use defaults.
type Config struct {
	Initial time.Duration // default: 1s
	Max     time.Duration // default: 60s
	// Jitter is the +/- fraction applied to the delay (0.1 = 10%)
	Jitter float64
}

// Exponential returns the delay before retry number attempt.
// Attempt 1 returns Initial, attempt 2 twice that, and so on up to Max.
func Exponential(attempt int, cfg *Config) time.Duration {
	initial := time.Second
	maxBackoff := 60 * time.Second
	jitter := 0.0
	if cfg != nil {
		if cfg.Initial > 0 {
			initial = cfg.Initial
		}
		if cfg.Max > 0 {
			maxBackoff = cfg.Max
		}
		jitter = cfg.Jitter
	}

	if attempt < 1 {
		attempt = 1
	}
	delay := float64(initial) * math.Pow(2.0, float64(attempt-1))
	if delay > float64(maxBackoff) {
		delay = float64(maxBackoff)
	}
	if jitter > 0 {
		delay += delay * jitter * (2*rand.Float64() - 1)
	}
	return time.Duration(delay)
}

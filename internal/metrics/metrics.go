// Package metrics exposes client side prometheus metrics for requests,
// polling and session actions.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "questionforge"

// Collector records metrics into its own registry
type Collector struct {
	registry *prometheus.Registry
	logger   *slog.Logger

	apiRequestDuration      *prometheus.HistogramVec
	rateLimiterWaitDuration *prometheus.HistogramVec
	polls                   *prometheus.CounterVec
	statusTransitions       *prometheus.CounterVec
	actions                 *prometheus.CounterVec
}

// NewCollector creates a collector. A nil registry gets a fresh one with
// the Go runtime and process collectors attached.
func NewCollector(registry *prometheus.Registry, logger *slog.Logger) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		logger:   logger.With("component", "metrics"),

		apiRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds by endpoint and outcome",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			},
			[]string{"endpoint", "outcome"},
		),
		rateLimiterWaitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rate_limiter_wait_duration_seconds",
				Help:      "Rate limiter wait duration in seconds by endpoint",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
			},
			[]string{"endpoint"},
		),
		polls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "polls_total",
				Help:      "Status polls by outcome",
			},
			[]string{"outcome"}, // ok, transient, not_found, gave_up, stale
		),
		statusTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_transitions_total",
				Help:      "Job status transitions observed by the client",
			},
			[]string{"from", "to"},
		),
		actions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Submit, regenerate and finalize calls by outcome",
			},
			[]string{"action", "outcome"},
		),
	}
}

// RecordAPIRequest records one request, retries included
func (c *Collector) RecordAPIRequest(endpoint string, duration time.Duration, outcome string) {
	c.apiRequestDuration.WithLabelValues(endpoint, outcome).Observe(duration.Seconds())
}

// RecordRateLimiterWait records time spent waiting for a rate limit token
func (c *Collector) RecordRateLimiterWait(endpoint string, duration time.Duration) {
	c.rateLimiterWaitDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordPoll counts a poll outcome
func (c *Collector) RecordPoll(outcome string) {
	c.polls.WithLabelValues(outcome).Inc()
}

// RecordStatusTransition counts a job status change
func (c *Collector) RecordStatusTransition(from, to string) {
	c.statusTransitions.WithLabelValues(from, to).Inc()
}

// RecordAction counts a user action and how it ended
func (c *Collector) RecordAction(action, outcome string) {
	c.actions.WithLabelValues(action, outcome).Inc()
}

// Handler serves the collector's registry in the prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("Metrics server shutdown failed", "error", err)
		}
	}()

	c.logger.Info("Serving metrics", "addr", addr, "path", "/metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

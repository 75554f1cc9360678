// Package poller keeps a local job record in sync with the service by
// fetching its status on a fixed interval until told to stop.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lamim/questionforge/internal/api"
	"github.com/lamim/questionforge/internal/backoff"
	"github.com/lamim/questionforge/pkg/models"
)

const (
	// DefaultInterval is the time between status fetches
	DefaultInterval = 5 * time.Second
	// DefaultMaxConsecutiveFailures is how many transient failures in a row end polling
	DefaultMaxConsecutiveFailures = 10
	// DefaultMaxBackoff caps the delay after repeated failures
	DefaultMaxBackoff = 60 * time.Second
)

// Fetcher retrieves a job status snapshot
type Fetcher interface {
	GetJobStatus(ctx context.Context, jobID string) (models.Snapshot, error)
}

// MetricsRecorder receives poll outcomes
type MetricsRecorder interface {
	RecordPoll(outcome string)
}

// Poll outcomes
const (
	OutcomeOK        = "ok"
	OutcomeTransient = "transient"
	OutcomeNotFound  = "not_found"
	OutcomeGaveUp    = "gave_up"
	OutcomeStale     = "stale"
)

// Result is delivered to the handler after every fetch of the active run
type Result struct {
	JobID string
	// Run identifies the Start call that produced this result
	Run uint64
	// Seq numbers fetches within a run, starting at 1
	Seq      uint64
	Snapshot models.Snapshot
	Err      error
	// NotFound is set when the job is unknown to the service; polling has stopped
	NotFound bool
	// GaveUp is set when the consecutive failure limit was hit; polling has stopped
	GaveUp bool
}

// Handler consumes results. For successful fetches it returns true when
// polling should stop. Its return value is ignored for failures.
type Handler func(Result) (stop bool)

// Options configures a Poller. Zero values use defaults.
type Options struct {
	Interval               time.Duration
	MaxConsecutiveFailures int
	MaxBackoff             time.Duration
}

// Poller owns at most one polling run at a time
type Poller struct {
	fetcher     Fetcher
	interval    time.Duration
	maxFailures int
	backoff     backoff.Config
	metrics     MetricsRecorder
	logger      *slog.Logger

	mu     sync.Mutex
	run    uint64
	jobID  string
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a poller that fetches through f
func New(f Fetcher, opts Options, logger *slog.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxConsecutiveFailures <= 0 {
		opts.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	if opts.MaxBackoff < opts.Interval {
		opts.MaxBackoff = max(DefaultMaxBackoff, opts.Interval)
	}
	return &Poller{
		fetcher:     f,
		interval:    opts.Interval,
		maxFailures: opts.MaxConsecutiveFailures,
		backoff: backoff.Config{
			Initial: opts.Interval,
			Max:     opts.MaxBackoff,
		},
		logger: logger.With("component", "poller"),
	}
}

// SetMetrics attaches a metrics recorder
func (p *Poller) SetMetrics(m MetricsRecorder) {
	p.metrics = m
}

// Start begins polling jobID, stopping any run already in progress first.
// The first fetch happens immediately. It returns the run id that tags
// every Result of this run.
func (p *Poller) Start(ctx context.Context, jobID string, handler Handler) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	runCtx, cancel := context.WithCancel(ctx)
	p.run++
	p.jobID = jobID
	p.cancel = cancel
	p.done = make(chan struct{})

	p.logger.Debug("Polling started", "job_id", jobID, "run", p.run, "interval", p.interval)
	go p.loop(runCtx, p.run, jobID, handler, p.done)
	return p.run
}

// Stop cancels the active run. Any fetch still in flight is discarded.
// Calling Stop when nothing is running is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.cancel = nil
	// Bump the run so results racing with this stop are recognised as stale
	p.run++
	p.logger.Debug("Polling stopped", "job_id", p.jobID)
}

// Running reports whether a run is active
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Wait blocks until the most recently started run has exited
func (p *Poller) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// current reports whether run is still the active run
func (p *Poller) current(run uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.run == run && p.cancel != nil
}

// finish marks run as ended on its own (terminal status, not found, gave up)
func (p *Poller) finish(run uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.run == run && p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Poller) record(outcome string) {
	if p.metrics != nil {
		p.metrics.RecordPoll(outcome)
	}
}

func (p *Poller) loop(ctx context.Context, run uint64, jobID string, handler Handler, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	var seq uint64
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		seq++
		snap, err := p.fetcher.GetJobStatus(ctx, jobID)
		if ctx.Err() != nil || !p.current(run) {
			p.record(OutcomeStale)
			p.logger.Debug("Discarding status response from stopped run", "job_id", jobID, "run", run, "seq", seq)
			return
		}

		res := Result{JobID: jobID, Run: run, Seq: seq, Snapshot: snap, Err: err}
		next := p.interval

		switch {
		case err == nil:
			failures = 0
			p.record(OutcomeOK)
			if handler(res) {
				p.finish(run)
				return
			}

		case api.IsNotFound(err):
			p.record(OutcomeNotFound)
			p.logger.Error("Job not found, polling stopped", "job_id", jobID)
			res.NotFound = true
			p.finish(run)
			handler(res)
			return

		default:
			failures++
			if failures >= p.maxFailures {
				p.record(OutcomeGaveUp)
				p.logger.Error("Giving up on status polling",
					"job_id", jobID,
					"consecutive_failures", failures,
					"error", err)
				res.GaveUp = true
				p.finish(run)
				handler(res)
				return
			}

			p.record(OutcomeTransient)
			next = max(p.interval, backoff.Exponential(failures, &p.backoff))
			p.logger.Warn("Status fetch failed, will retry",
				"job_id", jobID,
				"consecutive_failures", failures,
				"next_attempt_in", next,
				"error", err)
			handler(res)
		}

		timer.Reset(next)
	}
}

// Package orchestrator drives one interactive question-generation session:
// document submission, status polling, regenerate cycles, finalization and reset.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lamim/questionforge/internal/api"
	"github.com/lamim/questionforge/internal/job"
	"github.com/lamim/questionforge/internal/poller"
	"github.com/lamim/questionforge/pkg/models"
)

// API is the subset of the service client the session needs
type API interface {
	SubmitJob(ctx context.Context, filePath string, params models.GenerationParams) (*api.SubmitResponse, error)
	GetJobStatus(ctx context.Context, jobID string) (models.Snapshot, error)
	RegenerateQuestion(ctx context.Context, jobID, feedback string) (models.Snapshot, error)
	FinalizeQuestion(ctx context.Context, jobID, question string) (models.Snapshot, error)
}

// StateStore persists the session after every change
type StateStore interface {
	Save(state models.SessionState) error
}

// ResultSink receives each completed question once
type ResultSink interface {
	WriteResult(q models.CompletedQuestion) error
}

// MetricsRecorder receives session level events
type MetricsRecorder interface {
	poller.MetricsRecorder
	RecordStatusTransition(from, to string)
	RecordAction(action, outcome string)
}

// Action outcomes reported to MetricsRecorder
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
	OutcomeBusy     = "busy"
	OutcomeStale    = "stale"
)

// Options configures a Session. Only MaxRegenerationAttempts and Poll have defaults;
// nil collaborators are skipped.
type Options struct {
	// MaxRegenerationAttempts applies until the server reports its own ceiling
	MaxRegenerationAttempts int
	Poll                    poller.Options

	Store   StateStore
	Results ResultSink
	Metrics MetricsRecorder

	// OnChange is called with a copy of the job after every change. It runs
	// while the session lock is held and must not call back into the session.
	OnChange func(models.Job)

	BaseURL    string
	ConfigHash string
}

// Session owns one job record and every request made on its behalf.
// All methods are safe for concurrent use.
type Session struct {
	client     API
	poller     *poller.Poller
	store      StateStore
	results    ResultSink
	metrics    MetricsRecorder
	onChange   func(models.Job)
	defaultMax int
	baseURL    string
	configHash string
	logger     *slog.Logger

	errors *job.ErrorSurface

	// seq numbers every snapshot request in issue order
	seq atomic.Uint64

	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu        sync.Mutex
	job       models.Job
	params    models.GenerationParams
	inFlight  bool
	epoch     uint64
	pollRun   uint64
	applied   uint64
	sessionID string
	createdAt time.Time
	changed   chan struct{}
}

// New creates an idle session
func New(client API, opts Options, logger *slog.Logger) *Session {
	if opts.MaxRegenerationAttempts <= 0 {
		opts.MaxRegenerationAttempts = models.DefaultMaxRegenerationAttempts
	}
	logger = logger.With("component", "session")

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		client:     client,
		store:      opts.Store,
		results:    opts.Results,
		metrics:    opts.Metrics,
		onChange:   opts.OnChange,
		defaultMax: opts.MaxRegenerationAttempts,
		baseURL:    opts.BaseURL,
		configHash: opts.ConfigHash,
		logger:     logger,
		baseCtx:    ctx,
		cancelBase: cancel,
		job:        models.NewJob(opts.MaxRegenerationAttempts),
		sessionID:  uuid.NewString(),
		createdAt:  time.Now(),
		changed:    make(chan struct{}),
	}
	s.errors = job.NewErrorSurface(func(msg string) {
		if msg != "" {
			logger.Debug("Error surface set", "message", msg)
		}
	})
	s.poller = poller.New(sequencedFetcher{s: s}, opts.Poll, logger)
	if opts.Metrics != nil {
		s.poller.SetMetrics(opts.Metrics)
	}
	return s
}

// Job returns a copy of the current job record
func (s *Session) Job() models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job.Clone()
}

// Params returns the generation parameters of the last submission
func (s *Session) Params() models.GenerationParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// SessionID returns the identifier used for persistence
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// ErrorMessage returns the dismissable error, empty when none is shown
func (s *Session) ErrorMessage() string {
	return s.errors.Message()
}

// HasError reports whether a dismissable error is shown
func (s *Session) HasError() bool {
	return s.errors.Active()
}

// DismissError clears the dismissable error. The job record is not touched.
func (s *Session) DismissError() {
	s.errors.Clear()
}

// Busy reports whether a request is outstanding or the server is still working
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight || (s.job.Status.IsInProgress() && s.poller.Running())
}

// Polling reports whether status polling is active
func (s *Session) Polling() bool {
	return s.poller.Running()
}

// State returns the persisted form of the session
func (s *Session) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Reset discards the job, stops polling and clears the error surface.
// Responses to requests issued before Reset are discarded when they arrive.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopPollingLocked()
	s.epoch++
	prev := s.job.Status
	s.job = models.NewJob(s.defaultMax)
	s.params = models.GenerationParams{}
	s.inFlight = false
	s.errors.Clear()

	if prev != models.StatusIdle {
		s.logger.Info("Session reset", "previous_status", prev)
		s.recordTransition(prev, models.StatusIdle)
	}
	s.persistLocked()
	s.notifyLocked()
}

// Resume loads a persisted session. Polling restarts when the saved job is
// still being worked on by the server.
func (s *Session) Resume(state models.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight {
		return ErrBusy
	}
	if state.Job.Status != models.StatusIdle && !state.Job.Status.Known() {
		return &ValidationError{
			Action:  models.ActionReport,
			Message: "Saved session has an unknown job status.",
			Detail:  string(state.Job.Status),
		}
	}

	s.stopPollingLocked()
	s.epoch++
	if state.SessionID != "" {
		s.sessionID = state.SessionID
	}
	if !state.CreatedAt.IsZero() {
		s.createdAt = state.CreatedAt
	}
	s.job = state.Job.Clone()
	if s.job.MaxRegenerationAttempts <= 0 {
		s.job.MaxRegenerationAttempts = s.defaultMax
	}
	s.params = state.Params
	s.errors.Clear()

	s.logger.Info("Session resumed",
		"session_id", s.sessionID,
		"job_id", s.job.ID,
		"status", s.job.Status)

	if s.job.Status.IsInProgress() && s.job.ID != "" {
		s.startPollingLocked()
	}
	s.notifyLocked()
	return nil
}

// WaitSettled blocks until no request is outstanding and the server is no
// longer working on the job, or polling has stopped on its own.
func (s *Session) WaitSettled(ctx context.Context) error {
	for {
		s.mu.Lock()
		settled := !s.inFlight && (!s.job.Status.IsInProgress() || !s.poller.Running())
		ch := s.changed
		s.mu.Unlock()

		if settled {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Changed returns a channel that is closed on the next change to the job
func (s *Session) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// Close stops polling and waits for the polling goroutine to exit
func (s *Session) Close() {
	s.mu.Lock()
	s.stopPollingLocked()
	s.mu.Unlock()

	s.cancelBase()
	s.poller.Wait()
}

func (s *Session) stateLocked() models.SessionState {
	return models.SessionState{
		SessionID:   s.sessionID,
		CreatedAt:   s.createdAt,
		LastSavedAt: time.Now(),
		Job:         s.job.Clone(),
		Params:      s.params,
		BaseURL:     s.baseURL,
		ConfigHash:  s.configHash,
	}
}

func (s *Session) persistLocked() {
	if s.store == nil {
		return
	}
	if err := s.store.Save(s.stateLocked()); err != nil {
		s.logger.Error("Failed to save session state", "session_id", s.sessionID, "error", err)
	}
}

func (s *Session) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
	if s.onChange != nil {
		s.onChange(s.job.Clone())
	}
}

// applySnapshotLocked merges a server snapshot tagged with seq. Snapshots
// from requests issued before the last applied one are dropped.
func (s *Session) applySnapshotLocked(seq uint64, snap models.Snapshot, source string) (job.Effects, bool) {
	if seq < s.applied {
		s.logger.Debug("Discarding out-of-order snapshot",
			"source", source,
			"seq", seq,
			"applied_seq", s.applied)
		if s.metrics != nil {
			s.metrics.RecordPoll(poller.OutcomeStale)
		}
		return job.Classify(s.job), false
	}
	s.applied = seq

	prev := s.job
	merged, eff := job.Apply(s.job, snap, s.errors)
	if merged.MaxRegenerationAttempts <= 0 {
		merged.MaxRegenerationAttempts = s.defaultMax
	}

	if prev.Status != merged.Status {
		if err := models.CheckTransition(prev.Status, models.ActionReport, merged.Status); err != nil {
			s.logger.Warn("Server reported an unexpected status change", "job_id", merged.ID, "error", err)
		}
		s.logger.Info("Job status changed",
			"job_id", merged.ID,
			"from", prev.Status,
			"to", merged.Status,
			"attempts", merged.RegenerationAttemptsMade)
		s.recordTransition(prev.Status, merged.Status)
	}
	if err := merged.CheckInvariants(); err != nil {
		s.logger.Warn("Job record violates an invariant", "job_id", merged.ID, "source", source, "error", err)
	}

	s.job = merged
	if merged.Status == models.StatusCompleted && prev.Status != models.StatusCompleted {
		s.writeResultLocked()
	}
	s.persistLocked()
	s.notifyLocked()
	return eff, true
}

func (s *Session) writeResultLocked() {
	if s.results == nil || s.job.FinalResult == nil {
		return
	}
	q := models.CompletedQuestion{
		SessionID:        s.sessionID,
		JobID:            s.job.ID,
		OriginalFilename: s.job.OriginalFilename,
		Params:           s.params,
		CompletedAt:      time.Now(),
		Result:           s.job.FinalResult.Clone(),
	}
	if err := s.results.WriteResult(q); err != nil {
		s.logger.Error("Failed to write completed question", "job_id", s.job.ID, "error", err)
	}
}

func (s *Session) recordTransition(from, to models.Status) {
	if s.metrics != nil {
		s.metrics.RecordStatusTransition(from.String(), to.String())
	}
}

func (s *Session) recordAction(action models.Action, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAction(string(action), outcome)
	}
}

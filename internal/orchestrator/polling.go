package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/lamim/questionforge/internal/api"
	"github.com/lamim/questionforge/internal/poller"
	"github.com/lamim/questionforge/pkg/models"
)

type seqSlotKey struct{}

// sequencedFetcher stamps every status request with the session sequence
// number and stores it in the slot carried by the run context. The poller
// owns the backoff between fetches, so each fetch is a single attempt.
type sequencedFetcher struct {
	s *Session
}

func (f sequencedFetcher) GetJobStatus(ctx context.Context, jobID string) (models.Snapshot, error) {
	seq := f.s.seq.Add(1)
	if slot, ok := ctx.Value(seqSlotKey{}).(*atomic.Uint64); ok {
		slot.Store(seq)
	}
	return f.s.client.GetJobStatus(api.SingleAttempt(ctx), jobID)
}

// Watch starts polling the current job. It is a no-op while polling is active
// and returns ErrBusy while a submit, regenerate or finalize call is outstanding.
func (s *Session) Watch() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight {
		return s.busy(models.ActionReport)
	}
	if s.job.ID == "" {
		return s.reject(models.ActionReport, &ValidationError{
			Action:  models.ActionReport,
			Message: "No job has been submitted.",
		})
	}
	if s.poller.Running() {
		return nil
	}
	s.startPollingLocked()
	s.notifyLocked()
	return nil
}

// Refresh fetches the job status once and merges it. It returns ErrBusy while
// a submit, regenerate or finalize call is outstanding.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return s.busy(models.ActionReport)
	}
	if s.job.ID == "" {
		s.mu.Unlock()
		return s.reject(models.ActionReport, &ValidationError{
			Action:  models.ActionReport,
			Message: "No job has been submitted.",
		})
	}
	jobID := s.job.ID
	epoch := s.epoch
	seq := s.seq.Add(1)
	s.mu.Unlock()

	snap, err := s.client.GetJobStatus(ctx, jobID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.job.ID != jobID {
		return ErrStale
	}
	if err != nil {
		if api.IsNotFound(err) {
			s.notFoundLocked(jobID, err)
		} else {
			s.errors.Set(api.UserMessage(err))
		}
		return fmt.Errorf("failed to fetch job status: %w", err)
	}
	if _, ok := s.applySnapshotLocked(seq, snap, "refresh"); !ok {
		return ErrSuperseded
	}
	return nil
}

func (s *Session) startPollingLocked() {
	slot := new(atomic.Uint64)
	ctx := context.WithValue(s.baseCtx, seqSlotKey{}, slot)
	epoch := s.epoch
	s.pollRun = s.poller.Start(ctx, s.job.ID, func(res poller.Result) bool {
		return s.handlePoll(epoch, slot.Load(), res)
	})
}

func (s *Session) stopPollingLocked() {
	s.poller.Stop()
	s.pollRun = 0
}

func (s *Session) handlePoll(epoch, seq uint64, res poller.Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch || res.Run != s.pollRun || res.JobID != s.job.ID {
		s.logger.Debug("Discarding poll result from a superseded run",
			"job_id", res.JobID,
			"run", res.Run,
			"seq", seq)
		return true
	}

	switch {
	case res.NotFound:
		s.pollRun = 0
		s.notFoundLocked(res.JobID, res.Err)
		return true

	case res.GaveUp:
		s.pollRun = 0
		s.errors.Set(fmt.Sprintf("Lost contact with the service: %s", api.UserMessage(res.Err)))
		s.notifyLocked()
		return true

	case res.Err != nil:
		return false
	}

	eff, _ := s.applySnapshotLocked(seq, res.Snapshot, "poll")
	if eff.StopPolling {
		s.pollRun = 0
	}
	return eff.StopPolling
}

// notFoundLocked marks the job failed after the service reported it unknown.
// A completed job keeps its result; only the error surface is set.
func (s *Session) notFoundLocked(jobID string, err error) {
	s.stopPollingLocked()
	s.errors.Set(fmt.Sprintf("Job ID %s not found. Polling stopped.", jobID))

	prev := s.job.Status
	if !models.Allowed(prev, models.ActionFail, models.StatusError) {
		s.logger.Warn("Job no longer known to the service", "job_id", jobID, "status", prev)
		s.notifyLocked()
		return
	}

	s.job.Status = models.StatusError
	s.job.Message = msgJobNotFound
	s.job.ErrorDetails = api.UserMessage(err)
	s.logger.Error("Job not found, polling stopped", "job_id", jobID, "previous_status", prev)
	s.recordTransition(prev, models.StatusError)
	s.persistLocked()
	s.notifyLocked()
}

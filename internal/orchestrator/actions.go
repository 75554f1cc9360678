package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lamim/questionforge/internal/api"
	"github.com/lamim/questionforge/pkg/models"
)

// Submit uploads a document with its generation parameters and starts
// polling the new job. Any previous job in the session is discarded first.
func (s *Session) Submit(ctx context.Context, filePath string, params models.GenerationParams) (string, error) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return "", s.busy(models.ActionSubmit)
	}
	if err := validateDocument(filePath); err != nil {
		s.mu.Unlock()
		return "", s.reject(models.ActionSubmit, err)
	}
	if err := params.Validate(); err != nil {
		s.mu.Unlock()
		return "", s.reject(models.ActionSubmit, &ValidationError{
			Action:  models.ActionSubmit,
			Message: "Invalid generation settings.",
			Detail:  err.Error(),
		})
	}

	s.stopPollingLocked()
	s.epoch++
	epoch := s.epoch
	prev := s.job.Status
	s.job = models.NewJob(s.defaultMax)
	s.job.Status = models.StatusUploading
	s.job.Message = msgUploading
	s.job.OriginalFilename = filepath.Base(filePath)
	s.params = params
	s.inFlight = true
	s.errors.Clear()
	s.recordTransition(prev, models.StatusUploading)
	s.persistLocked()
	s.notifyLocked()
	s.mu.Unlock()

	s.logger.Info("Submitting document", "file", filePath, "taxonomy_level", params.TaxonomyLevel)
	resp, err := s.client.SubmitJob(ctx, filePath, params)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		s.recordAction(models.ActionSubmit, OutcomeStale)
		s.logger.Debug("Discarding submit response after reset")
		return "", ErrStale
	}
	s.inFlight = false

	if err != nil {
		msg := api.UserMessage(err)
		s.job.Status = models.StatusError
		s.job.Message = msg
		s.job.ErrorDetails = msg
		s.errors.Set(msg)
		s.recordTransition(models.StatusUploading, models.StatusError)
		s.recordAction(models.ActionSubmit, OutcomeFailure)
		s.logger.Error("Submission failed", "file", filePath, "error", err)
		s.persistLocked()
		s.notifyLocked()
		return "", fmt.Errorf("failed to submit document: %w", err)
	}

	message := resp.Message
	if message == "" {
		message = msgSubmitted
	}
	s.job.ID = resp.JobID
	s.job.Status = models.StatusQueued
	s.job.Message = message
	s.recordTransition(models.StatusUploading, models.StatusQueued)
	s.recordAction(models.ActionSubmit, OutcomeSuccess)
	s.logger.Info("Job submitted", "job_id", resp.JobID)

	s.startPollingLocked()
	s.persistLocked()
	s.notifyLocked()
	return resp.JobID, nil
}

// Regenerate sends feedback for the current question and merges the
// regenerated result. On failure the previous question and attempt count are kept.
func (s *Session) Regenerate(ctx context.Context, feedback string) error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return s.busy(models.ActionRegenerate)
	}
	if s.job.RegenerationAttemptsMade >= s.job.MaxRegenerationAttempts {
		s.mu.Unlock()
		return s.reject(models.ActionRegenerate, newValidationError(models.ActionRegenerate, msgAttemptsExhausted))
	}
	if !models.CanApply(s.job.Status, models.ActionRegenerate) {
		status := s.job.Status
		s.mu.Unlock()
		return s.reject(models.ActionRegenerate, notAllowed(models.ActionRegenerate, status))
	}
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		s.mu.Unlock()
		return s.reject(models.ActionRegenerate, newValidationError(models.ActionRegenerate, msgNeedFeedback))
	}

	jobID := s.job.ID
	attempt := s.job.RegenerationAttemptsMade + 1
	prev, epoch, seq := s.beginActionLocked(models.StatusRegeneratingQuestion, msgRegenerating)
	s.mu.Unlock()

	s.logger.Info("Regenerating question", "job_id", jobID, "attempt", attempt)
	snap, err := s.client.RegenerateQuestion(ctx, jobID, feedback)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		s.recordAction(models.ActionRegenerate, OutcomeStale)
		return ErrStale
	}
	s.inFlight = false

	if err != nil {
		msg := api.UserMessage(err)
		s.revertLocked(prev, fmt.Sprintf("Regeneration failed: %s", msg), msg)
		s.recordAction(models.ActionRegenerate, OutcomeFailure)
		s.logger.Warn("Regeneration failed", "job_id", jobID, "error", err)
		return fmt.Errorf("failed to regenerate question: %w", err)
	}

	eff, ok := s.applySnapshotLocked(seq, snap, "regenerate")
	if !ok {
		return s.supersededLocked(models.ActionRegenerate, jobID)
	}
	if !eff.StopPolling {
		s.startPollingLocked()
	}
	s.recordAction(models.ActionRegenerate, OutcomeSuccess)
	return nil
}

// Finalize sends the current question as the accepted final version
func (s *Session) Finalize(ctx context.Context) error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return s.busy(models.ActionFinalize)
	}
	if !models.CanApply(s.job.Status, models.ActionFinalize) {
		status := s.job.Status
		s.mu.Unlock()
		return s.reject(models.ActionFinalize, notAllowed(models.ActionFinalize, status))
	}
	if !s.job.HasUsableQuestion() {
		s.mu.Unlock()
		return s.reject(models.ActionFinalize, newValidationError(models.ActionFinalize, msgNoQuestion))
	}

	jobID := s.job.ID
	question := s.job.CurrentQuestion
	prev, epoch, seq := s.beginActionLocked(models.StatusFinalizing, msgFinalizing)
	s.mu.Unlock()

	s.logger.Info("Finalizing question", "job_id", jobID)
	snap, err := s.client.FinalizeQuestion(ctx, jobID, question)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		s.recordAction(models.ActionFinalize, OutcomeStale)
		return ErrStale
	}
	s.inFlight = false

	if err != nil {
		msg := api.UserMessage(err)
		s.revertLocked(prev, fmt.Sprintf("Finalization failed: %s", msg), msg)
		s.recordAction(models.ActionFinalize, OutcomeFailure)
		s.logger.Warn("Finalization failed", "job_id", jobID, "error", err)
		return fmt.Errorf("failed to finalize question: %w", err)
	}

	eff, ok := s.applySnapshotLocked(seq, snap, "finalize")
	if !ok {
		return s.supersededLocked(models.ActionFinalize, jobID)
	}
	if fr := s.job.FinalResult; fr != nil && fr.GeneratedQuestion != question {
		s.logger.Warn("Final question differs from the text that was sent", "job_id", jobID)
	}
	if !eff.StopPolling {
		s.startPollingLocked()
	}
	s.recordAction(models.ActionFinalize, OutcomeSuccess)
	return nil
}

// beginActionLocked moves the job into the in-flight status of a regenerate
// or finalize call. The returned seq is the floor for snapshots applied afterwards.
func (s *Session) beginActionLocked(to models.Status, message string) (prev models.Status, epoch, seq uint64) {
	s.stopPollingLocked()
	prev = s.job.Status
	s.job.Status = to
	s.job.Message = message
	s.inFlight = true
	s.errors.Clear()

	seq = s.seq.Add(1)
	s.applied = seq
	s.recordTransition(prev, to)
	s.persistLocked()
	s.notifyLocked()
	return prev, s.epoch, seq
}

// revertLocked restores the interactive status that was current before a
// failed regenerate or finalize. Question, evaluations and attempts are kept.
func (s *Session) revertLocked(to models.Status, message, detail string) {
	from := s.job.Status
	if err := models.CheckTransition(from, models.ActionRevert, to); err != nil {
		s.logger.Warn("Reverting to a status outside the transition table", "error", err)
	}
	s.job.Status = to
	s.job.Message = message
	s.job.ErrorDetails = detail
	s.errors.Set(detail)
	s.recordTransition(from, to)
	s.persistLocked()
	s.notifyLocked()
}

// supersededLocked handles an accepted action whose response lost to a newer
// snapshot. The job is polled again so the record catches up with the service.
func (s *Session) supersededLocked(action models.Action, jobID string) error {
	s.recordAction(action, OutcomeStale)
	s.logger.Warn("Action response superseded by a newer status, resyncing",
		"action", action,
		"job_id", jobID,
		"status", s.job.Status)
	if s.job.ID != "" {
		s.startPollingLocked()
	}
	s.notifyLocked()
	return ErrSuperseded
}

func (s *Session) busy(action models.Action) error {
	s.errors.Set(msgBusy)
	s.recordAction(action, OutcomeBusy)
	s.logger.Debug("Action rejected while busy", "action", action)
	return ErrBusy
}

// reject surfaces a local validation failure. No request is sent and the
// job record is not changed.
func (s *Session) reject(action models.Action, err error) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		s.errors.Set(verr.Message)
	}
	s.recordAction(action, OutcomeRejected)
	s.logger.Info("Action rejected", "action", action, "reason", err)
	return err
}

package orchestrator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lamim/questionforge/pkg/models"
)

// User-facing messages
const (
	msgUploading         = "Uploading PDF and submitting job..."
	msgSubmitted         = "Job submitted, processing..."
	msgJobNotFound       = "Job not found."
	msgRegenerating      = "Submitting feedback and regenerating question..."
	msgFinalizing        = "Finalizing question..."
	msgNeedPDF           = "Please upload a PDF file."
	msgNeedFeedback      = "Please provide feedback before regenerating."
	msgNoQuestion        = "No current question to finalize."
	msgAttemptsExhausted = "Maximum regeneration attempts reached."
	msgBusy              = "Another request is still in progress."
)

var (
	// ErrBusy is returned when a submit, regenerate or finalize call is already outstanding
	ErrBusy = errors.New("another request is still in progress")

	// ErrStale is returned when a response arrived after the session was reset
	// or resubmitted and was therefore discarded
	ErrStale = errors.New("response discarded: session was reset or resubmitted")

	// ErrSuperseded is returned when a response arrived after a newer status had
	// already been merged. For regenerate and finalize, polling resumes to resync.
	ErrSuperseded = errors.New("response superseded by a newer status update")
)

// ValidationError is a local precondition failure. No request was sent.
type ValidationError struct {
	Action  models.Action
	Message string
	Detail  string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Detail)
	}
	return e.Message
}

func newValidationError(action models.Action, msg string) *ValidationError {
	return &ValidationError{Action: action, Message: msg}
}

func notAllowed(action models.Action, status models.Status) *ValidationError {
	return &ValidationError{
		Action:  action,
		Message: fmt.Sprintf("Action not allowed while job is %s.", status),
	}
}

// validateDocument checks that path names a readable, non-empty PDF file
func validateDocument(path string) error {
	if strings.TrimSpace(path) == "" {
		return newValidationError(models.ActionSubmit, msgNeedPDF)
	}

	info, err := os.Stat(path)
	if err != nil {
		return &ValidationError{Action: models.ActionSubmit, Message: msgNeedPDF, Detail: err.Error()}
	}
	if !info.Mode().IsRegular() {
		return &ValidationError{Action: models.ActionSubmit, Message: msgNeedPDF, Detail: "not a regular file"}
	}
	if info.Size() == 0 {
		return &ValidationError{Action: models.ActionSubmit, Message: msgNeedPDF, Detail: "file is empty"}
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return &ValidationError{Action: models.ActionSubmit, Message: msgNeedPDF, Detail: "expected a .pdf file"}
	}
	return nil
}

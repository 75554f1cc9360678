package models

import "fmt"

// Status is the lifecycle state of a remote generation job
type Status string

const (
	// StatusIdle means no job has been submitted in this session
	StatusIdle                      Status = ""
	StatusUploading                 Status = "uploading"
	StatusQueued                    Status = "queued"
	StatusProcessingSetup           Status = "processing_setup"
	StatusGeneratingInitialQuestion Status = "generating_initial_question"
	StatusRegeneratingQuestion      Status = "regenerating_question"
	StatusFinalizing                Status = "finalizing"
	StatusAwaitingFeedback          Status = "awaiting_feedback"
	StatusMaxAttemptsReached        Status = "max_attempts_reached"
	StatusCompleted                 Status = "completed"
	StatusError                     Status = "error"
)

// AllStatuses lists every wire status in lifecycle order
var AllStatuses = []Status{
	StatusUploading,
	StatusQueued,
	StatusProcessingSetup,
	StatusGeneratingInitialQuestion,
	StatusRegeneratingQuestion,
	StatusFinalizing,
	StatusAwaitingFeedback,
	StatusMaxAttemptsReached,
	StatusCompleted,
	StatusError,
}

// ParseStatus converts a wire value into a Status.
// The empty string parses to StatusIdle.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if st == StatusIdle || st.Known() {
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// Known reports whether s is one of the wire statuses
func (s Status) Known() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// IsTerminalForPolling reports whether polling must halt once the job reaches s
func (s Status) IsTerminalForPolling() bool {
	switch s {
	case StatusCompleted, StatusError, StatusAwaitingFeedback, StatusMaxAttemptsReached:
		return true
	}
	return false
}

// IsInProgress reports whether the server is still working on the job
func (s Status) IsInProgress() bool {
	return s.Known() && !s.IsTerminalForPolling()
}

// IsInteractive reports whether the job is waiting for feedback or finalization
func (s Status) IsInteractive() bool {
	return s == StatusAwaitingFeedback || s == StatusMaxAttemptsReached
}

// IsTerminal reports whether no further transitions except reset are possible
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

func (s Status) String() string {
	if s == StatusIdle {
		return "idle"
	}
	return string(s)
}

// UnmarshalText rejects values outside the closed enum
func (s *Status) UnmarshalText(text []byte) error {
	st, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s), nil
}

package checkpoint

import (
	"fmt"

	"github.com/lamim/questionforge/internal/config"
	"github.com/lamim/questionforge/pkg/models"
)

// ValidateState verifies a saved session can be resumed against cfg.
// A job id only has meaning on the server it was submitted to.
func ValidateState(st *models.SessionState, cfg *config.Config) error {
	if st.ConfigHash != "" {
		if expected := cfg.Hash(); st.ConfigHash != expected {
			return fmt.Errorf("session was created against a different server (hash: %s vs %s, base_url: %s)",
				st.ConfigHash, expected, st.BaseURL)
		}
	}
	if st.Job.Status != models.StatusIdle && !st.Job.Status.Known() {
		return fmt.Errorf("session has unknown job status %q", st.Job.Status)
	}
	// Only a submission that never got an id may lack one
	switch st.Job.Status {
	case models.StatusIdle, models.StatusUploading, models.StatusError:
	default:
		if st.Job.ID == "" {
			return fmt.Errorf("session in status %s has no job id", st.Job.Status)
		}
	}
	return nil
}

// NeedsPolling reports whether a resumed session must poll the server again
func NeedsPolling(st *models.SessionState) bool {
	return st.Job.ID != "" && st.Job.Status.IsInProgress()
}

// AttemptsSummary formats regeneration usage as "made/max"
func AttemptsSummary(st *models.SessionState) string {
	maxAttempts := st.Job.MaxRegenerationAttempts
	if maxAttempts <= 0 {
		maxAttempts = models.DefaultMaxRegenerationAttempts
	}
	return fmt.Sprintf("%d/%d", st.Job.RegenerationAttemptsMade, maxAttempts)
}

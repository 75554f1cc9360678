package checkpoint

import (
	"testing"

	"github.com/lamim/questionforge/internal/config"
	"github.com/lamim/questionforge/pkg/models"
)

func TestValidateState(t *testing.T) {
	cfg := config.Default()
	other := config.Default()
	other.Server.BaseURL = "https://elsewhere.example.com"

	tests := []struct {
		name    string
		mutate  func(st *models.SessionState)
		cfg     *config.Config
		wantErr bool
	}{
		{name: "matching server", cfg: cfg},
		{name: "different server", cfg: other, wantErr: true},
		{
			name:   "legacy state without hash",
			mutate: func(st *models.SessionState) { st.ConfigHash = "" },
			cfg:    other,
		},
		{
			name:    "missing job id",
			mutate:  func(st *models.SessionState) { st.Job.ID = "" },
			cfg:     cfg,
			wantErr: true,
		},
		{
			name: "failed submission without id",
			mutate: func(st *models.SessionState) {
				st.Job.ID = ""
				st.Job.Status = models.StatusError
			},
			cfg: cfg,
		},
		{
			name:   "idle session",
			mutate: func(st *models.SessionState) { st.Job = models.NewJob(15) },
			cfg:    cfg,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := testState(models.StatusQueued)
			st.ConfigHash = cfg.Hash()
			if tt.mutate != nil {
				tt.mutate(&st)
			}
			err := ValidateState(&st, tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateState() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNeedsPolling(t *testing.T) {
	tests := []struct {
		status models.Status
		want   bool
	}{
		{models.StatusQueued, true},
		{models.StatusRegeneratingQuestion, true},
		{models.StatusAwaitingFeedback, false},
		{models.StatusMaxAttemptsReached, false},
		{models.StatusCompleted, false},
		{models.StatusError, false},
	}
	for _, tt := range tests {
		st := testState(tt.status)
		if got := NeedsPolling(&st); got != tt.want {
			t.Errorf("NeedsPolling(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}

	st := testState(models.StatusQueued)
	st.Job.ID = ""
	if NeedsPolling(&st) {
		t.Error("a job without id cannot be polled")
	}
}

func TestAttemptsSummary(t *testing.T) {
	st := testState(models.StatusAwaitingFeedback)
	st.Job.RegenerationAttemptsMade = 4
	if got := AttemptsSummary(&st); got != "4/15" {
		t.Errorf("AttemptsSummary() = %q, want 4/15", got)
	}
	st.Job.MaxRegenerationAttempts = 0
	if got := AttemptsSummary(&st); got != "4/15" {
		t.Errorf("AttemptsSummary() with missing max = %q, want 4/15", got)
	}
}

// Package job merges server snapshots into the local job record and decides
// what the merge means for polling, the busy indicator and the error surface.
package job

import "github.com/lamim/questionforge/pkg/models"

// Effects describes what the caller must do after a merge
type Effects struct {
	// StopPolling is set once the resulting status is terminal for polling
	StopPolling bool
	// Busy mirrors !StopPolling; the server is still working
	Busy bool
	// ErrorText is the ephemeral error to show; only meaningful when SetError is true
	ErrorText  string
	SetError   bool
	ClearError bool
}

// Merge overwrites every field present in snap and keeps the rest of current
func Merge(current models.Job, snap models.Snapshot) models.Job {
	return snap.ApplyTo(current)
}

// Classify derives the effects of a job having reached its current status
func Classify(j models.Job) Effects {
	var eff Effects
	if j.Status.IsTerminalForPolling() {
		eff.StopPolling = true
	} else {
		eff.Busy = true
	}

	if j.Status == models.StatusError {
		text := j.Message
		if text == "" {
			text = j.ErrorDetails
		}
		if text != "" {
			eff.SetError = true
			eff.ErrorText = text
		}
	} else {
		eff.ClearError = true
	}
	return eff
}

// Apply merges snap into current, applies the error rule to surface and
// returns the merged job with its effects. surface may be nil.
func Apply(current models.Job, snap models.Snapshot, surface *ErrorSurface) (models.Job, Effects) {
	merged := Merge(current, snap)
	eff := Classify(merged)
	if surface != nil {
		switch {
		case eff.SetError:
			surface.Set(eff.ErrorText)
		case eff.ClearError:
			surface.Clear()
		}
	}
	return merged, eff
}

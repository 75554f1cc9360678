package models

import "fmt"

// Action is an event that moves a job between statuses
type Action string

const (
	// ActionSubmit starts a new upload; a session is reset to idle before submitting
	ActionSubmit Action = "submit"
	// ActionAccept records that the server accepted the upload and assigned an id
	ActionAccept Action = "accept"
	// ActionReport applies a status reported by the server
	ActionReport     Action = "report"
	ActionRegenerate Action = "regenerate"
	ActionFinalize   Action = "finalize"
	// ActionRevert restores the last interactive status after a failed regenerate or finalize
	ActionRevert Action = "revert"
	// ActionFail marks the job as failed locally (submission failure, job not found)
	ActionFail  Action = "fail"
	ActionReset Action = "reset"
)

var interactiveStatuses = []Status{StatusAwaitingFeedback, StatusMaxAttemptsReached}

// reportable holds every status a server snapshot may carry
var reportable = []Status{
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

// transitions maps action -> current status -> allowed next statuses
var transitions = map[Action]map[Status][]Status{
	ActionSubmit: {
		StatusIdle: {StatusUploading},
	},
	ActionAccept: {
		StatusUploading: {StatusQueued},
	},
	ActionRegenerate: {
		StatusAwaitingFeedback:   {StatusRegeneratingQuestion},
		StatusMaxAttemptsReached: {StatusRegeneratingQuestion},
	},
	ActionFinalize: {
		StatusAwaitingFeedback:   {StatusFinalizing},
		StatusMaxAttemptsReached: {StatusFinalizing},
	},
	ActionRevert: {
		StatusRegeneratingQuestion: interactiveStatuses,
		StatusFinalizing:           interactiveStatuses,
	},
	ActionFail: {
		StatusUploading:                 {StatusError},
		StatusQueued:                    {StatusError},
		StatusProcessingSetup:           {StatusError},
		StatusGeneratingInitialQuestion: {StatusError},
		StatusRegeneratingQuestion:      {StatusError},
		StatusFinalizing:                {StatusError},
		StatusAwaitingFeedback:          {StatusError},
		StatusMaxAttemptsReached:        {StatusError},
	},
}

func init() {
	// The server is authoritative once a job id exists
	report := make(map[Status][]Status, len(reportable))
	for _, from := range reportable {
		report[from] = reportable
	}
	transitions[ActionReport] = report

	reset := make(map[Status][]Status, len(AllStatuses)+1)
	reset[StatusIdle] = []Status{StatusIdle}
	for _, from := range AllStatuses {
		reset[from] = []Status{StatusIdle}
	}
	transitions[ActionReset] = reset
}

// NextStatuses returns the statuses reachable from `from` through action.
// A nil result means the action is not permitted in that status.
func NextStatuses(from Status, action Action) []Status {
	return transitions[action][from]
}

// CanApply reports whether action may be taken while the job is in status from
func CanApply(from Status, action Action) bool {
	return len(NextStatuses(from, action)) > 0
}

// Allowed reports whether action moves a job from `from` to `to`
func Allowed(from Status, action Action, to Status) bool {
	for _, next := range NextStatuses(from, action) {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns an error describing a disallowed transition
func CheckTransition(from Status, action Action, to Status) error {
	if Allowed(from, action, to) {
		return nil
	}
	return fmt.Errorf("transition %s -[%s]-> %s is not allowed", from, action, to)
}

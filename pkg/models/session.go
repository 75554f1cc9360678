package models

import "time"

// SessionState is the persisted form of one interactive session
type SessionState struct {
	SessionID   string    `json:"session_id"`
	CreatedAt   time.Time `json:"created_at"`
	LastSavedAt time.Time `json:"last_saved_at"`

	Job    Job              `json:"job"`
	Params GenerationParams `json:"params"`

	// BaseURL the job was submitted to; a job id is meaningless against another server
	BaseURL    string `json:"base_url"`
	ConfigHash string `json:"config_hash"`
}

// CompletedQuestion is appended to the session's results file once a job completes
type CompletedQuestion struct {
	SessionID        string           `json:"session_id"`
	JobID            string           `json:"job_id"`
	OriginalFilename string           `json:"original_filename,omitempty"`
	Params           GenerationParams `json:"params"`
	CompletedAt      time.Time        `json:"completed_at"`
	Result           FinalResult      `json:"final_result"`
}

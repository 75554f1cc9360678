package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is an optional snapshot value. Present is true when the key appeared
// on the wire, including an explicit null (which leaves Value at its zero value).
type Field[T any] struct {
	Value   T
	Present bool
}

// Set returns a present field carrying v
func Set[T any](v T) Field[T] {
	return Field[T]{Value: v, Present: true}
}

// Null returns a present field carrying the zero value
func Null[T any]() Field[T] {
	return Field[T]{Present: true}
}

// apply returns Value when the field is present, else current
func (f Field[T]) apply(current T) T {
	if f.Present {
		return f.Value
	}
	return current
}

func (f *Field[T]) decode(raw json.RawMessage) error {
	f.Present = true
	var zero T
	f.Value = zero
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return json.Unmarshal(raw, &f.Value)
}

// Snapshot is a possibly partial job record as returned by the status,
// regenerate and finalize endpoints
type Snapshot struct {
	Status                   Field[Status]
	Message                  Field[string]
	ErrorDetails             Field[string]
	JobParams                Field[map[string]any]
	OriginalFilename         Field[string]
	CurrentQuestion          Field[string]
	CurrentEvaluations       Field[*Evaluation]
	RegenerationAttemptsMade Field[int]
	MaxRegenerationAttempts  Field[int]
	FinalResult              Field[*FinalResult]
}

// UnmarshalJSON records which keys were present. Unknown keys are ignored.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode job snapshot: %w", err)
	}

	*s = Snapshot{}
	fields := []struct {
		key    string
		decode func(json.RawMessage) error
	}{
		{"status", s.Status.decode},
		{"message", s.Message.decode},
		{"error_details", s.ErrorDetails.decode},
		{"job_params", s.JobParams.decode},
		{"original_filename", s.OriginalFilename.decode},
		{"current_question", s.CurrentQuestion.decode},
		{"current_evaluations", s.CurrentEvaluations.decode},
		{"regeneration_attempts_made", s.RegenerationAttemptsMade.decode},
		{"max_regeneration_attempts", s.MaxRegenerationAttempts.decode},
		{"final_result", s.FinalResult.decode},
	}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok {
			continue
		}
		if err := f.decode(v); err != nil {
			return fmt.Errorf("failed to decode %s: %w", f.key, err)
		}
	}
	return nil
}

// Empty reports whether the snapshot carries no fields at all
func (s *Snapshot) Empty() bool {
	return !s.Status.Present &&
		!s.Message.Present &&
		!s.ErrorDetails.Present &&
		!s.JobParams.Present &&
		!s.OriginalFilename.Present &&
		!s.CurrentQuestion.Present &&
		!s.CurrentEvaluations.Present &&
		!s.RegenerationAttemptsMade.Present &&
		!s.MaxRegenerationAttempts.Present &&
		!s.FinalResult.Present
}

// ApplyTo returns job with every present field of s overwritten
func (s *Snapshot) ApplyTo(job Job) Job {
	job.Status = s.Status.apply(job.Status)
	job.Message = s.Message.apply(job.Message)
	job.ErrorDetails = s.ErrorDetails.apply(job.ErrorDetails)
	job.JobParams = s.JobParams.apply(job.JobParams)
	job.OriginalFilename = s.OriginalFilename.apply(job.OriginalFilename)
	job.CurrentQuestion = s.CurrentQuestion.apply(job.CurrentQuestion)
	job.CurrentEvaluations = s.CurrentEvaluations.apply(job.CurrentEvaluations)
	job.RegenerationAttemptsMade = s.RegenerationAttemptsMade.apply(job.RegenerationAttemptsMade)
	job.MaxRegenerationAttempts = s.MaxRegenerationAttempts.apply(job.MaxRegenerationAttempts)
	job.FinalResult = s.FinalResult.apply(job.FinalResult)
	return job
}

package models

import (
	"fmt"
	"math"
	"strings"
)

const (
	// DefaultMaxRegenerationAttempts applies when the server does not report a ceiling
	DefaultMaxRegenerationAttempts = 15

	// ErrorSentinelPrefix marks a current question that is really a server-side failure text
	ErrorSentinelPrefix = "Error:"
)

// Job is the authoritative local record of one submitted document
type Job struct {
	ID                       string         `json:"job_id"`
	Status                   Status         `json:"status"`
	Message                  string         `json:"message,omitempty"`
	ErrorDetails             string         `json:"error_details,omitempty"`
	JobParams                map[string]any `json:"job_params,omitempty"`
	OriginalFilename         string         `json:"original_filename,omitempty"`
	CurrentQuestion          string         `json:"current_question,omitempty"`
	CurrentEvaluations       *Evaluation    `json:"current_evaluations,omitempty"`
	RegenerationAttemptsMade int            `json:"regeneration_attempts_made"`
	MaxRegenerationAttempts  int            `json:"max_regeneration_attempts"`
	FinalResult              *FinalResult   `json:"final_result,omitempty"`
}

// NewJob returns an idle job with the given attempt ceiling
func NewJob(maxAttempts int) Job {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRegenerationAttempts
	}
	return Job{MaxRegenerationAttempts: maxAttempts}
}

// AttemptsRemaining returns how many regenerate cycles are left
func (j *Job) AttemptsRemaining() int {
	if n := j.MaxRegenerationAttempts - j.RegenerationAttemptsMade; n > 0 {
		return n
	}
	return 0
}

// HasUsableQuestion reports whether the current question can be finalized
func (j *Job) HasUsableQuestion() bool {
	q := strings.TrimSpace(j.CurrentQuestion)
	return q != "" && !strings.HasPrefix(q, ErrorSentinelPrefix)
}

// Clone returns a copy that shares no mutable state with j
func (j Job) Clone() Job {
	out := j
	if j.JobParams != nil {
		out.JobParams = make(map[string]any, len(j.JobParams))
		for k, v := range j.JobParams {
			out.JobParams[k] = v
		}
	}
	if j.CurrentEvaluations != nil {
		ev := j.CurrentEvaluations.Clone()
		out.CurrentEvaluations = &ev
	}
	if j.FinalResult != nil {
		fr := j.FinalResult.Clone()
		out.FinalResult = &fr
	}
	return out
}

// CheckInvariants reports the first violated record invariant, if any
func (j *Job) CheckInvariants() error {
	if j.RegenerationAttemptsMade < 0 {
		return fmt.Errorf("regeneration_attempts_made is negative (%d)", j.RegenerationAttemptsMade)
	}
	if j.MaxRegenerationAttempts > 0 && j.RegenerationAttemptsMade > j.MaxRegenerationAttempts {
		return fmt.Errorf("regeneration_attempts_made %d exceeds max %d",
			j.RegenerationAttemptsMade, j.MaxRegenerationAttempts)
	}
	if (j.FinalResult != nil) != (j.Status == StatusCompleted) {
		return fmt.Errorf("final_result presence does not match status %s", j.Status)
	}
	return nil
}

// GenerationParams is the submission form sent alongside the document
type GenerationParams struct {
	AcademicLevel                 string  `toml:"academic_level" json:"academic_level"`
	Major                         string  `toml:"major" json:"major"`
	CourseName                    string  `toml:"course_name" json:"course_name"`
	TaxonomyLevel                 string  `toml:"taxonomy_level" json:"taxonomy_level"`
	MarksForQuestion              string  `toml:"marks_for_question" json:"marks_for_question"`
	TopicsList                    string  `toml:"topics_list" json:"topics_list"`
	RetrievalLimitGeneration      int     `toml:"retrieval_limit_generation" json:"retrieval_limit_generation"`
	SimilarityThresholdGeneration float64 `toml:"similarity_threshold_generation" json:"similarity_threshold_generation"`
	GenerateDiagrams              bool    `toml:"generate_diagrams" json:"generate_diagrams"`
}

// TaxonomyLevels are the accepted Bloom's taxonomy levels
var TaxonomyLevels = []string{"Remember", "Understand", "Apply", "Analyze", "Evaluate", "Create"}

// MarksOptions are the accepted marks per question
var MarksOptions = []string{"5", "10", "15", "20"}

// DefaultGenerationParams returns the form defaults
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		AcademicLevel:                 "Undergraduate",
		Major:                         "Computer Science",
		CourseName:                    "Data Structures and Algorithms",
		TaxonomyLevel:                 "Evaluate",
		MarksForQuestion:              "10",
		TopicsList:                    "Breadth First Search, Shortest path",
		RetrievalLimitGeneration:      15,
		SimilarityThresholdGeneration: 0.4,
		GenerateDiagrams:              false,
	}
}

// Validate checks the form values before they are sent
func (p *GenerationParams) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"academic_level", p.AcademicLevel},
		{"major", p.Major},
		{"course_name", p.CourseName},
		{"topics_list", p.TopicsList},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%s is required", f.name)
		}
	}
	if !contains(TaxonomyLevels, p.TaxonomyLevel) {
		return fmt.Errorf("taxonomy_level must be one of %s (got %q)",
			strings.Join(TaxonomyLevels, ", "), p.TaxonomyLevel)
	}
	if !contains(MarksOptions, p.MarksForQuestion) {
		return fmt.Errorf("marks_for_question must be one of %s (got %q)",
			strings.Join(MarksOptions, ", "), p.MarksForQuestion)
	}
	if p.RetrievalLimitGeneration < 1 {
		return fmt.Errorf("retrieval_limit_generation must be at least 1 (got %d)", p.RetrievalLimitGeneration)
	}
	if v := p.SimilarityThresholdGeneration; math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("similarity_threshold_generation must be between 0 and 1 (got %g)",
			p.SimilarityThresholdGeneration)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

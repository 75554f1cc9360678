// Package render turns job records into the text shown by the command line client
package render

import (
	"fmt"
	"strings"

	"github.com/lamim/questionforge/internal/util"
	"github.com/lamim/questionforge/pkg/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxSnippets is the number of context snippets shown per list
const MaxSnippets = 5

// snippetPreviewLen bounds the snippet text printed under each header
const snippetPreviewLen = 400

const metricsErrorKey = "error_message"

var titleCaser = cases.Title(language.Und)

// View is the prepared, display-ready form of a job. Every field is a plain
// value so custom templates need no helper functions.
type View struct {
	JobID         string
	Status        string
	StatusLabel   string
	Message       string
	Document      string
	ErrorDetails  string
	Question      string
	Attempts      string
	AttemptsMade  int
	MaxAttempts   int
	AttemptsLeft  int
	CanRegenerate bool
	CanFinalize   bool
	MaxReached    bool
	Evaluation    *EvaluationView
	Final         *FinalView
}

// EvaluationView is a display-ready evaluation
type EvaluationView struct {
	QSTSScore         string
	Answerability     string
	Reasoning         string
	Outcome           string
	GenerationError   string
	RegenerationError string
	Metrics           []MetricView
	MetricsError      string
}

// MetricView is one qualitative metric with its display name and value
type MetricView struct {
	Name  string
	Value string
}

// SnippetView is one context snippet
type SnippetView struct {
	Index       int
	Score       string
	Source      string
	HeaderTrail string
	Text        string
}

// FigureView is one generated figure description
type FigureView struct {
	Title       string
	Description string
	OriginalRef string
	SourceFile  string
}

// FinalView is the accepted question with its evaluation and context
type FinalView struct {
	Question              string
	TotalAttempts         int
	Evaluation            *EvaluationView
	GenerationSnippets    []SnippetView
	AnswerabilitySnippets []SnippetView
	Figures               []FigureView
}

// NewView prepares job for display
func NewView(job models.Job) View {
	maxAttempts := job.MaxRegenerationAttempts
	if maxAttempts <= 0 {
		maxAttempts = models.DefaultMaxRegenerationAttempts
	}
	v := View{
		JobID:        job.ID,
		Status:       job.Status.String(),
		StatusLabel:  StatusLabel(job.Status),
		Message:      job.Message,
		Document:     job.OriginalFilename,
		ErrorDetails: job.ErrorDetails,
		Question:     job.CurrentQuestion,
		AttemptsMade: job.RegenerationAttemptsMade,
		MaxAttempts:  maxAttempts,
		AttemptsLeft: job.AttemptsRemaining(),
		MaxReached:   job.Status == models.StatusMaxAttemptsReached,
		Evaluation:   NewEvaluationView(job.CurrentEvaluations),
	}
	v.Attempts = fmt.Sprintf("%d/%d", v.AttemptsMade, v.MaxAttempts)
	v.CanRegenerate = models.CanApply(job.Status, models.ActionRegenerate) && v.AttemptsLeft > 0
	v.CanFinalize = models.CanApply(job.Status, models.ActionFinalize) && job.HasUsableQuestion()
	if job.FinalResult != nil {
		v.Final = newFinalView(*job.FinalResult)
	}
	return v
}

// StatusLabel upper-cases a status for display, e.g. "AWAITING FEEDBACK"
func StatusLabel(s models.Status) string {
	return strings.ToUpper(strings.ReplaceAll(s.String(), "_", " "))
}

// MetricName turns a metric key such as "is_clear" into "Is Clear"
func MetricName(key string) string {
	return titleCaser.String(strings.ReplaceAll(key, "_", " "))
}

// NewEvaluationView prepares an evaluation; nil stays nil
func NewEvaluationView(e *models.Evaluation) *EvaluationView {
	if e == nil {
		return nil
	}
	ev := &EvaluationView{
		QSTSScore:         "N/A",
		Answerability:     "N/A",
		Outcome:           e.StatusMessage,
		GenerationError:   e.ErrorMessage,
		RegenerationError: e.RegenerationErrorMessage,
	}
	if e.QSTSScore != nil {
		ev.QSTSScore = fmt.Sprintf("%.4f", *e.QSTSScore)
	}
	if a := e.LLMAnswerability; a != nil {
		if a.IsAnswerable != nil {
			if *a.IsAnswerable {
				ev.Answerability = "ANSWERABLE"
			} else {
				ev.Answerability = "NOT ANSWERABLE"
			}
		}
		ev.Reasoning = a.Reasoning
	}
	for _, m := range e.QualitativeMetrics {
		if m.Name == metricsErrorKey {
			ev.MetricsError = m.Text
			continue
		}
		ev.Metrics = append(ev.Metrics, MetricView{Name: MetricName(m.Name), Value: metricValue(m)})
	}
	return ev
}

func metricValue(m models.Metric) string {
	if !m.IsBool() {
		if m.Text == "" {
			return "N/A"
		}
		return m.Text
	}
	if *m.Bool {
		return "PASS"
	}
	return "FAIL"
}

// NewSnippetViews prepares at most MaxSnippets snippets
func NewSnippetViews(snippets []models.ContextSnippet) []SnippetView {
	n := min(len(snippets), MaxSnippets)
	out := make([]SnippetView, 0, n)
	for i, s := range snippets[:n] {
		sv := SnippetView{
			Index:       i + 1,
			Score:       "N/A",
			Source:      "N/A",
			HeaderTrail: strings.Join(s.Metadata.HeaderTrail, " -> "),
			Text:        util.TruncateString(strings.Join(strings.Fields(s.SourceText), " "), snippetPreviewLen),
		}
		if s.Score != 0 {
			sv.Score = fmt.Sprintf("%.4f", s.Score)
		}
		if s.Metadata.SourceFile != "" {
			sv.Source = s.Metadata.SourceFile
		}
		out = append(out, sv)
	}
	return out
}

// NewFigureViews extracts figure descriptions from the generation snippets
func NewFigureViews(snippets []models.ContextSnippet) []FigureView {
	figs := models.ExtractFigureDescriptions(snippets)
	out := make([]FigureView, 0, len(figs))
	for _, f := range figs {
		fv := FigureView{
			Title:       f.Title,
			Description: f.Description,
			OriginalRef: f.OriginalRef,
			SourceFile:  f.SourceFile,
		}
		if fv.Description == "" {
			fv.Description = "Could not extract description."
		}
		if fv.OriginalRef == "" {
			fv.OriginalRef = "N/A"
		}
		if fv.SourceFile == "" {
			fv.SourceFile = "N/A"
		}
		out = append(out, fv)
	}
	return out
}

func newFinalView(fr models.FinalResult) *FinalView {
	return &FinalView{
		Question:              fr.GeneratedQuestion,
		TotalAttempts:         fr.TotalRegenerationAttemptsMade,
		Evaluation:            NewEvaluationView(fr.EvaluationMetrics),
		GenerationSnippets:    NewSnippetViews(fr.GenerationContextSnippets),
		AnswerabilitySnippets: NewSnippetViews(fr.AnswerabilityContextSnippets),
		Figures:               NewFigureViews(fr.GenerationContextSnippets),
	}
}

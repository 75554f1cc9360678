package render

import (
	"fmt"
	"strings"

	"github.com/lamim/questionforge/internal/util"
	"github.com/lamim/questionforge/pkg/models"
)

const jobTemplate = `Job ID:   {{if .JobID}}{{.JobID}}{{else}}(none){{end}}
Document: {{if .Document}}{{.Document}}{{else}}N/A{{end}}
Status:   {{.StatusLabel}}
{{- if .Message}}
Message:  {{.Message}}
{{- end}}
{{- if .ErrorDetails}}
Error:    {{.ErrorDetails}}
{{- end}}
{{- if .Question}}

Current Question (Attempt {{.Attempts}}):
{{.Question}}
{{- end}}
`

const evaluationTemplate = `Evaluation:
  QSTS Score: {{.QSTSScore}}
  Answerability: {{.Answerability}}
{{- if .Reasoning}}
    Reasoning: {{.Reasoning}}
{{- end}}
{{- if .Outcome}}
  Outcome: {{.Outcome}}
{{- end}}
{{- if .GenerationError}}
  LLM Generation Error: {{.GenerationError}}
{{- end}}
{{- if .RegenerationError}}
  Regeneration Error: {{.RegenerationError}}
{{- end}}
{{- if .Metrics}}
  Qualitative Metrics:
{{- range .Metrics}}
    {{.Name}}: {{.Value}}
{{- end}}
{{- end}}
{{- if .MetricsError}}
  Qualitative Eval LLM Error: {{.MetricsError}}
{{- end}}
`

const finalTemplate = `Final Question (regeneration attempts: {{.TotalAttempts}}):
{{.Question}}
`

const snippetsTemplate = `{{.Title}} Context Snippets:
{{- range .Snippets}}
  Snippet {{.Index}} (Score: {{.Score}}) - Source: {{.Source}}
{{- if .HeaderTrail}}
    Header Trail: {{.HeaderTrail}}
{{- end}}
{{- if .Text}}
    {{.Text}}
{{- end}}
{{- else}}
  No {{.Kind}} context snippets available.
{{- end}}
`

const figuresTemplate = `Figure Descriptions:
{{- range .}}
  {{.Title}}
    Source: {{.SourceFile}}
    Original Ref: {{.OriginalRef}}
    Moondream Description: {{.Description}}
{{- end}}
`

const maxAttemptsNotice = "Maximum regeneration attempts reached. Finalize the current question or reset the session.\n"

type snippetSection struct {
	Title    string
	Kind     string
	Snippets []SnippetView
}

// Job renders the full text view of a job
func Job(job models.Job) (string, error) {
	v := NewView(job)
	sections := make([]string, 0, 6)

	head, err := util.RenderTemplate(jobTemplate, v)
	if err != nil {
		return "", fmt.Errorf("failed to render job: %w", err)
	}
	sections = append(sections, head)

	if v.Evaluation != nil && v.Final == nil {
		ev, err := util.RenderTemplate(evaluationTemplate, v.Evaluation)
		if err != nil {
			return "", fmt.Errorf("failed to render evaluation: %w", err)
		}
		sections = append(sections, ev)
	}
	if v.MaxReached {
		sections = append(sections, maxAttemptsNotice)
	}
	if hint := ActionHint(v); hint != "" {
		sections = append(sections, hint+"\n")
	}
	if v.Final != nil {
		final, err := Final(*job.FinalResult)
		if err != nil {
			return "", err
		}
		sections = append(sections, final)
	}
	return strings.Join(sections, "\n"), nil
}

// Evaluation renders one evaluation block; nil renders nothing
func Evaluation(e *models.Evaluation) (string, error) {
	ev := NewEvaluationView(e)
	if ev == nil {
		return "", nil
	}
	out, err := util.RenderTemplate(evaluationTemplate, ev)
	if err != nil {
		return "", fmt.Errorf("failed to render evaluation: %w", err)
	}
	return out, nil
}

// Final renders the accepted question with its evaluation, context snippets and figures
func Final(fr models.FinalResult) (string, error) {
	fv := newFinalView(fr)
	sections := make([]string, 0, 5)

	head, err := util.RenderTemplate(finalTemplate, fv)
	if err != nil {
		return "", fmt.Errorf("failed to render final result: %w", err)
	}
	sections = append(sections, head)

	if fv.Evaluation != nil {
		ev, err := util.RenderTemplate(evaluationTemplate, fv.Evaluation)
		if err != nil {
			return "", fmt.Errorf("failed to render final evaluation: %w", err)
		}
		sections = append(sections, ev)
	}

	for _, sec := range []snippetSection{
		{Title: "Generation", Kind: "generation", Snippets: fv.GenerationSnippets},
		{Title: "Answerability", Kind: "answerability", Snippets: fv.AnswerabilitySnippets},
	} {
		out, err := util.RenderTemplate(snippetsTemplate, sec)
		if err != nil {
			return "", fmt.Errorf("failed to render %s snippets: %w", sec.Kind, err)
		}
		sections = append(sections, out)
	}

	if len(fv.Figures) > 0 {
		out, err := util.RenderTemplate(figuresTemplate, fv.Figures)
		if err != nil {
			return "", fmt.Errorf("failed to render figure descriptions: %w", err)
		}
		sections = append(sections, out)
	}
	return strings.Join(sections, "\n"), nil
}

// ActionHint lists the actions available in the job's current status
func ActionHint(v View) string {
	var actions []string
	if v.CanRegenerate {
		actions = append(actions, fmt.Sprintf("Regenerate (%d left)", v.AttemptsLeft))
	}
	if v.CanFinalize {
		actions = append(actions, "Finalize")
	}
	if len(actions) == 0 {
		return ""
	}
	return "Available actions: " + strings.Join(actions, ", ")
}

// Progress is the one-line summary shown while waiting on the service
func Progress(job models.Job) string {
	label := StatusLabel(job.Status)
	if job.Message == "" {
		return label
	}
	return label + ": " + util.TruncateString(job.Message, 60)
}

// Custom renders a caller supplied template against the job's View
func Custom(tmpl string, job models.Job) (string, error) {
	out, err := util.RenderTemplate(tmpl, NewView(job))
	if err != nil {
		return "", fmt.Errorf("failed to render custom template: %w", err)
	}
	return out, nil
}

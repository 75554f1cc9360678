package render

import (
	"strings"
	"testing"

	"github.com/lamim/questionforge/pkg/models"
)

func boolPtr(b bool) *bool        { return &b }
func floatPtr(f float64) *float64 { return &f }

func sampleEvaluation() *models.Evaluation {
	return &models.Evaluation{
		QSTSScore: floatPtr(0.81234),
		LLMAnswerability: &models.Answerability{
			IsAnswerable: boolPtr(true),
			Reasoning:    "Context covers BFS.",
		},
		QualitativeMetrics: models.QualitativeMetrics{
			{Name: "is_clear", Bool: boolPtr(true)},
			{Name: "aligns_with_taxonomy", Bool: boolPtr(false)},
			{Name: "difficulty", Text: "medium"},
			{Name: "error_message", Text: "judge timed out"},
		},
		StatusMessage: "Generated successfully",
	}
}

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		status models.Status
		want   string
	}{
		{models.StatusAwaitingFeedback, "AWAITING FEEDBACK"},
		{models.StatusGeneratingInitialQuestion, "GENERATING INITIAL QUESTION"},
		{models.StatusCompleted, "COMPLETED"},
		{models.StatusIdle, "IDLE"},
	}
	for _, tt := range tests {
		if got := StatusLabel(tt.status); got != tt.want {
			t.Errorf("StatusLabel(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestMetricName(t *testing.T) {
	if got := MetricName("aligns_with_taxonomy"); got != "Aligns With Taxonomy" {
		t.Errorf("MetricName() = %q", got)
	}
}

func TestNewEvaluationView(t *testing.T) {
	ev := NewEvaluationView(sampleEvaluation())

	if ev.QSTSScore != "0.8123" {
		t.Errorf("QSTSScore = %q, want 0.8123", ev.QSTSScore)
	}
	if ev.Answerability != "ANSWERABLE" {
		t.Errorf("Answerability = %q", ev.Answerability)
	}
	if ev.MetricsError != "judge timed out" {
		t.Errorf("MetricsError = %q", ev.MetricsError)
	}
	want := []MetricView{
		{"Is Clear", "PASS"},
		{"Aligns With Taxonomy", "FAIL"},
		{"Difficulty", "medium"},
	}
	if len(ev.Metrics) != len(want) {
		t.Fatalf("got %d metrics, want %d", len(ev.Metrics), len(want))
	}
	for i := range want {
		if ev.Metrics[i] != want[i] {
			t.Errorf("metric %d = %+v, want %+v", i, ev.Metrics[i], want[i])
		}
	}
}

func TestNewEvaluationView_Missing(t *testing.T) {
	if NewEvaluationView(nil) != nil {
		t.Error("expected nil view for nil evaluation")
	}

	ev := NewEvaluationView(&models.Evaluation{
		LLMAnswerability: &models.Answerability{IsAnswerable: boolPtr(false)},
	})
	if ev.QSTSScore != "N/A" {
		t.Errorf("QSTSScore = %q, want N/A", ev.QSTSScore)
	}
	if ev.Answerability != "NOT ANSWERABLE" {
		t.Errorf("Answerability = %q", ev.Answerability)
	}

	ev = NewEvaluationView(&models.Evaluation{})
	if ev.Answerability != "N/A" {
		t.Errorf("Answerability = %q, want N/A", ev.Answerability)
	}
}

func TestNewSnippetViews(t *testing.T) {
	snippets := make([]models.ContextSnippet, 7)
	for i := range snippets {
		snippets[i] = models.ContextSnippet{
			ID:         "s",
			Score:      0.5,
			SourceText: "line one\n\nline   two",
			Metadata: models.SnippetMetadata{
				SourceFile:  "lecture.pdf",
				HeaderTrail: []string{"Graphs", "BFS"},
			},
		}
	}
	snippets[1].Score = 0
	snippets[1].Metadata.SourceFile = ""

	views := NewSnippetViews(snippets)
	if len(views) != MaxSnippets {
		t.Fatalf("got %d snippets, want %d", len(views), MaxSnippets)
	}
	if views[0].Index != 1 || views[0].Score != "0.5000" || views[0].Source != "lecture.pdf" {
		t.Errorf("unexpected first snippet %+v", views[0])
	}
	if views[0].HeaderTrail != "Graphs -> BFS" {
		t.Errorf("HeaderTrail = %q", views[0].HeaderTrail)
	}
	if views[0].Text != "line one line two" {
		t.Errorf("Text = %q", views[0].Text)
	}
	if views[1].Score != "N/A" || views[1].Source != "N/A" {
		t.Errorf("expected N/A fallbacks, got %+v", views[1])
	}
}

func TestNewFigureViews(t *testing.T) {
	snippets := []models.ContextSnippet{
		{SourceText: "plain prose"},
		{
			SourceText: "### Figure 2\n" + models.FigureDescriptionMarker + " A tree diagram.\n---\n" +
				"**Original Image Reference:** `img/fig2.png`",
			Metadata: models.SnippetMetadata{SourceFile: "notes.pdf"},
		},
		{SourceText: models.FigureDescriptionMarker},
	}

	figs := NewFigureViews(snippets)
	if len(figs) != 2 {
		t.Fatalf("got %d figures, want 2", len(figs))
	}
	if figs[0].Title != "Figure 2" || figs[0].Description != "A tree diagram." || figs[0].OriginalRef != "img/fig2.png" {
		t.Errorf("unexpected figure %+v", figs[0])
	}
	if figs[1].Description != "Could not extract description." || figs[1].OriginalRef != "N/A" || figs[1].SourceFile != "N/A" {
		t.Errorf("expected fallbacks, got %+v", figs[1])
	}
}

func TestJob_AwaitingFeedback(t *testing.T) {
	job := models.Job{
		ID:                       "job-1",
		Status:                   models.StatusAwaitingFeedback,
		Message:                  "Question ready for feedback.",
		OriginalFilename:         "lecture.pdf",
		CurrentQuestion:          "Compare BFS and DFS.",
		CurrentEvaluations:       sampleEvaluation(),
		RegenerationAttemptsMade: 2,
		MaxRegenerationAttempts:  15,
	}

	out, err := Job(job)
	if err != nil {
		t.Fatalf("Job() error = %v", err)
	}
	for _, want := range []string{
		"Job ID:   job-1",
		"Document: lecture.pdf",
		"Status:   AWAITING FEEDBACK",
		"Current Question (Attempt 2/15):\nCompare BFS and DFS.",
		"QSTS Score: 0.8123",
		"Answerability: ANSWERABLE\n    Reasoning: Context covers BFS.",
		"Outcome: Generated successfully",
		"    Is Clear: PASS",
		"Qualitative Eval LLM Error: judge timed out",
		"Available actions: Regenerate (13 left), Finalize",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "Error Message") {
		t.Errorf("error_message key rendered as a metric\n%s", out)
	}
}

func TestJob_MaxAttemptsReached(t *testing.T) {
	job := models.Job{
		ID:                       "job-2",
		Status:                   models.StatusMaxAttemptsReached,
		CurrentQuestion:          "Q",
		RegenerationAttemptsMade: 15,
		MaxRegenerationAttempts:  15,
	}

	out, err := Job(job)
	if err != nil {
		t.Fatalf("Job() error = %v", err)
	}
	if !strings.Contains(out, "Maximum regeneration attempts reached.") {
		t.Errorf("missing max attempts notice\n%s", out)
	}
	if strings.Contains(out, "Regenerate (") {
		t.Errorf("regenerate offered after the limit\n%s", out)
	}
	if !strings.Contains(out, "Available actions: Finalize") {
		t.Errorf("finalize not offered\n%s", out)
	}
}

func TestJob_ErrorSentinelNotFinalizable(t *testing.T) {
	job := models.Job{
		ID:                      "job-3",
		Status:                  models.StatusAwaitingFeedback,
		CurrentQuestion:         "Error: generation failed",
		MaxRegenerationAttempts: 15,
	}
	v := NewView(job)
	if v.CanFinalize {
		t.Error("error sentinel question should not be finalizable")
	}
	if got := ActionHint(v); got != "Available actions: Regenerate (15 left)" {
		t.Errorf("ActionHint() = %q", got)
	}
}

func TestJob_Idle(t *testing.T) {
	out, err := Job(models.NewJob(0))
	if err != nil {
		t.Fatalf("Job() error = %v", err)
	}
	want := "Job ID:   (none)\nDocument: N/A\nStatus:   IDLE\n"
	if out != want {
		t.Errorf("Job() = %q, want %q", out, want)
	}
}

func TestJob_Completed(t *testing.T) {
	fr := &models.FinalResult{
		GeneratedQuestion:             "Final BFS question.",
		EvaluationMetrics:             sampleEvaluation(),
		TotalRegenerationAttemptsMade: 3,
		GenerationContextSnippets: []models.ContextSnippet{{
			Score:      0.9,
			SourceText: "BFS explores level by level.",
			Metadata:   models.SnippetMetadata{SourceFile: "lecture.pdf"},
		}},
	}
	job := models.Job{
		ID:                       "job-4",
		Status:                   models.StatusCompleted,
		CurrentQuestion:          "Final BFS question.",
		RegenerationAttemptsMade: 3,
		MaxRegenerationAttempts:  15,
		FinalResult:              fr,
	}

	out, err := Job(job)
	if err != nil {
		t.Fatalf("Job() error = %v", err)
	}
	for _, want := range []string{
		"Status:   COMPLETED",
		"Final Question (regeneration attempts: 3):\nFinal BFS question.",
		"Generation Context Snippets:\n  Snippet 1 (Score: 0.9000) - Source: lecture.pdf",
		"    BFS explores level by level.",
		"Answerability Context Snippets:\n  No answerability context snippets available.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "Available actions") {
		t.Errorf("completed job offers actions\n%s", out)
	}
	if strings.Contains(out, "Figure Descriptions") {
		t.Errorf("figure section rendered without figures\n%s", out)
	}
	if strings.Count(out, "Evaluation:") != 1 {
		t.Errorf("expected a single evaluation block\n%s", out)
	}
}

func TestEvaluation_Errors(t *testing.T) {
	out, err := Evaluation(&models.Evaluation{
		ErrorMessage:             "LLM call failed",
		RegenerationErrorMessage: "feedback rejected",
	})
	if err != nil {
		t.Fatalf("Evaluation() error = %v", err)
	}
	for _, want := range []string{"LLM Generation Error: LLM call failed", "Regeneration Error: feedback rejected"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}

	out, err = Evaluation(nil)
	if err != nil || out != "" {
		t.Errorf("Evaluation(nil) = %q, %v", out, err)
	}
}

func TestProgress(t *testing.T) {
	job := models.Job{Status: models.StatusQueued, Message: "Job submitted, processing..."}
	if got := Progress(job); got != "QUEUED: Job submitted, processing..." {
		t.Errorf("Progress() = %q", got)
	}
	job.Message = ""
	if got := Progress(job); got != "QUEUED" {
		t.Errorf("Progress() = %q", got)
	}
}

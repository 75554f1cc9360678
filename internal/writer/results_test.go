package writer

import (
	"os"
	"testing"
	"time"

	"github.com/lamim/questionforge/internal/testutil"
	"github.com/lamim/questionforge/pkg/models"
)

func TestResultsWriterAppends(t *testing.T) {
	sm, err := NewSessionManager(t.TempDir(), testutil.QuietLogger())
	if err != nil {
		t.Fatal(err)
	}

	write := func(jobID, question string) {
		t.Helper()
		rw, err := NewResultsWriter(sm, testutil.QuietLogger())
		if err != nil {
			t.Fatalf("NewResultsWriter() error = %v", err)
		}
		q := models.CompletedQuestion{
			SessionID:   "s1",
			JobID:       jobID,
			Params:      models.DefaultGenerationParams(),
			CompletedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
			Result:      models.FinalResult{GeneratedQuestion: question, TotalRegenerationAttemptsMade: 2},
		}
		if err := rw.WriteResult(q); err != nil {
			t.Fatalf("WriteResult() error = %v", err)
		}
		if err := rw.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	}

	// Reopening must append rather than truncate
	write("job-1", "Explain BFS complexity.")
	write("job-2", "Compare Dijkstra and Bellman-Ford.")

	got, err := ReadResults(sm.GetResultsPath())
	if err != nil {
		t.Fatalf("ReadResults() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadResults() returned %d results, want 2", len(got))
	}
	if got[0].JobID != "job-1" || got[1].Result.GeneratedQuestion != "Compare Dijkstra and Bellman-Ford." {
		t.Errorf("unexpected results: %+v", got)
	}
	if got[1].Result.TotalRegenerationAttemptsMade != 2 {
		t.Errorf("attempts = %d", got[1].Result.TotalRegenerationAttemptsMade)
	}
}

func TestReadResults(t *testing.T) {
	dir := t.TempDir()

	got, err := ReadResults(dir + "/absent.jsonl")
	if err != nil || got != nil {
		t.Errorf("missing file: got %v, %v", got, err)
	}

	path := dir + "/results.jsonl"
	content := `{"job_id":"a","final_result":{"generated_question":"Q1"}}

{"job_id":"b","final_result":{"generated_question":"Q2"}}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = ReadResults(path)
	if err != nil {
		t.Fatalf("ReadResults() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("blank lines should be skipped, got %d results", len(got))
	}

	if err := os.WriteFile(path, []byte("{broken\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadResults(path); err == nil {
		t.Error("ReadResults() should fail on a malformed line")
	}
}

func BenchmarkResultsWriter_WriteResult(b *testing.B) {
	sm, err := NewSessionManager(b.TempDir(), testutil.QuietLogger())
	if err != nil {
		b.Fatal(err)
	}
	rw, err := NewResultsWriter(sm, testutil.QuietLogger())
	if err != nil {
		b.Fatal(err)
	}
	defer func() {
		if err := rw.Close(); err != nil {
			b.Fatal(err)
		}
	}()

	q := models.CompletedQuestion{
		JobID:  "bench",
		Params: models.DefaultGenerationParams(),
		Result: models.FinalResult{GeneratedQuestion: "Explain BFS complexity."},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = rw.WriteResult(q)
	}
}

package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lamim/questionforge/internal/testutil"
	"github.com/lamim/questionforge/pkg/models"
)

func testState(status models.Status) models.SessionState {
	return models.SessionState{
		SessionID: "session-1",
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Job: models.Job{
			ID:                      "abc123",
			Status:                  status,
			CurrentQuestion:         "Explain BFS complexity.",
			MaxRegenerationAttempts: 15,
		},
		Params:     models.DefaultGenerationParams(),
		BaseURL:    "http://localhost:8002",
		ConfigHash: "deadbeef",
	}
}

func TestSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	mgr := NewManager(tempDir, testutil.QuietLogger())

	if err := mgr.Save(testState(models.StatusQueued)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := mgr.Save(testState(models.StatusAwaitingFeedback)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	loaded, err := Load(tempDir, testutil.QuietLogger())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Job.Status != models.StatusAwaitingFeedback {
		t.Errorf("Expected latest status on disk, got %s", loaded.Job.Status)
	}
	if loaded.SessionID != "session-1" {
		t.Errorf("Expected session-1, got %s", loaded.SessionID)
	}
	if loaded.LastSavedAt.IsZero() {
		t.Error("LastSavedAt should be stamped")
	}
	if loaded.Params != models.DefaultGenerationParams() {
		t.Errorf("Params changed across save: %+v", loaded.Params)
	}

	if _, err := os.Stat(filepath.Join(tempDir, StateFilename+".tmp")); !os.IsNotExist(err) {
		t.Error("Temp file should not remain after atomic write")
	}
}

func TestSaveAfterClose(t *testing.T) {
	mgr := NewManager(t.TempDir(), testutil.QuietLogger())
	if err := mgr.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Errorf("second Close() should be a no-op, got %v", err)
	}
	if err := mgr.Save(testState(models.StatusQueued)); err == nil {
		t.Error("Save after Close should fail")
	}
}

func TestSaveSync(t *testing.T) {
	tempDir := t.TempDir()
	mgr := NewManager(tempDir, testutil.QuietLogger())
	defer func() {
		if err := mgr.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	}()

	if err := mgr.SaveSync(); err != nil {
		t.Fatalf("SaveSync with nothing staged failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, StateFilename)); !os.IsNotExist(err) {
		t.Error("Nothing should be written before the first Save")
	}

	if err := mgr.Save(testState(models.StatusCompleted)); err != nil {
		t.Fatal(err)
	}
	if err := mgr.SaveSync(); err != nil {
		t.Fatalf("SaveSync failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tempDir, StateFilename))
	if err != nil {
		t.Fatalf("State file missing after SaveSync: %v", err)
	}
	var st models.SessionState
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("Invalid state JSON: %v", err)
	}
	if st.Job.Status != models.StatusCompleted {
		t.Errorf("Expected completed, got %s", st.Job.Status)
	}
}

func TestOlderVersionNeverOverwrites(t *testing.T) {
	tempDir := t.TempDir()
	mgr := NewManager(tempDir, testutil.QuietLogger())
	defer mgr.Close()

	newer := pendingWrite{version: 5, state: testState(models.StatusCompleted)}
	older := pendingWrite{version: 3, state: testState(models.StatusQueued)}

	if err := mgr.writeStateToDisk(newer); err != nil {
		t.Fatal(err)
	}
	if err := mgr.writeStateToDisk(older); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(tempDir, testutil.QuietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Job.Status != models.StatusCompleted {
		t.Errorf("Older write replaced newer state: %s", loaded.Job.Status)
	}
}

func TestConcurrentSaves(t *testing.T) {
	tempDir := t.TempDir()
	mgr := NewManager(tempDir, testutil.QuietLogger())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			st := testState(models.StatusAwaitingFeedback)
			st.Job.RegenerationAttemptsMade = n % 15
			if err := mgr.Save(st); err != nil {
				t.Errorf("Save failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if err := mgr.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	if _, err := Load(tempDir, testutil.QuietLogger()); err != nil {
		t.Fatalf("State should be readable after concurrent saves: %v", err)
	}
	if latest := mgr.Latest(); latest == nil {
		t.Error("Latest() should return the last staged state")
	}
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir, testutil.QuietLogger()); err == nil {
		t.Error("Load should fail without a state file")
	}

	if err := os.WriteFile(filepath.Join(dir, StateFilename), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir, testutil.QuietLogger()); err == nil {
		t.Error("Load should fail on corrupt JSON")
	}

	bad := `{"session_id":"s","job":{"job_id":"x","status":"paused"}}`
	if err := os.WriteFile(filepath.Join(dir, StateFilename), []byte(bad), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir, testutil.QuietLogger()); err == nil {
		t.Error("Load should reject an unknown status")
	}
}

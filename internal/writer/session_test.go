package writer

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/lamim/questionforge/internal/testutil"
)

func TestNewSessionManager(t *testing.T) {
	stateDir := filepath.Join(t.TempDir(), "state")

	first, err := NewSessionManager(stateDir, testutil.QuietLogger())
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}
	if !strings.HasPrefix(first.Name(), "session_") {
		t.Errorf("unexpected session name %q", first.Name())
	}
	if info, err := os.Stat(first.GetSessionDir()); err != nil || !info.IsDir() {
		t.Fatalf("session directory not created: %v", err)
	}

	// Created within the same second, so it must not reuse the directory
	second, err := NewSessionManager(stateDir, testutil.QuietLogger())
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}
	if second.GetSessionDir() == first.GetSessionDir() {
		t.Error("two sessions share a directory")
	}
	if err := ValidateSessionPath(stateDir, second.Name()); err != nil {
		t.Errorf("generated name fails validation: %v", err)
	}
}

func TestListAndLatestSessions(t *testing.T) {
	stateDir := t.TempDir()
	for _, name := range []string{
		"session_2025-01-02T10-00-00",
		"session_2025-01-01T09-00-00",
		"session_2025-01-02T10-00-00_2",
		"session_2025-01-02T10-00-00_10",
		"not-a-session",
	} {
		if err := os.Mkdir(filepath.Join(stateDir, name), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(stateDir, "session_2026-01-01T00-00-00"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	names, err := ListSessions(stateDir)
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	want := []string{
		"session_2025-01-01T09-00-00",
		"session_2025-01-02T10-00-00",
		"session_2025-01-02T10-00-00_2",
		"session_2025-01-02T10-00-00_10",
	}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("ListSessions() = %v, want %v", names, want)
	}

	latest, err := LatestSession(stateDir)
	if err != nil {
		t.Fatalf("LatestSession() error = %v", err)
	}
	if latest != "session_2025-01-02T10-00-00_10" {
		t.Errorf("LatestSession() = %q", latest)
	}
}

func TestLatestSessionEmpty(t *testing.T) {
	_, err := LatestSession(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, ErrNoSessions) {
		t.Errorf("LatestSession() error = %v, want ErrNoSessions", err)
	}
}

func TestOpenSessionManager(t *testing.T) {
	stateDir := t.TempDir()
	created, err := NewSessionManager(stateDir, testutil.QuietLogger())
	if err != nil {
		t.Fatal(err)
	}

	latest, err := OpenSessionManager(stateDir, "", testutil.QuietLogger())
	if err != nil {
		t.Fatalf("OpenSessionManager(latest) error = %v", err)
	}
	if latest.GetSessionDir() != created.GetSessionDir() {
		t.Errorf("opened %s, want %s", latest.GetSessionDir(), created.GetSessionDir())
	}

	if _, err := OpenSessionManager(stateDir, "../etc", testutil.QuietLogger()); err == nil {
		t.Error("OpenSessionManager should reject traversal")
	}
	if _, err := OpenSessionManager(stateDir, "session_1999-01-01T00-00-00", testutil.QuietLogger()); err == nil {
		t.Error("OpenSessionManager should fail for a missing session")
	}
}

func TestBackupConfig(t *testing.T) {
	sm, err := NewSessionManager(t.TempDir(), testutil.QuietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := sm.BackupConfig([]byte("[server]\n")); err != nil {
		t.Fatalf("BackupConfig() error = %v", err)
	}
	data, err := os.ReadFile(sm.GetConfigBackupPath())
	if err != nil || string(data) != "[server]\n" {
		t.Errorf("backup = %q, %v", data, err)
	}
}

package writer

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	sessionPrefix   = "session_"
	timestampLayout = "2006-01-02T15-04-05"

	resultsFilename = "results.jsonl"
	logFilename     = "session.log"
	configBackup    = "config.toml.bak"
)

// ErrNoSessions is returned when the state directory holds no session yet
var ErrNoSessions = errors.New("no sessions found")

// SessionManager manages one session directory under the state directory
type SessionManager struct {
	stateDir   string
	sessionDir string
	name       string
	logger     *slog.Logger
}

// NewSessionManager creates a fresh timestamped session directory
func NewSessionManager(stateDir string, logger *slog.Logger) (*SessionManager, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	base := sessionPrefix + time.Now().Format(timestampLayout)
	name := base
	for n := 2; ; n++ {
		err := os.Mkdir(filepath.Join(stateDir, name), 0755)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
		name = fmt.Sprintf("%s_%d", base, n)
	}

	sm := &SessionManager{
		stateDir:   stateDir,
		sessionDir: filepath.Join(stateDir, name),
		name:       name,
		logger:     logger,
	}
	logger.Debug("Created new session directory", "path", sm.sessionDir)
	return sm, nil
}

// OpenSessionManager opens an existing session. An empty name selects the latest one.
func OpenSessionManager(stateDir, name string, logger *slog.Logger) (*SessionManager, error) {
	if name == "" {
		latest, err := LatestSession(stateDir)
		if err != nil {
			return nil, err
		}
		name = latest
	}
	if err := ValidateSessionPath(stateDir, name); err != nil {
		return nil, err
	}

	sessionDir := filepath.Join(stateDir, name)
	info, err := os.Stat(sessionDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("session directory not found: %s", sessionDir)
	}

	logger.Debug("Opened existing session", "path", sessionDir)
	return &SessionManager{
		stateDir:   stateDir,
		sessionDir: sessionDir,
		name:       name,
		logger:     logger,
	}, nil
}

// ListSessions returns the session names under stateDir, oldest first
func ListSessions(stateDir string) ([]string, error) {
	entries, err := os.ReadDir(stateDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && sessionNameRegex.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool { return sessionLess(names[i], names[j]) })
	return names, nil
}

// LatestSession returns the most recently created session name
func LatestSession(stateDir string) (string, error) {
	names, err := ListSessions(stateDir)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoSessions, stateDir)
	}
	return names[len(names)-1], nil
}

// sessionLess orders by timestamp, then by collision suffix
func sessionLess(a, b string) bool {
	ta, na := splitSessionName(a)
	tb, nb := splitSessionName(b)
	if ta != tb {
		return ta < tb
	}
	return na < nb
}

func splitSessionName(name string) (string, int) {
	m := sessionNameRegex.FindStringSubmatch(name)
	if m == nil {
		return name, 0
	}
	n := 1
	if m[2] != "" {
		_, _ = fmt.Sscanf(m[2], "_%d", &n)
	}
	return m[1], n
}

// Name returns the session directory name
func (sm *SessionManager) Name() string {
	return sm.name
}

// GetSessionDir returns the session directory path
func (sm *SessionManager) GetSessionDir() string {
	return sm.sessionDir
}

// GetResultsPath returns the full path to the completed questions file
func (sm *SessionManager) GetResultsPath() string {
	return filepath.Join(sm.sessionDir, resultsFilename)
}

// GetLogPath returns the full path to the session log file
func (sm *SessionManager) GetLogPath() string {
	return filepath.Join(sm.sessionDir, logFilename)
}

// GetConfigBackupPath returns the full path to the config backup
func (sm *SessionManager) GetConfigBackupPath() string {
	return filepath.Join(sm.sessionDir, configBackup)
}

// BackupConfig writes the effective configuration next to the session state
func (sm *SessionManager) BackupConfig(data []byte) error {
	backupPath := sm.GetConfigBackupPath()
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config backup: %w", err)
	}
	sm.logger.Debug("Backed up config", "path", backupPath)
	return nil
}

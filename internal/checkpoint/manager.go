package checkpoint

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lamim/questionforge/pkg/models"
)

// StateFilename is the session state file inside a session directory
const StateFilename = "state.json"

// writeBufferSize bounds how many snapshots can wait for the writer
const writeBufferSize = 10

type pendingWrite struct {
	version uint64
	state   models.SessionState
}

// Manager persists session state with async write support. Writes are
// versioned so a slow write never replaces a newer state on disk.
type Manager struct {
	sessionDir string
	logger     *slog.Logger

	mu      sync.RWMutex
	latest  *models.SessionState
	version uint64
	closed  bool

	// Async write support
	writeChan   chan pendingWrite
	writeWg     sync.WaitGroup
	stopWriter  chan struct{}
	writerError error
	errorMu     sync.Mutex
	writeMu     sync.Mutex // Protects concurrent disk writes
	written     uint64
}

// NewManager creates a manager writing to sessionDir and starts its writer
func NewManager(sessionDir string, logger *slog.Logger) *Manager {
	m := &Manager{
		sessionDir: sessionDir,
		logger:     logger.With("component", "checkpoint"),
		writeChan:  make(chan pendingWrite, writeBufferSize),
		stopWriter: make(chan struct{}),
	}
	m.startAsyncWriter()
	return m
}

// SessionDir returns the directory state is written to
func (m *Manager) SessionDir() string {
	return m.sessionDir
}

// startAsyncWriter starts the background writer goroutine
func (m *Manager) startAsyncWriter() {
	m.writeWg.Add(1)
	go func() {
		defer m.writeWg.Done()
		for {
			select {
			case w := <-m.writeChan:
				m.recordError(m.writeStateToDisk(w))
			case <-m.stopWriter:
				// Drain remaining writes before stopping
				for len(m.writeChan) > 0 {
					m.recordError(m.writeStateToDisk(<-m.writeChan))
				}
				return
			}
		}
	}()
}

func (m *Manager) recordError(err error) {
	if err == nil {
		return
	}
	m.errorMu.Lock()
	m.writerError = err
	m.errorMu.Unlock()
	m.logger.Error("Failed to write session state", "error", err)
}

// writeStateToDisk performs the actual disk write. Versions older than the
// last written one are skipped.
func (m *Manager) writeStateToDisk(w pendingWrite) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if w.version <= m.written {
		return nil
	}

	data, err := json.MarshalIndent(w.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}

	// Atomic write: write to temp file, then rename
	statePath := filepath.Join(m.sessionDir, StateFilename)
	tempPath := statePath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp state: %w", err)
	}
	if err := os.Rename(tempPath, statePath); err != nil {
		return fmt.Errorf("failed to rename state file: %w", err)
	}

	m.written = w.version
	m.logger.Debug("Session state saved", "path", statePath, "status", w.state.Job.Status)
	return nil
}

// Save records state as the latest and queues it for writing
func (m *Manager) Save(state models.SessionState) error {
	w, ok := m.stage(state)
	if !ok {
		return fmt.Errorf("checkpoint manager is closed")
	}

	// Queue for async write (non-blocking if buffer has space)
	select {
	case m.writeChan <- w:
		return nil
	default:
		m.logger.Warn("State write buffer full, writing synchronously")
		return m.writeStateToDisk(w)
	}
}

// SaveSync writes the latest recorded state immediately
func (m *Manager) SaveSync() error {
	m.mu.Lock()
	if m.latest == nil {
		m.mu.Unlock()
		return nil
	}
	m.version++
	w := pendingWrite{version: m.version, state: *m.latest}
	m.mu.Unlock()

	return m.writeStateToDisk(w)
}

func (m *Manager) stage(state models.SessionState) (pendingWrite, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return pendingWrite{}, false
	}
	if state.LastSavedAt.IsZero() {
		state.LastSavedAt = time.Now()
	}
	state.Job = state.Job.Clone()
	m.latest = &state
	m.version++
	return pendingWrite{version: m.version, state: state}, true
}

// Latest returns a copy of the most recently saved state, or nil
func (m *Manager) Latest() *models.SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return nil
	}
	st := *m.latest
	st.Job = st.Job.Clone()
	return &st
}

// Load reads the session state of sessionDir
func Load(sessionDir string, logger *slog.Logger) (*models.SessionState, error) {
	statePath := filepath.Join(sessionDir, StateFilename)

	data, err := os.ReadFile(statePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}

	var st models.SessionState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session state: %w", err)
	}

	logger.Debug("Session state loaded",
		"session_id", st.SessionID,
		"job_id", st.Job.ID,
		"status", st.Job.Status)

	return &st, nil
}

// Close stops the writer, flushes pending writes and returns the last write error
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stopWriter)
	m.writeWg.Wait()

	m.errorMu.Lock()
	defer m.errorMu.Unlock()
	return m.writerError
}

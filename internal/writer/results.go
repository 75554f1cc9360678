package writer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/lamim/questionforge/pkg/models"
)

// ResultsWriter appends completed questions to the session's results file
type ResultsWriter struct {
	file   *os.File
	mu     sync.Mutex
	logger *slog.Logger
}

// NewResultsWriter opens the results file of sessionMgr for appending
func NewResultsWriter(sessionMgr *SessionManager, logger *slog.Logger) (*ResultsWriter, error) {
	path := sessionMgr.GetResultsPath()
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open results file: %w", err)
	}
	return &ResultsWriter{file: file, logger: logger}, nil
}

// WriteResult appends q as one JSON line
func (rw *ResultsWriter) WriteResult(q models.CompletedQuestion) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if _, err := rw.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	rw.logger.Info("Saved completed question", "job_id", q.JobID, "path", rw.file.Name())
	return nil
}

// Close syncs and closes the results file
func (rw *ResultsWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if err := rw.file.Sync(); err != nil {
		rw.logger.Warn("Failed to sync results file", "error", err)
	}
	if err := rw.file.Close(); err != nil {
		return fmt.Errorf("failed to close results file: %w", err)
	}
	return nil
}

// ReadResults loads every completed question from path. A missing file yields none.
func ReadResults(path string) ([]models.CompletedQuestion, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open results file: %w", err)
	}
	defer f.Close()

	var out []models.CompletedQuestion
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var q models.CompletedQuestion
		if err := json.Unmarshal(scanner.Bytes(), &q); err != nil {
			return nil, fmt.Errorf("failed to parse results line %d: %w", line, err)
		}
		out = append(out, q)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}
	return out, nil
}

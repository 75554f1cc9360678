package writer

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Session name format: session_2025-10-30T14-30-00, with _N appended on collision
var sessionNameRegex = regexp.MustCompile(`^session_(\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2})(_\d+)?$`)

// ValidateSessionPath checks that a user supplied session name refers to a
// directory directly inside stateDir.
func ValidateSessionPath(stateDir, sessionName string) error {
	if sessionName == "" {
		return fmt.Errorf("session name cannot be empty")
	}
	if strings.Contains(sessionName, "..") {
		return fmt.Errorf("invalid session name: contains '..' (path traversal attempt)")
	}
	if filepath.IsAbs(sessionName) {
		return fmt.Errorf("invalid session name: must be relative path")
	}
	if strings.ContainsAny(sessionName, "/\\") {
		return fmt.Errorf("invalid session name: must be directory name without path separators")
	}
	if !sessionNameRegex.MatchString(sessionName) {
		return fmt.Errorf("invalid session name format: expected 'session_YYYY-MM-DDTHH-MM-SS', got '%s'", sessionName)
	}

	absState, err := filepath.Abs(stateDir)
	if err != nil {
		return fmt.Errorf("failed to resolve state directory: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(stateDir, sessionName))
	if err != nil {
		return fmt.Errorf("failed to resolve session path: %w", err)
	}

	// Separator suffix so "/var/state" does not match "/var/state-other"
	if !strings.HasPrefix(absPath, absState+string(filepath.Separator)) {
		return fmt.Errorf("session path escapes state directory")
	}
	return nil
}

package config

import (
	"fmt"
	"net/url"
	"unicode"
)

const (
	// MaxTextFieldLength is the maximum allowed length for short form fields
	MaxTextFieldLength = 200

	// MaxTopicsListLength is the maximum allowed length for the topics list
	MaxTopicsListLength = 2000

	// MaxStateDirLength is the maximum allowed length for the state directory path
	MaxStateDirLength = 1024
)

// ValidateInputs performs additional validation on user-controllable fields.
// Text fields end up in multipart form values and on-disk session state.
func (c *Config) ValidateInputs() error {
	if err := validateBaseURL(c.Server.BaseURL); err != nil {
		return err
	}

	fields := []struct {
		name   string
		value  string
		maxLen int
	}{
		{"generation.academic_level", c.Generation.AcademicLevel, MaxTextFieldLength},
		{"generation.major", c.Generation.Major, MaxTextFieldLength},
		{"generation.course_name", c.Generation.CourseName, MaxTextFieldLength},
		{"generation.topics_list", c.Generation.TopicsList, MaxTopicsListLength},
		{"session.state_dir", c.Session.StateDir, MaxStateDirLength},
	}
	for _, f := range fields {
		if err := ValidateText(f.name, f.value, f.maxLen); err != nil {
			return err
		}
	}

	return nil
}

// ValidateText checks a free-text value for length and control characters
func ValidateText(name, value string, maxLen int) error {
	if len(value) > maxLen {
		return fmt.Errorf("%s exceeds maximum length of %d characters (got %d)", name, maxLen, len(value))
	}
	if containsControlChars(value) {
		return fmt.Errorf("%s contains invalid control characters", name)
	}
	return nil
}

// validateBaseURL checks that the base URL is properly formatted and safe
func validateBaseURL(baseURL string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid server.base_url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.base_url must use http or https scheme (got %s)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("server.base_url must have a host")
	}

	return nil
}

// containsControlChars checks if a string contains control characters
// (excluding newlines, tabs, and carriage returns which are acceptable)
func containsControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return true
		}
	}
	return false
}

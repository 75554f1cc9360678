package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError represents a failed request to the question service
type APIError struct {
	Message    string
	Detail     string // server-provided "detail" field, if any
	StatusCode int    // 0 for transport failures
	RequestID  string
	Retryable  bool
}

func (e *APIError) Error() string {
	msg := e.UserMessage()
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("API error: %s", msg)
}

// UserMessage prefers the server's own explanation over the generic transport text
func (e *APIError) UserMessage() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Message
}

// IsNotFound reports whether err is a 404 from the service
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsRetryable reports whether the request may succeed if repeated
func IsRetryable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Retryable
}

// UserMessage extracts the text to show for err
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	return err.Error()
}

// parseDetail pulls the "detail" field out of an error body.
// Non-string details (validation error lists) are returned as compact JSON.
func parseDetail(body []byte) string {
	var errResp struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil || len(errResp.Detail) == 0 {
		return ""
	}
	if bytes.Equal(errResp.Detail, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(errResp.Detail, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, errResp.Detail); err != nil {
		return string(errResp.Detail)
	}
	return buf.String()
}

func isStatusCodeRetryable(statusCode int) bool {
	// Retry on rate limits and server errors
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusInternalServerError ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}

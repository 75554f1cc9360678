package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lamim/questionforge/internal/backoff"
	"github.com/lamim/questionforge/pkg/models"
)

const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests
	DefaultHTTPTimeout = 120 * time.Second
	// DefaultMaxRetries is the default maximum number of retry attempts for idempotent requests
	DefaultMaxRetries = 3
	// DefaultBaseRetryDelay is the base delay for exponential backoff
	DefaultBaseRetryDelay = time.Second
	// DefaultRequestsPerMinute is the default client-side rate limit per endpoint group
	DefaultRequestsPerMinute = 120

	// maxResponseBytes bounds how much of a response body is read
	maxResponseBytes = 32 << 20

	requestIDHeader = "X-Request-ID"
)

// MetricsRecorder receives per-request measurements
type MetricsRecorder interface {
	RecordAPIRequest(endpoint string, duration time.Duration, outcome string)
	RecordRateLimiterWait(endpoint string, duration time.Duration)
}

// Options configures a Client
type Options struct {
	BaseURL           string
	APIKey            string
	HTTPTimeout       time.Duration
	RequestsPerMinute int
	MaxRetries        int
	BaseRetryDelay    time.Duration
	MaxBackoff        time.Duration
}

// Client talks to the question-generation service
type Client struct {
	baseURL           string
	apiKey            string
	httpClient        *http.Client
	rateLimiterPool   *RateLimiterPool
	requestsPerMinute int
	maxRetries        int
	retryBackoff      backoff.Config
	metrics           MetricsRecorder
	logger            *slog.Logger
}

// NewClient creates a new API client
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.HTTPTimeout < 0 {
		opts.HTTPTimeout = DefaultHTTPTimeout
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.BaseRetryDelay <= 0 {
		opts.BaseRetryDelay = DefaultBaseRetryDelay
	}

	logger = logger.With("component", "api")
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		httpClient: &http.Client{
			Timeout: opts.HTTPTimeout,
		},
		rateLimiterPool:   NewRateLimiterPool(logger),
		requestsPerMinute: opts.RequestsPerMinute,
		maxRetries:        opts.MaxRetries,
		retryBackoff: backoff.Config{
			Initial: opts.BaseRetryDelay,
			Max:     opts.MaxBackoff,
			Jitter:  0.1,
		},
		logger: logger,
	}
}

// SetMetrics attaches a metrics recorder
func (c *Client) SetMetrics(m MetricsRecorder) {
	c.metrics = m
}

// BaseURL returns the service root this client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SubmitJob uploads the document at filePath together with the form fields.
// The upload is streamed and never retried: a repeat could create a second job.
func (c *Client) SubmitJob(ctx context.Context, filePath string, params models.GenerationParams) (*SubmitResponse, error) {
	if err := c.waitForLimiter(ctx, EndpointSubmit); err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeSubmitForm(mw, file, filepath.Base(filePath), params))
	}()

	var resp SubmitResponse
	err = c.do(ctx, EndpointSubmit, http.MethodPost, "/generate-questions", pr, mw.FormDataContentType(), &resp)
	// Unblock the writer goroutine if the request ended before reading the whole body
	_ = pr.Close()
	if err != nil {
		return nil, err
	}
	if resp.JobID == "" {
		return nil, &APIError{Message: "server accepted the upload but returned no job_id"}
	}
	return &resp, nil
}

// writeSubmitForm writes the file part and every form field, then closes mw
func writeSubmitForm(mw *multipart.Writer, file io.Reader, filename string, p models.GenerationParams) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	h.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to copy document: %w", err)
	}

	for _, f := range FormFields(p) {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}
	return mw.Close()
}

// FormFields returns the multipart fields for p in submission order
func FormFields(p models.GenerationParams) [][2]string {
	return [][2]string{
		{"academic_level", p.AcademicLevel},
		{"major", p.Major},
		{"course_name", p.CourseName},
		{"taxonomy_level", p.TaxonomyLevel},
		{"marks_for_question", p.MarksForQuestion},
		{"topics_list", p.TopicsList},
		{"retrieval_limit_generation", strconv.Itoa(p.RetrievalLimitGeneration)},
		{"similarity_threshold_generation", strconv.FormatFloat(p.SimilarityThresholdGeneration, 'f', -1, 64)},
		{"generate_diagrams", strconv.FormatBool(p.GenerateDiagrams)},
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

type singleAttemptKey struct{}

// SingleAttempt marks ctx so that GetJobStatus sends exactly one request.
// Callers that run their own backoff between fetches use it.
func SingleAttempt(ctx context.Context) context.Context {
	return context.WithValue(ctx, singleAttemptKey{}, true)
}

// GetJobStatus fetches the current (possibly partial) snapshot of a job.
// Retryable failures are retried with exponential backoff unless ctx carries
// SingleAttempt; a 404 is returned immediately.
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (models.Snapshot, error) {
	var snap models.Snapshot
	path := "/job-status/" + url.PathEscape(jobID)

	if single, _ := ctx.Value(singleAttemptKey{}).(bool); single {
		if err := c.waitForLimiter(ctx, EndpointStatus); err != nil {
			return snap, err
		}
		err := c.do(ctx, EndpointStatus, http.MethodGet, path, nil, "", &snap)
		return snap, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoff.Exponential(attempt, &c.retryBackoff)
			c.logger.Warn("Retrying status request",
				"job_id", jobID,
				"attempt", attempt,
				"max_retries", c.maxRetries,
				"backoff", delay,
				"error", lastErr)

			select {
			case <-ctx.Done():
				return snap, ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.waitForLimiter(ctx, EndpointStatus); err != nil {
			return snap, err
		}

		err := c.do(ctx, EndpointStatus, http.MethodGet, path, nil, "", &snap)
		if err == nil {
			return snap, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return snap, err
		}
	}

	return snap, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// RegenerateQuestion asks the service for a new question using the feedback
func (c *Client) RegenerateQuestion(ctx context.Context, jobID, feedback string) (models.Snapshot, error) {
	var snap models.Snapshot
	path := "/regenerate-question/" + url.PathEscape(jobID)
	err := c.postJSON(ctx, EndpointRegenerate, path, RegenerateRequest{UserFeedback: feedback}, &snap)
	return snap, err
}

// FinalizeQuestion accepts question as the job's final result
func (c *Client) FinalizeQuestion(ctx context.Context, jobID, question string) (models.Snapshot, error) {
	var snap models.Snapshot
	path := "/finalize-question/" + url.PathEscape(jobID)
	err := c.postJSON(ctx, EndpointFinalize, path, FinalizeRequest{FinalQuestion: question}, &snap)
	return snap, err
}

func (c *Client) postJSON(ctx context.Context, endpoint, path string, body any, out any) error {
	if err := c.waitForLimiter(ctx, endpoint); err != nil {
		return err
	}

	buf := getBuffer()
	defer putBuffer(buf)
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	return c.do(ctx, endpoint, http.MethodPost, path, buf, "application/json", out)
}

func (c *Client) waitForLimiter(ctx context.Context, endpoint string) error {
	start := time.Now()
	err := c.rateLimiterPool.Wait(ctx, endpoint, c.requestsPerMinute)
	if c.metrics != nil {
		c.metrics.RecordRateLimiterWait(endpoint, time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}
	return nil
}

// do sends one request and decodes a 2xx JSON response into out
func (c *Client) do(ctx context.Context, endpoint, method, path string, body io.Reader, contentType string, out any) (err error) {
	start := time.Now()
	requestID := uuid.New().String()
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordAPIRequest(endpoint, time.Since(start), outcomeLabel(err))
		}
	}()

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(requestIDHeader, requestID)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("API request", "method", method, "path", path, "request_id", requestID)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &APIError{
			Message:   fmt.Sprintf("request failed: %v", err),
			RequestID: requestID,
			Retryable: true,
		}
	}
	defer func() {
		if cerr := httpResp.Body.Close(); cerr != nil {
			c.logger.Warn("Failed to close response body", "error", cerr)
		}
	}()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return &APIError{
			Message:    fmt.Sprintf("failed to read response: %v", err),
			StatusCode: httpResp.StatusCode,
			RequestID:  requestID,
			Retryable:  true,
		}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return &APIError{
			Message:    fmt.Sprintf("request failed with status code %d", httpResp.StatusCode),
			Detail:     parseDetail(respBody),
			StatusCode: httpResp.StatusCode,
			RequestID:  requestID,
			Retryable:  isStatusCodeRetryable(httpResp.StatusCode),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &APIError{
			Message:    fmt.Sprintf("failed to parse response: %v", err),
			StatusCode: httpResp.StatusCode,
			RequestID:  requestID,
			Retryable:  true,
		}
	}
	return nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsNotFound(err):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

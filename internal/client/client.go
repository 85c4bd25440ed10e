// Package client provides an HTTP client for the job-automation platform's
// jobs API. It covers the calls the console needs around schedules: listing
// jobs, fetching one job and patching its cron expression.
//
// The client uses hashicorp/go-retryablehttp for automatic retry with linear
// jitter backoff, so transient network errors and 5xx responses do not
// surface to the schedule editor.
//
// Usage:
//
//	c := client.NewClient("https://jobs.example.com", "project-id", logger)
//	c.SetAPIKey(apiKey)
//	jobs, err := c.ListJobs(ctx)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doughall/jobconsole/internal/version"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

// Errors mapped from API status codes.
var (
	ErrNotFound     = errors.New("job not found")
	ErrUnauthorized = errors.New("unauthorized: check api_key")
	ErrNoAPIKey     = errors.New("api key not set: call SetAPIKey first")
)

// StatusError is returned for unexpected non-2xx responses.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s failed with status %d", e.Method, e.Path, e.StatusCode)
}

// Client talks to the jobs API.
type Client struct {
	httpClient *http.Client
	serverURL  string
	projectID  string
	apiKey     string
	logger     *slog.Logger
}

// NewClient creates a new Client configured with retryable HTTP settings.
//
// The client is configured with:
//   - RetryMax: 3 retries
//   - RetryWaitMin: 1 second
//   - RetryWaitMax: 10 seconds
//   - Backoff: Linear jitter
//   - Timeout: 30 seconds per request
func NewClient(serverURL, projectID string, logger *slog.Logger) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Backoff = retryablehttp.LinearJitterBackoff

	// retryablehttp's own logger is replaced by slog request logging below
	retryClient.Logger = nil
	retryClient.HTTPClient.Timeout = 30 * time.Second

	return newClient(retryClient.StandardClient(), serverURL, projectID, logger)
}

// NewClientWithHTTP creates a Client on top of an existing http.Client,
// without retries. Used by tests and callers with their own transport.
func NewClientWithHTTP(httpClient *http.Client, serverURL, projectID string, logger *slog.Logger) *Client {
	return newClient(httpClient, serverURL, projectID, logger)
}

func newClient(httpClient *http.Client, serverURL, projectID string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		serverURL:  strings.TrimSuffix(serverURL, "/"),
		projectID:  projectID,
		logger:     logger.With(slog.String("component", "client")),
	}
}

// SetAPIKey sets the API key used as Bearer token.
func (c *Client) SetAPIKey(key string) {
	c.apiKey = key
}

// ServerURL returns the base URL the client was created with.
func (c *Client) ServerURL() string {
	return c.serverURL
}

// jobsPath returns /api/projects/{project}/jobs with an optional job suffix.
func (c *Client) jobsPath(jobID string) string {
	p := "/api/projects/" + url.PathEscape(c.projectID) + "/jobs"
	if jobID != "" {
		p += "/" + url.PathEscape(jobID)
	}
	return p
}

// doJSON sends body (if any) as JSON and decodes a 2xx response into out
// (if non-nil). Non-2xx responses are mapped to ErrNotFound, ErrUnauthorized
// or a *StatusError.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	if c.apiKey == "" {
		return ErrNoAPIKey
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("api request",
		slog.String("method", method),
		slog.String("path", path),
		slog.String("request_id", requestID),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(method, path, resp)
	}

	if out == nil {
		// Drain body to allow connection reuse
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// apiError is the JSON error body returned by the API.
type apiError struct {
	Error string `json:"error"`
}

func (c *Client) statusError(method, path string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	}

	var body apiError
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: msg}
}

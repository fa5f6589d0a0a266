// Package client provides the HTTP client for the assistant backend.
//
// The backend exposes a small REST surface:
//   - POST /api/start and POST /api/stop toggle the assistant session
//   - GET /api/system-info returns host resource gauges as display strings
//   - GET /api/status reports whether a session is running
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/voxdash/voxctl/internal/buildinfo"
)

const (
	// DefaultBaseURL is the default backend origin.
	DefaultBaseURL = "http://localhost:5000"
	// DefaultTimeout bounds every request so a hung backend cannot stall the poll loop.
	DefaultTimeout = 10 * time.Second

	// maxErrorBody caps how much of a failed response is kept in StatusError.
	maxErrorBody = 4 << 10
)

// Client is the assistant backend API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// SystemInfo holds the backend's resource gauges. Each field is a
// preformatted display string; an empty field was absent or not a string.
type SystemInfo struct {
	CPUUsage        string `json:"cpu_usage,omitempty"`
	MemoryUsage     string `json:"memory_usage,omitempty"`
	DiskUsage       string `json:"disk_usage,omitempty"`
	AvailableMemory string `json:"available_memory,omitempty"`
}

// AssistantStatus is the backend's view of the session.
type AssistantStatus struct {
	IsRunning bool   `json:"is_running"`
	Status    string `json:"status"`
}

// CommandResponse is the acknowledgement body of start/stop.
type CommandResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed with status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Message returns the backend's "message" field when the body carries one.
func (e *StatusError) Message() string {
	var resp CommandResponse
	if err := json.Unmarshal([]byte(e.Body), &resp); err != nil {
		return ""
	}

	return resp.Message
}

// New creates a client for baseURL with an instrumented transport.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return NewWithHTTPClient(baseURL, &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
}

// NewWithHTTPClient creates a client using the given http.Client.
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Start asks the backend to begin listening.
func (c *Client) Start(ctx context.Context) error {
	return c.command(ctx, "start assistant", "/api/start")
}

// Stop asks the backend to end the session.
func (c *Client) Stop(ctx context.Context) error {
	return c.command(ctx, "stop assistant", "/api/stop")
}

func (c *Client) command(ctx context.Context, operation, path string) error {
	resp, err := c.do(ctx, http.MethodPost, path)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return unexpectedStatus(operation, resp)
	}

	// The acknowledgement body carries nothing the caller needs.
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// SystemInfo fetches the current resource gauges.
//
// Fields are decoded independently: a missing, null or non-string field is
// left empty without failing the others. A body that is not a JSON object
// is an error.
func (c *Client) SystemInfo(ctx context.Context) (SystemInfo, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/system-info")
	if err != nil {
		return SystemInfo{}, fmt.Errorf("fetch system info: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return SystemInfo{}, unexpectedStatus("fetch system info", resp)
	}

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&fields); err != nil {
		return SystemInfo{}, fmt.Errorf("failed to parse system info: %w", err)
	}

	if fields == nil {
		return SystemInfo{}, errors.New("failed to parse system info: body is not a JSON object")
	}

	return SystemInfo{
		CPUUsage:        stringField(fields, "cpu_usage"),
		MemoryUsage:     stringField(fields, "memory_usage"),
		DiskUsage:       stringField(fields, "disk_usage"),
		AvailableMemory: stringField(fields, "available_memory"),
	}, nil
}

// Status fetches the backend's session state.
func (c *Client) Status(ctx context.Context) (AssistantStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/status")
	if err != nil {
		return AssistantStatus{}, fmt.Errorf("fetch status: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return AssistantStatus{}, unexpectedStatus("fetch status", resp)
	}

	var status AssistantStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return AssistantStatus{}, fmt.Errorf("failed to parse status: %w", err)
	}

	return status, nil
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	return c.httpClient.Do(req)
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}

	return s
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

// unexpectedStatus drains a failed response into a StatusError.
func unexpectedStatus(operation string, resp *http.Response) error {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if readErr != nil {
		return &StatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Body:       fmt.Sprintf("(failed to read body: %v)", readErr),
		}
	}

	return &StatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// Package errors provides structured CLI error types for voxctl.
//
// CLIError wraps errors with user-facing messages, hints, and exit codes
// to provide consistent, actionable error output across all commands.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Exit codes for CLI errors.
const (
	ExitSuccess = 0  // Successful execution
	ExitGeneral = 1  // General error
	ExitNetwork = 3  // Network/API error
	ExitConfig  = 4  // Configuration error
	ExitTimeout = 5  // Request timeout
	ExitState   = 6  // Command not valid in the current session state
	ExitUsage   = 64 // Command line usage error (BSD convention)
)

// CLIError represents a user-facing CLI error with actionable guidance.
type CLIError struct {
	// Message is the primary error message shown to the user.
	Message string

	// Hint provides actionable guidance on how to fix the error.
	Hint string

	// Cause is the underlying error, if any.
	Cause error

	// Code is the exit code for the CLI.
	Code int
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}

	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// New creates a new CLIError with the given message and exit code.
func New(code int, message string) *CLIError {
	return &CLIError{
		Message: message,
		Code:    code,
	}
}

// Wrap wraps an existing error with a CLIError.
func Wrap(code int, message string, cause error) *CLIError {
	return &CLIError{
		Message: message,
		Cause:   cause,
		Code:    code,
	}
}

// WithHint adds a hint to the error.
func (e *CLIError) WithHint(hint string) *CLIError {
	e.Hint = hint
	return e
}

// As is a convenience function for errors.As with CLIError.
func As(err error, target **CLIError) bool {
	return errors.As(err, target)
}

// --- Common error constructors ---

// BackendUnreachable returns an error when the assistant backend cannot be reached.
func BackendUnreachable(apiURL string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Cannot reach assistant backend at %s", apiURL),
		Hint:    "Check that the backend is running, or point voxctl at it with --api-url / 'voxctl config set api.url <url>'",
		Cause:   cause,
		Code:    ExitNetwork,
	}
}

// CommandFailed classifies a failed start/stop/status request.
func CommandFailed(operation, apiURL string, cause error) *CLIError {
	switch {
	case isTimeout(cause):
		return &CLIError{
			Message: fmt.Sprintf("Timed out waiting for backend to %s", operation),
			Hint:    "The backend may be busy; retry, or raise api.timeout",
			Cause:   cause,
			Code:    ExitTimeout,
		}
	case isNetwork(cause):
		return BackendUnreachable(apiURL, cause)
	case containsAny(errorText(cause), "already running"):
		return AlreadyRunning()
	default:
		return &CLIError{
			Message: fmt.Sprintf("Backend refused to %s", operation),
			Hint:    "Run 'voxctl doctor' or check the backend logs",
			Cause:   cause,
			Code:    ExitGeneral,
		}
	}
}

// AlreadyRunning returns an error when start is issued while a session is active.
func AlreadyRunning() *CLIError {
	return &CLIError{
		Message: "Assistant is already running",
		Hint:    "Run 'voxctl stop' first",
		Code:    ExitState,
	}
}

// NotRunning returns an error when stop is issued with no active session.
func NotRunning() *CLIError {
	return &CLIError{
		Message: "Assistant is not running",
		Hint:    "Run 'voxctl start' to begin a session",
		Code:    ExitState,
	}
}

// StreamUnavailable returns an error when the push channel cannot be opened.
func StreamUnavailable(eventsURL string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Cannot open event stream at %s", eventsURL),
		Hint:    "Check events.url, or that the backend exposes its WebSocket endpoint",
		Cause:   cause,
		Code:    ExitNetwork,
	}
}

// ConfigFailed returns an error for configuration save failures.
func ConfigFailed(operation string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Failed to %s", operation),
		Hint:    "Check file permissions for your voxctl config directory or run 'voxctl doctor'",
		Cause:   cause,
		Code:    ExitConfig,
	}
}

// SessionNotFound returns an error for an unknown history session.
func SessionNotFound(sessionID string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("History session not found: %s", sessionID),
		Hint:    "Run 'voxctl history list' to see recorded sessions",
		Code:    ExitGeneral,
	}
}

// InvalidDuration returns an error for an unparseable duration flag.
func InvalidDuration(flag string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Invalid duration for %s", flag),
		Hint:    "Use Go duration syntax such as 90s, 15m or 168h",
		Cause:   cause,
		Code:    ExitUsage,
	}
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}

func isNetwork(err error) bool {
	if err == nil {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	return containsAny(err.Error(), "connection refused", "no such host", "connection reset")
}

func errorText(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}

// containsAny checks if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrings {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}

	return false
}

// Package doctor provides diagnostic checks for voxctl.
//
// This package implements a check framework that validates:
//   - Backend API reachability and response time
//   - The shape of the system-info endpoint
//   - The push event stream
//   - Configuration and the history directory
package doctor

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/voxdash/voxctl/internal/buildinfo"
	"github.com/voxdash/voxctl/internal/client"
	"github.com/voxdash/voxctl/internal/dashboard"
)

// Status represents the result of a diagnostic check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical failure.
	StatusFail
)

// Result holds the outcome of a single check.
type Result struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"` // Optional additional detail
}

// Check is a diagnostic check function.
type Check func(ctx context.Context) Result

// Backend is the REST surface the checks probe.
type Backend interface {
	Status(ctx context.Context) (client.AssistantStatus, error)
	SystemInfo(ctx context.Context) (client.SystemInfo, error)
}

// Prober opens and closes the push channel at URL.
type Prober interface {
	Probe(ctx context.Context) error
	URL() string
}

// Options carries what the default checks inspect.
type Options struct {
	APIURL         string
	Backend        Backend
	Stream         Prober
	ConfigFile     string
	HistoryEnabled bool
	HistoryDir     string
}

// Runner executes diagnostic checks.
type Runner struct {
	checks []namedCheck
}

type namedCheck struct {
	name  string
	check Check
}

// New creates a diagnostic runner with the default checks.
func New(opts Options) *Runner {
	r := &Runner{}

	r.AddCheck("Configuration", func(context.Context) Result { return checkConfig(opts) })
	r.AddCheck("Backend API", func(ctx context.Context) Result { return checkBackend(ctx, opts) })
	r.AddCheck("System Info", func(ctx context.Context) Result { return checkSystemInfo(ctx, opts) })
	r.AddCheck("Event Stream", func(ctx context.Context) Result { return checkStream(ctx, opts) })
	r.AddCheck("History", func(context.Context) Result { return checkHistory(opts) })
	r.AddCheck("CLI Version", checkCLIVersion)

	return r
}

// AddCheck registers a diagnostic check.
func (r *Runner) AddCheck(name string, check Check) {
	r.checks = append(r.checks, namedCheck{name: name, check: check})
}

// Run executes all registered checks and returns the results.
func (r *Runner) Run(ctx context.Context) []Result {
	results := make([]Result, 0, len(r.checks))

	for _, nc := range r.checks {
		result := nc.check(ctx)
		result.Name = nc.name
		results = append(results, result)
	}

	return results
}

// Summary returns counts of passed, failed, and warning checks.
func Summary(results []Result) (passed, failed, warnings int) {
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			passed++
		case StatusFail:
			failed++
		case StatusWarn:
			warnings++
		}
	}

	return passed, failed, warnings
}

func checkConfig(opts Options) Result {
	u, err := url.Parse(opts.APIURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return Result{
			Status:  StatusFail,
			Message: fmt.Sprintf("Invalid api.url %q", opts.APIURL),
			Detail:  "Set an http(s) origin with 'voxctl config set api.url http://host:5000'",
		}
	}

	if opts.ConfigFile == "" {
		return Result{Status: StatusPass, Message: "Built-in defaults (no config file)"}
	}

	return Result{Status: StatusPass, Message: opts.ConfigFile}
}

// checkBackend tests the status endpoint and reports latency.
func checkBackend(ctx context.Context, opts Options) Result {
	start := time.Now()
	status, err := opts.Backend.Status(ctx)
	elapsed := time.Since(start)

	if err != nil {
		return Result{
			Status:  StatusFail,
			Message: opts.APIURL,
			Detail:  err.Error(),
		}
	}

	state := "idle"
	if status.IsRunning {
		state = "running"
	}

	return Result{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s (%dms, %s)", opts.APIURL, elapsed.Milliseconds(), state),
	}
}

// checkSystemInfo reports gauges the backend leaves out. Missing gauges render as N/A.
func checkSystemInfo(ctx context.Context, opts Options) Result {
	info, err := opts.Backend.SystemInfo(ctx)
	if err != nil {
		return Result{
			Status:  StatusWarn,
			Message: "Could not fetch /api/system-info",
			Detail:  err.Error(),
		}
	}

	snapshot := dashboard.SnapshotFromInfo(info)

	var missing []string

	for _, g := range dashboard.Gauges {
		if snapshot.Value(g) == "" {
			missing = append(missing, g.Label())
		}
	}

	if len(missing) > 0 {
		return Result{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%d of %d gauges missing", len(missing), len(dashboard.Gauges)),
			Detail:  strings.Join(missing, ", ") + " will show " + dashboard.NotAvailable,
		}
	}

	return Result{
		Status:  StatusPass,
		Message: fmt.Sprintf("CPU %s, memory %s", snapshot.CPUUsage, snapshot.MemoryUsage),
	}
}

func checkStream(ctx context.Context, opts Options) Result {
	if err := opts.Stream.Probe(ctx); err != nil {
		return Result{
			Status:  StatusFail,
			Message: opts.Stream.URL(),
			Detail:  err.Error(),
		}
	}

	return Result{Status: StatusPass, Message: opts.Stream.URL()}
}

// checkHistory verifies the history directory is writable.
func checkHistory(opts Options) Result {
	if !opts.HistoryEnabled {
		return Result{Status: StatusPass, Message: "Disabled"}
	}

	if opts.HistoryDir == "" {
		return Result{
			Status:  StatusWarn,
			Message: "No history directory",
			Detail:  "Set history.dir or XDG_STATE_HOME",
		}
	}

	if err := os.MkdirAll(opts.HistoryDir, 0o700); err != nil {
		return Result{Status: StatusFail, Message: opts.HistoryDir, Detail: err.Error()}
	}

	f, err := os.CreateTemp(opts.HistoryDir, ".doctor-*")
	if err != nil {
		return Result{Status: StatusFail, Message: opts.HistoryDir, Detail: err.Error()}
	}

	_ = f.Close()
	_ = os.Remove(f.Name())

	return Result{Status: StatusPass, Message: opts.HistoryDir}
}

func checkCLIVersion(context.Context) Result {
	if buildinfo.Version == "dev" {
		return Result{
			Status:  StatusWarn,
			Message: "Development build",
		}
	}

	return Result{
		Status:  StatusPass,
		Message: "v" + buildinfo.Version,
	}
}

// RenderResults formats diagnostic results to the given output writer.
func RenderResults(results []Result, printFn, successFn, warningFn, failureFn, mutedFn func(format string, args ...any)) {
	maxNameLen := 0
	for _, r := range results {
		if len(r.Name) > maxNameLen {
			maxNameLen = len(r.Name)
		}
	}

	for _, r := range results {
		symbol := r.Status.Symbol()
		padding := maxNameLen - len(r.Name) + 4

		switch r.Status {
		case StatusPass:
			successFn("%-*s%s", len(r.Name)+padding, r.Name, r.Message)
		case StatusWarn:
			warningFn("%-*s%s", len(r.Name)+padding, r.Name, r.Message)
		case StatusFail:
			failureFn("%-*s%s", len(r.Name)+padding, r.Name, r.Message)
		default:
			printFn("%s %-*s%s\n", symbol, len(r.Name)+padding, r.Name, r.Message)
		}

		if r.Detail != "" {
			mutedFn("    %s", r.Detail)
		}
	}
}

// Symbol returns the status symbol for display.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return checkMark
	case StatusWarn:
		return warningMark
	case StatusFail:
		return xMark
	default:
		return "?"
	}
}

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name in JSON output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names written by MarshalText.
func (s *Status) UnmarshalText(text []byte) error {
	for _, candidate := range []Status{StatusPass, StatusWarn, StatusFail} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}

	return fmt.Errorf("unknown doctor status %q", text)
}

const (
	checkMark   = "\u2713" // ✓
	xMark       = "\u2717" // ✗
	warningMark = "\u26A0" // ⚠
)

package main

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	clierrors "github.com/voxdash/voxctl/internal/errors"
	"github.com/voxdash/voxctl/internal/mockbackend"
	"github.com/voxdash/voxctl/internal/testutil"
)

// startBackend serves a mock assistant backend and points voxctl at it.
func startBackend(t *testing.T, opts mockbackend.Options) *mockbackend.Server {
	t.Helper()
	isolateEnv(t)

	backend := mockbackend.New(opts)
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(func() {
		backend.Close()
		srv.Close()
	})

	t.Setenv("VOXCTL_API_URL", srv.URL)

	return backend
}

func TestStartStop_RoundTrip(t *testing.T) {
	backend := startBackend(t, mockbackend.Options{})

	out, buf := testWriter()
	if err := runWith(t, out, newStartCmd); err != nil {
		t.Fatalf("start should succeed: %v", err)
	}

	if got := buf.String(); got != "Starting assistant... done\n✓ Assistant started\n" {
		t.Errorf("start output = %q", got)
	}

	if !backend.Running() {
		t.Fatal("backend should be running after start")
	}

	out, buf = testWriter()
	if err := runWith(t, out, newStopCmd); err != nil {
		t.Fatalf("stop should succeed: %v", err)
	}

	if got := buf.String(); got != "Stopping assistant... done\n✓ Assistant stopped\n" {
		t.Errorf("stop output = %q", got)
	}

	if backend.Running() {
		t.Fatal("backend should be idle after stop")
	}
}

func TestStart_AlreadyRunning(t *testing.T) {
	startBackend(t, mockbackend.Options{})

	out, _ := testWriter()
	if err := runWith(t, out, newStartCmd); err != nil {
		t.Fatalf("first start should succeed: %v", err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{name: "state check", args: nil},
		{name: "forced request rejected by backend", args: []string{"--force"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := testWriter()
			err := runWith(t, out, newStartCmd, tt.args...)

			var cliErr *clierrors.CLIError
			if !clierrors.As(err, &cliErr) {
				t.Fatalf("expected CLIError, got %T: %v", err, err)
			}

			if cliErr.Code != clierrors.ExitState {
				t.Errorf("exit code = %d, want %d", cliErr.Code, clierrors.ExitState)
			}

			if !strings.Contains(cliErr.Message, "already running") {
				t.Errorf("message = %q", cliErr.Message)
			}
		})
	}
}

func TestStop_NotRunning(t *testing.T) {
	startBackend(t, mockbackend.Options{})

	out, _ := testWriter()
	err := runWith(t, out, newStopCmd)

	var cliErr *clierrors.CLIError
	if !clierrors.As(err, &cliErr) {
		t.Fatalf("expected CLIError, got %T: %v", err, err)
	}

	if cliErr.Code != clierrors.ExitState || !strings.Contains(cliErr.Hint, "voxctl start") {
		t.Errorf("err = %+v, want NotRunning", cliErr)
	}

	// The backend accepts stop in any state, so --force goes through.
	out, _ = testWriter()
	if err := runWith(t, out, newStopCmd, "-f"); err != nil {
		t.Fatalf("forced stop should succeed: %v", err)
	}
}

func TestStart_JSON(t *testing.T) {
	startBackend(t, mockbackend.Options{})

	out, buf := testWriter()
	out.JSON = true

	if err := runWith(t, out, newStartCmd); err != nil {
		t.Fatalf("start should succeed: %v", err)
	}

	var result CommandResult
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}

	if result != (CommandResult{Command: "start", Success: true, Running: true}) {
		t.Errorf("result = %+v", result)
	}
}

func TestStart_BackendUnreachable(t *testing.T) {
	isolateEnv(t)

	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	t.Setenv("VOXCTL_API_URL", url)

	out, _ := testWriter()
	err := runWith(t, out, newStartCmd)

	var cliErr *clierrors.CLIError
	if !clierrors.As(err, &cliErr) {
		t.Fatalf("expected CLIError, got %T: %v", err, err)
	}

	if cliErr.Code != clierrors.ExitNetwork {
		t.Errorf("exit code = %d, want %d", cliErr.Code, clierrors.ExitNetwork)
	}
}

func TestStatus(t *testing.T) {
	startBackend(t, mockbackend.Options{})

	out, buf := testWriter()
	if err := runWith(t, out, newStatusCmd); err != nil {
		t.Fatalf("status should succeed: %v", err)
	}

	for _, want := range []string{"Assistant  stopped\n", "Status     idle\n"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("status output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestSysinfo_PartialSnapshot_Golden(t *testing.T) {
	startBackend(t, mockbackend.Options{
		SystemInfo: func() any {
			return map[string]any{
				"cpu_usage":    "12.5%",
				"memory_usage": nil,
				"disk_usage":   "71.0%",
			}
		},
	})

	out, buf := testWriter()
	if err := runWith(t, out, newSysinfoCmd); err != nil {
		t.Fatalf("sysinfo should succeed: %v", err)
	}

	testutil.AssertGolden(t, buf.String(), "sysinfo_partial.golden")
}

func TestSysinfo_JSONFillsPlaceholders(t *testing.T) {
	startBackend(t, mockbackend.Options{
		SystemInfo: func() any { return map[string]any{"cpu_usage": "3.0%"} },
	})

	out, buf := testWriter()
	out.JSON = true

	if err := runWith(t, out, newSysinfoCmd); err != nil {
		t.Fatalf("sysinfo should succeed: %v", err)
	}

	var got map[string]string
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}

	if got["cpu_usage"] != "3.0%" || got["available_memory"] != "N/A" {
		t.Errorf("sysinfo json = %v", got)
	}
}

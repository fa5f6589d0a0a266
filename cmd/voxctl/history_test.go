package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/voxdash/voxctl/internal/dashboard"
	clierrors "github.com/voxdash/voxctl/internal/errors"
	"github.com/voxdash/voxctl/internal/history"
)

// recordSession writes a closed session with the given messages.
func recordSession(t *testing.T, dir, sessionID string, msgs ...dashboard.LogMessage) {
	t.Helper()

	rec, err := history.NewRecorder(history.Options{SessionID: sessionID, Dir: dir, APIURL: "http://localhost:5000"})
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	for _, msg := range msgs {
		if err := rec.Append(msg); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func historyFixture(t *testing.T) string {
	t.Helper()

	dir := filepath.Join(isolateEnv(t), "history")
	t.Setenv("VOXCTL_HISTORY_DIR", dir)

	at := time.Date(2026, 3, 14, 14, 30, 1, 0, time.Local)

	recordSession(t, dir, "3f2a9c1e-0000-4000-8000-000000000001",
		dashboard.LogMessage{Type: dashboard.MessageSystem, Content: "Voice assistant started!", Timestamp: at},
		dashboard.LogMessage{Type: dashboard.MessageUser, Content: "Open Chrome", Timestamp: at.Add(4 * time.Second)},
		dashboard.LogMessage{Type: dashboard.MessageAssistant, Content: "Opening Chrome", Timestamp: at.Add(5 * time.Second)},
	)

	return dir
}

func TestHistoryView_ByPrefix(t *testing.T) {
	historyFixture(t)

	out, buf := testWriter()
	if err := runWith(t, out, newHistoryViewCmd, "3f2a"); err != nil {
		t.Fatalf("history view should succeed: %v", err)
	}

	want := "[14:30:01] system: Voice assistant started!\n" +
		"[14:30:05] user: Open Chrome\n" +
		"[14:30:06] assistant: Opening Chrome\n"

	if got := buf.String(); got != want {
		t.Errorf("history view =\n%s\nwant:\n%s", got, want)
	}
}

func TestHistoryView_Search(t *testing.T) {
	historyFixture(t)

	out, buf := testWriter()
	if err := runWith(t, out, newHistoryViewCmd, "3f2a", "--search", "chrome"); err != nil {
		t.Fatalf("history view should succeed: %v", err)
	}

	if got := strings.Count(buf.String(), "\n"); got != 2 {
		t.Errorf("search matched %d lines, want 2:\n%s", got, buf.String())
	}
}

func TestHistoryView_UnknownSession(t *testing.T) {
	historyFixture(t)

	out, _ := testWriter()
	err := runWith(t, out, newHistoryViewCmd, "ffff")

	var cliErr *clierrors.CLIError
	if !clierrors.As(err, &cliErr) {
		t.Fatalf("expected CLIError, got %T: %v", err, err)
	}

	if !strings.Contains(cliErr.Message, "not found: ffff") {
		t.Errorf("message = %q", cliErr.Message)
	}
}

func TestHistoryList_JSON(t *testing.T) {
	historyFixture(t)

	out, buf := testWriter()
	out.JSON = true

	if err := runWith(t, out, newHistoryListCmd); err != nil {
		t.Fatalf("history list should succeed: %v", err)
	}

	var sessions []SessionSummary
	if err := json.Unmarshal(buf.Bytes(), &sessions); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}

	if len(sessions) != 1 || sessions[0].MessageCount != 3 || sessions[0].ClosedAt == nil {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestHistoryList_Empty(t *testing.T) {
	isolateEnv(t)

	out, buf := testWriter()
	if err := runWith(t, out, newHistoryListCmd); err != nil {
		t.Fatalf("history list should succeed: %v", err)
	}

	if got := buf.String(); got != "No recorded sessions found.\n" {
		t.Errorf("output = %q", got)
	}
}

func TestHistoryPrune(t *testing.T) {
	historyFixture(t)

	out, buf := testWriter()
	if err := runWith(t, out, newHistoryPruneCmd, "--older-than", "1h", "--force"); err != nil {
		t.Fatalf("history prune should succeed: %v", err)
	}

	if got := buf.String(); got != "✓ Removed 0 session(s)\n" {
		t.Errorf("output = %q", got)
	}

	for _, bad := range []string{"soon", "-5m"} {
		out, _ := testWriter()
		err := runWith(t, out, newHistoryPruneCmd, "--older-than="+bad, "-f")

		var cliErr *clierrors.CLIError
		if !clierrors.As(err, &cliErr) || cliErr.Code != clierrors.ExitUsage {
			t.Errorf("--older-than %s: err = %v, want usage error", bad, err)
		}
	}
}

func TestHistoryPrune_NonInteractiveNeedsForce(t *testing.T) {
	historyFixture(t)

	out, _ := testWriter()
	out.NoInput = true

	err := runWith(t, out, newHistoryPruneCmd)

	var cliErr *clierrors.CLIError
	if !clierrors.As(err, &cliErr) || cliErr.Code != clierrors.ExitUsage {
		t.Fatalf("err = %v, want usage error", err)
	}

	if !strings.Contains(cliErr.Hint, "--force") {
		t.Errorf("hint = %q, want --force", cliErr.Hint)
	}
}

func TestHistoryView_NoIDNonInteractive(t *testing.T) {
	historyFixture(t)

	out, _ := testWriter()
	out.NoInput = true

	err := runWith(t, out, newHistoryViewCmd)

	var cliErr *clierrors.CLIError
	if !clierrors.As(err, &cliErr) || cliErr.Code != clierrors.ExitUsage {
		t.Fatalf("err = %v, want usage error", err)
	}
}

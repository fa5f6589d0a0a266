package mockbackend

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voxdash/voxctl/internal/client"
	"github.com/voxdash/voxctl/internal/dashboard"
	"github.com/voxdash/voxctl/internal/events"
)

func quickScript() *Script {
	return &Script{Steps: []Step{
		{After: 10 * time.Millisecond, Status: "listening", Color: ColorListening},
		{Type: "user", Content: "open chrome"},
		{Status: "processing", Color: ColorProcessing},
		{Type: "assistant", Content: "Opening chrome"},
		{Status: "ready", Color: ColorReady},
	}}
}

func startServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()

	srv := New(opts)
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})

	return srv, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("condition not met: %s", msg)
}

func TestServer_Commands(t *testing.T) {
	srv, ts := startServer(t, Options{Script: quickScript()})
	c := client.New(ts.URL, time.Second)

	if err := c.Start(t.Context()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if !srv.Running() {
		t.Error("server should be running")
	}

	err := c.Start(t.Context())

	var statusErr *client.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("second Start() error = %v, want StatusError", err)
	}

	if statusErr.StatusCode != 400 || statusErr.Message() != "Already running" {
		t.Errorf("second Start() = %d %q", statusErr.StatusCode, statusErr.Message())
	}

	if err := c.Stop(t.Context()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	status, err := c.Status(t.Context())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}

	if status.IsRunning || status.Status != "idle" {
		t.Errorf("Status() = %+v, want idle and stopped", status)
	}

	// Stop is accepted even when nothing runs.
	if err := c.Stop(t.Context()); err != nil {
		t.Errorf("Stop() when idle error = %v", err)
	}
}

func TestServer_SystemInfo(t *testing.T) {
	_, ts := startServer(t, Options{Script: quickScript()})

	info, err := client.New(ts.URL, time.Second).SystemInfo(t.Context())
	if err != nil {
		t.Fatalf("SystemInfo() error = %v", err)
	}

	for name, v := range map[string]string{
		"cpu":       info.CPUUsage,
		"memory":    info.MemoryUsage,
		"disk":      info.DiskUsage,
		"available": info.AvailableMemory,
	} {
		if v == "" {
			t.Errorf("%s missing from fabricated metrics", name)
		}
	}

	if !strings.HasSuffix(info.AvailableMemory, " GB") {
		t.Errorf("available memory = %q", info.AvailableMemory)
	}
}

func TestServer_SystemInfoOverride(t *testing.T) {
	_, ts := startServer(t, Options{
		Script:     quickScript(),
		SystemInfo: func() any { return map[string]any{"cpu_usage": "12%", "memory_usage": nil} },
	})

	info, err := client.New(ts.URL, time.Second).SystemInfo(t.Context())
	if err != nil {
		t.Fatalf("SystemInfo() error = %v", err)
	}

	if info != (client.SystemInfo{CPUUsage: "12%"}) {
		t.Errorf("SystemInfo() = %+v", info)
	}
}

type recorder struct {
	mu       sync.Mutex
	statuses []events.StatusUpdate
	messages []events.Message
}

func (r *recorder) OnConnected() {}

func (r *recorder) OnStatus(u events.StatusUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.statuses = append(r.statuses, u)
}

func (r *recorder) OnMessage(m events.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, m)
}

func (r *recorder) snapshot() ([]events.StatusUpdate, []events.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]events.StatusUpdate(nil), r.statuses...), append([]events.Message(nil), r.messages...)
}

func TestServer_GreetsWithIdleColor(t *testing.T) {
	srv, ts := startServer(t, Options{Script: quickScript()})

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	r := &recorder{}

	go func() { _ = events.New(wsURL(ts)).Subscribe(ctx, r) }()

	eventually(t, func() bool { s, _ := r.snapshot(); return len(s) == 1 }, "greeting")

	statuses, _ := r.snapshot()
	if statuses[0] != (events.StatusUpdate{Status: "idle", Color: ColorIdle}) {
		t.Errorf("greeting = %+v", statuses[0])
	}

	eventually(t, func() bool { return srv.Clients() == 1 }, "client registered")
}

func TestServer_PlaysScriptToSubscribers(t *testing.T) {
	_, ts := startServer(t, Options{Script: quickScript()})

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	r := &recorder{}

	go func() { _ = events.New(wsURL(ts)).Subscribe(ctx, r) }()

	eventually(t, func() bool { s, _ := r.snapshot(); return len(s) == 1 }, "greeting")

	c := client.New(ts.URL, time.Second)
	if err := c.Start(t.Context()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	eventually(t, func() bool { s, _ := r.snapshot(); return len(s) == 4 }, "scripted statuses")

	if err := c.Stop(t.Context()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	eventually(t, func() bool { _, m := r.snapshot(); return len(m) == 4 }, "stop message")

	statuses, messages := r.snapshot()

	wantStatuses := []string{"idle", "listening", "processing", "ready"}
	for i, want := range wantStatuses {
		if statuses[i].Status != want {
			t.Errorf("status %d = %q, want %q", i, statuses[i].Status, want)
		}
	}

	wantMessages := []string{"Voice assistant started!", "open chrome", "Opening chrome", "Voice assistant stopped."}
	for i, want := range wantMessages {
		if messages[i].Content != want {
			t.Errorf("message %d = %q, want %q", i, messages[i].Content, want)
		}
	}
}

// TestEndToEnd drives a mounted dashboard against the mock backend.
func TestEndToEnd(t *testing.T) {
	_, ts := startServer(t, Options{
		Script:     quickScript(),
		SystemInfo: func() any { return map[string]any{"cpu_usage": "12%"} },
	})

	api := client.New(ts.URL, time.Second)
	store := dashboard.NewStore()
	ctrl := dashboard.NewController(store, api)

	mounted := dashboard.Mount(t.Context(), dashboard.Deps{
		Store:   store,
		Stream:  events.New(wsURL(ts)),
		System:  api,
		Session: api,
	}, dashboard.Options{PollInterval: time.Hour, SyncSession: true})
	defer mounted.Unmount()

	eventually(t, func() bool { return store.Snapshot().StreamConnected }, "stream connected")
	eventually(t, func() bool { return store.Snapshot().System.CPUUsage == "12%" }, "first poll")

	if got := store.Snapshot().System.Display(dashboard.GaugeMemory); got != dashboard.NotAvailable {
		t.Errorf("memory = %q, want N/A", got)
	}

	if err := ctrl.Start(t.Context()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	eventually(t, func() bool { return store.Snapshot().Status.Label == "ready" }, "script played")

	v := store.Snapshot()
	if !v.Running || v.Status.Color != ColorReady {
		t.Errorf("after script: running=%v status=%+v", v.Running, v.Status)
	}

	if err := ctrl.Stop(t.Context()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	eventually(t, func() bool {
		last, ok := store.Snapshot().LastMessage()
		return ok && last.Content == "Voice assistant stopped."
	}, "stop message")

	v = store.Snapshot()
	if v.Running || v.Status != dashboard.Idle {
		t.Errorf("after stop: running=%v status=%+v", v.Running, v.Status)
	}

	if v.Messages[0].Content != "Voice assistant started!" || v.Messages[0].Type != dashboard.MessageSystem {
		t.Errorf("first message = %+v", v.Messages[0])
	}

	mounted.Unmount()

	select {
	case <-mounted.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Unmount() did not release the view")
	}
}

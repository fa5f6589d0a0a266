package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voxdash/voxctl/internal/client"
)

// scriptedSource returns queued results, then repeats the last one.
type scriptedSource struct {
	mu      sync.Mutex
	results []sourceResult
	calls   int
}

type sourceResult struct {
	info client.SystemInfo
	err  error
}

func (s *scriptedSource) SystemInfo(context.Context) (client.SystemInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}

	s.calls++

	return s.results[i].info, s.results[i].err
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

func TestPoller_FailedPollKeepsSnapshot(t *testing.T) {
	store := NewStore()
	source := &scriptedSource{results: []sourceResult{
		{info: client.SystemInfo{CPUUsage: "12%", MemoryUsage: "48%", DiskUsage: "71%", AvailableMemory: "7.9 GB"}},
		{err: errors.New("connection refused")},
		{info: client.SystemInfo{CPUUsage: "30%"}},
	}}
	poller := NewPoller(store, source, time.Hour)

	if err := poller.PollOnce(t.Context()); err != nil {
		t.Fatalf("first poll error = %v", err)
	}

	before := store.Snapshot()

	if err := poller.PollOnce(t.Context()); err == nil {
		t.Fatal("second poll should fail")
	}

	after := store.Snapshot()
	if after.System != before.System || !after.SystemUpdatedAt.Equal(before.SystemUpdatedAt) {
		t.Fatalf("failed poll changed the snapshot: before=%+v after=%+v", before.System, after.System)
	}

	if len(after.Messages) != 0 || after.LastError != "" {
		t.Error("poll failures must stay out of the user-facing view")
	}

	if err := poller.PollOnce(t.Context()); err != nil {
		t.Fatalf("third poll error = %v", err)
	}

	// A successful poll replaces the snapshot wholesale.
	if got := store.Snapshot().System; got != (SystemSnapshot{CPUUsage: "30%"}) {
		t.Errorf("System = %+v, want full replacement", got)
	}
}

func TestPoller_RunPollsImmediatelyAndKeepsGoingAfterFailure(t *testing.T) {
	store := NewStore()
	source := &scriptedSource{results: []sourceResult{
		{err: errors.New("timeout")},
		{info: client.SystemInfo{CPUUsage: "5%"}},
	}}
	poller := NewPoller(store, source, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})

	go func() {
		poller.Run(ctx)
		close(done)
	}()

	eventually(t, func() bool { return store.Snapshot().System.CPUUsage == "5%" }, "poll after failure succeeds")

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if source.Calls() < 2 {
		t.Errorf("calls = %d, want at least 2", source.Calls())
	}
}

func TestPoller_FirstPollIsImmediate(t *testing.T) {
	store := NewStore()
	source := &scriptedSource{results: []sourceResult{{info: client.SystemInfo{DiskUsage: "40%"}}}}

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	go NewPoller(store, source, time.Hour).Run(ctx)

	eventually(t, func() bool { return store.Snapshot().System.DiskUsage == "40%" }, "immediate first poll")
}

package events

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type recorder struct {
	mu        sync.Mutex
	connected int
	statuses  []StatusUpdate
	messages  []Message
	got       chan struct{}
}

func newRecorder() *recorder {
	return &recorder{got: make(chan struct{}, 64)}
}

func (r *recorder) OnConnected() {
	r.mu.Lock()
	r.connected++
	r.mu.Unlock()
}

func (r *recorder) OnStatus(u StatusUpdate) {
	r.mu.Lock()
	r.statuses = append(r.statuses, u)
	r.mu.Unlock()
	r.got <- struct{}{}
}

func (r *recorder) OnMessage(m Message) {
	r.mu.Lock()
	r.messages = append(r.messages, m)
	r.mu.Unlock()
	r.got <- struct{}{}
}

func (r *recorder) wait(t *testing.T, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		select {
		case <-r.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d of %d", i+1, n)
		}
	}
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name        string
		frame       string
		wantStatus  []StatusUpdate
		wantMessage []Message
		wantErr     bool
		wantUnknown bool
	}{
		{
			name:       "status update",
			frame:      `{"event":"status_update","data":{"status":"listening","color":"#00d9ff"}}`,
			wantStatus: []StatusUpdate{{Status: "listening", Color: "#00d9ff"}},
		},
		{
			name:       "status without color",
			frame:      `{"event":"status_update","data":{"status":"ready"}}`,
			wantStatus: []StatusUpdate{{Status: "ready"}},
		},
		{
			name:        "message",
			frame:       `{"event":"message","data":{"type":"user","content":"open notepad"}}`,
			wantMessage: []Message{{Type: "user", Content: "open notepad"}},
		},
		{
			name:        "unknown message type kept verbatim",
			frame:       `{"event":"message","data":{"type":"debug","content":"x"}}`,
			wantMessage: []Message{{Type: "debug", Content: "x"}},
		},
		{
			name:        "unknown event",
			frame:       `{"event":"volume","data":{}}`,
			wantErr:     true,
			wantUnknown: true,
		},
		{
			name:    "not json",
			frame:   `42["message",{}]`,
			wantErr: true,
		},
		{
			name:    "content wrong type",
			frame:   `{"event":"message","data":{"type":"user","content":7}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRecorder()

			err := Dispatch([]byte(tt.frame), r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Dispatch() error = %v, wantErr %v", err, tt.wantErr)
			}

			if got := errors.Is(err, ErrUnknownEvent); got != tt.wantUnknown {
				t.Errorf("errors.Is(ErrUnknownEvent) = %v, want %v", got, tt.wantUnknown)
			}

			if len(r.statuses) != len(tt.wantStatus) {
				t.Fatalf("statuses = %+v, want %+v", r.statuses, tt.wantStatus)
			}

			for i := range tt.wantStatus {
				if r.statuses[i] != tt.wantStatus[i] {
					t.Errorf("status[%d] = %+v, want %+v", i, r.statuses[i], tt.wantStatus[i])
				}
			}

			if len(r.messages) != len(tt.wantMessage) {
				t.Fatalf("messages = %+v, want %+v", r.messages, tt.wantMessage)
			}

			for i := range tt.wantMessage {
				if r.messages[i] != tt.wantMessage[i] {
					t.Errorf("message[%d] = %+v, want %+v", i, r.messages[i], tt.wantMessage[i])
				}
			}
		})
	}
}

func TestEncode_RoundTripsThroughDispatch(t *testing.T) {
	frame, err := Encode(EventMessage, Message{Type: "assistant", Content: "Opening Notepad"})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	r := newRecorder()
	if err := Dispatch(frame, r); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if len(r.messages) != 1 || r.messages[0].Content != "Opening Notepad" {
		t.Fatalf("messages = %+v", r.messages)
	}
}

// pushServer upgrades one connection and writes frames, then waits for close.
func pushServer(t *testing.T, frames []string, hold bool) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}

		if !hold {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		}

		// Block until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func TestClient_Subscribe_DeliversInOrderAndSkipsBadFrames(t *testing.T) {
	server := pushServer(t, []string{
		`{"event":"status_update","data":{"status":"listening","color":"#00d9ff"}}`,
		`garbage`,
		`{"event":"message","data":{"type":"user","content":"hello"}}`,
		`{"event":"volume","data":{"level":3}}`,
		`{"event":"status_update","data":{"status":"processing","color":"#e94560"}}`,
	}, true)
	defer server.Close()

	ctx, cancel := context.WithCancel(t.Context())
	r := newRecorder()

	errCh := make(chan error, 1)
	go func() { errCh <- New(wsURL(server)).Subscribe(ctx, r) }()

	r.wait(t, 3)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Subscribe() after cancel = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe() did not return after cancel")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.connected != 1 {
		t.Errorf("connected = %d, want 1", r.connected)
	}

	if len(r.statuses) != 2 || r.statuses[0].Status != "listening" || r.statuses[1].Status != "processing" {
		t.Errorf("statuses = %+v", r.statuses)
	}

	if len(r.messages) != 1 || r.messages[0].Content != "hello" {
		t.Errorf("messages = %+v", r.messages)
	}
}

func TestClient_Subscribe_ServerCloseReturnsError(t *testing.T) {
	server := pushServer(t, nil, false)
	defer server.Close()

	err := New(wsURL(server)).Subscribe(t.Context(), newRecorder())
	if err == nil {
		t.Fatal("Subscribe() should report a dropped stream")
	}
}

func TestClient_Subscribe_DialFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	r := newRecorder()

	err := New(wsURL(server)).Subscribe(t.Context(), r)
	if err == nil || !strings.Contains(err.Error(), "dial event stream") {
		t.Fatalf("Subscribe() error = %v, want dial failure", err)
	}

	if r.connected != 0 {
		t.Error("OnConnected should not fire when the dial fails")
	}
}

func TestClient_Probe(t *testing.T) {
	server := pushServer(t, nil, true)
	defer server.Close()

	c := New(wsURL(server))
	if c.URL() != wsURL(server) {
		t.Errorf("URL() = %q, want %q", c.URL(), wsURL(server))
	}

	if err := c.Probe(t.Context()); err != nil {
		t.Fatalf("Probe() error = %v", err)
	}

	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()

	if err := New(wsURL(missing)).Probe(t.Context()); err == nil {
		t.Fatal("Probe() should fail against a non-WebSocket endpoint")
	}
}

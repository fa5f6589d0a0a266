// Package events subscribes to the assistant backend's push channel.
//
// The channel is a WebSocket carrying JSON text frames of the form
//
//	{"event": "status_update", "data": {"status": "listening", "color": "#00d9ff"}}
//	{"event": "message", "data": {"type": "user", "content": "open notepad"}}
//
// Unknown events are ignored and malformed frames are skipped, so a single
// bad frame never tears the subscription down.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxdash/voxctl/internal/buildinfo"
	"github.com/voxdash/voxctl/internal/observability"
)

// Event names carried in the envelope.
const (
	EventStatusUpdate = "status_update"
	EventMessage      = "message"
)

const (
	// DefaultHandshakeTimeout bounds the WebSocket upgrade.
	DefaultHandshakeTimeout = 10 * time.Second

	// maxFrameSize guards against a runaway backend.
	maxFrameSize = 1 << 20
)

// Envelope is one frame on the push channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// StatusUpdate is the payload of a status_update event.
type StatusUpdate struct {
	Status string `json:"status"`
	Color  string `json:"color"`
}

// Message is the payload of a message event.
type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Handler receives decoded push events. Calls are made from the subscribing
// goroutine, one at a time, in arrival order.
type Handler interface {
	OnConnected()
	OnStatus(StatusUpdate)
	OnMessage(Message)
}

// Client dials the push channel.
type Client struct {
	url    string
	dialer *websocket.Dialer
	header http.Header
}

// New creates a push channel client for url (ws:// or wss://).
func New(url string) *Client {
	header := http.Header{}
	header.Set("User-Agent", buildinfo.UserAgent())

	return &Client{
		url: url,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: DefaultHandshakeTimeout,
		},
		header: header,
	}
}

// URL returns the push channel endpoint.
func (c *Client) URL() string {
	return c.url
}

// Probe opens the push channel and closes it again.
func (c *Client) Probe(ctx context.Context) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		return fmt.Errorf("dial event stream: %w", err)
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))

	return conn.Close()
}

// Subscribe connects and dispatches events to h until ctx is cancelled or the
// connection drops. It returns nil on cancellation and the read error otherwise.
func (c *Client) Subscribe(ctx context.Context, h Handler) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		if ctx.Err() != nil {
			return nil
		}

		return fmt.Errorf("dial event stream: %w", err)
	}

	conn.SetReadLimit(maxFrameSize)

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
			_ = conn.Close()
		}
	}()

	logger := observability.FromContext(ctx).With(slog.String("component", "events"))
	logger.Debug("event stream connected", slog.String("url", c.url))

	h.OnConnected()

	for {
		msgType, payload, readErr := conn.ReadMessage()
		if readErr != nil {
			if ctx.Err() != nil {
				return nil
			}

			if websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("event stream closed by backend: %w", readErr)
			}

			return fmt.Errorf("read event stream: %w", readErr)
		}

		if msgType != websocket.TextMessage {
			continue
		}

		switch dispatchErr := Dispatch(payload, h); {
		case dispatchErr == nil:
		case errors.Is(dispatchErr, ErrUnknownEvent):
			logger.Debug("ignoring push event", slog.String("error", dispatchErr.Error()))
		default:
			logger.Warn("skipping malformed push frame", slog.String("error", dispatchErr.Error()))
		}
	}
}

// ErrUnknownEvent is returned by Dispatch for events it does not handle.
var ErrUnknownEvent = errors.New("unknown event")

// Dispatch decodes one frame and forwards it to h.
func Dispatch(frame []byte, h Handler) error {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Event {
	case EventStatusUpdate:
		var update StatusUpdate
		if err := json.Unmarshal(env.Data, &update); err != nil {
			return fmt.Errorf("decode %s: %w", env.Event, err)
		}

		h.OnStatus(update)
	case EventMessage:
		var msg Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return fmt.Errorf("decode %s: %w", env.Event, err)
		}

		h.OnMessage(msg)
	default:
		return fmt.Errorf("%w %q", ErrUnknownEvent, env.Event)
	}

	return nil
}

// Encode builds a frame for event with the given payload.
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}

	return json.Marshal(Envelope{Event: event, Data: data})
}

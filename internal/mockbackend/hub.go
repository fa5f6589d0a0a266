package mockbackend

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBuffer = 64
	writeWait  = 5 * time.Second
)

// hub fans push frames out to every connected WebSocket client.
type hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*subscriber]struct{}
	closed  bool
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true // Local development tool
			},
		},
		logger:  logger,
		clients: make(map[*subscriber]struct{}),
	}
}

// serve upgrades the request and registers the client. greeting is queued
// before any broadcast can reach the new client.
func (h *hub) serve(w http.ResponseWriter, r *http.Request, greeting func() []byte) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("remote_addr", r.RemoteAddr), slog.String("error", err.Error()))
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()

		return
	}

	if frame := greeting(); frame != nil {
		sub.send <- frame
	}

	h.clients[sub] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("client connected", slog.String("remote_addr", r.RemoteAddr), slog.Int("clients", count))

	go h.writePump(sub)
	go h.readPump(sub)
}

// broadcast queues frame for every client, dropping clients that fall behind.
func (h *hub) broadcast(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.clients {
		select {
		case sub.send <- frame:
		default:
			h.logger.Warn("dropping slow client")
			h.removeLocked(sub)
		}
	}
}

func (h *hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(sub)
}

func (h *hub) removeLocked(sub *subscriber) {
	if _, ok := h.clients[sub]; !ok {
		return
	}

	delete(h.clients, sub)
	close(sub.send)
}

// count returns the number of connected clients.
func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for sub := range h.clients {
		h.removeLocked(sub)
	}
}

// readPump discards client frames and notices hang-ups.
func (h *hub) readPump(sub *subscriber) {
	defer h.remove(sub)

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket read error", slog.String("error", err.Error()))
			}

			return
		}
	}
}

func (h *hub) writePump(sub *subscriber) {
	defer sub.conn.Close()

	for frame := range sub.send {
		_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))

		if err := sub.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.remove(sub)
			return
		}
	}

	_ = sub.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(writeWait))
}

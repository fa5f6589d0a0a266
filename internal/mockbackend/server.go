// Package mockbackend is a stand-in for the voice assistant backend. It serves
// the same REST surface and push channel as the real service, fabricates host
// metrics, and plays a scripted conversation while the assistant runs.
package mockbackend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/voxdash/voxctl/internal/client"
	"github.com/voxdash/voxctl/internal/events"
)

// Status colors used by the backend.
const (
	ColorListening   = "#00d9ff"
	ColorRecognizing = "#ffa500"
	ColorProcessing  = "#e94560"
	ColorReady       = "#00ff00"
	ColorIdle        = "#555555"
)

// Options configures a Server.
type Options struct {
	// Script is played while running. Nil uses DefaultScript.
	Script *Script
	// SystemInfo produces /api/system-info bodies. Nil fabricates metrics.
	SystemInfo func() any
	Logger     *slog.Logger
}

// Server is an in-memory assistant backend.
type Server struct {
	script     *Script
	systemInfo func() any
	logger     *slog.Logger
	hub        *hub

	mu      sync.Mutex
	running bool
	status  string
	player  *player
}

// player is one run of the script.
type player struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// detachPlayer cancels the running script. The caller waits on the returned
// channel after releasing mu.
func (s *Server) detachPlayer() <-chan struct{} {
	p := s.player
	s.player = nil

	if p == nil {
		return closedChan
	}

	p.cancel()

	return p.done
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)

	return ch
}()

// New creates a server in the idle state.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	script := opts.Script
	if script == nil {
		script = DefaultScript()
	}

	systemInfo := opts.SystemInfo
	if systemInfo == nil {
		systemInfo = newMetrics().next
	}

	return &Server{
		script:     script,
		systemInfo: systemInfo,
		logger:     logger,
		hub:        newHub(logger),
		status:     "idle",
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/system-info", s.handleSystemInfo)
		r.Post("/start", s.handleStart)
		r.Post("/stop", s.handleStop)
	})
	r.Get("/ws", s.handleEvents)

	return r
}

// Close stops playback and disconnects every push client.
func (s *Server) Close() {
	s.mu.Lock()
	done := s.detachPlayer()
	s.mu.Unlock()

	<-done
	s.hub.close()
}

// Running reports whether the assistant is started.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// Clients returns the number of connected push clients.
func (s *Server) Clients() int {
	return s.hub.count()
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("mock backend listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()

		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("listen on %s: %w", addr, err)

	case <-ctx.Done():
	}

	s.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	resp := client.AssistantStatus{IsRunning: s.running, Status: s.status}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSystemInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.systemInfo())
}

func (s *Server) handleStart(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, client.CommandResponse{Success: false, Message: "Already running"})

		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &player{cancel: cancel, done: make(chan struct{})}
	s.running = true
	s.status = "starting"
	s.player = p
	s.mu.Unlock()

	s.publishMessage("system", "Voice assistant started!")

	go func() {
		defer close(p.done)
		s.play(ctx)
	}()

	writeJSON(w, http.StatusOK, client.CommandResponse{Success: true, Message: "Assistant started"})
}

// handleStop always succeeds, even when the assistant is not running.
func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.running = false
	s.status = "idle"
	done := s.detachPlayer()
	s.mu.Unlock()

	<-done
	s.publishMessage("system", "Voice assistant stopped.")

	writeJSON(w, http.StatusOK, client.CommandResponse{Success: true, Message: "Assistant stopped"})
}

// handleEvents greets each client with the current status in the idle color.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.hub.serve(w, r, func() []byte {
		s.mu.Lock()
		status := s.status
		s.mu.Unlock()

		frame, err := events.Encode(events.EventStatusUpdate, events.StatusUpdate{Status: status, Color: ColorIdle})
		if err != nil {
			return nil
		}

		return frame
	})
}

// play runs the script until ctx is cancelled or a non-looping script ends.
func (s *Server) play(ctx context.Context) {
	for {
		for _, step := range s.script.Steps {
			if step.After > 0 {
				timer := time.NewTimer(step.After)

				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}

			if step.IsStatus() {
				if !s.publishStatus(ctx, step.Status, step.Color) {
					return
				}

				continue
			}

			if ctx.Err() != nil {
				return
			}

			s.publishMessage(step.Type, step.Content)
		}

		if !s.script.Loop {
			return
		}
	}
}

// publishStatus reports false once playback is cancelled, leaving the status
// a stop command set.
func (s *Server) publishStatus(ctx context.Context, status, color string) bool {
	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}

	s.status = status
	s.mu.Unlock()

	s.publish(events.EventStatusUpdate, events.StatusUpdate{Status: status, Color: color})

	return true
}

func (s *Server) publishMessage(kind, content string) {
	s.publish(events.EventMessage, events.Message{Type: kind, Content: content})
}

func (s *Server) publish(event string, payload any) {
	frame, err := events.Encode(event, payload)
	if err != nil {
		s.logger.Error("encode push frame", slog.String("event", event), slog.String("error", err.Error()))
		return
	}

	s.hub.broadcast(frame)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

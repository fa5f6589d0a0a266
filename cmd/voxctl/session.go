package main

import (
	"context"
	"log/slog"

	"github.com/voxdash/voxctl/internal/client"
	"github.com/voxdash/voxctl/internal/config"
	"github.com/voxdash/voxctl/internal/dashboard"
	"github.com/voxdash/voxctl/internal/events"
	"github.com/voxdash/voxctl/internal/history"
	"github.com/voxdash/voxctl/internal/observability"
)

// liveSession wires the view model to the backend for dashboard and watch.
type liveSession struct {
	cfg      *config.Config
	store    *dashboard.Store
	api      *client.Client
	stream   *events.Client
	ctrl     *dashboard.Controller
	recorder *history.Recorder
}

func newLiveSession(ctx context.Context, cfg *config.Config) *liveSession {
	store := dashboard.NewStore(dashboard.WithMaxMessages(cfg.MaxMessages()))
	api := client.New(cfg.APIURL(), cfg.APITimeout())

	s := &liveSession{
		cfg:    cfg,
		store:  store,
		api:    api,
		stream: events.New(cfg.EventsURL()),
		ctrl:   dashboard.NewController(store, api),
	}

	if !cfg.HistoryEnabled() {
		return s
	}

	rec, err := history.NewRecorder(history.Options{
		SessionID: sessionIDFrom(ctx),
		Dir:       cfg.HistoryDir(),
		APIURL:    cfg.APIURL(),
	})
	if err != nil {
		// History is best effort; the live view still works without it.
		observability.FromContext(ctx).Warn("message history disabled", slog.String("error", err.Error()))
		return s
	}

	s.recorder = rec
	store.Subscribe(rec.Observe)

	return s
}

// mount starts the push subscription and poll loop. Callers must Unmount.
func (s *liveSession) mount(ctx context.Context) *dashboard.Mounted {
	return dashboard.Mount(ctx, dashboard.Deps{
		Store:   s.store,
		Stream:  s.stream,
		System:  s.api,
		Session: s.api,
	}, dashboard.Options{
		PollInterval:   s.cfg.PollInterval(),
		ReconnectDelay: s.cfg.ReconnectDelay(),
		SyncSession:    s.cfg.SessionSync(),
	})
}

// close flushes the history recorder.
func (s *liveSession) close(ctx context.Context) {
	if s.recorder == nil {
		return
	}

	if err := s.recorder.Close(); err != nil {
		observability.FromContext(ctx).Warn("close message history",
			slog.String("session.id", s.recorder.SessionID()),
			slog.String("error", err.Error()))
	}
}

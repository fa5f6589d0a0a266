package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxdash/voxctl/internal/client"
	"github.com/voxdash/voxctl/internal/events"
	"github.com/voxdash/voxctl/internal/observability"
)

// StreamSource opens the push channel. Subscribe blocks until ctx is done
// (returning nil) or the stream drops (returning the cause).
type StreamSource interface {
	Subscribe(ctx context.Context, h events.Handler) error
}

// StatusSource reports the backend's session state.
type StatusSource interface {
	Status(ctx context.Context) (client.AssistantStatus, error)
}

// Deps are the collaborators a mounted view drives.
type Deps struct {
	Store  *Store
	Stream StreamSource
	System SystemSource
	// Session is optional; when nil no mount-time sync happens.
	Session StatusSource
}

// Options tune a mounted view.
type Options struct {
	PollInterval time.Duration
	// ReconnectDelay is the pause before resubscribing to a dropped stream.
	// Zero disables reconnects.
	ReconnectDelay time.Duration
	SyncSession    bool
}

// Mounted is a live view: one push subscription and one poll loop.
type Mounted struct {
	cancel context.CancelFunc
	group  *errgroup.Group
	done   chan struct{}
	once   sync.Once
}

// Mount starts the push subscription and the poll loop, each on its own
// goroutine under a child of ctx. Callers must Unmount on every exit path.
func Mount(ctx context.Context, deps Deps, opts Options) *Mounted {
	ctx, cancel := context.WithCancel(ctx)

	m := &Mounted{
		cancel: cancel,
		group:  &errgroup.Group{},
		done:   make(chan struct{}),
	}

	logger := observability.FromContext(ctx).With(slog.String("component", "dashboard"))
	ctx = observability.WithLogger(ctx, logger)

	if deps.Stream != nil {
		m.group.Go(func() error {
			streamLoop(ctx, deps.Store, deps.Stream, opts.ReconnectDelay)
			return nil
		})
	}

	if deps.System != nil {
		poller := NewPoller(deps.Store, deps.System, opts.PollInterval)

		m.group.Go(func() error {
			poller.Run(ctx)
			return nil
		})
	}

	if opts.SyncSession && deps.Session != nil {
		m.group.Go(func() error {
			syncSession(ctx, deps.Store, deps.Session)
			return nil
		})
	}

	go func() {
		_ = m.group.Wait()
		close(m.done)
	}()

	return m
}

// Done is closed once every goroutine of the mounted view has exited.
func (m *Mounted) Done() <-chan struct{} {
	return m.done
}

// Unmount cancels the subscription and poll loop and waits for both. It is
// safe to call more than once.
func (m *Mounted) Unmount() {
	m.once.Do(m.cancel)
	<-m.done
}

func streamLoop(ctx context.Context, store *Store, stream StreamSource, reconnectDelay time.Duration) {
	logger := observability.FromContext(ctx)
	handler := storeHandler{store: store}

	for {
		err := stream.Subscribe(ctx, handler)
		if ctx.Err() != nil {
			return
		}

		store.Apply(StreamDisconnected{Err: err})

		if err != nil {
			logger.Warn("event stream dropped", slog.String("error", err.Error()))
		}

		if reconnectDelay <= 0 {
			return
		}

		timer := time.NewTimer(reconnectDelay)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func syncSession(ctx context.Context, store *Store, session StatusSource) {
	status, err := session.Status(ctx)
	if err != nil {
		if ctx.Err() == nil {
			observability.FromContext(ctx).Warn("session status sync failed", slog.String("error", err.Error()))
		}

		return
	}

	store.Apply(SessionSynced{Running: status.IsRunning})
}

// storeHandler turns push events into store transitions.
type storeHandler struct {
	store *Store
}

func (h storeHandler) OnConnected() {
	h.store.Apply(StreamConnected{})
}

func (h storeHandler) OnStatus(u events.StatusUpdate) {
	h.store.Apply(StatusUpdated{Label: u.Status, Color: u.Color})
}

func (h storeHandler) OnMessage(m events.Message) {
	h.store.Apply(MessageReceived{Type: MessageType(m.Type), Content: m.Content})
}

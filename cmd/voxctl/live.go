package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxdash/voxctl/internal/config"
	"github.com/voxdash/voxctl/internal/dashboard"
	clierrors "github.com/voxdash/voxctl/internal/errors"
	"github.com/voxdash/voxctl/internal/output"
	"github.com/voxdash/voxctl/internal/ui"
)

func newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the live assistant dashboard",
		Long: `Open a full-screen dashboard showing the assistant's status, start and stop
controls, host system gauges and the command history as it happens.

Press s to start the assistant, x to stop it, and q to quit. When the
terminal is not interactive the command streams plain lines like 'watch'.`,
		Example: `  voxctl dashboard
  voxctl dashboard --api-url http://192.168.1.20:5000`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			cfg := config.Load()

			if out.JSON || !out.Terminal().InteractiveEnabled() {
				out.Warning("Not an interactive terminal; streaming plain output instead")
				return runWatch(cmd.Context(), out, cfg, false)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()

			sess := newLiveSession(ctx, cfg)
			defer sess.close(ctx)

			mounted := sess.mount(ctx)
			defer mounted.Unmount()

			return ui.Run(ctx, ui.Options{
				Store:      sess.store,
				Controller: sess.ctrl,
				APIURL:     cfg.APIURL(),
			})
		},
	}
}

func newWatchCmd() *cobra.Command {
	var start bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream assistant status and messages as plain lines",
		Long: `Stream the assistant's messages and status changes to stdout, one line per
event, until interrupted. Suitable for pipes, logs and terminals without
full-screen support.`,
		Example: `  voxctl watch
  voxctl watch --start
  voxctl watch --no-color | tee assistant.log`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), output.FromContext(cmd.Context()), config.Load(), start)
		},
	}

	cmd.Flags().BoolVar(&start, "start", false, "Start the assistant once the stream is up")

	return cmd
}

func runWatch(ctx context.Context, out *output.Writer, cfg *config.Config, start bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := newLiveSession(ctx, cfg)
	defer sess.close(ctx)

	term := out.Terminal()

	width := 0
	if term.IsTTY {
		width = term.Width
	}

	printer := ui.NewPrinter(out.Out, width, term.ColorEnabled())
	unsubscribe := sess.store.Subscribe(printer.Observe)

	defer unsubscribe()

	out.Info("Watching %s (Ctrl+C to stop)", cfg.APIURL())

	mounted := sess.mount(ctx)
	defer mounted.Unmount()

	if start {
		awaitStream(ctx, sess.store, streamWaitTimeout)

		err := sess.ctrl.Start(ctx)

		switch {
		case err == nil:
		case errors.Is(err, dashboard.ErrAlreadyRunning):
			out.Warning("Assistant is already running")
		default:
			return clierrors.CommandFailed("start", cfg.APIURL(), err)
		}
	}

	<-ctx.Done()

	return nil
}

// streamWaitTimeout bounds how long watch --start waits for the push channel.
const streamWaitTimeout = 3 * time.Second

// awaitStream blocks until the push channel is connected so the backend's
// start confirmation is not missed. It gives up after timeout.
func awaitStream(ctx context.Context, store *dashboard.Store, timeout time.Duration) {
	connected := make(chan struct{})

	var once sync.Once

	unsubscribe := store.Subscribe(func(change dashboard.Change, view dashboard.View) {
		if change.Has(dashboard.ChangeStream) && view.StreamConnected {
			once.Do(func() { close(connected) })
		}
	})
	defer unsubscribe()

	if store.Snapshot().StreamConnected {
		return
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-connected:
	case <-timer.C:
	case <-ctx.Done():
	}
}

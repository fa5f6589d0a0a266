package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"

	"github.com/voxdash/voxctl/internal/observability"
)

// Controller errors returned without contacting the backend.
var (
	ErrAlreadyRunning = errors.New("assistant is already running")
	ErrNotRunning     = errors.New("assistant is not running")
	ErrCommandPending = errors.New("another session command is in flight")
)

// CommandBackend issues session commands.
type CommandBackend interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Controller owns the Running flag. Running changes only after the backend
// acknowledges a command.
type Controller struct {
	store   *Store
	backend CommandBackend
	busy    atomic.Bool
}

// NewController creates a controller that records outcomes in store.
func NewController(store *Store, backend CommandBackend) *Controller {
	return &Controller{store: store, backend: backend}
}

// CanStart reports whether Start would issue a request.
func (c *Controller) CanStart() bool {
	return c.store.Snapshot().CanStart()
}

// CanStop reports whether Stop would issue a request.
func (c *Controller) CanStop() bool {
	return c.store.Snapshot().CanStop()
}

// Start asks the backend to begin a session. On success Running becomes
// true; on failure nothing but the last error changes.
func (c *Controller) Start(ctx context.Context) error {
	return c.run(ctx, CommandStart, func(v View) error {
		if v.Running {
			return ErrAlreadyRunning
		}

		return nil
	}, c.backend.Start, SessionStarted{})
}

// Stop asks the backend to end the session. On success Running becomes
// false and the status resets to Idle whatever the last push said.
func (c *Controller) Stop(ctx context.Context) error {
	return c.run(ctx, CommandStop, func(v View) error {
		if !v.Running {
			return ErrNotRunning
		}

		return nil
	}, c.backend.Stop, SessionStopped{})
}

func (c *Controller) run(
	ctx context.Context,
	cmd Command,
	precondition func(View) error,
	call func(context.Context) error,
	onSuccess Event,
) error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrCommandPending
	}
	defer c.busy.Store(false)

	if err := precondition(c.store.Snapshot()); err != nil {
		return err
	}

	ctx, span := observability.Tracer("voxctl/dashboard").Start(ctx, "assistant."+string(cmd))
	span.SetAttributes(attribute.String("assistant.command", string(cmd)))

	c.store.Apply(CommandIssued{Command: cmd})

	err := call(ctx)
	observability.EndSpan(span, err)

	if err != nil {
		observability.FromContext(ctx).Error("session command failed",
			slog.String("command", string(cmd)),
			slog.String("error", err.Error()),
		)
		c.store.Apply(CommandFailed{Command: cmd, Err: err})

		return err
	}

	c.store.Apply(onSuccess)

	return nil
}

package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/voxdash/voxctl/internal/client"
	"github.com/voxdash/voxctl/internal/config"
	"github.com/voxdash/voxctl/internal/dashboard"
	clierrors "github.com/voxdash/voxctl/internal/errors"
	"github.com/voxdash/voxctl/internal/output"
)

// CommandResult is the JSON form of a start or stop command.
type CommandResult struct {
	Command string `json:"command"`
	Success bool   `json:"success"`
	Running bool   `json:"running"`
}

func newStartCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the voice assistant",
		Long: `Ask the backend to start listening for voice commands. The current session
state is checked first so a running assistant is reported instead of restarted.`,
		Example: `  voxctl start
  voxctl start --force --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionCommand(cmd.Context(), dashboard.CommandStart, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the session state check")

	return cmd
}

func newStopCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the voice assistant",
		Long: `Ask the backend to stop listening. The current session state is checked
first; use --force to send the request regardless.`,
		Example: `  voxctl stop
  voxctl stop -f`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionCommand(cmd.Context(), dashboard.CommandStop, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Send the request without checking the session state")

	return cmd
}

// runSessionCommand issues start or stop through the session controller so
// one-shot commands follow the same rules as the dashboard controls.
func runSessionCommand(ctx context.Context, command dashboard.Command, force bool) error {
	out := output.FromContext(ctx)
	cfg := config.Load()
	api := client.New(cfg.APIURL(), cfg.APITimeout())

	store := dashboard.NewStore()
	ctrl := dashboard.NewController(store, api)

	switch {
	case force:
		store.Apply(dashboard.SessionSynced{Running: command == dashboard.CommandStop})
	default:
		status, err := api.Status(ctx)
		if err != nil {
			return clierrors.CommandFailed("report status", cfg.APIURL(), err)
		}

		store.Apply(dashboard.SessionSynced{Running: status.IsRunning})
	}

	run, verb, done := ctrl.Start, "Starting assistant", "Assistant started"
	if command == dashboard.CommandStop {
		run, verb, done = ctrl.Stop, "Stopping assistant", "Assistant stopped"
	}

	var spin *output.Spinner
	if !out.JSON {
		spin = out.Spinner(verb)
		spin.Start()
	}

	err := run(ctx)

	switch {
	case errors.Is(err, dashboard.ErrAlreadyRunning):
		stopSpinner(spin, false, "")
		return clierrors.AlreadyRunning()
	case errors.Is(err, dashboard.ErrNotRunning):
		stopSpinner(spin, false, "")
		return clierrors.NotRunning()
	case err != nil:
		stopSpinner(spin, false, "")
		return clierrors.CommandFailed(string(command), cfg.APIURL(), err)
	}

	if out.JSON {
		return out.PrintJSON(CommandResult{
			Command: string(command),
			Success: true,
			Running: store.Snapshot().Running,
		})
	}

	stopSpinner(spin, true, done)

	return nil
}

func stopSpinner(spin *output.Spinner, ok bool, message string) {
	if spin == nil {
		return
	}

	if ok {
		spin.StopWithSuccess(message)
	} else {
		spin.StopWithFailure(message)
	}
}

// StatusInfo is the JSON form of the status command.
type StatusInfo struct {
	APIURL  string `json:"api_url"`
	Running bool   `json:"running"`
	Status  string `json:"status"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the assistant is running",
		Long:  `Query the backend for the assistant's run state and its current status label.`,
		Example: `  voxctl status
  voxctl status --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			cfg := config.Load()

			status, err := client.New(cfg.APIURL(), cfg.APITimeout()).Status(cmd.Context())
			if err != nil {
				return clierrors.CommandFailed("report status", cfg.APIURL(), err)
			}

			if out.JSON {
				return out.PrintJSON(StatusInfo{APIURL: cfg.APIURL(), Running: status.IsRunning, Status: status.Status})
			}

			running := "stopped"
			if status.IsRunning {
				running = "running"
			}

			label := status.Status
			if label == "" {
				label = dashboard.Idle.Label
			}

			out.Field(10, "Backend", cfg.APIURL())
			out.Field(10, "Assistant", running)
			out.Field(10, "Status", label)

			return nil
		},
	}
}

func newSysinfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sysinfo",
		Short: "Show host CPU, memory and disk gauges",
		Long: `Fetch one system-info snapshot from the backend. Gauges the backend does not
report are shown as N/A.`,
		Example: `  voxctl sysinfo
  voxctl sysinfo --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			cfg := config.Load()

			info, err := client.New(cfg.APIURL(), cfg.APITimeout()).SystemInfo(cmd.Context())
			if err != nil {
				return clierrors.CommandFailed("report system info", cfg.APIURL(), err)
			}

			snapshot := dashboard.SnapshotFromInfo(info)

			if out.JSON {
				return out.PrintJSON(snapshot.Displayed())
			}

			for _, g := range dashboard.Gauges {
				out.Field(18, g.Label()+":", snapshot.Display(g))
			}

			return nil
		},
	}
}

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	clierrors "github.com/voxdash/voxctl/internal/errors"
	"github.com/voxdash/voxctl/internal/mockbackend"
	"github.com/voxdash/voxctl/internal/observability"
	"github.com/voxdash/voxctl/internal/output"
)

func newMockBackendCmd() *cobra.Command {
	var (
		addr       string
		scriptPath string
	)

	cmd := &cobra.Command{
		Use:   "mock-backend",
		Short: "Run a local stand-in assistant backend",
		Long: `Serve the assistant backend's REST endpoints and push channel locally. While
started it plays a scripted conversation and reports fabricated system
gauges, so the dashboard can be tried without a microphone or the real
backend.`,
		Example: `  voxctl mock-backend
  voxctl mock-backend --addr :5050 --script demo.yaml`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			script := mockbackend.DefaultScript()

			if scriptPath != "" {
				loaded, err := mockbackend.LoadScript(scriptPath)
				if err != nil {
					return clierrors.Wrap(clierrors.ExitUsage, "Cannot load script", err).
						WithHint("Check the YAML against 'voxctl mock-backend --help'")
				}

				script = loaded
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := mockbackend.New(mockbackend.Options{
				Script: script,
				Logger: observability.FromContext(ctx),
			})

			out.Info("Mock backend on %s (Ctrl+C to stop)", addr)
			out.Muted("  voxctl dashboard --api-url http://%s", displayAddr(addr))

			if err := srv.Serve(ctx, addr); err != nil {
				return clierrors.Wrap(clierrors.ExitGeneral, "Mock backend failed", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:5000", "Listen address")
	cmd.Flags().StringVar(&scriptPath, "script", "", "YAML conversation script (default: built-in demo)")

	return cmd
}

// displayAddr fills in a host for listen addresses like ":5000".
func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}

	return addr
}

package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/voxdash/voxctl/internal/client"
	"github.com/voxdash/voxctl/internal/config"
	"github.com/voxdash/voxctl/internal/doctor"
	"github.com/voxdash/voxctl/internal/events"
	"github.com/voxdash/voxctl/internal/output"
)

// doctorTimeout bounds every network probe.
const doctorTimeout = 5 * time.Second

// DoctorReport is the JSON form of the doctor command.
type DoctorReport struct {
	Results  []doctor.Result `json:"results"`
	Passed   int             `json:"passed"`
	Failed   int             `json:"failed"`
	Warnings int             `json:"warnings"`
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose common issues",
		Long: `Run diagnostic checks to identify configuration and connectivity issues.

Checks performed:
  - Configuration file and api.url
  - Backend API reachability and response time
  - System info gauges reported by the backend
  - Push event stream handshake
  - History directory permissions`,
		Example: `  voxctl doctor
  voxctl doctor --api-url http://192.168.1.20:5000`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			cfg := config.Load()

			timeout := min(cfg.APITimeout(), doctorTimeout)

			runner := doctor.New(doctor.Options{
				APIURL:         cfg.APIURL(),
				Backend:        client.New(cfg.APIURL(), timeout),
				Stream:         events.New(cfg.EventsURL()),
				ConfigFile:     cfg.File(),
				HistoryEnabled: cfg.HistoryEnabled(),
				HistoryDir:     cfg.HistoryDir(),
			})

			results := runner.Run(cmd.Context())
			passed, failed, warnings := doctor.Summary(results)

			if out.JSON {
				return out.PrintJSON(DoctorReport{Results: results, Passed: passed, Failed: failed, Warnings: warnings})
			}

			renderDoctor(out, results)

			return nil
		},
	}
}

func renderDoctor(out *output.Writer, results []doctor.Result) {
	out.Println("voxctl Doctor")
	out.Println("=============")
	out.Println()

	doctor.RenderResults(results, out.Print, out.Success, out.Warning, out.Failure, out.Muted)

	passed, failed, warnings := doctor.Summary(results)

	out.Println()
	out.Print("%d passed", passed)

	if failed > 0 {
		out.Print(", %d failed", failed)
	}

	if warnings > 0 {
		out.Print(", %d warning(s)", warnings)
	}

	out.Println()
}

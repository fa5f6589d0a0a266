package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxdash/voxctl/internal/config"
	clierrors "github.com/voxdash/voxctl/internal/errors"
	"github.com/voxdash/voxctl/internal/history"
	"github.com/voxdash/voxctl/internal/output"
	"github.com/voxdash/voxctl/internal/prompt"
)

const followInterval = time.Second

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded assistant sessions",
		Long:  `List, view and prune the message history recorded by dashboard and watch sessions.`,
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryViewCmd())
	cmd.AddCommand(newHistoryPruneCmd())

	return cmd
}

// SessionSummary is the JSON form of one listed session.
type SessionSummary struct {
	SessionID    string     `json:"session_id"`
	APIURL       string     `json:"api_url,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	MessageCount uint64     `json:"message_count"`
}

func newHistoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded sessions",
		Long:  `List recorded sessions, newest first, with their start time and message count.`,
		Example: `  voxctl history list
  voxctl history list --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			sessions, err := history.ListSessions(config.Load().HistoryDir())
			if err != nil {
				return err
			}

			if out.JSON {
				summaries := make([]SessionSummary, 0, len(sessions))
				for _, s := range sessions {
					summaries = append(summaries, SessionSummary{
						SessionID:    s.SessionID,
						APIURL:       s.APIURL,
						StartedAt:    s.StartedAt,
						ClosedAt:     s.ClosedAt,
						MessageCount: s.MessageCount,
					})
				}

				return out.PrintJSON(summaries)
			}

			if len(sessions) == 0 {
				out.Muted("No recorded sessions found.")
				return nil
			}

			for _, s := range sessions {
				state := "open"
				if s.Closed() {
					state = fmt.Sprintf("%d messages", s.MessageCount)
				}

				out.Print("%s  started=%s  %s\n", s.SessionID, s.StartedAt.Local().Format(time.RFC3339), state)
			}

			return nil
		},
	}
}

func newHistoryViewCmd() *cobra.Command {
	var (
		search string
		follow bool
	)

	cmd := &cobra.Command{
		Use:   "view [session-id]",
		Short: "View the messages of a recorded session",
		Long: `Print a recorded session's messages as "[hh:mm:ss] type: content". The
session may be given by a unique prefix of its id; without one, an
interactive terminal offers a list of recent sessions to pick from.`,
		Example: `  voxctl history view 3f2a
  voxctl history view 3f2a --search chrome
  voxctl history view 3f2a --follow
  voxctl history view`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			dir := config.Load().HistoryDir()

			session, err := resolveSession(out, dir, args)
			if err != nil {
				return err
			}

			if !follow {
				records, err := history.ReadRecords(dir, session.SessionID)
				if err != nil {
					return err
				}

				printRecords(out, history.Filter(records, search))

				return nil
			}

			return followSession(cmd.Context(), out, dir, session.SessionID, search)
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Only show messages containing this text")
	cmd.Flags().BoolVar(&follow, "follow", false, "Keep printing messages as they are recorded")

	return cmd
}

// pickLimit caps the sessions offered by the interactive picker.
const pickLimit = 10

func resolveSession(out *output.Writer, dir string, args []string) (history.Session, error) {
	if len(args) == 1 {
		session, err := history.FindSession(dir, args[0])
		if errors.Is(err, history.ErrSessionNotFound) {
			return history.Session{}, clierrors.SessionNotFound(args[0])
		}

		return session, err
	}

	prompter := prompt.New(out)
	if !prompter.CanPrompt() {
		return history.Session{}, clierrors.New(clierrors.ExitUsage, "Session id required in non-interactive mode").
			WithHint("Run 'voxctl history list' and pass one of the ids")
	}

	sessions, err := history.ListSessions(dir)
	if err != nil {
		return history.Session{}, err
	}

	if len(sessions) == 0 {
		return history.Session{}, clierrors.New(clierrors.ExitGeneral, "No recorded sessions found").
			WithHint("Sessions are recorded while 'voxctl dashboard' or 'voxctl watch' runs")
	}

	session, err := prompter.SelectSession(sessions[:min(len(sessions), pickLimit)])
	if err != nil {
		return history.Session{}, clierrors.Wrap(clierrors.ExitGeneral, "Failed to read selection", err)
	}

	return session, nil
}

func followSession(ctx context.Context, out *output.Writer, dir, sessionID, search string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var offset int64

	for {
		records, next, err := history.ReadLiveFrom(dir, sessionID, offset)
		if err != nil {
			return err
		}

		offset = next
		printRecords(out, history.Filter(records, search))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(followInterval):
		}
	}
}

func printRecords(out *output.Writer, records []history.Record) {
	for _, rec := range records {
		out.Print("[%s] %s: %s\n", rec.Clock(), rec.Type, rec.Content)
	}
}

func newHistoryPruneCmd() *cobra.Command {
	var (
		olderThan string
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete sessions older than a duration",
		Long:  `Delete recorded sessions that ended before the retention window (history.retention unless --older-than is given). Sessions that never closed are aged by their start time.`,
		Example: `  voxctl history prune
  voxctl history prune --older-than 168h --force`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			cfg := config.Load()

			window := cfg.HistoryRetention()
			if olderThan != "" {
				d, err := time.ParseDuration(olderThan)
				if err != nil || d <= 0 {
					if err == nil {
						err = errors.New("must be positive")
					}

					return clierrors.InvalidDuration("--older-than", err)
				}

				window = d
			}

			if !force {
				prompter := prompt.New(out)
				if !prompter.CanPrompt() {
					return clierrors.New(clierrors.ExitUsage, "Cannot confirm prune in non-interactive mode").
						WithHint("Use --force to skip confirmation")
				}

				confirmed, err := prompter.Confirm(fmt.Sprintf("Delete sessions older than %s from %s?", window, cfg.HistoryDir()), false)
				if err != nil {
					return clierrors.Wrap(clierrors.ExitGeneral, "Failed to read confirmation", err)
				}

				if !confirmed {
					out.Info("Prune canceled")
					return nil
				}
			}

			removed, err := history.PruneOlderThan(cfg.HistoryDir(), time.Now().Add(-window))
			if err != nil {
				return err
			}

			out.Success("Removed %d session(s)", removed)

			return nil
		},
	}

	cmd.Flags().StringVar(&olderThan, "older-than", "", "Override retention window (example: 168h)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

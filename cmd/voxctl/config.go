package main

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/voxdash/voxctl/internal/config"
	clierrors "github.com/voxdash/voxctl/internal/errors"
	"github.com/voxdash/voxctl/internal/output"
	"github.com/voxdash/voxctl/internal/paths"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `View and modify voxctl configuration settings.`,
	}

	cmd.AddCommand(newConfigListCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())

	return cmd
}

func newConfigListCmd() *cobra.Command {
	var describe bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		Long:  `Display all configuration settings and their current values, including built-in defaults.`,
		Example: `  voxctl config list
  voxctl config list --describe
  voxctl config list --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			cfg := config.Load()

			if out.JSON {
				return out.PrintJSON(cfg.All())
			}

			if describe {
				printConfigReference(out)
				return nil
			}

			settings := flatten("", cfg.All())

			keys := make([]string, 0, len(settings))
			for key := range settings {
				keys = append(keys, key)
			}

			sort.Strings(keys)

			for _, key := range keys {
				out.Print("%s = %v\n", key, settings[key])
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&describe, "describe", false, "Describe every setting and its default")

	return cmd
}

func printConfigReference(out *output.Writer) {
	historyDir := "<user state dir>/voxctl/history"
	if resolved, err := paths.HistoryDir(); err == nil {
		historyDir = resolved
	}

	out.Println("Available settings:")
	out.Print("  api.url                  Assistant backend URL (default: %s)\n", config.DefaultAPIURL)
	out.Print("  api.timeout              Per-request HTTP timeout (default: %s)\n", config.DefaultAPITimeout)
	out.Print("  events.url               Push channel URL (default: derived from api.url)\n")
	out.Print("  events.reconnect_delay   Pause before resubscribing, 0 disables (default: %s)\n", config.DefaultReconnectDelay)
	out.Print("  poll.interval            System info refresh period (default: %s)\n", config.DefaultPollInterval)
	out.Print("  log.max_messages         Message log capacity, 0 is unbounded (default: 0)\n")
	out.Print("  session.sync             Read the run state from the backend on open (default: true)\n")
	out.Print("  history.enabled          Record message history (default: true)\n")
	out.Print("  history.dir              History storage directory (default: %s)\n", historyDir)
	out.Print("  history.retention        Default prune window (default: 720h)\n")
}

// flatten turns viper's nested settings into dotted keys.
func flatten(prefix string, settings map[string]interface{}) map[string]interface{} {
	flat := make(map[string]interface{}, len(settings))

	for key, value := range settings {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}

		if nested, ok := value.(map[string]interface{}); ok {
			for k, v := range flatten(full, nested) {
				flat[k] = v
			}

			continue
		}

		flat[full] = value
	}

	return flat
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <key>",
		Short:   "Get a configuration value",
		Long:    `Retrieve and display the current value of a single configuration key.`,
		Example: `  voxctl config get api.url`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			key := args[0]
			cfg := config.Load()
			value := cfg.Get(key)

			if value == nil {
				out.Muted("%s is not set", key)
				return nil
			}

			out.Print("%s = %v\n", key, value)

			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long:  `Set a configuration key to the given value. The value is persisted to the config file.`,
		Example: `  voxctl config set api.url http://192.168.1.20:5000
  voxctl config set poll.interval 2s`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			key, value := args[0], args[1]
			cfg := config.Load()

			if err := cfg.Set(key, value); err != nil {
				return clierrors.ConfigFailed("set config", err)
			}

			out.Success("Set %s = %s", key, value)

			return nil
		},
	}
}

// Package cli implements the wayfarer command line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldrover/wayfarer/internal/config"
	"github.com/fieldrover/wayfarer/internal/logging"
)

// version is injected at build time via -ldflags.
var version = "dev"

var (
	// global flags
	cfgPath   string
	logLevel  string
	logFormat string

	// appConfig is resolved once by the root command and shared by the
	// subcommands.
	appConfig config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default: wayfarer.yaml in the working or user config directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: auto, console, json")
}

var rootCmd = &cobra.Command{
	Use:     "wayfarer",
	Short:   "Mission sequencer for mobile robots",
	Version: version,
	Long: `Wayfarer drives a robot through a plan of ordered missions.

It publishes waypoint targets over TCP, listens for pose feedback over
UDP, and advances, retries or skips waypoints under per-waypoint time
budgets. Exploration missions replace unreachable waypoints with
halfway points instead of giving up.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.LogFormat = logFormat
		}
		if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
			return err
		}
		appConfig = cfg
		return nil
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the wayfarer version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "wayfarer", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

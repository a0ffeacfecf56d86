// Lifxlab discovers and controls LIFX lights on the local network.
//
// It speaks the LIFX LAN protocol directly over UDP: a discovery broadcast
// finds every light, then power and color commands are sent to each one
// individually. The same commands are available to other programs through
// an HTTP bridge started with 'lifxlab serve'.
//
// Usage:
//
//	lifxlab [command] [flags]
//
// See 'lifxlab --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/lifxlab/internal/config"
	"github.com/muurk/lifxlab/internal/logging"
	"github.com/muurk/lifxlab/internal/urls"
	"github.com/muurk/lifxlab/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
	jsonOutput bool
)

// cfg is loaded before any subcommand runs
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "lifxlab",
	Short: "LIFX LAN discovery and control",
	Long: `Discover and control LIFX lights on the local network.

Lights are found with a UDP broadcast on port 56700 and then controlled
one by one, so an unreachable light never blocks the others. Known lights
and their nicknames are kept in the configuration file.

Protocol reference: ` + urls.LANProtocol,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		level := logLevel
		if level == "" {
			level = cfg.LogLevel
		}
		return logging.Initialize(level)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default is the per-user config directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides "+logging.LogLevelEnvVar)
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")

	versionCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error { return nil }
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lifxlab %s\n", version.Full())
	},
}

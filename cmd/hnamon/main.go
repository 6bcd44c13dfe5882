// Command hnamon runs the hypernode-automaton/hypernode-logic runtime
// monitor: it compiles a JSON specification into a slice-tree automaton,
// drives an event-fixture file or a live daemon RPC surface through it,
// and reports the resulting verdict.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hna-go/hnamon/internal/config"
)

// Version is overridden at build time via -ldflags.
var Version = "0.0.0"

var (
	specPath     string
	socketPath   string
	configPath   string
	logLevelFlag string
	logJSON      bool
	telemetryOn  bool
	logger       *slog.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVar(&specPath, "spec", "", "path to the JSON hypernode automaton specification")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "daemon RPC socket path (default: config.yaml's socket-path)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: none, compiled-in defaults apply)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "override the configured log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit logs as JSON instead of slog's text handler")
	rootCmd.PersistentFlags().BoolVar(&telemetryOn, "telemetry", false, "emit OpenTelemetry spans/metrics to stderr")

	rootCmd.AddCommand(runCmd, daemonCmd, checkCmd)
}

var rootCmd = &cobra.Command{
	Use:     "hnamon",
	Short:   "hnamon - a hypernode-automaton/hypernode-logic runtime monitor",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(configPath); err != nil {
			return fmt.Errorf("initializing configuration: %w", err)
		}
		if !cmd.Flags().Changed("socket") {
			socketPath = viperSocketPath()
		}

		level := logLevelFlag
		if level == "" {
			level = config.GetString("log-level")
		}
		logger = newLogger(level, logJSON)
		slog.SetDefault(logger)
		return nil
	},
}

// viperSocketPath reads the effective socket-path setting, falling back
// to config's own compiled-in default -- see internal/config.Initialize.
func viperSocketPath() string {
	if v := config.GetString("socket-path"); v != "" {
		return v
	}
	return "/tmp/hnamon.sock"
}

func newLogger(level string, asJSON bool) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func requireSpecPath() (string, error) {
	if specPath != "" {
		return specPath, nil
	}
	return "", fmt.Errorf("--spec is required")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

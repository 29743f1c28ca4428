// Command runwatch starts hedge-fund runs and follows their agents.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/runwatch/internal/config"
)

var (
	cfg      = config.Load()
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "runwatch",
	Short: "Start hedge-fund runs and follow their agents",
	Long: `runwatch posts a run to the hedge-fund backend, consumes its event
stream and keeps a live per-agent view of the run. It can serve that view
over HTTP and websocket, or follow a single run in the terminal.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(newLogger(logLevel))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&cfg.BackendURL, "backend", cfg.BackendURL, "Hedge-fund backend base URL")
	rootCmd.PersistentFlags().StringVar(&cfg.DatabaseURL, "db", cfg.DatabaseURL, "Run journal DSN")
	rootCmd.PersistentFlags().StringVar(&cfg.PolicyFile, "policy", cfg.PolicyFile, "Admission policy file (rego)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger creates a structured logger at the given level.
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

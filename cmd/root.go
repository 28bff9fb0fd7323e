// Package cmd implements the argonaut command-line interface.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/oceanlab/argonaut/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "argonaut",
	Short: "Conversational query service for ARGO float data",
	Long: `Argonaut answers natural-language questions about an ARGO float
oceanographic database. It serves a chat HTTP API backed by a language-model
agent with SQL fallbacks, and ingests instrument NetCDF files into the
relational schema it queries against.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger. DEBUG (any value) enables debug
// level; LOG_JSON switches to JSON output for log collectors.
func newLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	if os.Getenv("LOG_JSON") != "" {
		cfg.JSON = true
	}
	return log.New(cfg)
}

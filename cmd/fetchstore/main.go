// Package main is the entry point for the fetchstore CLI.
//
// fetchstore can be used either as a library or as a standalone binary with
// YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	fetchstore get https://api.example.com/posts  # Fetch once, print every state
//	fetchstore get -c config.yaml                 # Same, from a config file
//	fetchstore serve -c config.yaml               # Expose the store over HTTP
//	fetchstore validate -c config.yaml            # Validate configuration
//	fetchstore version                            # Show version info
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// newRootCmd builds the command tree. A fresh tree per invocation keeps flag
// state from leaking between runs.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fetchstore",
		Short: "Fetch an HTTP resource with retries and watch its state",
		Long: `fetchstore wraps a single HTTP request in a reactive store.

The store tracks {results, loading, error}, retries failures with a fixed
delay, and can be refetched or aborted. Every state change is published to
subscribers: printed as JSON lines by "get", streamed over Server-Sent Events
by "serve".

Quick start:
  fetchstore get https://jsonplaceholder.typicode.com/posts --limit 3

Example config:
  url: https://api.example.com/posts
  retries: 2
  retry_delay: 500ms
  transform:
    path: data.items
    limit: 3`,
		SilenceUsage: true,
		// No Run/RunE means this just shows help when called without subcommands
	}

	rootCmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newGetCmd(),
		newServeCmd(),
		newValidateCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

// newLogger creates a JSON logger for CLI use at the level named by the
// --log-level flag.
func newLogger(cmd *cobra.Command, w io.Writer) (*slog.Logger, error) {
	name, _ := cmd.Flags().GetString("log-level")

	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", name, err)
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})), nil
}

// newVersionCmd prints version information.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, and build date of this fetchstore binary.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "fetchstore %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

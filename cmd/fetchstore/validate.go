package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/fetchstore/config"
)

// newValidateCmd validates a config file without fetching anything.
func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file",
		Long: `Validate a fetchstore configuration file without making any request.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  fetchstore validate -c config.yaml
  fetchstore validate --config /etc/fetchstore/config.yaml`,
		RunE: runValidate,
	}

	cmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("validate %s: %w", configFile, err)
	}

	retryDelay := "default (1s)"
	if cfg.RetryDelay != 0 {
		retryDelay = cfg.RetryDelay.Duration().String()
	}
	timeout := "default (30s)"
	if cfg.Timeout != 0 {
		timeout = cfg.Timeout.Duration().String()
	}
	transform := "none"
	if !cfg.Transform.Empty() {
		transform = fmt.Sprintf("path=%q limit=%d", cfg.Transform.Path, cfg.Transform.Limit)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  URL:         %s %s\n", cfg.Method, cfg.URL)
	fmt.Fprintf(out, "  Attempts:    %d (%d retries, delay %s)\n", cfg.Retries+1, cfg.Retries, retryDelay)
	fmt.Fprintf(out, "  Timeout:     %s\n", timeout)
	fmt.Fprintf(out, "  Transform:   %s\n", transform)
	fmt.Fprintf(out, "  Port:        %d\n", cfg.Port)

	return nil
}

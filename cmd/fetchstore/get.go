package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/fetchstore"
	"github.com/jpalmerr/fetchstore/config"
)

// newGetCmd runs one store until its first sequence settles.
func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [url]",
		Short: "Fetch a URL and print every state change",
		Long: `Fetch a URL (or the URL of a config file) and print every state the
store publishes as one JSON line on stdout:

  {"results":null,"loading":true,"error":null}
  {"results":null,"loading":false,"error":"http error: ...: 503 Service Unavailable"}
  {"results":null,"loading":true,"error":null}
  {"results":[...],"loading":false,"error":null}

Flags override values from the config file.

Exit codes:
  0 - The request succeeded
  1 - The request failed after all retries, or was interrupted

Example:
  fetchstore get https://api.example.com/posts --retries 2 --retry-delay 500ms
  fetchstore get -c config.yaml --limit 3`,
		Args: cobra.MaximumNArgs(1),
		RunE: runGet,
	}

	cmd.Flags().StringP("config", "c", "", "path to config file")
	cmd.Flags().StringP("method", "X", "", "HTTP method")
	cmd.Flags().StringArrayP("header", "H", nil, `request header as "Key: Value" (repeatable)`)
	cmd.Flags().StringP("data", "d", "", "request body")
	cmd.Flags().Int("retries", 0, "number of retries after a failed attempt")
	cmd.Flags().Duration("retry-delay", 0, "delay between attempts (default 1s)")
	cmd.Flags().Duration("timeout", 0, "timeout per attempt (default 30s)")
	cmd.Flags().String("path", "", "dot-notation path selecting part of the response")
	cmd.Flags().Int("limit", 0, "keep at most this many array elements")

	return cmd
}

func runGet(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	cfg, err := loadGetConfig(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := fetchstore.New[any](ctx, cfg.URL, config.BuildOptions(cfg, logger)...)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer store.Abort()

	// calls are sequential, but encErr is read back on this goroutine
	var (
		mu     sync.Mutex
		encErr error
	)
	enc := json.NewEncoder(cmd.OutOrStdout())
	store.Subscribe(func(s fetchstore.State[any]) {
		mu.Lock()
		defer mu.Unlock()
		if encErr == nil {
			encErr = enc.Encode(s)
		}
	})

	st, err := store.Wait(ctx)
	if err != nil {
		if errors.Is(err, fetchstore.ErrAborted) || ctx.Err() != nil {
			return errors.New("interrupted")
		}
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if encErr != nil {
		return fmt.Errorf("failed to write state: %w", encErr)
	}
	if st.Error != nil {
		return fmt.Errorf("fetch failed: %w", st.Error)
	}
	return nil
}

// loadGetConfig builds the config from -c or the URL argument, then applies
// flag overrides and validates the result.
func loadGetConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.Config
		err error
	)
	switch {
	case configFile != "" && len(args) > 0:
		return nil, errors.New("pass either a URL or --config, not both")
	case configFile != "":
		cfg, err = config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	case len(args) == 1:
		cfg, err = config.FromURL(args[0])
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("a URL argument or --config is required")
	}

	flags := cmd.Flags()
	if flags.Changed("method") {
		cfg.Method, _ = flags.GetString("method")
		cfg.Method = strings.ToUpper(cfg.Method)
	}
	if flags.Changed("header") {
		headers, _ := flags.GetStringArray("header")
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(headers))
		}
		for _, h := range headers {
			key, value, ok := strings.Cut(h, ":")
			if !ok || strings.TrimSpace(key) == "" {
				return nil, fmt.Errorf("invalid header %q, want \"Key: Value\"", h)
			}
			cfg.Headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
	if flags.Changed("data") {
		cfg.Body, _ = flags.GetString("data")
	}
	if flags.Changed("retries") {
		cfg.Retries, _ = flags.GetInt("retries")
	}
	if flags.Changed("retry-delay") {
		d, _ := flags.GetDuration("retry-delay")
		cfg.RetryDelay = config.Duration(d)
	}
	if flags.Changed("timeout") {
		d, _ := flags.GetDuration("timeout")
		cfg.Timeout = config.Duration(d)
	}
	if flags.Changed("path") {
		cfg.Transform.Path, _ = flags.GetString("path")
	}
	if flags.Changed("limit") {
		cfg.Transform.Limit, _ = flags.GetInt("limit")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

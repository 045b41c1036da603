package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/fetchstore"
	"github.com/jpalmerr/fetchstore/config"
	"github.com/jpalmerr/fetchstore/internal/server"
)

// shutdownTimeout bounds how long serve waits for the store and server to stop.
const shutdownTimeout = 10 * time.Second

// newServeCmd exposes a configured store over HTTP.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose a store over HTTP",
		Long: `Run a store from a config file behind an HTTP server.

The store starts fetching immediately and is served on the configured port:
      GET  /api/state    current state and phase as JSON
      GET  /api/sse      Server-Sent Events stream of every state change
      POST /api/refetch  restart the request with a fresh retry budget
      POST /api/abort    abort the store

SIGINT or SIGTERM aborts the store and stops the server.

Example:
  fetchstore serve -c config.yaml
  fetchstore serve --config /etc/fetchstore/config.yaml --port 9090`,
		RunE: runServe,
	}

	cmd.Flags().StringP("config", "c", "", "path to config file (required)")
	cmd.Flags().IntP("port", "p", 0, "override the configured port")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger.Info("serving store", "url", cfg.URL, "retries", cfg.Retries, "port", cfg.Port)

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := fetchstore.New[any](ctx, cfg.URL, config.BuildOptions(cfg, logger)...)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer store.Abort()

	g, gctx := errgroup.WithContext(ctx)

	srv := server.NewServer(server.FromStore(store), cfg.Port, logger)
	if err := srv.Start(gctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	// report how the first sequence settled
	g.Go(func() error {
		st, err := store.Wait(gctx)
		switch {
		case err != nil:
			return nil
		case st.Error != nil:
			logger.Warn("initial fetch failed", "error", st.Error.Error())
		default:
			logger.Info("initial fetch succeeded")
		}
		return nil
	})

	// stop the store on shutdown
	g.Go(func() error {
		<-gctx.Done()
		store.Abort()
		<-store.Done()
		return nil
	})

	stopped := make(chan error, 1)
	go func() { stopped <- g.Wait() }()

	<-ctx.Done()
	logger.Info("shutting down")

	select {
	case err := <-stopped:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info("stopped")
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timed out, exiting anyway", "timeout", shutdownTimeout.String())
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/owlplug/owlplug-engine/internal/server"
)

var serveListen string

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server. Units of work submitted through the API run on
the background worker pool; their progress can be followed with
GET /api/tasks/{id}/events. Prometheus metrics are served on /metrics.

By default, the server listens on the address configured in the config file
(default: 127.0.0.1:8470). Use --listen to override.`,
		Example: `  owlplug serve
  owlplug serve --listen 0.0.0.0:9000`,
		Args: cobra.NoArgs,
		RunE: serveRun,
	}

	cmd.Flags().StringVar(&serveListen, "listen", "", "address to listen on (host:port)")

	return cmd
}

func serveRun(cmd *cobra.Command, args []string) error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}
	if globalRunner == nil {
		return fmt.Errorf("task runner not initialized")
	}

	listen := serveListen
	if listen == "" {
		listen = globalCfg.Server.Listen
	}

	logger.Info("server starting", "listen", listen, "data_dir", globalCfg.Server.DataDir, "version", version)

	srv := server.NewServer(globalRunner, globalStore, globalSyncer, globalInstaller, globalExplorer, globalCfg, logger)

	// Channel to listen for errors from server
	errChan := make(chan error, 1)

	go func() {
		fmt.Fprintf(cmd.OutOrStdout(), "Starting server on %s...\n", listen)
		if err := srv.Start(listen); err != nil {
			errChan <- err
		}
	}()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
		fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Server stopped gracefully")
	}

	return nil
}

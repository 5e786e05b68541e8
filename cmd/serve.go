package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pders01/research-collector/internal/config"
	"github.com/pders01/research-collector/internal/invocation"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept invocation payloads over HTTP",
	Long: `Listen for invocation payloads and run them one at a time.

  POST /invoke   body is an invocation payload, response is the result JSON
  GET  /healthz  liveness check

Examples:
  collector serve
  collector serve --addr 127.0.0.1:9000
  curl -d '{"mode":"archive"}' localhost:8080/invoke`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := serveAddr
	if addr == "" {
		addr = config.GetServerAddr()
	}

	d, err := buildDeps(cmd, true)
	if err != nil {
		return err
	}
	h := &invocation.Handler{
		Research: d.orchestrator(researchOptions()),
		Archive:  d.engine(),
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           invocation.NewServer(h, d.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		d.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	d.logger.Info("server stopped")
	return nil
}

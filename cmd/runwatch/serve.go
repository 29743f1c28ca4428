package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/runwatch/internal/domain"
	"github.com/xiaot623/gogo/runwatch/internal/hub"
	internalhttp "github.com/xiaot623/gogo/runwatch/internal/transport/http"
	"github.com/xiaot623/gogo/runwatch/internal/transport/ws"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the agent view over HTTP and websocket",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&cfg.HTTPPort, "port", cfg.HTTPPort, "HTTP listen port")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting runwatch", "port", cfg.HTTPPort, "backend", cfg.BackendURL, "database", cfg.DatabaseURL)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	observers := hub.NewHub()
	go observers.Run(hubCtx)
	unsubscribe := a.service.Subscribe(observers.ObserveSnapshot)
	defer unsubscribe()

	e := internalhttp.NewServer(a.service, ws.NewServer(cfg, observers, a.service))

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	slog.Info("HTTP server started", "port", cfg.HTTPPort)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	slog.Info("shutting down runwatch")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := a.service.CancelRun(shutdownCtx); err != nil && !errors.Is(err, domain.ErrNoActiveRun) {
		slog.Warn("failed to cancel run on shutdown", "error", err)
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Warn("failed to shutdown HTTP server gracefully", "error", err)
	}

	slog.Info("runwatch stopped")
	return nil
}

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
	"github.com/use-agent/shopee-scraper/api"
)

// shutdownGrace is how long in-flight scrapes get to finish on shutdown.
const shutdownGrace = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default).",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	// ── 1. Load configuration and logging ───────────────────────────
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slog.Info("shopee-scraper starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxSessions", cfg.Browser.MaxSessions,
		"headless", cfg.Browser.Headless,
		"proxies", len(cfg.Proxy.Endpoints),
	)

	// ── 2. Build the pipeline ───────────────────────────────────────
	sc, cleanup, err := buildScraper(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// ── 3. Setup router ─────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router := api.NewRouter(ctx, sc, cfg, time.Now())

	// ── 4. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// ── 5. Graceful shutdown ────────────────────────────────────────
	select {
	case err := <-serveErr:
		return fmt.Errorf("HTTP server: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	// Shutdown waits for in-flight handlers, which release their browsers.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("shopee-scraper stopped")
	return nil
}

// pushbolt server: serves the application/client API and the topic API,
// runs the delivery workers, and owns graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pushbolt/pushbolt/pkg/api"
	"github.com/pushbolt/pushbolt/pkg/auth"
	"github.com/pushbolt/pushbolt/pkg/config"
	"github.com/pushbolt/pushbolt/pkg/database"
	"github.com/pushbolt/pushbolt/pkg/fabric"
	"github.com/pushbolt/pushbolt/pkg/mailer"
	"github.com/pushbolt/pushbolt/pkg/pipeline"
	"github.com/pushbolt/pushbolt/pkg/pushrelay"
	"github.com/pushbolt/pushbolt/pkg/ratelimit"
	"github.com/pushbolt/pushbolt/pkg/store"
	"github.com/pushbolt/pushbolt/pkg/version"
	"github.com/pushbolt/pushbolt/pkg/webhooks"
	"github.com/pushbolt/pushbolt/pkg/workers"
)

// seedAdmin creates the default admin account on a fresh database so the
// server is reachable before any user management happens.
func seedAdmin(ctx context.Context, st *store.Store) error {
	count, err := st.Users.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword("admin")
	if err != nil {
		return err
	}
	if _, err := st.Users.Create(ctx, "admin", hash, nil, true); err != nil {
		return err
	}
	slog.Warn("seeded default admin account, change its password immediately",
		"username", "admin")
	return nil
}

func main() {
	slog.Info("Starting pushbolt", "version", version.Full())

	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Database (connect, migrate)
	dbClient, err := database.NewClient(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()

	st := store.New(dbClient.DB())
	if err := seedAdmin(ctx, st); err != nil {
		slog.Error("Failed to seed admin account", "error", err)
		os.Exit(1)
	}

	// 3. Core services
	hub := fabric.NewHub()
	hubCtx, hubCancel := context.WithCancel(ctx)
	go hub.Run(hubCtx)

	dispatcherCtx, dispatcherCancel := context.WithCancel(ctx)
	dispatcher := webhooks.NewDispatcher(dispatcherCtx, st)

	var mail pipeline.Mailer
	if m := mailer.NewFromConfig(cfg); m != nil {
		mail = m
	}

	pl := pipeline.New(st, hub, dispatcher, mail)
	limiter := ratelimit.New(cfg.RateLimitBurst, cfg.RateLimitRPS)
	relay := pushrelay.NewForwarder()

	// 4. Workers (before the HTTP server)
	runner := workers.NewRunner(st, pl, limiter)
	runner.Start(ctx)

	// 5. HTTP server (non-blocking)
	server := api.NewServer(cfg, dbClient, st, hub, pl, limiter, relay)
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("pushbolt started", "addr", cfg.ListenAddr)

	// 6. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	exitCode := 0
	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
		exitCode = 1
	}

	// 7. Graceful shutdown: drain requests, then stop workers and streams.
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout()+5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	done := make(chan struct{})
	go func() {
		runner.Stop()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("Workers stopped gracefully")
	case <-shutdownCtx.Done():
		slog.Warn("Worker shutdown timeout exceeded")
	}

	dispatcherCancel()
	hubCancel()

	slog.Info("Shutdown complete")
	os.Exit(exitCode)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/whitedemon938/Turnstile-Solver/api"
	"github.com/whitedemon938/Turnstile-Solver/browser"
	"github.com/whitedemon938/Turnstile-Solver/config"
	"github.com/whitedemon938/Turnstile-Solver/solver"
	"github.com/whitedemon938/Turnstile-Solver/taskstore"
)

func main() {
	if err := run(); err != nil {
		slog.Error("turnstile solver exited with error", "error", err)
		os.Exit(1)
	}
}

// run owns the full server lifecycle. Returning instead of exiting lets the
// deferred solver and task store teardown run on every path, including a
// listener that fails to bind after the browsers have already launched.
func run() error {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("turnstile solver starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"browsers", cfg.Browser.Browsers,
	)

	if cfg.Browser.Headless && cfg.Browser.UserAgent == "" {
		slog.Warn("headless mode without a custom user agent is easy to fingerprint; set SOLVER_USER_AGENT")
	}

	// ── 3. Initialise solver (launches browser pool) ────────────────
	engine := browser.NewRodEngine(cfg.Browser)
	sv, err := solver.New(engine, browser.TimerSleeper{}, cfg.Browser, cfg.Solver)
	if err != nil {
		return fmt.Errorf("initialise solver: %w", err)
	}
	defer sv.Close()

	// ── 4. Initialise task store ────────────────────────────────────
	ts := taskstore.New(cfg.Tasks.MaxEntries, cfg.Tasks.TTL)
	defer ts.Stop()

	// ── 5. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(sv, ts, cfg, startTime)

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-serveErr:
		slog.Error("HTTP server error", "error", err)
		runErr = err
	}

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// sv.Close() runs via defer — drains both pools and kills Chrome.
	slog.Info("turnstile solver stopped")
	return runErr
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

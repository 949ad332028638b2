package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/sigillum/api"
	"github.com/use-agent/sigillum/api/handler"
	"github.com/use-agent/sigillum/api/middleware"
	"github.com/use-agent/sigillum/cache"
	"github.com/use-agent/sigillum/config"
	"github.com/use-agent/sigillum/engine"
	"github.com/use-agent/sigillum/scraper"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log, os.Stdout)
	slog.Info("sigillum starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxSessions", cfg.Browser.MaxSessions,
		"baseURL", cfg.Scraper.BaseURL,
	)

	// ── 3. Initialise scraper ───────────────────────────────────────
	// Browsers are launched per run, so startup does not touch Chromium.
	launcher := engine.NewRodLauncher(cfg.Browser, cfg.Scraper)
	sc := scraper.New(launcher, cfg.Scraper,
		scraper.WithSelectors(cfg.Selectors),
		scraper.WithOutput(cfg.Output),
		scraper.WithMaxSessions(cfg.Browser.MaxSessions),
		scraper.WithObserver(scraper.NewSlogObserver(slog.Default())),
	)

	// ── 4. Cache, jobs and rate limiter ─────────────────────────────
	cc := cache.New(cfg.Cache.MaxEntries, time.Hour)
	defer cc.Close()
	jobs := handler.NewJobStore(time.Hour)
	defer jobs.Close()
	limiter := middleware.NewLimiter(cfg.RateLimit)
	defer limiter.Close()

	// ── 5. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(cfg, api.Deps{
		Runner:    sc,
		Cache:     cc,
		Jobs:      jobs,
		Limiter:   limiter,
		StartTime: time.Now(),
	})

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// A run can take minutes; in-flight runs get their full budget.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Scraper.RunTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("sigillum stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig, w io.Writer) {
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

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	slog.SetDefault(slog.New(h))
}

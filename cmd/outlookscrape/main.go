package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Skytheredhead/outlookscrape/internal/browser"
	"github.com/Skytheredhead/outlookscrape/internal/config"
	"github.com/Skytheredhead/outlookscrape/internal/control"
	"github.com/Skytheredhead/outlookscrape/internal/forwarder"
	"github.com/Skytheredhead/outlookscrape/internal/logbuf"
	"github.com/Skytheredhead/outlookscrape/internal/mailer"
	"github.com/Skytheredhead/outlookscrape/internal/scanner"
	"github.com/Skytheredhead/outlookscrape/internal/session"
	"github.com/Skytheredhead/outlookscrape/internal/store"
	"github.com/Skytheredhead/outlookscrape/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	stateDir := flag.String("state-dir", "", "override the state directory from the configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *stateDir != "" {
		cfg.StateDir = *stateDir
	}

	logs := logbuf.NewBuffer(logbuf.DefaultSize)
	logger := setupLogger(cfg.LogLevel, logs)

	settings, err := store.OpenSettings(cfg.StateDir)
	if err != nil {
		fatal(err)
	}
	registry, err := store.OpenRegistry(cfg.StateDir)
	if err != nil {
		fatal(err)
	}
	counter, err := store.OpenCounter(cfg.StateDir)
	if err != nil {
		fatal(err)
	}
	marker := store.NewMarker(cfg.StateDir)
	logger.Info("loaded automation state",
		"state_dir", cfg.StateDir,
		"forwarded_total", registry.Count(),
		"profile_ready", marker.Exists(),
	)

	launcher := &browser.ChromeLauncher{
		ProfileDir: store.ProfileDir(cfg.StateDir),
		Binary:     cfg.Browser.Binary,
		Logger:     logger,
	}
	sessions := session.NewManager(launcher, marker, cfg.Browser.Headless, logger)
	gmail := mailer.New(cfg.StateDir, logger)
	scan := scanner.New(cfg.Folders, scanner.NewHumanPacer(), logger)
	pipeline := forwarder.New(gmail, registry, counter, logger)
	loop := worker.New(sessions, scan, pipeline, gmail, settings, registry, counter, logger)

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: control.New(loop, sessions, settings, logs, logger).Handler(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		logger.Info("control surface listening", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("control surface failed", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	// Force exit on second signal.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Warn("forced shutdown")
		os.Exit(1)
	}()

	loop.Stop()
	sessions.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("control surface shutdown failed", "error", err)
	}
	logger.Info("outlookscrape stopped")
}

func setupLogger(level string, logs *logbuf.Buffer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	text := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logbuf.Wrap(text, logs))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

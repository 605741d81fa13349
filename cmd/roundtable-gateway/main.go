// ABOUTME: Entry point for the roundtable-gateway room server
// ABOUTME: Wires store, room service, scheduling director and the HTTP API

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/2389/roundtable/internal/classify"
	"github.com/2389/roundtable/internal/config"
	"github.com/2389/roundtable/internal/director"
	"github.com/2389/roundtable/internal/gateway"
	"github.com/2389/roundtable/internal/llm"
	"github.com/2389/roundtable/internal/reaction"
	"github.com/2389/roundtable/internal/room"
	"github.com/2389/roundtable/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

// getConfigPath returns the path to the gateway config file.
// Priority: ROUNDTABLE_CONFIG env var > XDG_CONFIG_HOME/roundtable/gateway.yaml
// > ~/.config/roundtable/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("ROUNDTABLE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "roundtable", "gateway.yaml")
}

func main() {
	// Best-effort: a missing .env is normal outside development.
	_ = godotenv.Load()

	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Println("roundtable-gateway", version)
		return
	}

	if err := run(); err != nil {
		slog.Error("gateway failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	setupLogging(cfg.Logging)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	logger := slog.Default()
	bus := room.NewBroadcaster(logger)
	defer bus.Close()
	rooms := room.NewService(st, bus, logger)

	gen, err := buildGenerator(cfg.Generator)
	if err != nil {
		return err
	}

	var rnd reaction.RandomSource
	if cfg.Scheduler.Seed != 0 {
		rnd = reaction.DefaultSource(cfg.Scheduler.Seed)
	}
	dir := director.New(st, rooms,
		classify.New(nil, logger),
		reaction.New(nil, rnd, logger),
		gen, logger)
	dir.SetHistoryLimit(cfg.Scheduler.HistoryLimit)

	gw := gateway.New(st, rooms, dir, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- gw.Start(cfg.Server.HTTPAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return gw.Shutdown(shutdownCtx)
}

func buildGenerator(cfg config.GeneratorConfig) (director.Generator, error) {
	switch cfg.Backend {
	case "openai":
		return llm.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout), nil
	case "scripted":
		return llm.NewScripted(), nil
	default:
		return nil, fmt.Errorf("unknown generator backend %q", cfg.Backend)
	}
}

func setupLogging(cfg config.LoggingConfig) {
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
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// Package main is the entry point for the heliokv server application.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ASHISH26940/heliokv/internal/config"
	"github.com/ASHISH26940/heliokv/internal/events"
	"github.com/ASHISH26940/heliokv/internal/handler"
	"github.com/ASHISH26940/heliokv/internal/logging"
	internal_raft "github.com/ASHISH26940/heliokv/internal/raft"
	"github.com/ASHISH26940/heliokv/internal/server"
	"github.com/ASHISH26940/heliokv/internal/store"
	"github.com/ASHISH26940/heliokv/internal/telemetry"
	"github.com/hashicorp/go-hclog"
)

func main() {
	// --- Configuration and Flags ---
	configFile := flag.String("config", "", "Path to config file (.toml, .yaml)")
	port := flag.Int("port", 0, "Override the HTTP port")
	engine := flag.String("engine", "", "Override the storage engine (local, raft)")
	flag.Parse()

	cfg, err := loadConfig(*configFile, *port, *engine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "heliokv: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{Name: "heliokv", Level: cfg.LogLevel, JSON: cfg.LogJSON})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string, port int, engine string) (*config.Config, error) {
	cfg := config.New()
	if path != "" {
		if err := cfg.Load(path); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	if port > 0 {
		cfg.Port = port
	}
	if engine != "" {
		cfg.Engine = engine
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, logger hclog.Logger) error {
	// --- Store and engine ---
	st := store.NewStoreWithShards(cfg.Store.Shards)
	logger.Warn("store is in-memory only; all data is lost when the process exits")

	var backend handler.Backend = st
	if cfg.Engine == config.EngineRaft {
		node, err := internal_raft.NewNode(st, internal_raft.Config{
			NodeID:       cfg.NodeID,
			ApplyTimeout: cfg.ApplyTimeoutDuration(),
			Logger:       logger.Named("raft"),
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := node.Shutdown(); err != nil {
				logger.Error("raft shutdown failed", "error", err)
			}
		}()
		backend = node
	}
	logger.Info("storage engine ready", "engine", cfg.Engine, "shards", cfg.Store.Shards)

	// --- Telemetry and change feed ---
	m, sink, err := telemetry.New()
	if err != nil {
		return err
	}
	bus := events.NewBus(cfg.Events.Buffer)
	defer bus.Close()

	// --- Start the HTTP Server ---
	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: server.New(backend, server.Options{
			Bus:     bus,
			Metrics: m,
			Sink:    sink,
			Logger:  logger.Named("http"),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	timeout := cfg.ShutdownTimeoutDuration()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	// Close the bus first so open /watch streams end and do not hold up Shutdown.
	bus.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

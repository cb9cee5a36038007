// Package app assembles and runs the server process.
package app

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"time"

	"golang.org/x/sync/errgroup"

	server "warbound/server"
	"warbound/server/internal/config"
	"warbound/server/internal/content"
	servernet "warbound/server/internal/net"
	"warbound/server/internal/telemetry"
)

const shutdownGrace = 10 * time.Second

// Options carries process-level knobs resolved by main.
type Options struct {
	// ConfigPath points at the YAML config; empty runs on defaults.
	ConfigPath string
}

// Run boots the server and blocks until ctx is cancelled or the listener
// fails.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	logger, flush, err := telemetry.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("app: build logger: %w", err)
	}
	defer flush()

	metrics := telemetry.NewCounters()

	collections, err := content.Load(logger)
	if err != nil {
		return err
	}

	hub := server.NewHub(server.HubConfig{
		Sim:         cfg.Sim,
		Seed:        cfg.Seed,
		Collections: collections,
		Logger:      logger,
		Metrics:     metrics,
	})
	defer hub.Shutdown()

	router := servernet.NewRouter(hub, servernet.RouterConfig{Logger: logger})
	httpServer := &nethttp.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Infow("server listening", "addr", cfg.Addr, "tickRate", cfg.Sim.TickRate)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("app: listen: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Infow("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

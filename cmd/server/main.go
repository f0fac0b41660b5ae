// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/resonance/internal/config"
	"github.com/tomtom215/resonance/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		// config not yet available, the default logger is used
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(loggingConfig(cfg.Logging))
	logging.Info().
		Str("version", version).
		Str("storage_driver", cfg.Storage.Driver).
		Str("rate_limit_store", cfg.RateLimit.Store).
		Str("events_transport", cfg.Events.Transport).
		Bool("scheduler_enabled", cfg.Sync.Enabled).
		Msg("Starting Resonance")

	a, err := buildApp(cfg)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to initialize")
		_ = logging.Close()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", a.addr).Msg("Starting supervisor tree")
	errCh := a.tree.ServeBackground(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
		serveErr = <-errCh
	case serveErr = <-errCh:
		cancel()
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
	}

	if unstopped, _ := a.tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	if err := a.close(); err != nil {
		logging.Error().Err(err).Msg("Error during shutdown")
	}
	logging.Info().Msg("Resonance stopped")
	_ = logging.Close()
}

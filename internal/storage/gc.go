// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/metrics"
)

// GC defaults.
const (
	DefaultGCInterval     = 10 * time.Minute
	DefaultGCDiscardRatio = 0.5
)

// GCService periodically reclaims BadgerDB value log space. It runs as a
// supervised service.
type GCService struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	logger   zerolog.Logger
}

// NewGCService creates a GC loop for store. A non-positive interval uses
// DefaultGCInterval.
func NewGCService(store *BadgerStore, interval time.Duration) *GCService {
	if interval <= 0 {
		interval = DefaultGCInterval
	}
	return &GCService{
		db:       store.DB(),
		interval: interval,
		ratio:    DefaultGCDiscardRatio,
		logger:   logging.WithComponent("storage-gc"),
	}
}

// Serve implements suture.Service.
func (g *GCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	g.logger.Info().Dur("interval", g.interval).Msg("Storage GC started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := g.RunOnce(); err != nil {
				g.logger.Error().Err(err).Msg("Storage GC failed")
			}
		}
	}
}

// RunOnce rewrites value log files until nothing is left to reclaim.
func (g *GCService) RunOnce() error {
	start := time.Now()
	rewrites := 0
	for {
		err := g.db.RunValueLogGC(g.ratio)
		if errors.Is(err, badger.ErrNoRewrite) {
			break
		}
		if err != nil {
			metrics.RecordStorageGC("error", time.Since(start))
			return err
		}
		rewrites++
	}

	result := "noop"
	if rewrites > 0 {
		result = "rewritten"
		g.logger.Debug().Int("rewrites", rewrites).Msg("Value log GC reclaimed space")
	}
	metrics.RecordStorageGC(result, time.Since(start))
	return nil
}

// String implements fmt.Stringer.
func (g *GCService) String() string {
	return "storage-gc"
}

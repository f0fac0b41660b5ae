// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/resonance/internal/api"
	"github.com/tomtom215/resonance/internal/backup"
	"github.com/tomtom215/resonance/internal/cache"
	"github.com/tomtom215/resonance/internal/comparison"
	"github.com/tomtom215/resonance/internal/config"
	"github.com/tomtom215/resonance/internal/events"
	"github.com/tomtom215/resonance/internal/graphapi"
	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/models"
	"github.com/tomtom215/resonance/internal/platform"
	"github.com/tomtom215/resonance/internal/ratelimit"
	"github.com/tomtom215/resonance/internal/storage"
	"github.com/tomtom215/resonance/internal/supervisor"
	"github.com/tomtom215/resonance/internal/supervisor/services"
	syncpkg "github.com/tomtom215/resonance/internal/sync"
	ws "github.com/tomtom215/resonance/internal/websocket"
)

// redisPingTimeout bounds the startup connectivity check.
const redisPingTimeout = 5 * time.Second

// app holds the components that need closing after the tree stops.
type app struct {
	addr      string
	tree      *supervisor.SupervisorTree
	scheduler *syncpkg.Scheduler
	bus       *events.Bus
	limiter   *ratelimit.Limiter
	redis     *redis.Client
	store     storage.Store
}

// buildApp wires every component in startup order. On error the
// components built so far are closed.
func buildApp(cfg *config.Config) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			if cerr := a.close(); cerr != nil {
				logging.Warn().Err(cerr).Msg("Cleanup after failed startup")
			}
		}
	}()

	a.store, err = storage.Open(storage.Config{
		Driver:           cfg.Storage.Driver,
		Path:             cfg.Storage.Path,
		EncryptionSecret: cfg.Storage.EncryptionSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	logging.Info().Str("driver", cfg.Storage.Driver).Msg("Storage opened")

	if err := a.buildLimiter(cfg); err != nil {
		return nil, err
	}

	client := graphapi.NewClient(graphapi.Config{
		BaseURL:          cfg.Graph.BaseURL,
		Version:          cfg.Graph.Version,
		Timeout:          cfg.Graph.Timeout,
		CircuitBreaker:   cfg.Graph.CircuitBreaker,
		UsageWarnPercent: cfg.Graph.UsageWarnPercent,
	})
	deps := platform.Deps{Client: client, Limiter: a.limiter, Strategy: retryStrategy(cfg.Retry)}
	registry := platform.NewRegistry(platform.NewInstagram(deps), platform.NewFacebook(deps))

	a.bus, err = events.NewBus(events.Config{
		Transport:      cfg.Events.Transport,
		NATSURL:        cfg.Events.NATSURL,
		EmbeddedServer: cfg.Events.EmbeddedServer,
		EmbeddedHost:   cfg.Events.EmbeddedHost,
		EmbeddedPort:   cfg.Events.EmbeddedPort,
	})
	if err != nil {
		return nil, fmt.Errorf("connect event bus: %w", err)
	}

	resultCache := cache.New(cache.Config{TTL: cfg.Cache.TTL, CleanupInterval: cfg.Cache.CleanupInterval})
	engine := comparison.NewEngine(a.store, resultCache, comparison.WithAnomalyHook(events.AnomalyHook(a.bus)))
	analyzer := events.NewHotspotAnalyzer(a.store, a.bus, events.HotspotConfig{
		Multiplier:   cfg.Events.HotspotMultiplier,
		LookbackDays: cfg.Events.HotspotLookback,
	})

	opts := []syncpkg.Option{
		syncpkg.WithCacheInvalidator(engine),
		syncpkg.WithCompletionHook(events.SyncCompletedHook(a.bus)),
	}
	if cfg.Sync.HotspotsEnabled {
		opts = append(opts, syncpkg.WithHotspotDetector(analyzer))
	}
	orchestrator := syncpkg.NewOrchestrator(a.store, a.store, registry, syncpkg.Config{
		InitialLookbackDays: cfg.Sync.InitialLookbackDays,
		InitialPageSize:     cfg.Sync.InitialPageSize,
		IncrementalPageSize: cfg.Sync.IncrementalPageSize,
		MaxMediaPerRun:      cfg.Sync.MaxMediaPerRun,
		RollupDays:          cfg.Sync.RollupDays,
		ItemDelay:           cfg.Sync.ItemDelay,
	}, opts...)

	dailyAt, err := config.ParseDailyAt(cfg.Sync.DailyAt)
	if err != nil {
		return nil, err
	}
	a.scheduler = syncpkg.NewScheduler(orchestrator, syncpkg.SchedulerConfig{
		IncrementalInterval: cfg.Sync.IncrementalInterval,
		DailyAt:             dailyAt,
	})

	feed := ws.NewHub()
	eventRouter := events.NewRouter(a.bus)
	analyzer.Register(eventRouter)
	events.RegisterActivityLog(eventRouter)
	events.RegisterFeed(eventRouter, feed)

	a.tree, err = supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout + 5*time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("create supervisor tree: %w", err)
	}

	a.tree.AddDataService(resultCache)
	a.tree.AddDataService(eventRouter)
	var backups api.BackupAdmin
	if bs, ok := a.store.(*storage.BadgerStore); ok {
		a.tree.AddDataService(storage.NewGCService(bs, 0))
		if cfg.Backup.Enabled {
			mgr, err := newBackupManager(cfg.Backup, bs)
			if err != nil {
				return nil, err
			}
			a.tree.AddDataService(mgr)
			backups = mgr
		}
	}
	if cfg.Sync.Enabled {
		a.tree.AddSyncService(services.NewSchedulerService(a.scheduler))
	}

	handler := api.NewHandler(api.Deps{
		Sync:      a.scheduler,
		Analytics: engine,
		Cache:     resultCache,
		Accounts:  a.store,
		Feed:      feed,
		Backups:   backups,
		Checks: []api.HealthCheck{
			{Name: "storage", Check: func(ctx context.Context) error {
				_, err := a.store.ListAccounts(ctx)
				return err
			}},
			{Name: "events", Check: a.bus.Check},
		},
	}, api.Config{
		CORSOrigins:        cfg.Security.CORSOrigins,
		TriggerRateLimit:   cfg.Security.TriggerRateLimit,
		TrustedProxyHeader: cfg.Security.TrustedProxyHeader,
		Version:            version,
	}).Router()

	a.tree.AddAPIService(feed)
	a.addr = net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	a.tree.AddAPIService(services.NewHTTPServerService(func() services.HTTPServer {
		return newHTTPServer(a.addr, cfg.Server, handler)
	}, cfg.Server.ShutdownTimeout))

	return a, nil
}

// buildLimiter creates the rate limiter over an in-process or Redis
// window store.
func (a *app) buildLimiter(cfg *config.Config) error {
	lc := limiterConfig(cfg.RateLimit)
	if cfg.RateLimit.Store != "redis" {
		a.limiter = ratelimit.New(lc)
		return nil
	}

	client, err := ratelimit.Connect(cfg.Redis.URL)
	if err != nil {
		return err
	}
	a.redis = client

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	a.limiter = ratelimit.New(lc, ratelimit.WithStore(ratelimit.NewRedisStore(client, cfg.RateLimit.KeyPrefix)))
	logging.Info().Str("url", logging.SanitizeURL(cfg.Redis.URL)).Msg("Rate limit windows shared through Redis")
	return nil
}

// close releases components in reverse dependency order. Dispatched sync
// runs are cancelled first so nothing writes to a closed store.
func (a *app) close() error {
	var errs []error
	if a.scheduler != nil {
		if err := a.scheduler.Stop(); err != nil && !errors.Is(err, syncpkg.ErrSchedulerNotRunning) {
			errs = append(errs, err)
		}
	}
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}

func newBackupManager(bc config.BackupConfig, src backup.Source) (*backup.Manager, error) {
	mgr, err := backup.NewManager(backup.Config{
		Dir:      bc.Dir,
		Interval: bc.Interval,
		Retention: backup.RetentionPolicy{
			MinCount:      bc.MinCount,
			MaxCount:      bc.MaxCount,
			MaxAgeDays:    bc.MaxAgeDays,
			KeepDailyDays: bc.KeepDailyDays,
		},
	}, src)
	if err != nil {
		return nil, fmt.Errorf("create backup manager: %w", err)
	}
	logging.Info().Str("dir", bc.Dir).Dur("interval", bc.Interval).Msg("Storage backups enabled")
	return mgr, nil
}

func newHTTPServer(addr string, cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
}

func limiterConfig(rl config.RateLimitConfig) ratelimit.Config {
	c := ratelimit.DefaultConfig()
	window := rl.DefaultWindow
	if window <= 0 {
		window = c.Default.Window
	}
	if rl.DefaultLimit > 0 {
		c.Default = ratelimit.Limit{Requests: rl.DefaultLimit, Window: window}
	}
	c.Platforms = map[models.Platform]ratelimit.Limit{
		models.PlatformInstagram: {Requests: rl.InstagramLimit, Window: window},
		models.PlatformFacebook:  {Requests: rl.FacebookLimit, Window: window},
	}
	if rl.InsightsLimit > 0 {
		insights := ratelimit.Limit{Requests: rl.InsightsLimit, Window: window}
		c.Endpoints = map[string]ratelimit.Limit{
			ratelimit.Key{Platform: models.PlatformInstagram, Endpoint: platform.EndpointMediaInsights}.String(): insights,
			ratelimit.Key{Platform: models.PlatformFacebook, Endpoint: platform.EndpointMediaInsights}.String():  insights,
		}
	}
	if rl.PollMin > 0 {
		c.PollMin = rl.PollMin
	}
	if rl.PollMax > 0 {
		c.PollMax = rl.PollMax
	}
	return c
}

func retryStrategy(rc config.RetryConfig) ratelimit.Strategy {
	s := ratelimit.DefaultStrategy()
	if rc.MaxRetries >= 0 {
		s.MaxRetries = rc.MaxRetries
	}
	if rc.BaseDelay > 0 {
		s.BaseDelay = rc.BaseDelay
	}
	if rc.MaxDelay > 0 {
		s.MaxDelay = rc.MaxDelay
	}
	if rc.Multiplier > 0 {
		s.Multiplier = rc.Multiplier
	}
	if rc.Jitter >= 0 {
		s.Jitter = rc.Jitter
	}
	return s
}

func loggingConfig(lc config.LoggingConfig) logging.Config {
	c := logging.DefaultConfig()
	c.Level = lc.Level
	c.Format = lc.Format
	c.Caller = lc.Caller
	c.Output = os.Stderr
	if lc.File != "" {
		c.File = logging.FileConfig{
			Path:       lc.File,
			MaxSizeMB:  lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAgeDays: lc.MaxAgeDays,
			Compress:   true,
		}
	}
	return c
}

// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tomtom215/resonance/internal/backup"
	"github.com/tomtom215/resonance/internal/cache"
	"github.com/tomtom215/resonance/internal/comparison"
	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/middleware"
	"github.com/tomtom215/resonance/internal/models"
	ws "github.com/tomtom215/resonance/internal/websocket"
)

// DefaultTriggerRateLimit is the number of sync triggers per minute per
// client when Config leaves it unset.
const DefaultTriggerRateLimit = 10

// SyncTrigger starts sync runs.
type SyncTrigger interface {
	Trigger(ctx context.Context, accountID string, t models.SyncType) (*models.SyncResult, error)
	Dispatch(ctx context.Context, accountID string, t models.SyncType, done func(*models.SyncResult, error)) error
	LastRun(t models.SyncType) time.Time
}

// Analytics serves comparisons and anomaly reports.
type Analytics interface {
	ComparePeriods(ctx context.Context, accountID string, days int) (*comparison.PeriodComparison, error)
	Anomalies(ctx context.Context, accountID string) (*comparison.AccountAnomalies, error)
}

// CacheAdmin exposes the analytics cache.
type CacheAdmin interface {
	Stats() cache.Stats
	Clear(accountID string) int
	ClearAll() int
}

// AccountReader looks up accounts and their sync log.
type AccountReader interface {
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
	ListSyncLog(ctx context.Context, accountID string, limit int) ([]*models.SyncState, error)
}

// BackupAdmin exposes storage backups.
type BackupAdmin interface {
	CreateBackup(ctx context.Context, trigger backup.Trigger) (*backup.Backup, error)
	ListBackups() []*backup.Backup
	Stats() backup.Stats
	Verify(id string) error
}

// HealthCheck is a named dependency probe.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Sync      SyncTrigger
	Analytics Analytics
	Cache     CacheAdmin
	Accounts  AccountReader
	Feed      *ws.Hub     // optional live event feed
	Backups   BackupAdmin // optional, badger storage only
	Checks    []HealthCheck
}

// Config configures the router guards.
type Config struct {
	CORSOrigins        []string
	TriggerRateLimit   int  // per minute per client
	TrustedProxyHeader bool // trust X-Forwarded-For / X-Real-IP
	Version            string
}

// Handler holds the route handlers.
type Handler struct {
	deps      Deps
	cfg       Config
	startTime time.Time
	logger    zerolog.Logger
}

// NewHandler creates a Handler.
func NewHandler(deps Deps, cfg Config) *Handler {
	if cfg.TriggerRateLimit <= 0 {
		cfg.TriggerRateLimit = DefaultTriggerRateLimit
	}
	return &Handler{
		deps:      deps,
		cfg:       cfg,
		startTime: time.Now(),
		logger:    logging.WithComponent("api"),
	}
}

// Router builds the chi router.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if h.cfg.TrustedProxyHeader {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.corsOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, CodeNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.With(h.triggerLimit()).Post("/sync/{syncType}", h.TriggerSync)
			r.Get("/sync/history", h.SyncHistory)
			r.Get("/comparison", h.Comparison)
			r.Get("/anomalies", h.Anomalies)
		})
		r.Get("/cache/stats", h.CacheStats)
		r.Delete("/cache", h.ClearCache)
		r.Get("/events/ws", h.EventFeed)
		r.Route("/backups", func(r chi.Router) {
			r.Get("/", h.ListBackups)
			r.With(h.triggerLimit()).Post("/", h.CreateBackup)
			r.Get("/{backupID}/verify", h.VerifyBackup)
		})
	})

	return r
}

func (h *Handler) corsOrigins() []string {
	if len(h.cfg.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return h.cfg.CORSOrigins
}

// triggerLimit caps sync triggers per client IP per minute.
func (h *Handler) triggerLimit() func(http.Handler) http.Handler {
	keyFunc := httprate.KeyByIP
	if h.cfg.TrustedProxyHeader {
		keyFunc = httprate.KeyByRealIP
	}
	return httprate.Limit(
		h.cfg.TriggerRateLimit,
		time.Minute,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, r, http.StatusTooManyRequests, CodeRateLimited, "too many sync triggers, retry later", nil)
		}),
	)
}

// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/resonance/internal/apierror"
	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/metrics"
	"github.com/tomtom215/resonance/internal/models"
	"github.com/tomtom215/resonance/internal/normalize"
	"github.com/tomtom215/resonance/internal/platform"
)

// Defaults applied to zero Config and job fields.
const (
	DefaultLookbackDays        = 30
	DefaultInitialPageSize     = 50
	DefaultIncrementalPageSize = 25
	DefaultRollupDays          = 30
)

// Config tunes the orchestrator. Zero values take the defaults above.
type Config struct {
	InitialLookbackDays int
	InitialPageSize     int
	IncrementalPageSize int
	MaxMediaPerRun      int // cap on media listed per run, zero is unbounded
	RollupDays          int
	ItemDelay           time.Duration // pause between media items, zero disables pacing
}

func (c Config) withDefaults() Config {
	if c.InitialLookbackDays <= 0 {
		c.InitialLookbackDays = DefaultLookbackDays
	}
	if c.InitialPageSize <= 0 {
		c.InitialPageSize = DefaultInitialPageSize
	}
	if c.IncrementalPageSize <= 0 {
		c.IncrementalPageSize = DefaultIncrementalPageSize
	}
	if c.RollupDays <= 0 {
		c.RollupDays = DefaultRollupDays
	}
	return c
}

// InitialSyncJob backfills a newly connected account.
type InitialSyncJob struct {
	AccountID    string `json:"account_id"`
	LookbackDays int    `json:"lookback_days,omitempty"`
	PageSize     int    `json:"page_size,omitempty"`
}

// IncrementalSyncJob fetches media newer than Since. A zero Since resumes
// from the last completed initial or incremental run.
type IncrementalSyncJob struct {
	AccountID string    `json:"account_id"`
	Since     time.Time `json:"since,omitempty"`
}

// DailySyncJob records the account snapshot for Date (today when zero).
type DailySyncJob struct {
	AccountID string    `json:"account_id"`
	Date      time.Time `json:"date,omitempty"`
}

// Orchestrator runs sync jobs against the platform adapters.
type Orchestrator struct {
	store       Store
	creds       CredentialSource
	registry    *platform.Registry
	normalizer  *normalize.Normalizer
	cfg         Config
	hotspots    HotspotDetector
	invalidator CacheInvalidator
	hooks       []CompletionHook
	now         func() time.Time
	logger      zerolog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithHotspotDetector sets the collaborator invoked after incremental sync.
func WithHotspotDetector(d HotspotDetector) Option {
	return func(o *Orchestrator) { o.hotspots = d }
}

// WithCacheInvalidator clears derived data after every successful run.
func WithCacheInvalidator(c CacheInvalidator) Option {
	return func(o *Orchestrator) { o.invalidator = c }
}

// WithCompletionHook adds an observer of finished runs.
func WithCompletionHook(h CompletionHook) Option {
	return func(o *Orchestrator) { o.hooks = append(o.hooks, h) }
}

// WithClock sets the clock. The default normalizer shares it.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithNormalizer replaces the default normalizer.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(o *Orchestrator) { o.normalizer = n }
}

// WithLogger replaces the component logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(store Store, creds CredentialSource, registry *platform.Registry, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		creds:    creds,
		registry: registry,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		logger:   logging.WithComponent("sync"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.normalizer == nil {
		o.normalizer = normalize.New(normalize.WithClock(o.now))
	}

	o.logger.Info().
		Int("lookback_days", o.cfg.InitialLookbackDays).
		Int("initial_page_size", o.cfg.InitialPageSize).
		Int("incremental_page_size", o.cfg.IncrementalPageSize).
		Dur("item_delay", o.cfg.ItemDelay).
		Msg("Sync orchestrator configured")
	return o
}

// InitialSync backfills media published in the last LookbackDays.
func (o *Orchestrator) InitialSync(ctx context.Context, job InitialSyncJob) (*models.SyncResult, error) {
	if job.LookbackDays <= 0 {
		job.LookbackDays = o.cfg.InitialLookbackDays
	}
	if job.PageSize <= 0 {
		job.PageSize = o.cfg.InitialPageSize
	}

	r, err := o.begin(ctx, job.AccountID, models.SyncInitial)
	if err != nil {
		return r.result, err
	}
	if err := o.authorize(ctx, r); err != nil {
		r.fail(err)
		return o.finish(ctx, r), nil
	}

	o.collectMedia(ctx, r, r.started.AddDate(0, 0, -job.LookbackDays), job.PageSize)
	return o.finish(ctx, r), nil
}

// run is the mutable state of one per-account sync.
type run struct {
	id      string
	account *models.Account
	adapter platform.Adapter
	creds   *models.Credentials
	result  *models.SyncResult
	started time.Time
	day     time.Time
	logger  zerolog.Logger
	skipped int
	failed  int
	fatal   error

	// resumeFrom holds the media cursor back when a listing was truncated.
	resumeFrom time.Time
}

func (r *run) fail(err error) {
	r.fatal = err
	r.result.Errors = append(r.result.Errors, models.SyncError{
		AccountID: r.result.AccountID,
		Kind:      string(apierror.KindOf(err)),
		Message:   err.Error(),
	})
}

func (r *run) warn(msg string) {
	r.result.Warnings = append(r.result.Warnings, msg)
}

// begin resolves the account. Resolution failures are the only errors the
// entry points return.
func (o *Orchestrator) begin(ctx context.Context, accountID string, t models.SyncType) (*run, error) {
	start := o.now()
	r := &run{
		id:      uuid.NewString(),
		started: start,
		day:     models.StartOfDay(start),
		result: &models.SyncResult{
			AccountID: accountID,
			SyncType:  t,
			Errors:    []models.SyncError{},
		},
	}
	r.logger = o.logger.With().
		Str("run_id", r.id).
		Str("account_id", accountID).
		Str("sync_type", string(t)).
		Logger()

	account, err := o.store.GetAccount(ctx, accountID)
	if err != nil {
		err = fmt.Errorf("resolve account %s: %w", accountID, err)
		r.fail(err)
		r.result.ExecutionTimeMs = o.now().Sub(start).Milliseconds()
		metrics.RecordSyncRun(string(t), false, o.now().Sub(start))
		r.logger.Error().Err(err).Msg("Sync aborted")
		return r, err
	}
	r.account = account
	r.logger = r.logger.With().Str("platform", string(account.Platform)).Logger()
	r.logger.Debug().Msg("Sync started")
	return r, nil
}

// authorize loads credentials and validates the token with the adapter.
func (o *Orchestrator) authorize(ctx context.Context, r *run) error {
	adapter, err := o.registry.Get(r.account.Platform)
	if err != nil {
		return apierror.Wrap(apierror.KindValidation, err, "no adapter for account platform")
	}

	creds, err := o.creds.GetCredentials(ctx, r.account.ID)
	if err != nil {
		if apierror.KindOf(err) != "" {
			return err
		}
		return apierror.Wrap(apierror.KindAuth, err, "load credentials")
	}
	if creds == nil || creds.AccessToken == "" {
		return apierror.New(apierror.KindAuth, "no credentials for account %s", r.account.ID)
	}

	c := *creds
	if c.ProfileID == "" {
		c.ProfileID = r.account.ProfileID
	}
	if c.Platform == "" {
		c.Platform = r.account.Platform
	}
	if err := adapter.ValidateToken(ctx, &c); err != nil {
		r.logger.Warn().Err(err).Str("token", logging.SanitizeToken(c.AccessToken)).Msg("Token validation failed")
		return err
	}
	r.adapter = adapter
	r.creds = &c
	return nil
}

// finish appends the sync log entry and reports the run.
func (o *Orchestrator) finish(ctx context.Context, r *run) *models.SyncResult {
	res := r.result
	res.Success = r.fatal == nil
	elapsed := o.now().Sub(r.started)
	res.ExecutionTimeMs = elapsed.Milliseconds()

	status := models.SyncCompleted
	if !res.Success {
		status = models.SyncFailed
	}
	state := &models.SyncState{
		ID:               r.id,
		AccountID:        r.account.ID,
		Platform:         r.account.Platform,
		SyncType:         res.SyncType,
		Status:           status,
		LastSyncAt:       r.started,
		PostsProcessed:   res.PostsProcessed,
		AnalyticsUpdated: res.AnalyticsUpdated,
		Errors:           res.ErrorStrings(),
	}
	if !r.resumeFrom.IsZero() {
		resume := r.resumeFrom
		state.ResumeFrom = &resume
	}

	// The log entry is written even when the run was cancelled.
	logCtx := context.WithoutCancel(ctx)
	if err := o.store.AppendSyncLog(logCtx, state); err != nil {
		r.logger.Error().Err(err).Msg("Failed to append sync log")
		r.warn(fmt.Sprintf("sync log not recorded: %v", err))
	}
	if res.Success && o.invalidator != nil {
		o.invalidator.Invalidate(r.account.ID)
	}

	metrics.RecordSyncRun(string(res.SyncType), res.Success, elapsed)
	metrics.RecordSyncItems(string(res.SyncType), res.AnalyticsUpdated, r.skipped, r.failed)

	event := r.logger.Info()
	if !res.Success {
		event = r.logger.Warn().Err(r.fatal)
	}
	event.
		Int("posts_processed", res.PostsProcessed).
		Int("analytics_updated", res.AnalyticsUpdated).
		Int("skipped", r.skipped).
		Int("errors", len(res.Errors)).
		Int64("duration_ms", res.ExecutionTimeMs).
		Msg("Sync finished")

	for _, hook := range o.hooks {
		hook(logCtx, state, res)
	}
	return res
}

// collectMedia lists every media item newer than since, page by page, and
// folds over it. A listing cut short by MaxMediaPerRun keeps the next
// resume point at since.
func (o *Orchestrator) collectMedia(ctx context.Context, r *run, since time.Time, pageSize int) {
	list, err := r.adapter.ListMedia(ctx, r.creds, platform.MediaQuery{
		Since:    since,
		PageSize: pageSize,
		MaxItems: o.cfg.MaxMediaPerRun,
	})
	if err != nil {
		r.fail(fmt.Errorf("list media: %w", err))
		return
	}
	items := list.Items
	r.logger.Debug().Int("items", len(items)).Time("since", since).Bool("truncated", list.Truncated).Msg("Media listed")
	if list.Truncated {
		r.resumeFrom = since
		r.logger.Warn().Int("max_items", o.cfg.MaxMediaPerRun).Time("since", since).Msg("Media listing truncated")
		r.warn(fmt.Sprintf("media listing stopped at %d items; the next run resumes from %s", len(items), since.Format(time.RFC3339)))
	}

	b, err := o.foldItems(ctx, r, items)
	r.result.PostsProcessed += b.posts
	r.result.AnalyticsUpdated += len(b.created)
	r.result.Errors = append(r.result.Errors, b.errors...)
	r.skipped += len(b.skipped)
	r.failed += len(b.errors)
	if err != nil {
		r.fail(err)
	}
}

// batch is the fold state over media items.
type batch struct {
	posts   int
	created []*models.AnalyticsSnapshot
	skipped []string
	errors  []models.SyncError
}

// itemOutcome is the result of one media item.
type itemOutcome struct {
	stored   bool // post upserted
	snapshot *models.AnalyticsSnapshot
	skipped  bool
	err      error
}

// foldItems processes items sequentially. A failing item is recorded and
// the fold continues; auth failures and cancellation stop it and are
// returned with the partial batch.
func (o *Orchestrator) foldItems(ctx context.Context, r *run, items []models.MediaItem) (batch, error) {
	var b batch
	pacer := o.pacer()
	for i, item := range items {
		if err := pacer.Wait(ctx); err != nil {
			return b, fmt.Errorf("stopped after %d of %d items: %w", i, len(items), err)
		}

		out := o.processItem(ctx, r, item)
		if out.stored {
			b.posts++
		}
		switch {
		case out.err != nil:
			if apierror.IsAuth(out.err) || ctx.Err() != nil {
				return b, fmt.Errorf("item %s: %w", item.ID, out.err)
			}
			r.logger.Warn().Err(out.err).Str("media_id", item.ID).Msg("Item failed")
			b.errors = append(b.errors, models.SyncError{
				AccountID: r.account.ID,
				ItemID:    item.ID,
				Kind:      string(apierror.KindOf(out.err)),
				Message:   out.err.Error(),
			})
		case out.skipped:
			b.skipped = append(b.skipped, item.ID)
		default:
			b.created = append(b.created, out.snapshot)
		}
	}
	return b, nil
}

// pacer spaces item processing. The first item never waits.
func (o *Orchestrator) pacer() *rate.Limiter {
	if o.cfg.ItemDelay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(o.cfg.ItemDelay), 1)
}

// processItem stores the post and, unless one exists for the day, its snapshot.
func (o *Orchestrator) processItem(ctx context.Context, r *run, item models.MediaItem) itemOutcome {
	var out itemOutcome
	now := o.now()
	post := &models.Post{
		ID:          models.PostID(r.account.Platform, item.ID),
		AccountID:   r.account.ID,
		Platform:    r.account.Platform,
		ExternalID:  item.ID,
		MediaType:   item.MediaType,
		Caption:     item.Caption,
		Permalink:   item.Permalink,
		PublishedAt: item.Timestamp,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := o.store.UpsertPost(ctx, post); err != nil {
		out.err = fmt.Errorf("upsert post: %w", err)
		return out
	}
	out.stored = true

	kind := snapshotKind(item)
	exists, err := o.store.SnapshotExistsForDay(ctx, item.ID, kind, r.day)
	if err != nil {
		out.err = fmt.Errorf("check snapshot: %w", err)
		return out
	}
	if exists {
		out.skipped = true
		return out
	}

	raw, err := r.adapter.FetchMediaInsights(ctx, r.creds, item)
	if err != nil {
		out.err = err
		return out
	}
	snap, err := o.normalizer.Normalize(raw, r.account.Platform, kind)
	if err != nil {
		out.err = err
		return out
	}
	snap.AccountID = r.account.ID
	if err := normalize.Validate(snap); err != nil {
		out.err = err
		return out
	}
	if err := o.store.CreateAnalyticsSnapshot(ctx, snap); err != nil {
		if errors.Is(err, models.ErrSnapshotExists) {
			// A concurrent run recorded it after the existence check.
			out.skipped = true
			return out
		}
		out.err = fmt.Errorf("create snapshot: %w", err)
		return out
	}
	out.snapshot = snap
	return out
}

func snapshotKind(item models.MediaItem) models.SnapshotKind {
	if item.MediaType == "STORY" {
		return models.KindStory
	}
	return models.KindPost
}

// eligible reports whether the account holds a usable access token.
func (o *Orchestrator) eligible(ctx context.Context, account *models.Account) bool {
	creds, err := o.creds.GetCredentials(ctx, account.ID)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			o.logger.Debug().Err(err).Str("account_id", account.ID).Msg("Account skipped, no credentials")
		}
		return false
	}
	return creds != nil && creds.AccessToken != ""
}

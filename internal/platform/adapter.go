// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package platform

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/resonance/internal/apierror"
	"github.com/tomtom215/resonance/internal/graphapi"
	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/metrics"
	"github.com/tomtom215/resonance/internal/models"
	"github.com/tomtom215/resonance/internal/ratelimit"
)

// Rate limit endpoint names shared by every adapter.
const (
	EndpointAccount        = "account"
	EndpointAccountInsight = "account_insights"
	EndpointMedia          = "media"
	EndpointMediaInsights  = "media_insights"
)

const (
	defaultMediaLimit = 25
	maxPageSize       = 100
)

// MediaQuery selects the media ListMedia returns.
type MediaQuery struct {
	Since    time.Time // zero lists the whole feed
	PageSize int       // items per Graph request, clamped to 1..100
	MaxItems int       // cap on the total, zero is unbounded
}

// MediaList is the result of ListMedia, newest first.
type MediaList struct {
	Items []models.MediaItem

	// Truncated is set when MaxItems stopped the listing while newer
	// items than Since remained.
	Truncated bool
}

// full reports whether l already holds q.MaxItems items.
func (q MediaQuery) full(l *MediaList) bool {
	return q.MaxItems > 0 && len(l.Items) >= q.MaxItems
}

// ErrUnsupportedPlatform is returned by Registry.Get for unknown platforms.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Adapter fetches raw metrics for one platform.
type Adapter interface {
	Platform() models.Platform

	// ValidateToken returns an AUTH_ERROR when creds cannot read the profile.
	ValidateToken(ctx context.Context, creds *models.Credentials) error

	FetchAccountInsights(ctx context.Context, creds *models.Credentials, period models.Period) (*models.AccountInsights, error)

	// ListMedia follows paging cursors newest first until an item older
	// than q.Since, the end of the feed, or q.MaxItems.
	ListMedia(ctx context.Context, creds *models.Credentials, q MediaQuery) (*MediaList, error)

	FetchMediaInsights(ctx context.Context, creds *models.Credentials, media models.MediaItem) (*models.RawInsights, error)
}

// MetricSet is one combination of insight metrics to request together.
type MetricSet struct {
	Name    string
	Metrics []string
}

// ReachStrategy is one way of asking for account reach.
type ReachStrategy struct {
	Name    string
	Metrics []string
	Period  string // Graph API period: day, week, days_28
	Ranged  bool   // send since/until from the requested period
	Latest  bool   // take the last value instead of summing values
}

// Registry maps platforms to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[models.Platform]Adapter
}

// NewRegistry creates a registry holding adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.Platform]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for a.Platform().
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Platform()] = a
}

// Get returns the adapter for p.
func (r *Registry) Get(p models.Platform) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p)
	}
	return a, nil
}

// Platforms lists the registered platforms, sorted.
func (r *Registry) Platforms() []models.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Platform, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Deps are the collaborators shared by every adapter.
type Deps struct {
	Client   *graphapi.Client
	Limiter  *ratelimit.Limiter
	Strategy ratelimit.Strategy
	Now      func() time.Time
}

// fetcher is the request plumbing shared by the adapters.
type fetcher struct {
	platform models.Platform
	client   *graphapi.Client
	limiter  *ratelimit.Limiter
	strategy ratelimit.Strategy
	now      func() time.Time
	logger   zerolog.Logger
}

func newFetcher(p models.Platform, deps Deps) fetcher {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return fetcher{
		platform: p,
		client:   deps.Client,
		limiter:  deps.Limiter,
		strategy: deps.Strategy,
		now:      now,
		logger:   logging.WithComponent("platform").With().Str("platform", string(p)).Logger(),
	}
}

// get performs one rate limited, retried GET and decodes the reply into out.
// It returns the raw body for auditing.
func (f *fetcher) get(ctx context.Context, creds *models.Credentials, endpoint, path string, params url.Values, out interface{}) (json.RawMessage, error) {
	key := ratelimit.Key{Platform: f.platform, Endpoint: endpoint}
	req := graphapi.Request{
		Platform: f.platform,
		Endpoint: endpoint,
		Path:     path,
		Params:   params,
		Token:    creds.AccessToken,
	}

	resp, err := ratelimit.ExecuteWithRetry(ctx, f.limiter, key, f.strategy, func(ctx context.Context) (*graphapi.Response, error) {
		return f.client.Do(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return nil, &apierror.Error{
			Kind:       apierror.KindAPI,
			Platform:   string(f.platform),
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    "decode response",
			Err:        err,
		}
	}
	return json.RawMessage(resp.Body), nil
}

// checkCredentials rejects missing or expired tokens without a request.
func (f *fetcher) checkCredentials(creds *models.Credentials) error {
	if creds == nil || creds.AccessToken == "" {
		e := apierror.New(apierror.KindAuth, "no access token")
		e.Platform = string(f.platform)
		return e
	}
	if creds.Expired(f.now()) {
		e := apierror.New(apierror.KindAuth, "access token expired at %s", creds.ExpiresAt.Format(time.RFC3339))
		e.Platform = string(f.platform)
		return e
	}
	return nil
}

// validateToken reads the profile id with the token.
func (f *fetcher) validateToken(ctx context.Context, creds *models.Credentials, profileID string) error {
	if err := f.checkCredentials(creds); err != nil {
		return err
	}
	var out struct {
		ID string `json:"id"`
	}
	_, err := f.get(ctx, creds, EndpointAccount, "/"+profileID, url.Values{"fields": {"id"}}, &out)
	if err != nil {
		return fmt.Errorf("validate token for %s: %w", profileID, err)
	}
	return nil
}

// reachResult is the outcome of the first reach strategy that succeeded.
type reachResult struct {
	Strategy string
	Values   map[string]int64
	Raw      json.RawMessage
}

// fetchReach walks strategies in order. Auth failures abort; every other
// failure is logged and turned into a warning. A nil result means every
// strategy failed.
func (f *fetcher) fetchReach(ctx context.Context, creds *models.Credentials, profileID string, period models.Period, strategies []ReachStrategy) (*reachResult, []string, error) {
	var warnings []string
	for _, s := range strategies {
		params := url.Values{
			"metric": {strings.Join(s.Metrics, ",")},
			"period": {s.Period},
		}
		if s.Ranged && !period.Since.IsZero() {
			params.Set("since", strconv.FormatInt(period.Since.Unix(), 10))
			params.Set("until", strconv.FormatInt(period.Until.Unix(), 10))
		}

		var page graphapi.Page[graphapi.Insight]
		raw, err := f.get(ctx, creds, EndpointAccountInsight, "/"+profileID+"/insights", params, &page)
		if err != nil {
			if apierror.IsAuth(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, warnings, err
			}
			f.logger.Warn().Err(err).Str("strategy", s.Name).Msg("Reach strategy failed")
			warnings = append(warnings, fmt.Sprintf("reach strategy %s failed: %v", s.Name, err))
			continue
		}

		values := make(map[string]int64, len(page.Data))
		for _, in := range page.Data {
			if s.Latest {
				values[in.Name] = in.Latest()
			} else {
				values[in.Name] = in.Sum()
			}
		}
		return &reachResult{Strategy: s.Name, Values: values, Raw: raw}, warnings, nil
	}

	warnings = append(warnings, "reach unavailable: every strategy failed")
	return nil, warnings, nil
}

// fetchMetricSets walks sets in order until one is accepted. Unsupported
// metric and other permanent API errors move on to the next set; auth,
// rate limit and network failures abort.
func (f *fetcher) fetchMetricSets(ctx context.Context, creds *models.Credentials, media models.MediaItem, sets []MetricSet) (*models.RawInsights, error) {
	var lastErr error
	for i, set := range sets {
		params := url.Values{"metric": {strings.Join(set.Metrics, ",")}}

		var page graphapi.Page[graphapi.Insight]
		raw, err := f.get(ctx, creds, EndpointMediaInsights, "/"+media.ID+"/insights", params, &page)
		if err != nil {
			if !fallThrough(err) {
				return nil, err
			}
			lastErr = err
			f.logger.Warn().
				Err(err).
				Str("media_id", media.ID).
				Str("metric_set", set.Name).
				Int("attempt", i+1).
				Msg("Metric set rejected")
			continue
		}

		if i > 0 {
			metrics.RecordMetricSetFallback(string(f.platform), set.Name)
		}
		return &models.RawInsights{
			Media:     media,
			Platform:  f.platform,
			Metrics:   graphapi.InsightsMap(page.Data),
			MetricSet: set.Name,
			Attempts:  i + 1,
			Raw:       raw,
		}, nil
	}
	return nil, fmt.Errorf("media %s: all %d metric sets failed: %w", media.ID, len(sets), lastErr)
}

// fallThrough reports whether a smaller metric set may succeed after err.
func fallThrough(err error) bool {
	if apierror.IsUnsupportedMetric(err) {
		return true
	}
	var e *apierror.Error
	return errors.As(err, &e) && e.Kind == apierror.KindAPI && !e.Transient
}

// pageSize clamps the per-request page size.
func pageSize(limit int) int {
	if limit <= 0 {
		limit = defaultMediaLimit
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

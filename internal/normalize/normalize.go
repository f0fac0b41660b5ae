// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package normalize

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/tomtom215/resonance/internal/apierror"
	"github.com/tomtom215/resonance/internal/metrics"
	"github.com/tomtom215/resonance/internal/models"
)

// Estimation ratios. Empirical approximations, recalibrate against real
// platform data before changing.
const (
	ReachEngagementMultiplier  = 8
	ImpressionsReachMultiplier = 1.5
)

// ErrUnsupportedPlatform is returned when no extractor is registered.
var ErrUnsupportedPlatform = errors.New("no extractor registered for platform")

// Counters are the raw engagement counters read from one payload.
type Counters struct {
	Views       int64
	Likes       int64
	Comments    int64
	Shares      int64
	Saves       int64
	Clicks      int64
	Reach       int64
	Impressions int64
}

// Engagement is likes + comments + shares + saves.
func (c Counters) Engagement() int64 {
	return c.Likes + c.Comments + c.Shares + c.Saves
}

// Extractor reads counters out of a platform payload.
type Extractor func(raw *models.RawInsights) Counters

// Normalizer converts fetcher output into snapshots.
type Normalizer struct {
	mu         sync.RWMutex
	extractors map[models.Platform]Extractor
	now        func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock sets the clock used for RecordedAt.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// New creates a Normalizer with the Instagram and Facebook extractors registered.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		extractors: map[models.Platform]Extractor{
			models.PlatformInstagram: ExtractInstagram,
			models.PlatformFacebook:  ExtractFacebook,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Register adds or replaces the extractor for p.
func (n *Normalizer) Register(p models.Platform, fn Extractor) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.extractors[p] = fn
}

func (n *Normalizer) extractor(p models.Platform) (Extractor, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	fn, ok := n.extractors[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p)
	}
	return fn, nil
}

// Normalize maps one media payload to a POST or STORY snapshot.
// AccountID is left for the caller to fill in.
func (n *Normalizer) Normalize(raw *models.RawInsights, platform models.Platform, kind models.SnapshotKind) (*models.AnalyticsSnapshot, error) {
	if raw == nil {
		return nil, apierror.New(apierror.KindValidation, "nil insights payload")
	}
	if raw.Platform != "" && raw.Platform != platform {
		return nil, apierror.New(apierror.KindValidation, "payload platform %s does not match %s", raw.Platform, platform)
	}
	if kind == models.KindAccount {
		return nil, apierror.New(apierror.KindValidation, "media payload cannot produce an ACCOUNT snapshot")
	}
	extract, err := n.extractor(platform)
	if err != nil {
		return nil, err
	}

	c := extract(raw)
	c, estimated := Estimate(c)

	s := &models.AnalyticsSnapshot{
		SubjectID:   raw.Media.ID,
		Platform:    platform,
		Kind:        kind,
		Views:       c.Views,
		Likes:       c.Likes,
		Comments:    c.Comments,
		Shares:      c.Shares,
		Saves:       c.Saves,
		Clicks:      c.Clicks,
		Reach:       c.Reach,
		Impressions: c.Impressions,
		RecordedAt:  models.StartOfDay(n.now()),
		DataQuality: Quality(1, raw.Attempts),
		DataSource:  models.SourceAPI,
		MetricSet:   raw.MetricSet,
		RawPayload:  raw.Raw,
	}
	if estimated {
		s.DataSource = models.SourceFallback
		metrics.RecordSnapshotEstimated(string(platform))
	}
	s.EngagementRate = models.EngagementRate(s.TotalEngagement(), s.Reach)
	return s, nil
}

// NormalizeAccount maps account insights to an ACCOUNT snapshot.
// Account payloads carry no engagement, so reach is never estimated.
func (n *Normalizer) NormalizeAccount(in *models.AccountInsights, platform models.Platform) (*models.AnalyticsSnapshot, error) {
	if in == nil {
		return nil, apierror.New(apierror.KindValidation, "nil account insights")
	}
	quality := models.QualityBasic
	if in.ReachStrategy != "" {
		// Every warning is a strategy that failed before the one that worked.
		quality = Quality(1, len(in.Warnings)+1)
	}
	return &models.AnalyticsSnapshot{
		SubjectID:     in.ProfileID,
		Platform:      platform,
		Kind:          models.KindAccount,
		Reach:         in.Reach,
		Impressions:   in.Impressions,
		Followers:     in.Followers,
		ProfileVisits: in.ProfileVisits,
		RecordedAt:    models.StartOfDay(n.now()),
		DataQuality:   quality,
		DataSource:    models.SourceAPI,
		MetricSet:     in.ReachStrategy,
		RawPayload:    in.Raw,
	}, nil
}

// Estimate fills in missing reach and impressions. The flag reports
// whether anything was estimated.
func Estimate(c Counters) (Counters, bool) {
	estimated := false
	if c.Reach <= 0 {
		if eng := c.Engagement(); eng > 0 {
			c.Reach = max(eng*ReachEngagementMultiplier, eng)
			estimated = true
		}
	}
	if c.Impressions <= 0 && c.Reach > 0 {
		c.Impressions = int64(math.Round(float64(c.Reach) * ImpressionsReachMultiplier))
		estimated = true
	}
	return c, estimated
}

// Quality grades the fetch-success ratio.
func Quality(successes, attempts int) models.DataQuality {
	if attempts <= 0 || successes <= 0 {
		return models.QualityBasic
	}
	return models.QualityFromRatio(float64(successes) / float64(attempts))
}

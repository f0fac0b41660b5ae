// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package events

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/metrics"
	"github.com/tomtom215/resonance/internal/models"
	"github.com/tomtom215/resonance/internal/normalize"
)

// Hotspot defaults.
const (
	DefaultHotspotMultiplier   = 2.0
	DefaultHotspotLookbackDays = 7
)

// SnapshotLister reads stored snapshots.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, q models.SnapshotQuery) ([]*models.AnalyticsSnapshot, error)
}

// Publisher sends events. *Bus implements it.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// HotspotConfig tunes the ranking.
type HotspotConfig struct {
	Multiplier   float64 // hotspot when rate >= Multiplier * mean
	LookbackDays int
}

// HotspotAnalyzer turns hotspot requests into HotspotDetected events.
// DetectHotspots only publishes the request, so sync runs never wait on
// the analysis.
type HotspotAnalyzer struct {
	store  SnapshotLister
	pub    Publisher
	cfg    HotspotConfig
	now    func() time.Time
	logger zerolog.Logger
}

// HotspotOption configures a HotspotAnalyzer.
type HotspotOption func(*HotspotAnalyzer)

// WithHotspotClock sets the clock used for the lookback window.
func WithHotspotClock(now func() time.Time) HotspotOption {
	return func(a *HotspotAnalyzer) { a.now = now }
}

// NewHotspotAnalyzer creates an analyzer. Out of range settings fall back
// to the defaults.
func NewHotspotAnalyzer(store SnapshotLister, pub Publisher, cfg HotspotConfig, opts ...HotspotOption) *HotspotAnalyzer {
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = DefaultHotspotMultiplier
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = DefaultHotspotLookbackDays
	}
	a := &HotspotAnalyzer{
		store:  store,
		pub:    pub,
		cfg:    cfg,
		now:    time.Now,
		logger: logging.WithComponent("hotspots"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DetectHotspots publishes a HotspotRequested for accountID.
func (a *HotspotAnalyzer) DetectHotspots(ctx context.Context, accountID string) error {
	return a.pub.Publish(ctx, HotspotRequested{AccountID: accountID, RequestedAt: a.now().UTC()})
}

// Register subscribes the analyzer to hotspot requests.
func (a *HotspotAnalyzer) Register(r *Router) {
	r.Handle("hotspot-analyzer", TopicHotspotRequested, a.handleRequest)
}

func (a *HotspotAnalyzer) handleRequest(ctx context.Context, msg *message.Message) error {
	var req HotspotRequested
	if err := decode(msg, &req); err != nil {
		return err
	}
	found, err := a.Analyze(ctx, req.AccountID)
	if err != nil {
		return err
	}
	if len(found.Hotspots) == 0 {
		a.logger.Debug().Str("account_id", req.AccountID).Int("posts", found.PostsScanned).Msg("No hotspots")
		return nil
	}
	metrics.RecordHotspots(len(found.Hotspots))
	return a.pub.Publish(ctx, *found)
}

// Analyze ranks the latest snapshot of every post recorded in the lookback
// window. A post is a hotspot when its engagement rate is at least
// Multiplier times the mean over those posts.
func (a *HotspotAnalyzer) Analyze(ctx context.Context, accountID string) (*HotspotDetected, error) {
	now := a.now().UTC()
	snaps, err := a.store.ListSnapshots(ctx, models.SnapshotQuery{
		AccountID: accountID,
		Kinds:     models.PostKinds,
		Since:     models.StartOfDay(now).AddDate(0, 0, -(a.cfg.LookbackDays - 1)),
	})
	if err != nil {
		return nil, err
	}
	posts := normalize.LatestPerSubject(snaps)

	out := &HotspotDetected{
		AccountID:    accountID,
		PostsScanned: len(posts),
		Hotspots:     []Hotspot{},
		DetectedAt:   now,
	}
	if len(posts) == 0 {
		return out, nil
	}

	var sum float64
	for _, p := range posts {
		sum += p.EngagementRate
	}
	out.MeanRate = round2(sum / float64(len(posts)))
	if sum == 0 {
		return out, nil
	}
	mean := sum / float64(len(posts))
	out.Threshold = round2(mean * a.cfg.Multiplier)

	for _, p := range posts {
		if p.EngagementRate < mean*a.cfg.Multiplier {
			continue
		}
		out.Hotspots = append(out.Hotspots, Hotspot{
			SubjectID:      p.SubjectID,
			Kind:           string(p.Kind),
			EngagementRate: p.EngagementRate,
			Multiple:       round2(p.EngagementRate / mean),
			RecordedAt:     p.RecordedAt,
		})
	}
	sort.Slice(out.Hotspots, func(i, j int) bool {
		hi, hj := out.Hotspots[i], out.Hotspots[j]
		if hi.EngagementRate != hj.EngagementRate {
			return hi.EngagementRate > hj.EngagementRate
		}
		return hi.SubjectID < hj.SubjectID
	})
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package platform

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/tomtom215/resonance/internal/graphapi"
	"github.com/tomtom215/resonance/internal/models"
)

// Instagram media product types with their own metric sets.
const (
	igProductStory = "STORY"
	igProductReels = "REELS"
)

// InstagramMediaSets are tried in order for feed posts and reels.
var InstagramMediaSets = []MetricSet{
	{Name: "full", Metrics: []string{"reach", "views", "likes", "comments", "shares", "saved", "total_interactions"}},
	{Name: "reduced", Metrics: []string{"reach", "likes", "comments", "saved"}},
	{Name: "likes_only", Metrics: []string{"likes"}},
}

// InstagramStorySets are tried in order for stories.
var InstagramStorySets = []MetricSet{
	{Name: "full", Metrics: []string{"reach", "views", "replies", "shares", "total_interactions"}},
	{Name: "reduced", Metrics: []string{"reach", "replies"}},
	{Name: "reach_only", Metrics: []string{"reach"}},
}

// InstagramReachStrategies are tried in order for account reach.
var InstagramReachStrategies = []ReachStrategy{
	{Name: "daily", Metrics: []string{"reach", "profile_views"}, Period: "day", Ranged: true},
	{Name: "days_28", Metrics: []string{"reach"}, Period: "days_28", Latest: true},
}

const (
	igProfileFields = "id,username,followers_count,follows_count,media_count"
	igMediaFields   = "id,media_type,media_product_type,caption,permalink,timestamp,like_count,comments_count"
)

type igProfile struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	FollowersCount int64  `json:"followers_count"`
	FollowsCount   int64  `json:"follows_count"`
	MediaCount     int64  `json:"media_count"`
}

type igMedia struct {
	ID               string `json:"id"`
	MediaType        string `json:"media_type"`
	MediaProductType string `json:"media_product_type"`
	Caption          string `json:"caption"`
	Permalink        string `json:"permalink"`
	Timestamp        string `json:"timestamp"`
	LikeCount        int64  `json:"like_count"`
	CommentsCount    int64  `json:"comments_count"`
}

// Instagram fetches Instagram business account metrics.
type Instagram struct {
	fetcher
	mediaSets []MetricSet
	storySets []MetricSet
	reach     []ReachStrategy
}

// NewInstagram creates the Instagram adapter with the default metric sets.
func NewInstagram(deps Deps) *Instagram {
	return &Instagram{
		fetcher:   newFetcher(models.PlatformInstagram, deps),
		mediaSets: InstagramMediaSets,
		storySets: InstagramStorySets,
		reach:     InstagramReachStrategies,
	}
}

// Platform implements Adapter.
func (a *Instagram) Platform() models.Platform {
	return models.PlatformInstagram
}

// ValidateToken implements Adapter.
func (a *Instagram) ValidateToken(ctx context.Context, creds *models.Credentials) error {
	if err := a.checkCredentials(creds); err != nil {
		return err
	}
	return a.validateToken(ctx, creds, creds.ProfileID)
}

// FetchAccountInsights implements Adapter.
func (a *Instagram) FetchAccountInsights(ctx context.Context, creds *models.Credentials, period models.Period) (*models.AccountInsights, error) {
	if err := a.checkCredentials(creds); err != nil {
		return nil, err
	}

	var profile igProfile
	raw, err := a.get(ctx, creds, EndpointAccount, "/"+creds.ProfileID, url.Values{"fields": {igProfileFields}}, &profile)
	if err != nil {
		return nil, fmt.Errorf("instagram profile %s: %w", creds.ProfileID, err)
	}

	out := &models.AccountInsights{
		ProfileID:  profile.ID,
		Username:   profile.Username,
		Followers:  profile.FollowersCount,
		Follows:    profile.FollowsCount,
		MediaCount: profile.MediaCount,
		Raw:        raw,
	}

	reach, warnings, err := a.fetchReach(ctx, creds, creds.ProfileID, period, a.reach)
	if err != nil {
		return nil, fmt.Errorf("instagram reach %s: %w", creds.ProfileID, err)
	}
	out.Warnings = warnings
	if reach != nil {
		out.ReachStrategy = reach.Strategy
		out.Reach = reach.Values["reach"]
		out.ProfileVisits = reach.Values["profile_views"]
	}
	return out, nil
}

// ListMedia implements Adapter.
func (a *Instagram) ListMedia(ctx context.Context, creds *models.Credentials, q MediaQuery) (*MediaList, error) {
	if err := a.checkCredentials(creds); err != nil {
		return nil, err
	}

	params := url.Values{
		"fields": {igMediaFields},
		"limit":  {strconv.Itoa(pageSize(q.PageSize))},
	}
	list := &MediaList{}
	for {
		var page graphapi.Page[igMedia]
		if _, err := a.get(ctx, creds, EndpointMedia, "/"+creds.ProfileID+"/media", params, &page); err != nil {
			return nil, fmt.Errorf("instagram media %s: %w", creds.ProfileID, err)
		}

		for _, m := range page.Data {
			ts, err := graphapi.ParseTime(m.Timestamp)
			if err != nil {
				a.logger.Warn().Err(err).Str("media_id", m.ID).Msg("Skipping media with bad timestamp")
				continue
			}
			if !q.Since.IsZero() && ts.Before(q.Since) {
				return list, nil
			}
			if q.full(list) {
				list.Truncated = true
				return list, nil
			}

			mediaType := m.MediaType
			if m.MediaProductType == igProductStory || m.MediaProductType == igProductReels {
				mediaType = m.MediaProductType
			}
			list.Items = append(list.Items, models.MediaItem{
				ID:            m.ID,
				MediaType:     mediaType,
				Caption:       m.Caption,
				Permalink:     m.Permalink,
				Timestamp:     ts,
				LikeCount:     m.LikeCount,
				CommentsCount: m.CommentsCount,
			})
		}

		cursor := page.Paging.NextCursor()
		if cursor == "" {
			return list, nil
		}
		params.Set("after", cursor)
	}
}

// FetchMediaInsights implements Adapter.
func (a *Instagram) FetchMediaInsights(ctx context.Context, creds *models.Credentials, media models.MediaItem) (*models.RawInsights, error) {
	if err := a.checkCredentials(creds); err != nil {
		return nil, err
	}
	sets := a.mediaSets
	if media.MediaType == igProductStory {
		sets = a.storySets
	}
	return a.fetchMetricSets(ctx, creds, media, sets)
}

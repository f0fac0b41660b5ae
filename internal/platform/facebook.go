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

// FacebookPostSets are tried in order for page posts.
var FacebookPostSets = []MetricSet{
	{Name: "full", Metrics: []string{"post_impressions", "post_impressions_unique", "post_clicks", "post_reactions_like_total"}},
	{Name: "reduced", Metrics: []string{"post_impressions_unique", "post_clicks"}},
	{Name: "likes_only", Metrics: []string{"post_reactions_like_total"}},
}

// FacebookReachStrategies are tried in order for page reach.
var FacebookReachStrategies = []ReachStrategy{
	{Name: "daily", Metrics: []string{"page_impressions_unique", "page_impressions", "page_views_total"}, Period: "day", Ranged: true},
	{Name: "days_28", Metrics: []string{"page_impressions_unique", "page_impressions"}, Period: "days_28", Latest: true},
}

const (
	fbPageFields = "id,name,fan_count,followers_count"
	fbPostFields = "id,message,permalink_url,created_time,status_type,shares," +
		"reactions.summary(total_count).limit(0),comments.summary(total_count).limit(0)"
)

type fbPage struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	FanCount       int64  `json:"fan_count"`
	FollowersCount int64  `json:"followers_count"`
}

type fbSummary struct {
	Summary struct {
		TotalCount int64 `json:"total_count"`
	} `json:"summary"`
}

type fbShares struct {
	Count int64 `json:"count"`
}

type fbPost struct {
	ID           string     `json:"id"`
	Message      string     `json:"message"`
	PermalinkURL string     `json:"permalink_url"`
	CreatedTime  string     `json:"created_time"`
	StatusType   string     `json:"status_type"`
	Shares       *fbShares  `json:"shares"`
	Reactions    *fbSummary `json:"reactions"`
	Comments     *fbSummary `json:"comments"`
}

// Facebook fetches Facebook page metrics.
type Facebook struct {
	fetcher
	postSets []MetricSet
	reach    []ReachStrategy
}

// NewFacebook creates the Facebook adapter with the default metric sets.
func NewFacebook(deps Deps) *Facebook {
	return &Facebook{
		fetcher:  newFetcher(models.PlatformFacebook, deps),
		postSets: FacebookPostSets,
		reach:    FacebookReachStrategies,
	}
}

// Platform implements Adapter.
func (a *Facebook) Platform() models.Platform {
	return models.PlatformFacebook
}

// ValidateToken implements Adapter.
func (a *Facebook) ValidateToken(ctx context.Context, creds *models.Credentials) error {
	if err := a.checkCredentials(creds); err != nil {
		return err
	}
	return a.validateToken(ctx, creds, creds.ProfileID)
}

// FetchAccountInsights implements Adapter.
func (a *Facebook) FetchAccountInsights(ctx context.Context, creds *models.Credentials, period models.Period) (*models.AccountInsights, error) {
	if err := a.checkCredentials(creds); err != nil {
		return nil, err
	}

	var page fbPage
	raw, err := a.get(ctx, creds, EndpointAccount, "/"+creds.ProfileID, url.Values{"fields": {fbPageFields}}, &page)
	if err != nil {
		return nil, fmt.Errorf("facebook page %s: %w", creds.ProfileID, err)
	}

	followers := page.FollowersCount
	if followers == 0 {
		followers = page.FanCount
	}
	out := &models.AccountInsights{
		ProfileID: page.ID,
		Username:  page.Name,
		Followers: followers,
		Raw:       raw,
	}

	reach, warnings, err := a.fetchReach(ctx, creds, creds.ProfileID, period, a.reach)
	if err != nil {
		return nil, fmt.Errorf("facebook reach %s: %w", creds.ProfileID, err)
	}
	out.Warnings = warnings
	if reach != nil {
		out.ReachStrategy = reach.Strategy
		out.Reach = reach.Values["page_impressions_unique"]
		out.Impressions = reach.Values["page_impressions"]
		out.ProfileVisits = reach.Values["page_views_total"]
	}
	return out, nil
}

// ListMedia implements Adapter.
func (a *Facebook) ListMedia(ctx context.Context, creds *models.Credentials, q MediaQuery) (*MediaList, error) {
	if err := a.checkCredentials(creds); err != nil {
		return nil, err
	}

	params := url.Values{
		"fields": {fbPostFields},
		"limit":  {strconv.Itoa(pageSize(q.PageSize))},
	}
	if !q.Since.IsZero() {
		params.Set("since", strconv.FormatInt(q.Since.Unix(), 10))
	}

	list := &MediaList{}
	for {
		var page graphapi.Page[fbPost]
		if _, err := a.get(ctx, creds, EndpointMedia, "/"+creds.ProfileID+"/posts", params, &page); err != nil {
			return nil, fmt.Errorf("facebook posts %s: %w", creds.ProfileID, err)
		}

		for _, p := range page.Data {
			ts, err := graphapi.ParseTime(p.CreatedTime)
			if err != nil {
				a.logger.Warn().Err(err).Str("post_id", p.ID).Msg("Skipping post with bad timestamp")
				continue
			}
			if !q.Since.IsZero() && ts.Before(q.Since) {
				return list, nil
			}
			if q.full(list) {
				list.Truncated = true
				return list, nil
			}

			item := models.MediaItem{
				ID:        p.ID,
				MediaType: p.StatusType,
				Caption:   p.Message,
				Permalink: p.PermalinkURL,
				Timestamp: ts,
			}
			if p.Reactions != nil {
				item.LikeCount = p.Reactions.Summary.TotalCount
			}
			if p.Comments != nil {
				item.CommentsCount = p.Comments.Summary.TotalCount
			}
			if p.Shares != nil {
				item.SharesCount = p.Shares.Count
			}
			list.Items = append(list.Items, item)
		}

		cursor := page.Paging.NextCursor()
		if cursor == "" {
			return list, nil
		}
		params.Set("after", cursor)
	}
}

// FetchMediaInsights implements Adapter.
func (a *Facebook) FetchMediaInsights(ctx context.Context, creds *models.Credentials, media models.MediaItem) (*models.RawInsights, error) {
	if err := a.checkCredentials(creds); err != nil {
		return nil, err
	}
	return a.fetchMetricSets(ctx, creds, media, a.postSets)
}

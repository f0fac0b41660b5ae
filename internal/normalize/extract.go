// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package normalize

import "github.com/tomtom215/resonance/internal/models"

// first returns the value of the first present key.
func first(m map[string]int64, keys ...string) (int64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return 0, false
}

func firstOr(m map[string]int64, fallback int64, keys ...string) int64 {
	if v, ok := first(m, keys...); ok {
		return v
	}
	return fallback
}

// ExtractInstagram reads Instagram media and story insights. Like and
// comment counts fall back to the media edge when the metric set did
// not include them. "views" replaced "impressions" and "plays" in v21;
// it is used as impressions only when it can bound reach.
func ExtractInstagram(raw *models.RawInsights) Counters {
	m := raw.Metrics
	c := Counters{
		Views:    firstOr(m, 0, "views", "plays", "video_views"),
		Likes:    firstOr(m, raw.Media.LikeCount, "likes"),
		Comments: firstOr(m, raw.Media.CommentsCount, "comments", "replies"),
		Shares:   firstOr(m, 0, "shares"),
		Saves:    firstOr(m, 0, "saved"),
		Reach:    firstOr(m, 0, "reach"),
	}
	if v, ok := first(m, "impressions"); ok {
		c.Impressions = v
	} else if c.Reach > 0 && c.Views >= c.Reach {
		c.Impressions = c.Views
	}
	return c
}

// ExtractFacebook reads Facebook post insights. Comments and shares only
// exist on the post edge.
func ExtractFacebook(raw *models.RawInsights) Counters {
	m := raw.Metrics
	return Counters{
		Views:       firstOr(m, 0, "post_video_views"),
		Likes:       firstOr(m, raw.Media.LikeCount, "post_reactions_like_total"),
		Comments:    raw.Media.CommentsCount,
		Shares:      raw.Media.SharesCount,
		Clicks:      firstOr(m, 0, "post_clicks"),
		Reach:       firstOr(m, 0, "post_impressions_unique"),
		Impressions: firstOr(m, 0, "post_impressions"),
	}
}

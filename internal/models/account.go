// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package models

import "time"

// Account is a connected social profile.
type Account struct {
	ID          string    `json:"id"`
	Platform    Platform  `json:"platform"`
	ProfileID   string    `json:"profile_id"` // Instagram business account id or Facebook page id
	Name        string    `json:"name,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Credentials authenticate Graph API calls for one account.
type Credentials struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Platform     Platform   `json:"platform"`
	ProfileID    string     `json:"profile_id,omitempty"`
}

// Expired reports whether the token has a known expiry that has passed.
func (c *Credentials) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// Post is the persisted record of one media item.
type Post struct {
	ID          string    `json:"id"` // platform:external id
	AccountID   string    `json:"account_id"`
	Platform    Platform  `json:"platform"`
	ExternalID  string    `json:"external_id"`
	MediaType   string    `json:"media_type,omitempty"`
	Caption     string    `json:"caption,omitempty"`
	Permalink   string    `json:"permalink,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PostID derives the storage identity of a media item.
func PostID(platform Platform, externalID string) string {
	return string(platform) + ":" + externalID
}

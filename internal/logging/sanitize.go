// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package logging

import "net/url"

// SanitizeToken masks a token, showing only first and last 4 characters.
// Example: "EAABsbCS1iHgBAKZ..." -> "EAAB...ZxYz"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeURL masks the access_token query parameter of a Graph API URL.
// Unparseable input is returned fully masked.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	q := u.Query()
	for _, key := range []string{"access_token", "appsecret_proof"} {
		if v := q.Get(key); v != "" {
			q.Set(key, SanitizeToken(v))
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

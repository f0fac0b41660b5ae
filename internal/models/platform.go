// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package models

import (
	"fmt"
	"strings"
)

// Platform identifies an upstream social network.
type Platform string

const (
	PlatformInstagram Platform = "INSTAGRAM"
	PlatformFacebook  Platform = "FACEBOOK"
)

// Platforms lists every platform with a registered adapter.
func Platforms() []Platform {
	return []Platform{PlatformInstagram, PlatformFacebook}
}

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformInstagram, PlatformFacebook:
		return true
	default:
		return false
	}
}

func (p Platform) String() string {
	return string(p)
}

// ParsePlatform converts a case-insensitive name into a Platform.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown platform %q", s)
	}
	return p, nil
}

// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package graphapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/resonance/internal/apierror"
)

// Graph API error codes.
const (
	codeUnknown              = 1
	codeServiceUnavailable   = 2
	codeAppRateLimit         = 4
	codePermission           = 10
	codeUserRateLimit        = 17
	codePageRateLimit        = 32
	codeInvalidParameter     = 100
	codeSessionKey           = 102
	codeAccessToken          = 190
	codeCustomRateLimit      = 613
	subcodeMediaBeforeBizAcc = 2108006
)

// errorEnvelope is the Graph API error body.
type errorEnvelope struct {
	Error *struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		IsTransient  bool   `json:"is_transient"`
		UserTitle    string `json:"error_user_title"`
		UserMsg      string `json:"error_user_msg"`
		FBTraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}

func isRateLimitCode(code int) bool {
	switch code {
	case codeAppRateLimit, codeUserRateLimit, codePageRateLimit, codeCustomRateLimit:
		return true
	}
	// Business use case throttling.
	return code >= 80001 && code <= 80014
}

func isAuthCode(code int) bool {
	switch code {
	case codeSessionKey, codeAccessToken, codePermission:
		return true
	}
	return code >= 200 && code <= 299
}

// classify maps a non-2xx reply to the error taxonomy.
func classify(status int, header http.Header, body []byte, platform, endpoint string) *apierror.Error {
	e := &apierror.Error{
		Kind:       apierror.KindAPI,
		Platform:   platform,
		Endpoint:   endpoint,
		StatusCode: status,
		Message:    http.StatusText(status),
	}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		e.Code = env.Error.Code
		e.Subcode = env.Error.ErrorSubcode
		if env.Error.Message != "" {
			e.Message = env.Error.Message
		}
		if env.Error.FBTraceID != "" {
			e.Message += fmt.Sprintf(" (fbtrace_id %s)", env.Error.FBTraceID)
		}
		e.Transient = env.Error.IsTransient
	}

	switch {
	case status == http.StatusTooManyRequests || isRateLimitCode(e.Code):
		e.Kind = apierror.KindRateLimit
		e.RetryAfter = retryAfter(header)
	case status == http.StatusUnauthorized || isAuthCode(e.Code):
		e.Kind = apierror.KindAuth
		e.Transient = false
	case e.Code == codeInvalidParameter && unsupportedMetric(e.Message, e.Subcode):
		e.UnsupportedMetric = true
		e.Transient = false
	case status >= 500 || e.Code == codeUnknown || e.Code == codeServiceUnavailable:
		e.Transient = true
	}
	return e
}

func unsupportedMetric(message string, subcode int) bool {
	if subcode == subcodeMediaBeforeBizAcc {
		return true
	}
	return strings.Contains(strings.ToLower(message), "metric")
}

// retryAfter reads the Retry-After header (seconds or HTTP date), falling
// back to estimated_time_to_regain_access (minutes) of the business usage header.
func retryAfter(header http.Header) time.Duration {
	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
		if t, err := http.ParseTime(v); err == nil {
			if d := time.Until(t); d > 0 {
				return d
			}
		}
	}
	if u, ok := parseBusinessUsage(header.Get(HeaderBusinessUseCaseUsage)); ok && u.RegainAccessMinutes > 0 {
		return time.Duration(u.RegainAccessMinutes) * time.Minute
	}
	return 0
}

// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package graphapi

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/resonance/internal/apierror"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		kind        apierror.Kind
		transient   bool
		unsupported bool
	}{
		{"app limit", 400, `{"error":{"code":4,"message":"(#4) Application request limit reached"}}`, apierror.KindRateLimit, false, false},
		{"user limit", 400, `{"error":{"code":17,"message":"(#17) User request limit reached"}}`, apierror.KindRateLimit, false, false},
		{"page limit", 400, `{"error":{"code":32}}`, apierror.KindRateLimit, false, false},
		{"custom limit", 400, `{"error":{"code":613}}`, apierror.KindRateLimit, false, false},
		{"business use case", 400, `{"error":{"code":80002,"message":"There have been too many calls to this Instagram account"}}`, apierror.KindRateLimit, false, false},
		{"http 429 no body", 429, ``, apierror.KindRateLimit, false, false},
		{"expired token", 400, `{"error":{"code":190,"error_subcode":463}}`, apierror.KindAuth, false, false},
		{"session key", 400, `{"error":{"code":102}}`, apierror.KindAuth, false, false},
		{"permission", 403, `{"error":{"code":10,"message":"(#10) Application does not have permission"}}`, apierror.KindAuth, false, false},
		{"permission range", 400, `{"error":{"code":200}}`, apierror.KindAuth, false, false},
		{"http 401", 401, `not json`, apierror.KindAuth, false, false},
		{"unsupported metric", 400, `{"error":{"code":100,"message":"(#100) The value must be a valid insights metric"}}`, apierror.KindAPI, false, true},
		{"media before conversion", 400, `{"error":{"code":100,"error_subcode":2108006,"message":"Media Posted Before Business Account Conversion"}}`, apierror.KindAPI, false, true},
		{"invalid parameter", 400, `{"error":{"code":100,"message":"(#100) Tried accessing nonexisting field (foo)"}}`, apierror.KindAPI, false, false},
		{"unknown error", 500, `{"error":{"code":1,"message":"An unknown error occurred"}}`, apierror.KindAPI, true, false},
		{"bad gateway", 502, `<html>`, apierror.KindAPI, true, false},
		{"is_transient flag", 400, `{"error":{"code":368,"is_transient":true}}`, apierror.KindAPI, true, false},
		{"not found", 404, `{"error":{"code":803}}`, apierror.KindAPI, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := classify(tt.status, http.Header{}, []byte(tt.body), "INSTAGRAM", "insights")
			if e.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", e.Kind, tt.kind)
			}
			if e.Transient != tt.transient {
				t.Errorf("Transient = %v, want %v", e.Transient, tt.transient)
			}
			if e.UnsupportedMetric != tt.unsupported {
				t.Errorf("UnsupportedMetric = %v, want %v", e.UnsupportedMetric, tt.unsupported)
			}
			if e.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", e.StatusCode, tt.status)
			}
		})
	}
}

func TestClassifyKeepsTraceID(t *testing.T) {
	e := classify(400, http.Header{}, []byte(`{"error":{"code":100,"message":"bad field","fbtrace_id":"AXyz"}}`), "FACEBOOK", "page")
	if !strings.Contains(e.Message, "AXyz") {
		t.Errorf("Message = %q, want fbtrace_id included", e.Message)
	}
	if e.Code != 100 {
		t.Errorf("Code = %d, want 100", e.Code)
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
		want   time.Duration
	}{
		{"seconds", http.Header{"Retry-After": {"30"}}, 30 * time.Second},
		{"none", http.Header{}, 0},
		{"garbage", http.Header{"Retry-After": {"soon"}}, 0},
		{
			"business regain access",
			http.Header{HeaderBusinessUseCaseUsage: {`{"1784":[{"type":"instagram","call_count":100,"total_cputime":20,"total_time":30,"estimated_time_to_regain_access":7}]}`}},
			7 * time.Minute,
		},
		{
			"header wins",
			http.Header{
				"Retry-After":              {"5"},
				HeaderBusinessUseCaseUsage: {`{"1":[{"estimated_time_to_regain_access":7}]}`},
			},
			5 * time.Second,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryAfter(tt.header); got != tt.want {
				t.Errorf("retryAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}

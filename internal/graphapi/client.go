// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package graphapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/resonance/internal/apierror"
	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/metrics"
	"github.com/tomtom215/resonance/internal/models"
)

const (
	DefaultBaseURL = "https://graph.facebook.com"
	DefaultVersion = "v21.0"
	DefaultTimeout = 30 * time.Second

	// maxBodyBytes caps how much of a reply is read.
	maxBodyBytes = 8 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Version string
	Timeout time.Duration

	// CircuitBreaker enables the breaker around every request.
	CircuitBreaker bool

	// UsageWarnPercent logs a warning when a usage header reaches it. Zero disables.
	UsageWarnPercent int

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Request is one Graph API call.
type Request struct {
	Platform models.Platform
	Endpoint string // metrics and rate limit label, e.g. "insights"
	Path     string // object path, e.g. "/17841400000/insights"
	Params   url.Values
	Token    string
}

// Response is a successful raw reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client is a Graph API HTTP client. Safe for concurrent use.
type Client struct {
	baseURL   string
	version   string
	warnUsage float64
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker[*Response]
	logger    zerolog.Logger

	mu    sync.RWMutex
	usage map[models.Platform]Usage
}

// NewClient creates a client, filling unset fields with defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		version:   strings.Trim(cfg.Version, "/"),
		warnUsage: float64(cfg.UsageWarnPercent),
		http:      httpClient,
		logger:    logging.WithComponent("graphapi"),
		usage:     make(map[models.Platform]Usage),
	}
	if cfg.CircuitBreaker {
		c.breaker = newBreaker("graph-api")
	}
	return c
}

// URL builds the absolute URL for path with params (token excluded).
func (c *Client) URL(path string, params url.Values) string {
	u := c.baseURL + "/" + c.version + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// Get performs req and decodes the JSON reply into out.
func (c *Client) Get(ctx context.Context, req Request, out interface{}) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &apierror.Error{
			Kind:       apierror.KindAPI,
			Platform:   string(req.Platform),
			Endpoint:   req.Endpoint,
			StatusCode: resp.StatusCode,
			Message:    "decode response",
			Err:        err,
		}
	}
	return nil
}

// Do performs req and returns the raw reply. Non-2xx replies are returned
// as classified *apierror.Error values.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if c.breaker == nil {
		return c.do(ctx, req)
	}

	resp, err := c.breaker.Execute(func() (*Response, error) {
		return c.do(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.CircuitBreakerRequests.WithLabelValues(c.breaker.Name(), "rejected").Inc()
		c.logger.Warn().Err(err).Str("endpoint", req.Endpoint).Msg("Request rejected by circuit breaker")
		return nil, &apierror.Error{
			Kind:     apierror.KindAPI,
			Platform: string(req.Platform),
			Endpoint: req.Endpoint,
			Message:  "circuit breaker open",
			Err:      err,
		}
	}
	if err != nil && breakerFailure(err) {
		metrics.CircuitBreakerRequests.WithLabelValues(c.breaker.Name(), "failure").Inc()
	} else {
		metrics.CircuitBreakerRequests.WithLabelValues(c.breaker.Name(), "success").Inc()
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	params := url.Values{}
	for k, v := range req.Params {
		params[k] = v
	}
	if req.Token != "" {
		params.Set("access_token", req.Token)
	}
	reqURL := c.URL(req.Path, params)
	platform := string(req.Platform)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		metrics.RecordGraphRequest(platform, req.Endpoint, 0, elapsed)
		c.logger.Debug().Err(err).Str("url", logging.SanitizeURL(reqURL)).Msg("Graph request failed")
		return nil, apierror.FromTransport(err, platform, req.Endpoint)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	metrics.RecordGraphRequest(platform, req.Endpoint, resp.StatusCode, elapsed)
	if err != nil {
		return nil, apierror.FromTransport(err, platform, req.Endpoint)
	}

	c.observeUsage(req.Platform, resp.Header)

	c.logger.Debug().
		Str("url", logging.SanitizeURL(reqURL)).
		Int("status", resp.StatusCode).
		Dur("duration", elapsed).
		Msg("Graph request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classify(resp.StatusCode, resp.Header, body, platform, req.Endpoint)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// BreakerState returns the circuit breaker state name, or "disabled".
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return stateToString(c.breaker.State())
}

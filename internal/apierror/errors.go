// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

// Package apierror defines the error taxonomy shared by the collection pipeline.
//
// Every failure that crosses a component boundary is classified into one of
// five kinds. The kind alone decides retry behavior:
//
//	RATE_LIMIT        retried after the upstream retry-after hint
//	AUTH_ERROR        fatal for the account, never retried
//	NETWORK_ERROR     retried with exponential backoff
//	API_ERROR         retried only when transient (5xx); unsupported-metric
//	                  rejections make fetchers fall back to a smaller metric set
//	VALIDATION_ERROR  never retried, surfaced for quarantine
package apierror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"time"
)

// Kind is the taxonomy bucket of an error.
type Kind string

const (
	KindRateLimit  Kind = "RATE_LIMIT"
	KindAuth       Kind = "AUTH_ERROR"
	KindNetwork    Kind = "NETWORK_ERROR"
	KindAPI        Kind = "API_ERROR"
	KindValidation Kind = "VALIDATION_ERROR"
)

// Error is a classified pipeline error.
type Error struct {
	Kind       Kind
	Platform   string
	Endpoint   string
	StatusCode int // HTTP status, 0 for transport failures
	Code       int // platform error code (Graph API "code")
	Subcode    int // platform error subcode (Graph API "error_subcode")
	Message    string

	// RetryAfter is the upstream hint for RATE_LIMIT errors, zero when absent.
	RetryAfter time.Duration

	// Timeout marks NETWORK_ERROR values caused by the request deadline.
	Timeout bool

	// Transient marks API_ERROR values worth retrying (5xx, "temporarily unavailable").
	Transient bool

	// UnsupportedMetric marks API_ERROR values rejecting a metric combination.
	UnsupportedMetric bool

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Platform != "" {
		fmt.Fprintf(&b, " [%s", e.Platform)
		if e.Endpoint != "" {
			fmt.Fprintf(&b, " %s", e.Endpoint)
		}
		b.WriteString("]")
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " status=%d", e.StatusCode)
	}
	if e.Code != 0 {
		fmt.Fprintf(&b, " code=%d", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the retry loop may try the request again.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimit, KindNetwork:
		return true
	case KindAPI:
		return e.Transient
	default:
		return false
	}
}

// ErrorKind implements Classified.
func (e *Error) ErrorKind() Kind {
	return e.Kind
}

// Classified is implemented by error types outside this package that carry a
// taxonomy kind (for example the normalizer's validation error).
type Classified interface {
	error
	ErrorKind() Kind
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind, keeping it as the cause.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// RateLimited creates a RATE_LIMIT error with a retry-after hint.
func RateLimited(retryAfter time.Duration, message string) *Error {
	return &Error{Kind: KindRateLimit, RetryAfter: retryAfter, Message: message}
}

// KindOf returns the taxonomy kind of err. Unclassified transport failures
// are reported as NETWORK_ERROR; anything else unclassified yields "".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var c Classified
	if errors.As(err, &c) {
		return c.ErrorKind()
	}
	if isTransportError(err) {
		return KindNetwork
	}
	return ""
}

// IsRetryable reports whether err should be retried by the rate limiter.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return isTransportError(err)
}

// IsRateLimit reports whether err is a RATE_LIMIT error.
func IsRateLimit(err error) bool {
	return KindOf(err) == KindRateLimit
}

// IsAuth reports whether err is an AUTH_ERROR.
func IsAuth(err error) bool {
	return KindOf(err) == KindAuth
}

// IsUnsupportedMetric reports whether err rejected a metric combination.
func IsUnsupportedMetric(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.UnsupportedMetric
}

// RetryAfterOf returns the retry-after hint carried by err, or zero.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// FromTransport classifies an error returned by http.Client.Do.
// Caller cancellation is returned unchanged so it is never retried.
func FromTransport(err error, platform, endpoint string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	e := &Error{
		Kind:     KindNetwork,
		Platform: platform,
		Endpoint: endpoint,
		Message:  "request failed",
		Err:      err,
	}
	if errors.Is(err, context.DeadlineExceeded) {
		e.Timeout = true
		e.Message = "request timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		e.Timeout = true
		e.Message = "request timed out"
	}
	return e
}

func isTransportError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

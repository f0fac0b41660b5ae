// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

// Package logging provides centralized zerolog-based logging for Resonance.
//
// A single global logger is configured once at startup and used by every
// component through package-level helpers:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("account_id", id).Msg("Sync started")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Metric set rejected")
//
// Sync runs carry a correlation ID in their context so every log line of
// one run (including retries inside the rate limiter) can be grouped.
//
// Libraries that expect log/slog (suture, watermill) are bridged through
// NewSlogLogger, so all output goes through the same zerolog writer.
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
package logging

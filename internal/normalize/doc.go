// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

// Package normalize maps per-platform insight payloads onto the unified
// AnalyticsSnapshot schema.
//
// Normalization Pipeline:
//
//	RawInsights -> Extractor (per platform) -> Counters
//	            -> estimation fallback       -> AnalyticsSnapshot
//	            -> Validate
//
// Extractors are plain functions registered by platform. Adding a platform
// means registering one extractor; nothing else in the pipeline changes.
//
// Estimation:
// When a payload carries engagement but no reach, reach is estimated as
// ReachEngagementMultiplier times the engagement total. Missing impressions
// are estimated as ImpressionsReachMultiplier times reach. Both are coarse
// empirical ratios; any snapshot carrying an estimate is tagged with
// DataSource "fallback" so downstream consumers can filter it.
//
// The package also provides the derived computations built on snapshots:
// Aggregate for multi-day rollups, Summarize for per-post averages,
// DetectAnomalies against a historical baseline and Quality for the
// fetch-success ratio.
package normalize

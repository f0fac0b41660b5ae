// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

// Package config loads Resonance configuration with Koanf v2.
//
// Sources are layered, later layers winning:
//
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file (CONFIG_PATH, ./config.yaml, /etc/resonance/config.yaml)
//  3. A .env file in the working directory (never overrides real env vars)
//  4. Environment variables, mapped through an explicit table
//
// Unknown environment variables are ignored so the process environment
// cannot leak into configuration by accident.
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Failed to load configuration")
//	}
package config

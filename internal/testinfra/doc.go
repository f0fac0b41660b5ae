// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

// Package testinfra provides test doubles and containers for the collection pipeline.
//
// # Graph API Server
//
// GraphServer is an httptest server that speaks enough of the Graph API
// wire format for fetcher and orchestrator tests. Routes are registered by
// path without the version prefix, responses are served in order with the
// last one repeating, and every request is captured:
//
//	graph := testinfra.NewGraphServer(t)
//	graph.Handle("/17841400000/insights",
//	    testinfra.GraphError(http.StatusBadRequest, 100, 0, "(#100) metric[0] must be one of ..."),
//	    testinfra.JSON(map[string]any{"data": []any{}}),
//	)
//	client := graphapi.NewClient(graphapi.Config{BaseURL: graph.URL()})
//
// # Redis Container
//
// Under the integration build tag, NewRedisContainer starts a real Redis
// through testcontainers-go so the shared rate limit window store is
// exercised against the real Lua runtime:
//
//	testinfra.SkipIfNoDocker(t)
//	rc, err := testinfra.NewRedisContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	testinfra.CleanupContainer(t, rc)
//
// These tests require Docker and network access and are skipped gracefully
// when Docker is unavailable.
package testinfra

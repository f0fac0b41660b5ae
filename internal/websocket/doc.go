// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

/*
Package websocket serves the live event feed.

The Hub holds every connected Client and fans messages out to them. It runs
as a supervised service; the events package forwards sync completions,
hotspots and anomalies into it through Broadcast, and the ops API upgrades
GET /api/v1/events/ws connections into clients.

Each client has two goroutines:
  - readPump: discards client frames, detects disconnects, extends the read
    deadline on pong
  - writePump: writes queued messages as JSON and pings every 54s

Frames are JSON objects:

	{"type": "sync_completed", "data": {...}}

A client whose queue fills is disconnected rather than slowing the hub.
When the hub stops, every client receives a going-away close frame.
*/
package websocket

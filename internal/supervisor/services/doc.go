// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

/*
Package services adapts components with other lifecycles to suture's
Serve(ctx) error pattern.

HTTPServerService runs a ListenAndServe/Shutdown server. A fresh server is
built for every Serve call, since an *http.Server cannot be restarted once
shut down.

SchedulerService runs a Start/Stop component, the sync scheduler.
*/
package services

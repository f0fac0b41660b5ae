// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

/*
Package supervisor runs the long-lived services of the pipeline under a
suture v4 supervisor tree.

The tree has three layers so a crash in one does not take the others down:

	root ("resonance")
	├── data-layer
	│   ├── cache-cleanup      analytics cache expiry sweep
	│   ├── event-router       watermill consumers (hotspots, activity log)
	│   └── storage-gc         Badger value log GC (badger driver only)
	├── sync-layer
	│   └── sync-scheduler     hourly incremental and daily fan-out
	└── api-layer
	    └── http-server        ops API

Supervisor events (start, failure, backoff) are logged through sutureslog
into the zerolog-backed slog logger.

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDataService(cache)
	tree.AddSyncService(services.NewSchedulerService(scheduler))
	tree.AddAPIService(services.NewHTTPServerService(newServer, 30*time.Second))
	err = tree.Serve(ctx)
*/
package supervisor

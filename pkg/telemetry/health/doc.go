// Package health provides liveness, readiness and version endpoints for a
// procmetrics process.
//
// # Endpoints
//
//   - liveness (default /health): the process is running
//   - readiness (default /ready): every registered component check passes
//   - /version: build information
//
// Paths come from config.HealthConfig; Endpoints returns nothing when health
// checks are disabled.
//
// # Usage
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("multiproc_dir", health.DirectoryCheck(dir))
//	checker.RegisterCheck("collector", health.CollectorCheck(collector))
//
//	for _, ep := range checker.Endpoints(cfg.Telemetry.Health, info) {
//	    mux.Handle(ep.Path, ep.Handler)
//	}
//
// # Readiness
//
// Checks run concurrently, each bounded by the checker timeout. A check that
// fails or times out marks the status degraded and the readiness endpoint
// answers 503 with the per-check results:
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "multiproc_dir": {"status": "unhealthy", "message": "..."},
//	        "collector": {"status": "ok", "duration_ms": 412000}
//	    },
//	    "timestamp": "2026-03-02T10:30:00Z"
//	}
//
// DirectoryCheck probes that the multiprocess directory accepts new files.
// CollectorCheck runs a collection pass and fails only when the directory
// itself cannot be listed. ReaperCheck watches the sweep scheduler of a
// grace-policy reaper.
package health

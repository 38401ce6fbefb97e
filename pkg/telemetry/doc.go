// Package telemetry groups the observability of a procmetrics worker.
//
// # Components
//
//   - logging: structured slog logging with request, route and process ids
//     taken from the context
//   - metrics: the multiprocess scrape handler, scrape diagnostics and HTTP
//     request metrics recorded through the process files
//   - tracing: OpenTelemetry spans for requests and scrape passes
//   - health: liveness, readiness and version endpoints with checks on the
//     multiprocess directory, the collector and the reaper
//
// # Usage
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, os.Stderr))
//	tracer, err := tracing.New(cfg.Telemetry.Tracing, version)
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	for _, ep := range checker.Endpoints(cfg.Telemetry.Health, health.NewVersionInfo(version, commit, date)) {
//	    srv.Handle(server.Route{Path: ep.Path, Handler: ep.Handler, ExcludeFromDocs: true})
//	}
package telemetry

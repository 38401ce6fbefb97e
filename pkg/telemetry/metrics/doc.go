// Package metrics serves multiprocess metrics over HTTP and instruments the
// HTTP server with them.
//
// # Overview
//
// Handler answers scrapes: every request runs a full collection pass over the
// multiprocess directory, merges the process files and encodes the result.
// The response is always 200; unreadable files and samples that cannot be
// encoded are left out, logged and counted.
//
//	collector := multiproc.NewCollector(dir, multiproc.CollectorOptions{})
//	mux.Handle("/metrics", metrics.NewHandler(collector, metrics.HandlerOptions{}))
//
// # Content Negotiation
//
// The Prometheus text format 0.0.4 is served by default. Scrapers asking for
// OpenMetrics or the delimited protobuf format get it through expfmt.
//
// # Scrape Diagnostics
//
// Diagnostics keeps the scrape health of the answering process in a regular
// prometheus.Registry. The scrape response never includes it; mount
// Diagnostics.Handler on a separate path instead:
//
//	h := metrics.NewHandler(collector, metrics.HandlerOptions{})
//	mux.Handle("/metrics", h)
//	mux.Handle("/metrics/diagnostics", h.Diagnostics().Handler(logger))
//
// These values are per process. A request landing on another worker reports
// that worker's own counts.
//
// # promhttp
//
// PromHTTPHandler is the alternative serving path: the merged view is
// registered as a prometheus.Collector and served by promhttp, next to any
// client_golang metrics the process registers itself. The server selects it
// with metrics.handler: promhttp.
//
// # Request Metrics
//
// RequestMetrics records requests_total, request_duration_seconds and
// requests_in_flight through a multiproc.Registry, so the counts cover every
// worker of the group.
package metrics

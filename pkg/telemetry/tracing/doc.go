// Package tracing records OpenTelemetry spans for HTTP requests and scrape
// passes and exports them over OTLP gRPC.
//
// Tracing is off by default. When telemetry.tracing.enabled is false, New
// returns a noop tracer and no collector connection is made.
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: "otel-collector:4317"
//	    insecure: true
//	    sampler: ratio
//	    sample_ratio: 0.1
//
// # Spans
//
// HTTPMiddleware opens a server span per request and continues traces sent
// with a W3C traceparent header. The metrics handler adds two child spans:
//
//   - multiproc.collect: files merged, missing, skipped dead, partial errors
//   - exposition.encode: negotiated format, family count, encoding errors
//
// # Sampling
//
// Samplers are parent based: the sampling decision of an incoming trace
// wins, the configured strategy applies to new traces.
package tracing

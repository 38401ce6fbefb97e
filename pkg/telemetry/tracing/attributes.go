package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/procmetrics/pkg/multiproc"
)

// Span attribute keys. HTTP keys follow the OpenTelemetry semantic
// conventions; scrape keys live under procmetrics.*.
const (
	AttrHTTPMethod = "http.request.method"
	AttrHTTPRoute  = "http.route"
	AttrHTTPStatus = "http.response.status_code"
	AttrRequestID  = "procmetrics.request_id"

	AttrMultiprocDir         = "procmetrics.multiproc.dir"
	AttrScrapeFiles          = "procmetrics.scrape.files"
	AttrScrapeMissing        = "procmetrics.scrape.missing"
	AttrScrapeSkippedDead    = "procmetrics.scrape.skipped_dead"
	AttrScrapePartialErrors  = "procmetrics.scrape.partial_errors"
	AttrScrapeEncodingErrors = "procmetrics.scrape.encoding_errors"
	AttrScrapeFamilies       = "procmetrics.scrape.families"
	AttrScrapeFormat         = "procmetrics.scrape.format"

	AttrErrorMessage = "error.message"
)

// SetRequestAttributes records the outcome of an HTTP request. Server
// errors mark the span as failed.
func SetRequestAttributes(span trace.Span, method, route string, code int) {
	span.SetAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPRoute, route),
		attribute.Int(AttrHTTPStatus, code),
	)
	if code >= 500 {
		span.SetStatus(codes.Error, "server error")
	}
}

// SetCollectAttributes records the result of a collection pass.
func SetCollectAttributes(span trace.Span, dir string, stats multiproc.CollectStats, partialErrors int) {
	span.SetAttributes(
		attribute.String(AttrMultiprocDir, dir),
		attribute.Int(AttrScrapeFiles, stats.Files),
		attribute.Int(AttrScrapeMissing, stats.Missing),
		attribute.Int(AttrScrapeSkippedDead, stats.SkippedDead),
		attribute.Int(AttrScrapePartialErrors, partialErrors),
	)
}

// SetEncodeAttributes records the result of encoding a scrape response.
func SetEncodeAttributes(span trace.Span, format string, families, encodingErrors int) {
	span.SetAttributes(
		attribute.String(AttrScrapeFormat, format),
		attribute.Int(AttrScrapeFamilies, families),
		attribute.Int(AttrScrapeEncodingErrors, encodingErrors),
	)
}

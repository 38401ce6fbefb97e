package metrics

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/procmetrics/pkg/exposition"
	"mercator-hq/procmetrics/pkg/multiproc"
	"mercator-hq/procmetrics/pkg/telemetry/tracing"
)

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	// Logger receives scrape warnings. Default: slog.Default().
	Logger *slog.Logger

	// Diagnostics records scrape health. It is never part of the scrape
	// response; serve it with Diagnostics.Handler. NewHandler creates one
	// when nil unless DisableDiagnostics is set.
	Diagnostics *Diagnostics

	// DisableDiagnostics turns off scrape health recording.
	DisableDiagnostics bool

	// Tracer records collect and encode spans. Default: tracing.Noop().
	Tracer *tracing.Tracer
}

// Handler serves the merged metrics of a multiprocess directory.
//
// Every request runs a full collection pass followed by encoding. The
// response is always 200 with the best-effort body: files that cannot be read
// and samples that cannot be encoded are left out, logged and counted in the
// diagnostics. The body carries only the merged multiprocess metrics, so two
// scrapes of an unchanged directory are byte-identical.
type Handler struct {
	collector *multiproc.Collector
	diag      *Diagnostics
	tracer    *tracing.Tracer
	logger    *slog.Logger
}

// NewHandler returns a Handler collecting from c.
//
// Example:
//
//	collector := multiproc.NewCollector(dir, multiproc.CollectorOptions{})
//	http.Handle("/metrics", metrics.NewHandler(collector, metrics.HandlerOptions{}))
func NewHandler(c *multiproc.Collector, opts HandlerOptions) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = tracing.Noop()
	}
	diag := opts.Diagnostics
	if diag == nil && !opts.DisableDiagnostics {
		diag = NewDiagnostics(nil)
	}
	return &Handler{
		collector: c,
		diag:      diag,
		tracer:    opts.Tracer,
		logger:    opts.Logger.With("component", "metrics.handler"),
	}
}

// Diagnostics returns the handler's diagnostics, nil when disabled.
func (h *Handler) Diagnostics() *Diagnostics {
	return h.diag
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	body, contentType := h.scrape(r)

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(body); err != nil {
		h.logger.Debug("failed to write scrape response", "error", err)
	}

	if h.diag != nil {
		h.diag.ObserveDuration(time.Since(start))
	}
}

func (h *Handler) scrape(r *http.Request) ([]byte, string) {
	collectCtx, span := h.tracer.Start(r.Context(), "multiproc.collect")
	merged, stats, errs := h.collector.CollectWithStats()
	for _, err := range errs {
		h.logger.WarnContext(collectCtx, "partial collection", "error", err)
	}
	tracing.SetCollectAttributes(span, h.collector.Dir(), stats, len(errs))
	span.End()

	if h.diag != nil {
		h.diag.RecordCollection(stats, len(errs))
	}
	families := merged.MetricFamilies()

	format, contentType := exposition.Negotiate(r.Header)

	encodeCtx, span := h.tracer.Start(r.Context(), "exposition.encode")
	defer span.End()

	var buf bytes.Buffer
	warnings, err := exposition.EncodeFormat(&buf, families, format)
	for _, w := range warnings {
		h.logger.WarnContext(encodeCtx, "sample omitted from scrape", "error", w)
	}
	if h.diag != nil {
		h.diag.RecordEncoding(len(warnings))
	}
	tracing.SetEncodeAttributes(span, string(format), len(families), len(warnings))
	if err != nil {
		h.logger.ErrorContext(encodeCtx, "failed to encode scrape", "format", string(format), "error", err)
		tracing.SetError(span, err)
	}

	return buf.Bytes(), contentType
}

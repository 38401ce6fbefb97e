package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mercator-hq/procmetrics/pkg/multiproc"
)

// Diagnostics tracks the scrape health of the serving process.
//
// Metrics:
//   - procmetrics_scrape_partial_errors_total: process files skipped during collection
//   - procmetrics_scrape_encoding_errors_total: samples omitted from the response
//   - procmetrics_scrape_duration_seconds: collection and encoding time
//   - procmetrics_scrape_files: process files merged by the last scrape
//
// The values describe only the process answering the scrape. They are kept
// in a regular prometheus.Registry and served on a route of their own by
// Handler, never mixed into the merged multiprocess output.
type Diagnostics struct {
	registry *prometheus.Registry

	partialErrors  prometheus.Counter
	encodingErrors prometheus.Counter
	duration       prometheus.Histogram
	files          prometheus.Gauge
}

// NewDiagnostics creates and registers the scrape diagnostics with registry.
// A nil registry gets a fresh one.
func NewDiagnostics(registry *prometheus.Registry) *Diagnostics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	d := &Diagnostics{
		registry: registry,

		partialErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "procmetrics",
			Subsystem: "scrape",
			Name:      "partial_errors_total",
			Help:      "Process files that could not be read during a scrape",
		}),

		encodingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "procmetrics",
			Subsystem: "scrape",
			Name:      "encoding_errors_total",
			Help:      "Samples omitted from a scrape because they could not be encoded",
		}),

		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "procmetrics",
			Subsystem: "scrape",
			Name:      "duration_seconds",
			Help:      "Time spent collecting and encoding multiprocess metrics",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		files: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "procmetrics",
			Subsystem: "scrape",
			Name:      "files",
			Help:      "Process files merged by the last scrape",
		}),
	}

	registry.MustRegister(
		d.partialErrors,
		d.encodingErrors,
		d.duration,
		d.files,
	)

	return d
}

// Registry returns the registry holding the diagnostics.
func (d *Diagnostics) Registry() *prometheus.Registry {
	return d.registry
}

// RecordCollection records the outcome of one collection pass.
func (d *Diagnostics) RecordCollection(stats multiproc.CollectStats, partialErrors int) {
	d.files.Set(float64(stats.Files))
	if partialErrors > 0 {
		d.partialErrors.Add(float64(partialErrors))
	}
}

// RecordEncoding records samples dropped by the encoder.
func (d *Diagnostics) RecordEncoding(encodingErrors int) {
	if encodingErrors > 0 {
		d.encodingErrors.Add(float64(encodingErrors))
	}
}

// ObserveDuration records the duration of a scrape.
func (d *Diagnostics) ObserveDuration(elapsed time.Duration) {
	d.duration.Observe(elapsed.Seconds())
}

// Handler serves the diagnostics registry through promhttp.
func (d *Diagnostics) Handler(logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return promhttp.HandlerFor(
		d.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
			ErrorLog:          slog.NewLogLogger(logger.With("component", "metrics.diagnostics").Handler(), slog.LevelWarn),
		},
	)
}

package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mercator-hq/procmetrics/pkg/multiproc"
)

// PromHTTPHandler serves the merged multiprocess metrics through promhttp.
//
// The collector is registered with registry (a fresh one when nil), so the
// response can also carry regular client_golang metrics of the serving
// process. Unreadable process files are reported to logger and the rest of
// the metrics are still served.
func PromHTTPHandler(c *multiproc.Collector, registry *prometheus.Registry, logger *slog.Logger) (http.Handler, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}

	pc := multiproc.NewPrometheusCollector(c)
	pc.ReportErrors = true
	if err := registry.Register(pc); err != nil {
		return nil, err
	}

	return promhttp.HandlerFor(
		registry,
		promhttp.HandlerOpts{
			// Enable OpenMetrics encoding when the scraper asks for it
			EnableOpenMetrics: true,

			// Serve what could be gathered
			ErrorHandling: promhttp.ContinueOnError,

			ErrorLog: slog.NewLogLogger(logger.With("component", "metrics.promhttp").Handler(), slog.LevelWarn),
		},
	), nil
}

package metrics

import (
	"strconv"
	"time"

	"mercator-hq/procmetrics/pkg/multiproc"
)

// RequestMetrics tracks HTTP requests served by a worker. The values are
// written to the worker's process files, so a scrape of any worker reports
// the totals of the whole group.
//
// Metrics:
//   - requests_total: request count by method, route and status code
//   - request_duration_seconds: request duration histogram by method and route
//   - requests_in_flight: requests being served (livesum gauge)
type RequestMetrics struct {
	// Total request count
	requestsTotal *multiproc.CounterVec

	// Request duration histogram
	requestDuration *multiproc.HistogramVec

	// Requests currently being served
	inFlight *multiproc.Gauge
}

// RequestMetricsOptions configures RequestMetrics.
type RequestMetricsOptions struct {
	// Namespace prefixes every metric name when set.
	Namespace string

	// Buckets for request_duration_seconds. Default: multiproc.DefaultBuckets.
	Buckets []float64
}

// NewRequestMetrics registers the request metrics with registry.
func NewRequestMetrics(registry *multiproc.Registry, opts RequestMetricsOptions) (*RequestMetrics, error) {
	name := func(s string) string {
		if opts.Namespace == "" {
			return s
		}
		return opts.Namespace + "_" + s
	}

	requestsTotal, err := registry.NewCounter(multiproc.CounterOpts{
		Name:       name("requests_total"),
		Help:       "Total number of HTTP requests served",
		LabelNames: []string{"method", "route", "code"},
	})
	if err != nil {
		return nil, err
	}

	requestDuration, err := registry.NewHistogram(multiproc.HistogramOpts{
		Name:       name("request_duration_seconds"),
		Help:       "Duration of HTTP requests in seconds",
		LabelNames: []string{"method", "route"},
		Buckets:    opts.Buckets,
	})
	if err != nil {
		return nil, err
	}

	inFlight, err := registry.NewGauge(multiproc.GaugeOpts{
		Name: name("requests_in_flight"),
		Help: "HTTP requests currently being served",
		Mode: multiproc.GaugeModeLiveSum,
	})
	if err != nil {
		return nil, err
	}

	return &RequestMetrics{
		requestsTotal:   requestsTotal,
		requestDuration: requestDuration,
		inFlight:        inFlight.WithLabelValues(),
	}, nil
}

// Start marks a request as in flight and returns the function that records
// its completion.
//
// Example:
//
//	done := rm.Start()
//	next.ServeHTTP(rec, r)
//	done(r.Method, route, rec.status)
func (rm *RequestMetrics) Start() func(method, route string, code int) {
	start := time.Now()
	rm.inFlight.Inc()
	return func(method, route string, code int) {
		rm.inFlight.Dec()
		rm.RecordRequest(method, route, code, time.Since(start))
	}
}

// RecordRequest records a completed request.
func (rm *RequestMetrics) RecordRequest(method, route string, code int, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	rm.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// InFlight returns the number of requests this process is serving.
func (rm *RequestMetrics) InFlight() float64 {
	return rm.inFlight.Value()
}

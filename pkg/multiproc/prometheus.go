package multiproc

import (
	"math"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// PrometheusCollector exposes a Collector's merged view as a
// prometheus.Collector, so the multiprocess directory can be registered with
// a prometheus.Registry and served by promhttp next to regular metrics.
//
// The set of metrics depends on the directory content, so the collector is
// unchecked: Describe sends nothing.
type PrometheusCollector struct {
	collector *Collector

	// ReportErrors sends every partial collection error as an invalid
	// metric. Gathering then reports them (promhttp logs them under
	// ContinueOnError) while the valid metrics are still served.
	ReportErrors bool
}

// NewPrometheusCollector wraps c.
func NewPrometheusCollector(c *Collector) *PrometheusCollector {
	return &PrometheusCollector{collector: c}
}

var collectErrorDesc = prometheus.NewDesc(
	"procmetrics_multiproc_collect_error",
	"A process file could not be read.",
	nil, nil,
)

// Describe implements prometheus.Collector.
func (pc *PrometheusCollector) Describe(chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector.
func (pc *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	merged, errs := pc.collector.Collect()
	if pc.ReportErrors {
		for _, err := range errs {
			ch <- prometheus.NewInvalidMetric(collectErrorDesc, err)
		}
	}

	for _, mf := range merged.MetricFamilies() {
		descs := make(map[string]*prometheus.Desc)
		for _, m := range mf.GetMetric() {
			names, values := splitLabels(m.GetLabel())
			id := strings.Join(names, "\xff")
			desc, ok := descs[id]
			if !ok {
				desc = prometheus.NewDesc(mf.GetName(), mf.GetHelp(), names, nil)
				descs[id] = desc
			}
			ch <- constMetric(desc, mf.GetType(), m, values)
		}
	}
}

func constMetric(desc *prometheus.Desc, typ dto.MetricType, m *dto.Metric, values []string) prometheus.Metric {
	var (
		metric prometheus.Metric
		err    error
	)
	switch typ {
	case dto.MetricType_COUNTER:
		metric, err = prometheus.NewConstMetric(desc, prometheus.CounterValue, m.GetCounter().GetValue(), values...)
	case dto.MetricType_GAUGE:
		metric, err = prometheus.NewConstMetric(desc, prometheus.GaugeValue, m.GetGauge().GetValue(), values...)
	case dto.MetricType_HISTOGRAM:
		h := m.GetHistogram()
		buckets := make(map[float64]uint64, len(h.GetBucket()))
		for _, b := range h.GetBucket() {
			if math.IsInf(b.GetUpperBound(), 1) {
				continue
			}
			buckets[b.GetUpperBound()] = b.GetCumulativeCount()
		}
		metric, err = prometheus.NewConstHistogram(desc, h.GetSampleCount(), h.GetSampleSum(), buckets, values...)
	default:
		metric, err = prometheus.NewConstMetric(desc, prometheus.UntypedValue, m.GetUntyped().GetValue(), values...)
	}
	if err != nil {
		return prometheus.NewInvalidMetric(desc, err)
	}
	return metric
}

func splitLabels(pairs []*dto.LabelPair) (names, values []string) {
	names = make([]string, len(pairs))
	values = make([]string, len(pairs))
	for i, p := range pairs {
		names[i] = p.GetName()
		values[i] = p.GetValue()
	}
	return names, values
}

package multiproc

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"mercator-hq/procmetrics/pkg/exposition"
)

// slot is one value in a process file. The zero slot is detached and
// ignores writes.
type slot struct {
	file *MappedFile
	off  int
}

func (s slot) set(v float64) {
	if s.file != nil {
		s.file.set(s.off, v)
	}
}

func (s slot) add(d float64) {
	if s.file != nil {
		s.file.add(s.off, d)
	}
}

func (s slot) get() float64 {
	if s.file == nil {
		return 0
	}
	v, _ := s.file.load(s.off)
	return v
}

// metricVec holds the children of one descriptor keyed by label values.
type metricVec[T any] struct {
	reg      *Registry
	desc     *Desc
	newChild func(labels Labels) *T
	noop     *T

	mu       sync.RWMutex
	children map[string]*T
}

func (v *metricVec[T]) getWith(labels Labels) (*T, error) {
	if len(labels) != len(v.desc.LabelNames) {
		return nil, fmt.Errorf("%s: expected %d labels %v, got %d", v.desc.Name, len(v.desc.LabelNames), v.desc.LabelNames, len(labels))
	}
	values := make([]string, len(v.desc.LabelNames))
	for i, name := range v.desc.LabelNames {
		value, ok := labels[name]
		if !ok {
			return nil, fmt.Errorf("%s: missing label %q", v.desc.Name, name)
		}
		values[i] = value
	}
	return v.child(values), nil
}

func (v *metricVec[T]) getWithLabelValues(values ...string) (*T, error) {
	if len(values) != len(v.desc.LabelNames) {
		return nil, fmt.Errorf("%s: expected %d label values, got %d", v.desc.Name, len(v.desc.LabelNames), len(values))
	}
	return v.child(values), nil
}

// childID encodes values with length prefixes so that distinct tuples never
// share an id, whatever bytes the values hold.
func childID(values []string) string {
	var b strings.Builder
	for _, value := range values {
		b.WriteString(strconv.Itoa(len(value)))
		b.WriteByte(':')
		b.WriteString(value)
	}
	return b.String()
}

func (v *metricVec[T]) child(values []string) *T {
	id := childID(values)

	v.mu.RLock()
	c, ok := v.children[id]
	v.mu.RUnlock()
	if ok {
		return c
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if c, ok := v.children[id]; ok {
		return c
	}

	labels := make(Labels, len(values))
	for i, name := range v.desc.LabelNames {
		labels[name] = values[i]
	}
	c = v.newChild(labels)
	v.children[id] = c
	return c
}

func (v *metricVec[T]) orNoop(c *T, err error) *T {
	if err != nil {
		v.reg.logger.Warn("invalid labels, observation dropped", "metric", v.desc.Name, "error", err)
		return v.noop
	}
	return c
}

// Counter is one counter series.
type Counter struct {
	reg  *Registry
	name string
	s    slot
}

// Inc adds one.
func (c *Counter) Inc() { c.Add(1) }

// Add adds delta. Negative and NaN deltas are dropped with a warning.
func (c *Counter) Add(delta float64) {
	if delta < 0 {
		c.reg.logger.Warn("counter cannot decrease, observation dropped", "metric", c.name, "delta", delta)
		return
	}
	if math.IsNaN(delta) {
		c.reg.logger.Warn("counter delta is NaN, observation dropped", "metric", c.name)
		return
	}
	c.s.add(delta)
}

// Value returns this process's current value.
func (c *Counter) Value() float64 { return c.s.get() }

// CounterVec is a counter partitioned by labels.
type CounterVec struct {
	metricVec[Counter]
}

func newCounterVec(r *Registry, d *Desc) *CounterVec {
	v := &CounterVec{metricVec[Counter]{
		reg:      r,
		desc:     d,
		noop:     &Counter{reg: r, name: d.Name},
		children: make(map[string]*Counter),
	}}
	v.newChild = func(labels Labels) *Counter {
		key := EncodeKey(d.Name, d.Name+"_total", labels, d.Help)
		return &Counter{reg: r, name: d.Name, s: r.slot(KindCounter, GaugeModeUnset, key)}
	}
	return v
}

// Desc returns the descriptor.
func (v *CounterVec) Desc() Desc { return *v.desc }

// GetMetricWith returns the series for labels or an error if they do not
// match the label names.
func (v *CounterVec) GetMetricWith(labels Labels) (*Counter, error) { return v.getWith(labels) }

// GetMetricWithLabelValues is GetMetricWith with positional values.
func (v *CounterVec) GetMetricWithLabelValues(values ...string) (*Counter, error) {
	return v.getWithLabelValues(values...)
}

// With returns the series for labels. Mismatched labels are logged and give
// a series that records nothing.
func (v *CounterVec) With(labels Labels) *Counter { return v.orNoop(v.getWith(labels)) }

// WithLabelValues is With with positional values.
func (v *CounterVec) WithLabelValues(values ...string) *Counter {
	return v.orNoop(v.getWithLabelValues(values...))
}

// Gauge is one gauge series.
type Gauge struct {
	s slot
}

// Set sets the value.
func (g *Gauge) Set(v float64) { g.s.set(v) }

// Add adds delta, which may be negative.
func (g *Gauge) Add(delta float64) { g.s.add(delta) }

// Sub subtracts delta.
func (g *Gauge) Sub(delta float64) { g.s.add(-delta) }

// Inc adds one.
func (g *Gauge) Inc() { g.s.add(1) }

// Dec subtracts one.
func (g *Gauge) Dec() { g.s.add(-1) }

// SetToCurrentTime sets the value to the current unix time in seconds.
func (g *Gauge) SetToCurrentTime() { g.s.set(float64(time.Now().UnixNano()) / 1e9) }

// Value returns this process's current value.
func (g *Gauge) Value() float64 { return g.s.get() }

// GaugeVec is a gauge partitioned by labels.
type GaugeVec struct {
	metricVec[Gauge]
}

func newGaugeVec(r *Registry, d *Desc) *GaugeVec {
	v := &GaugeVec{metricVec[Gauge]{
		reg:      r,
		desc:     d,
		noop:     &Gauge{},
		children: make(map[string]*Gauge),
	}}
	v.newChild = func(labels Labels) *Gauge {
		key := EncodeKey(d.Name, d.Name, labels, d.Help)
		return &Gauge{s: r.slot(KindGauge, d.Mode, key)}
	}
	return v
}

// Desc returns the descriptor.
func (v *GaugeVec) Desc() Desc { return *v.desc }

// GetMetricWith returns the series for labels.
func (v *GaugeVec) GetMetricWith(labels Labels) (*Gauge, error) { return v.getWith(labels) }

// GetMetricWithLabelValues is GetMetricWith with positional values.
func (v *GaugeVec) GetMetricWithLabelValues(values ...string) (*Gauge, error) {
	return v.getWithLabelValues(values...)
}

// With returns the series for labels.
func (v *GaugeVec) With(labels Labels) *Gauge { return v.orNoop(v.getWith(labels)) }

// WithLabelValues is With with positional values.
func (v *GaugeVec) WithLabelValues(values ...string) *Gauge {
	return v.orNoop(v.getWithLabelValues(values...))
}

// Histogram is one histogram series. Each bucket slot holds the count of
// observations that fell into that bucket only; cumulative counts and the
// total count are derived at collection time.
type Histogram struct {
	bounds  []float64
	buckets []slot
	sum     slot
}

// Observe records v in the first bucket whose upper bound is >= v.
func (h *Histogram) Observe(v float64) {
	if len(h.buckets) == 0 {
		return
	}
	i := sort.SearchFloat64s(h.bounds, v)
	if i >= len(h.buckets) || math.IsNaN(v) {
		i = len(h.buckets) - 1
	}
	h.buckets[i].add(1)
	h.sum.add(v)
}

// ObserveDuration records the seconds elapsed since start.
func (h *Histogram) ObserveDuration(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Sum returns this process's running sum of observations.
func (h *Histogram) Sum() float64 { return h.sum.get() }

// Count returns this process's number of observations.
func (h *Histogram) Count() float64 {
	var n float64
	for _, b := range h.buckets {
		n += b.get()
	}
	return n
}

// HistogramVec is a histogram partitioned by labels.
type HistogramVec struct {
	metricVec[Histogram]
}

func newHistogramVec(r *Registry, d *Desc) *HistogramVec {
	v := &HistogramVec{metricVec[Histogram]{
		reg:      r,
		desc:     d,
		noop:     &Histogram{},
		children: make(map[string]*Histogram),
	}}
	v.newChild = func(labels Labels) *Histogram {
		h := &Histogram{
			bounds:  d.Buckets,
			buckets: make([]slot, len(d.Buckets)),
		}
		for i, bound := range d.Buckets {
			bucketLabels := make(Labels, len(labels)+1)
			for k, val := range labels {
				bucketLabels[k] = val
			}
			bucketLabels[BucketLabel] = exposition.FormatFloat(bound)
			key := EncodeKey(d.Name, d.Name+"_bucket", bucketLabels, d.Help)
			h.buckets[i] = r.slot(KindHistogram, GaugeModeUnset, key)
		}
		h.sum = r.slot(KindHistogram, GaugeModeUnset, EncodeKey(d.Name, d.Name+"_sum", labels, d.Help))
		return h
	}
	return v
}

// Desc returns the descriptor.
func (v *HistogramVec) Desc() Desc { return *v.desc }

// GetMetricWith returns the series for labels.
func (v *HistogramVec) GetMetricWith(labels Labels) (*Histogram, error) { return v.getWith(labels) }

// GetMetricWithLabelValues is GetMetricWith with positional values.
func (v *HistogramVec) GetMetricWithLabelValues(values ...string) (*Histogram, error) {
	return v.getWithLabelValues(values...)
}

// With returns the series for labels.
func (v *HistogramVec) With(labels Labels) *Histogram { return v.orNoop(v.getWith(labels)) }

// WithLabelValues is With with positional values.
func (v *HistogramVec) WithLabelValues(values ...string) *Histogram {
	return v.orNoop(v.getWithLabelValues(values...))
}

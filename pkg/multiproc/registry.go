package multiproc

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrDuplicateMetric is returned when a name is registered twice.
	ErrDuplicateMetric = errors.New("duplicate metric name")

	// ErrInvalidDescriptor is returned for malformed names, label names or buckets.
	ErrInvalidDescriptor = errors.New("invalid metric descriptor")

	metricNamePattern = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)
	labelNamePattern  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// Label names with a fixed meaning in the exposition.
const (
	BucketLabel  = "le"
	ProcessLabel = "pid"
)

// Desc is the immutable description of a registered metric.
type Desc struct {
	Name       string
	Kind       Kind
	Help       string
	LabelNames []string

	// Mode is set for gauges only.
	Mode GaugeMode

	// Buckets is set for histograms only: sorted upper bounds ending in +Inf.
	Buckets []float64
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// DefaultGaugeMode is used by gauges registered without a mode.
	// Default: DefaultGaugeMode (livesum).
	DefaultGaugeMode GaugeMode

	// Logger receives registration and storage warnings.
	Logger *slog.Logger
}

// Registry is the explicitly constructed set of metrics of one process. It is
// handed to instrumentation call sites and to the metrics handler at setup
// time; there is no package-level default registry.
//
// Label cardinality is not bounded: every distinct label combination adds an
// entry to the process file for the lifetime of the file.
type Registry struct {
	store       *Store
	defaultMode GaugeMode
	logger      *slog.Logger

	mu    sync.RWMutex
	descs map[string]*Desc

	storageWarn sync.Once
}

// NewRegistry returns a registry writing through store. A nil store gives a
// registry whose metrics accept every call and record nothing, after one
// warning; this is how StorageUnavailable reaches instrumentation sites.
func NewRegistry(store *Store, opts RegistryOptions) *Registry {
	if opts.DefaultGaugeMode == GaugeModeUnset {
		opts.DefaultGaugeMode = DefaultGaugeMode
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Registry{
		store:       store,
		defaultMode: opts.DefaultGaugeMode,
		logger:      opts.Logger.With("component", "multiproc.registry"),
		descs:       make(map[string]*Desc),
	}
}

// Store returns the backing store, nil when storage is unavailable.
func (r *Registry) Store() *Store { return r.store }

// Descriptors returns the registered descriptors sorted by name.
func (r *Registry) Descriptors() []Desc {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Desc, 0, len(r.descs))
	for _, d := range r.descs {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) register(d *Desc) error {
	if !metricNamePattern.MatchString(d.Name) {
		return fmt.Errorf("%w: metric name %q", ErrInvalidDescriptor, d.Name)
	}
	seen := make(map[string]struct{}, len(d.LabelNames))
	for _, ln := range d.LabelNames {
		if !labelNamePattern.MatchString(ln) || strings.HasPrefix(ln, "__") {
			return fmt.Errorf("%w: label name %q on %s", ErrInvalidDescriptor, ln, d.Name)
		}
		if _, dup := seen[ln]; dup {
			return fmt.Errorf("%w: label %q repeated on %s", ErrInvalidDescriptor, ln, d.Name)
		}
		seen[ln] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.descs[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateMetric, d.Name)
	}
	r.descs[d.Name] = d
	return nil
}

// slot resolves key in the file for kind/mode. Storage failures yield a
// detached slot and a single warning per registry.
func (r *Registry) slot(kind Kind, mode GaugeMode, key string) slot {
	if r.store == nil {
		r.warnStorage(ErrStorageUnavailable)
		return slot{}
	}
	f, err := r.store.Open(kind, mode)
	if err != nil {
		r.warnStorage(err)
		return slot{}
	}
	off, err := f.offset(key)
	if err != nil {
		r.warnStorage(err)
		return slot{}
	}
	return slot{file: f, off: off}
}

func (r *Registry) warnStorage(err error) {
	r.storageWarn.Do(func() {
		r.logger.Warn("metric storage unavailable, observations are dropped", "error", err)
	})
}

// CounterOpts describes a counter. A trailing "_total" in Name is dropped;
// the exposition adds it back.
type CounterOpts struct {
	Name       string
	Help       string
	LabelNames []string
}

// NewCounter registers a counter.
func (r *Registry) NewCounter(opts CounterOpts) (*CounterVec, error) {
	d := &Desc{
		Name:       strings.TrimSuffix(opts.Name, "_total"),
		Kind:       KindCounter,
		Help:       opts.Help,
		LabelNames: append([]string(nil), opts.LabelNames...),
	}
	if err := r.register(d); err != nil {
		return nil, err
	}
	return newCounterVec(r, d), nil
}

// MustNewCounter is NewCounter that panics on error.
func (r *Registry) MustNewCounter(opts CounterOpts) *CounterVec {
	v, err := r.NewCounter(opts)
	if err != nil {
		panic(err)
	}
	return v
}

// GaugeOpts describes a gauge.
type GaugeOpts struct {
	Name       string
	Help       string
	LabelNames []string

	// Mode selects the multiprocess merge. GaugeModeUnset uses the
	// registry default.
	Mode GaugeMode
}

// NewGauge registers a gauge.
func (r *Registry) NewGauge(opts GaugeOpts) (*GaugeVec, error) {
	mode := opts.Mode
	if mode == GaugeModeUnset {
		mode = r.defaultMode
	}
	if _, err := ParseGaugeMode(string(mode)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	if (mode.base() == GaugeModeAll) && contains(opts.LabelNames, ProcessLabel) {
		return nil, fmt.Errorf("%w: label %q is reserved for gauge mode %s", ErrInvalidDescriptor, ProcessLabel, mode)
	}

	d := &Desc{
		Name:       opts.Name,
		Kind:       KindGauge,
		Help:       opts.Help,
		LabelNames: append([]string(nil), opts.LabelNames...),
		Mode:       mode,
	}
	if err := r.register(d); err != nil {
		return nil, err
	}
	return newGaugeVec(r, d), nil
}

// MustNewGauge is NewGauge that panics on error.
func (r *Registry) MustNewGauge(opts GaugeOpts) *GaugeVec {
	v, err := r.NewGauge(opts)
	if err != nil {
		panic(err)
	}
	return v
}

// DefaultBuckets are the histogram buckets used when none are given.
var DefaultBuckets = []float64{.005, .01, .025, .05, .075, .1, .25, .5, .75, 1, 2.5, 5, 7.5, 10}

// HistogramOpts describes a histogram.
type HistogramOpts struct {
	Name       string
	Help       string
	LabelNames []string

	// Buckets are upper bounds; +Inf is appended when missing.
	// Default: DefaultBuckets.
	Buckets []float64
}

// NewHistogram registers a histogram.
func (r *Registry) NewHistogram(opts HistogramOpts) (*HistogramVec, error) {
	if contains(opts.LabelNames, BucketLabel) {
		return nil, fmt.Errorf("%w: label %q is reserved for histograms", ErrInvalidDescriptor, BucketLabel)
	}
	buckets, err := normalizeBuckets(opts.Buckets)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDescriptor, opts.Name, err)
	}

	d := &Desc{
		Name:       opts.Name,
		Kind:       KindHistogram,
		Help:       opts.Help,
		LabelNames: append([]string(nil), opts.LabelNames...),
		Buckets:    buckets,
	}
	if err := r.register(d); err != nil {
		return nil, err
	}
	return newHistogramVec(r, d), nil
}

// MustNewHistogram is NewHistogram that panics on error.
func (r *Registry) MustNewHistogram(opts HistogramOpts) *HistogramVec {
	v, err := r.NewHistogram(opts)
	if err != nil {
		panic(err)
	}
	return v
}

func normalizeBuckets(in []float64) ([]float64, error) {
	if len(in) == 0 {
		in = DefaultBuckets
	}
	out := append([]float64(nil), in...)
	for i, b := range out {
		if math.IsNaN(b) {
			return nil, errors.New("bucket bound is NaN")
		}
		if i > 0 && out[i-1] >= b {
			return nil, errors.New("buckets must be strictly increasing")
		}
	}
	if !math.IsInf(out[len(out)-1], 1) {
		out = append(out, math.Inf(1))
	}
	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

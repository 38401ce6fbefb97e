package multiproc

import (
	"math"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"google.golang.org/protobuf/proto"
)

// Sample is one merged value.
type Sample struct {
	// Name is the full sample name: x_total, x, x_bucket, x_sum or x_count.
	Name   string
	Labels []LabelPair
	Value  float64

	// UpperBound is set on histogram bucket samples.
	UpperBound *float64
}

// Family is every merged sample of one metric.
type Family struct {
	Name    string
	Kind    Kind
	Mode    GaugeMode
	Help    string
	Samples []Sample
}

// MergedRegistry is the result of one collection pass. Families are sorted by
// name and samples by label-key, so unchanged state always produces the same
// sequence.
type MergedRegistry struct {
	families []*Family
}

// Families returns the merged families in order.
func (m *MergedRegistry) Families() []*Family {
	if m == nil {
		return nil
	}
	return m.families
}

// Len returns the number of families.
func (m *MergedRegistry) Len() int { return len(m.Families()) }

// Family returns the family called name, or nil.
func (m *MergedRegistry) Family(name string) *Family {
	for _, f := range m.Families() {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Value returns the value of the sample with the given name and labels.
func (m *MergedRegistry) Value(sample string, labels Labels) (float64, bool) {
	want := labelKey(labels.sortedPairs())
	for _, f := range m.Families() {
		for _, s := range f.Samples {
			if s.Name != sample {
				continue
			}
			if labelKey(sortPairs(s.Labels)) == want {
				return s.Value, true
			}
		}
	}
	return 0, false
}

// MetricFamilies converts the merged view into client_model families, the
// form consumed by the exposition encoders. Counter families are named with
// the _total suffix.
func (m *MergedRegistry) MetricFamilies() []*dto.MetricFamily {
	out := make([]*dto.MetricFamily, 0, m.Len())
	for _, f := range m.Families() {
		switch f.Kind {
		case KindCounter:
			out = append(out, scalarFamily(f, f.Name+"_total", dto.MetricType_COUNTER))
		case KindGauge:
			out = append(out, scalarFamily(f, f.Name, dto.MetricType_GAUGE))
		case KindHistogram:
			out = append(out, histogramFamily(f))
		}
	}
	return out
}

func scalarFamily(f *Family, name string, typ dto.MetricType) *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(f.Help),
		Type: typ.Enum(),
	}
	for _, s := range f.Samples {
		metric := &dto.Metric{Label: labelPairs(s.Labels)}
		if typ == dto.MetricType_COUNTER {
			metric.Counter = &dto.Counter{Value: proto.Float64(s.Value)}
		} else {
			metric.Gauge = &dto.Gauge{Value: proto.Float64(s.Value)}
		}
		mf.Metric = append(mf.Metric, metric)
	}
	return mf
}

func histogramFamily(f *Family) *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name: proto.String(f.Name),
		Help: proto.String(f.Help),
		Type: dto.MetricType_HISTOGRAM.Enum(),
	}

	// Samples arrive grouped per series: buckets, then _sum, then _count.
	var cur *dto.Metric
	for _, s := range f.Samples {
		switch s.Name {
		case f.Name + "_bucket":
			if cur == nil {
				cur = &dto.Metric{
					Label:     labelPairs(withoutLabel(s.Labels, BucketLabel)),
					Histogram: &dto.Histogram{},
				}
			}
			cur.Histogram.Bucket = append(cur.Histogram.Bucket, &dto.Bucket{
				UpperBound:      proto.Float64(*s.UpperBound),
				CumulativeCount: proto.Uint64(toCount(s.Value)),
			})
		case f.Name + "_sum":
			if cur == nil {
				cur = &dto.Metric{Label: labelPairs(s.Labels), Histogram: &dto.Histogram{}}
			}
			cur.Histogram.SampleSum = proto.Float64(s.Value)
		case f.Name + "_count":
			if cur == nil {
				cur = &dto.Metric{Label: labelPairs(s.Labels), Histogram: &dto.Histogram{}}
			}
			cur.Histogram.SampleCount = proto.Uint64(toCount(s.Value))
			mf.Metric = append(mf.Metric, cur)
			cur = nil
		}
	}
	return mf
}

func toCount(v float64) uint64 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	return uint64(math.Round(v))
}

func labelPairs(pairs []LabelPair) []*dto.LabelPair {
	sorted := sortPairs(pairs)
	out := make([]*dto.LabelPair, len(sorted))
	for i, p := range sorted {
		out[i] = &dto.LabelPair{Name: proto.String(p.Name), Value: proto.String(p.Value)}
	}
	return out
}

func sortPairs(pairs []LabelPair) []LabelPair {
	out := append([]LabelPair(nil), pairs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func withoutLabel(pairs []LabelPair, name string) []LabelPair {
	out := make([]LabelPair, 0, len(pairs))
	for _, p := range pairs {
		if p.Name != name {
			out = append(out, p)
		}
	}
	return out
}

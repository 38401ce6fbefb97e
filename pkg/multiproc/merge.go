package multiproc

import (
	"math"
	"sort"
	"strconv"

	"mercator-hq/procmetrics/pkg/exposition"
)

type groupID struct {
	name string
	kind Kind
	mode GaugeMode
}

type sampleAcc struct {
	sample string
	labels []LabelPair
	value  float64
	ts     float64
	set    bool
}

type groupAcc struct {
	id      groupID
	help    string
	samples map[string]*sampleAcc
}

// merger accumulates entries from process files. Files must be fed in a
// fixed order (the collector sorts them by name) so float sums come out
// bit-identical between passes.
type merger struct {
	groups map[groupID]*groupAcc
}

func newMerger() *merger {
	return &merger{groups: make(map[groupID]*groupAcc)}
}

func (m *merger) add(info FileInfo, key SampleKey, value, ts float64) {
	id := groupID{name: key.Metric, kind: info.Kind, mode: info.Mode}
	g, ok := m.groups[id]
	if !ok {
		g = &groupAcc{id: id, help: key.Help, samples: make(map[string]*sampleAcc)}
		m.groups[id] = g
	}

	labels := key.Labels
	if info.Kind == KindGauge && info.Mode.base() == GaugeModeAll {
		labels = append(append([]LabelPair(nil), labels...), LabelPair{Name: ProcessLabel, Value: info.ProcessID})
	}
	sk := key.Sample + "\x00" + labelKey(sortPairs(labels))

	acc, ok := g.samples[sk]
	if !ok {
		acc = &sampleAcc{sample: key.Sample, labels: labels}
		g.samples[sk] = acc
	}
	mergeValue(acc, info, value, ts)
}

func mergeValue(acc *sampleAcc, info FileInfo, value, ts float64) {
	defer func() { acc.set = true }()

	if info.Kind != KindGauge {
		acc.value += value
		return
	}

	switch info.Mode.base() {
	case GaugeModeMax:
		if !acc.set || value > acc.value {
			acc.value = value
		}
	case GaugeModeMin:
		if !acc.set || value < acc.value {
			acc.value = value
		}
	case GaugeModeMostRecent:
		if !acc.set || ts > acc.ts || (ts == acc.ts && value > acc.value) {
			acc.value, acc.ts = value, ts
		}
	default:
		acc.value += value
	}
}

// result turns the accumulated groups into families. When one name was seen
// with several kinds or gauge modes, the first in (kind, mode) order wins and
// the others are returned as dropped.
func (m *merger) result() (*MergedRegistry, []groupID) {
	ids := make([]groupID, 0, len(m.groups))
	for id := range m.groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		if a.name != b.name {
			return a.name < b.name
		}
		if a.kind != b.kind {
			return a.kind < b.kind
		}
		return a.mode < b.mode
	})

	var (
		merged  = &MergedRegistry{}
		dropped []groupID
		last    string
	)
	for i, id := range ids {
		if i > 0 && id.name == last {
			dropped = append(dropped, id)
			continue
		}
		last = id.name
		merged.families = append(merged.families, m.groups[id].family())
	}
	return merged, dropped
}

func (g *groupAcc) family() *Family {
	f := &Family{Name: g.id.name, Kind: g.id.kind, Mode: g.id.mode, Help: g.help}
	if g.id.kind == KindHistogram {
		f.Samples = g.histogramSamples()
		return f
	}

	keys := make([]string, 0, len(g.samples))
	for k := range g.samples {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		acc := g.samples[k]
		f.Samples = append(f.Samples, Sample{Name: acc.sample, Labels: sortPairs(acc.labels), Value: acc.value})
	}
	return f
}

type histSeries struct {
	labels  []LabelPair
	buckets map[float64]float64
	sum     float64
}

// histogramSamples converts per-bucket counts into cumulative buckets, then
// appends _sum and _count for every series.
func (g *groupAcc) histogramSamples() []Sample {
	name := g.id.name
	series := make(map[string]*histSeries)
	get := func(labels []LabelPair) *histSeries {
		k := labelKey(sortPairs(labels))
		s, ok := series[k]
		if !ok {
			s = &histSeries{labels: sortPairs(labels), buckets: make(map[float64]float64)}
			series[k] = s
		}
		return s
	}

	for _, acc := range g.samples {
		switch acc.sample {
		case name + "_bucket":
			var bound string
			rest := make([]LabelPair, 0, len(acc.labels))
			for _, p := range acc.labels {
				if p.Name == BucketLabel {
					bound = p.Value
					continue
				}
				rest = append(rest, p)
			}
			le, err := strconv.ParseFloat(bound, 64)
			if err != nil {
				continue
			}
			get(rest).buckets[le] += acc.value
		case name + "_sum":
			get(acc.labels).sum += acc.value
		}
	}

	keys := make([]string, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Sample
	for _, k := range keys {
		s := series[k]
		bounds := make([]float64, 0, len(s.buckets)+1)
		for b := range s.buckets {
			bounds = append(bounds, b)
		}
		sort.Float64s(bounds)
		if len(bounds) == 0 || !math.IsInf(bounds[len(bounds)-1], 1) {
			bounds = append(bounds, math.Inf(1))
		}

		var cumulative float64
		for _, b := range bounds {
			cumulative += s.buckets[b]
			ub := b
			labels := append(append([]LabelPair(nil), s.labels...), LabelPair{Name: BucketLabel, Value: exposition.FormatFloat(b)})
			out = append(out, Sample{Name: name + "_bucket", Labels: labels, Value: cumulative, UpperBound: &ub})
		}
		out = append(out,
			Sample{Name: name + "_sum", Labels: s.labels, Value: s.sum},
			Sample{Name: name + "_count", Labels: s.labels, Value: cumulative},
		)
	}
	return out
}

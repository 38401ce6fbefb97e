package multiproc

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Labels maps label names to label values.
type Labels map[string]string

// LabelPair is one name/value pair of a series.
type LabelPair struct {
	Name  string
	Value string
}

// sortedPairs returns the labels ordered by name.
func (l Labels) sortedPairs() []LabelPair {
	pairs := make([]LabelPair, 0, len(l))
	for name, value := range l {
		pairs = append(pairs, LabelPair{Name: name, Value: value})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Name < pairs[j].Name })
	return pairs
}

// SampleKey identifies one sample of one metric across all process files.
type SampleKey struct {
	Metric string
	Sample string
	Labels []LabelPair
	Help   string
}

// EncodeKey returns the canonical label-key for a sample. Labels are sorted
// by name first, so two processes that write the same logical series produce
// the same bytes regardless of the order their labels were declared in.
func EncodeKey(metric, sample string, labels Labels, help string) string {
	pairs := labels.sortedPairs()
	names := make([]string, len(pairs))
	values := make([]string, len(pairs))
	for i, p := range pairs {
		names[i] = p.Name
		values[i] = p.Value
	}

	raw, err := json.Marshal([]any{metric, sample, names, values, help})
	if err != nil {
		// Only strings and string slices are marshalled.
		panic(fmt.Sprintf("multiproc: encode key: %v", err))
	}
	return string(raw)
}

// DecodeKey parses a key written by EncodeKey.
func DecodeKey(key string) (SampleKey, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(key), &parts); err != nil {
		return SampleKey{}, fmt.Errorf("decode key: %w", err)
	}
	if len(parts) != 5 {
		return SampleKey{}, fmt.Errorf("decode key: expected 5 fields, got %d", len(parts))
	}

	var (
		sk     SampleKey
		names  []string
		values []string
	)
	for i, dst := range []any{&sk.Metric, &sk.Sample, &names, &values, &sk.Help} {
		if err := json.Unmarshal(parts[i], dst); err != nil {
			return SampleKey{}, fmt.Errorf("decode key field %d: %w", i, err)
		}
	}
	if len(names) != len(values) {
		return SampleKey{}, fmt.Errorf("decode key: %d label names but %d values", len(names), len(values))
	}

	sk.Labels = make([]LabelPair, len(names))
	for i := range names {
		sk.Labels[i] = LabelPair{Name: names[i], Value: values[i]}
	}
	return sk, nil
}

// labelKey renders pairs in a stable form used for grouping and ordering
// series inside one metric.
func labelKey(pairs []LabelPair) string {
	var sb strings.Builder
	for _, p := range pairs {
		sb.WriteString(p.Name)
		sb.WriteByte(0)
		sb.WriteString(p.Value)
		sb.WriteByte(0)
	}
	return sb.String()
}

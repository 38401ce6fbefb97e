package exposition

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
)

// ContentType is the media type of the text exposition format written by
// Encode.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

var labelNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// EncodingError reports one sample that was left out of the output because
// its label data cannot be represented.
type EncodingError struct {
	Metric string
	Label  string
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %s: label %q: %s", e.Metric, e.Label, e.Reason)
}

// FormatFloat renders v the way the exposition writes sample values:
// integral values keep one decimal ("20.0"), others use the shortest
// representation that parses back to v, and infinities and NaN are
// "+Inf", "-Inf" and "NaN".
func FormatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case math.IsNaN(v):
		return "NaN"
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Encode writes families in the text exposition format, version 0.0.4.
// Samples with invalid label names or non UTF-8 label values are omitted and
// returned as *EncodingError values; everything else is written.
func Encode(families []*dto.MetricFamily) ([]byte, []error) {
	var buf bytes.Buffer
	warnings, _ := encodeText(&buf, families)
	return buf.Bytes(), warnings
}

// Negotiate picks the response format for an Accept header. It returns the
// format and the Content-Type to send with it.
func Negotiate(h http.Header) (expfmt.Format, string) {
	format := expfmt.NegotiateIncludingOpenMetrics(h)
	if format.FormatType() == expfmt.TypeTextPlain {
		return format, ContentType
	}
	return format, string(format)
}

// EncodeFormat writes families to w in format. The text format goes through
// Encode; OpenMetrics and protobuf are delegated to expfmt after the same
// sample filtering. The returned warnings are the omitted samples; err is a
// write failure.
func EncodeFormat(w io.Writer, families []*dto.MetricFamily, format expfmt.Format) (warnings []error, err error) {
	if format.FormatType() == expfmt.TypeTextPlain || format.FormatType() == expfmt.TypeUnknown {
		return encodeText(w, families)
	}

	valid, warnings := Sanitize(families)
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range valid {
		if err := enc.Encode(mf); err != nil {
			return warnings, fmt.Errorf("failed to encode %s: %w", mf.GetName(), err)
		}
	}
	if closer, ok := enc.(expfmt.Closer); ok {
		if err := closer.Close(); err != nil {
			return warnings, err
		}
	}
	return warnings, nil
}

// Sanitize returns copies of families without the metrics whose labels
// cannot be encoded, plus one *EncodingError per dropped metric. Families
// left without metrics are kept so HELP and TYPE are still announced.
func Sanitize(families []*dto.MetricFamily) ([]*dto.MetricFamily, []error) {
	var warnings []error
	out := make([]*dto.MetricFamily, 0, len(families))
	for _, mf := range families {
		clean := &dto.MetricFamily{Name: mf.Name, Help: mf.Help, Type: mf.Type, Unit: mf.Unit}
		for _, m := range mf.GetMetric() {
			if err := checkLabels(mf.GetName(), m.GetLabel()); err != nil {
				warnings = append(warnings, err)
				continue
			}
			clean.Metric = append(clean.Metric, m)
		}
		out = append(out, clean)
	}
	return out, warnings
}

func checkLabels(metric string, labels []*dto.LabelPair) error {
	for _, lp := range labels {
		if !labelNamePattern.MatchString(lp.GetName()) {
			return &EncodingError{Metric: metric, Label: lp.GetName(), Reason: "invalid label name"}
		}
		if !model.LabelValue(lp.GetValue()).IsValid() {
			return &EncodingError{Metric: metric, Label: lp.GetName(), Reason: "label value is not valid UTF-8"}
		}
	}
	return nil
}

func encodeText(out io.Writer, families []*dto.MetricFamily) ([]error, error) {
	valid, warnings := Sanitize(families)

	w := bufio.NewWriter(out)
	for _, mf := range valid {
		writeFamily(w, mf)
	}
	return warnings, w.Flush()
}

func writeFamily(w *bufio.Writer, mf *dto.MetricFamily) {
	name := mf.GetName()
	if mf.Help != nil {
		fmt.Fprintf(w, "# HELP %s %s\n", name, escapeHelp(mf.GetHelp()))
	}
	fmt.Fprintf(w, "# TYPE %s %s\n", name, typeName(mf.GetType()))

	for _, m := range mf.GetMetric() {
		switch mf.GetType() {
		case dto.MetricType_COUNTER:
			writeSample(w, name, m.GetLabel(), "", "", m.GetCounter().GetValue(), m)
		case dto.MetricType_GAUGE:
			writeSample(w, name, m.GetLabel(), "", "", m.GetGauge().GetValue(), m)
		case dto.MetricType_HISTOGRAM, dto.MetricType_GAUGE_HISTOGRAM:
			writeHistogram(w, name, m)
		case dto.MetricType_SUMMARY:
			writeSummary(w, name, m)
		default:
			writeSample(w, name, m.GetLabel(), "", "", m.GetUntyped().GetValue(), m)
		}
	}
}

func writeHistogram(w *bufio.Writer, name string, m *dto.Metric) {
	h := m.GetHistogram()
	infSeen := false
	for _, b := range h.GetBucket() {
		if math.IsInf(b.GetUpperBound(), 1) {
			infSeen = true
		}
		writeSample(w, name+"_bucket", m.GetLabel(), model.BucketLabel, FormatFloat(b.GetUpperBound()),
			float64(b.GetCumulativeCount()), m)
	}
	if !infSeen {
		writeSample(w, name+"_bucket", m.GetLabel(), model.BucketLabel, "+Inf", float64(h.GetSampleCount()), m)
	}
	writeSample(w, name+"_sum", m.GetLabel(), "", "", h.GetSampleSum(), m)
	writeSample(w, name+"_count", m.GetLabel(), "", "", float64(h.GetSampleCount()), m)
}

func writeSummary(w *bufio.Writer, name string, m *dto.Metric) {
	s := m.GetSummary()
	for _, q := range s.GetQuantile() {
		writeSample(w, name, m.GetLabel(), model.QuantileLabel, FormatFloat(q.GetQuantile()), q.GetValue(), m)
	}
	writeSample(w, name+"_sum", m.GetLabel(), "", "", s.GetSampleSum(), m)
	writeSample(w, name+"_count", m.GetLabel(), "", "", float64(s.GetSampleCount()), m)
}

func writeSample(w *bufio.Writer, name string, labels []*dto.LabelPair, extraName, extraValue string, value float64, m *dto.Metric) {
	w.WriteString(name)
	if len(labels) > 0 || extraName != "" {
		w.WriteByte('{')
		sep := false
		for _, lp := range labels {
			if sep {
				w.WriteByte(',')
			}
			writeLabel(w, lp.GetName(), lp.GetValue())
			sep = true
		}
		if extraName != "" {
			if sep {
				w.WriteByte(',')
			}
			writeLabel(w, extraName, extraValue)
		}
		w.WriteByte('}')
	}
	w.WriteByte(' ')
	w.WriteString(FormatFloat(value))
	if m.TimestampMs != nil {
		w.WriteByte(' ')
		w.WriteString(strconv.FormatInt(m.GetTimestampMs(), 10))
	}
	w.WriteByte('\n')
}

func writeLabel(w *bufio.Writer, name, value string) {
	w.WriteString(name)
	w.WriteString(`="`)
	w.WriteString(labelValueEscaper.Replace(value))
	w.WriteByte('"')
}

var (
	labelValueEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, `"`, `\"`)
	helpEscaper       = strings.NewReplacer(`\`, `\\`, "\n", `\n`)
)

func escapeHelp(s string) string { return helpEscaper.Replace(s) }

func typeName(t dto.MetricType) string {
	switch t {
	case dto.MetricType_COUNTER:
		return "counter"
	case dto.MetricType_GAUGE:
		return "gauge"
	case dto.MetricType_HISTOGRAM, dto.MetricType_GAUGE_HISTOGRAM:
		return "histogram"
	case dto.MetricType_SUMMARY:
		return "summary"
	default:
		return "untyped"
	}
}

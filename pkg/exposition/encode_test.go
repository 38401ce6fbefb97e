package exposition

import (
	"bytes"
	"errors"
	"math"
	"net/http"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}

func counterFamily(name, help string, value float64, labels ...*dto.LabelPair) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{
			Label:   labels,
			Counter: &dto.Counter{Value: proto.Float64(value)},
		}},
	}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{20, "20.0"},
		{-3, "-3.0"},
		{0.5, "0.5"},
		{0.005, "0.005"},
		{1e-05, "1e-05"},
		{1.25, "1.25"},
		{123456789012, "123456789012.0"},
		{1e16, "1e+16"},
		{math.Inf(1), "+Inf"},
		{math.Inf(-1), "-Inf"},
		{math.NaN(), "NaN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatFloat(tt.in); got != tt.want {
				t.Errorf("FormatFloat(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncode_Counter(t *testing.T) {
	body, errs := Encode([]*dto.MetricFamily{
		counterFamily("requests_total", "Requests handled.", 5, label("a", "x")),
	})
	if len(errs) != 0 {
		t.Fatalf("Encode() errors = %v", errs)
	}

	want := "# HELP requests_total Requests handled.\n" +
		"# TYPE requests_total counter\n" +
		"requests_total{a=\"x\"} 5.0\n"
	if string(body) != want {
		t.Errorf("Encode() =\n%s\nwant\n%s", body, want)
	}
}

func TestEncode_Escaping(t *testing.T) {
	body, errs := Encode([]*dto.MetricFamily{
		counterFamily("a_total", "Line one\nback\\slash \"quoted\"", 1, label("path", "C:\\dir\n\"x\"")),
	})
	if len(errs) != 0 {
		t.Fatalf("Encode() errors = %v", errs)
	}

	out := string(body)
	if !strings.Contains(out, `# HELP a_total Line one\nback\\slash "quoted"`+"\n") {
		t.Errorf("HELP not escaped:\n%s", out)
	}
	if !strings.Contains(out, `a_total{path="C:\\dir\n\"x\""} 1.0`+"\n") {
		t.Errorf("label value not escaped:\n%s", out)
	}
}

func TestEncode_GaugeAndUntyped(t *testing.T) {
	families := []*dto.MetricFamily{
		{
			Name:   proto.String("temp"),
			Help:   proto.String("Temperature."),
			Type:   dto.MetricType_GAUGE.Enum(),
			Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(-1.5)}}},
		},
		{
			Name:   proto.String("raw"),
			Type:   dto.MetricType_UNTYPED.Enum(),
			Metric: []*dto.Metric{{Untyped: &dto.Untyped{Value: proto.Float64(math.Inf(1))}, TimestampMs: proto.Int64(1000)}},
		},
	}

	body, _ := Encode(families)
	want := "# HELP temp Temperature.\n" +
		"# TYPE temp gauge\n" +
		"temp -1.5\n" +
		"# TYPE raw untyped\n" +
		"raw +Inf 1000\n"
	if string(body) != want {
		t.Errorf("Encode() =\n%s\nwant\n%s", body, want)
	}
}

func TestEncode_Histogram(t *testing.T) {
	mf := &dto.MetricFamily{
		Name: proto.String("latency"),
		Help: proto.String("Latency."),
		Type: dto.MetricType_HISTOGRAM.Enum(),
		Metric: []*dto.Metric{{
			Label: []*dto.LabelPair{label("route", "/")},
			Histogram: &dto.Histogram{
				SampleCount: proto.Uint64(4),
				SampleSum:   proto.Float64(5.5),
				Bucket: []*dto.Bucket{
					{UpperBound: proto.Float64(1), CumulativeCount: proto.Uint64(2)},
					{UpperBound: proto.Float64(2.5), CumulativeCount: proto.Uint64(3)},
				},
			},
		}},
	}

	body, errs := Encode([]*dto.MetricFamily{mf})
	if len(errs) != 0 {
		t.Fatalf("Encode() errors = %v", errs)
	}
	want := "# HELP latency Latency.\n" +
		"# TYPE latency histogram\n" +
		"latency_bucket{route=\"/\",le=\"1.0\"} 2.0\n" +
		"latency_bucket{route=\"/\",le=\"2.5\"} 3.0\n" +
		"latency_bucket{route=\"/\",le=\"+Inf\"} 4.0\n" +
		"latency_sum{route=\"/\"} 5.5\n" +
		"latency_count{route=\"/\"} 4.0\n"
	if string(body) != want {
		t.Errorf("Encode() =\n%s\nwant\n%s", body, want)
	}
}

func TestEncode_Summary(t *testing.T) {
	mf := &dto.MetricFamily{
		Name: proto.String("rpc"),
		Type: dto.MetricType_SUMMARY.Enum(),
		Metric: []*dto.Metric{{
			Summary: &dto.Summary{
				SampleCount: proto.Uint64(2),
				SampleSum:   proto.Float64(3),
				Quantile:    []*dto.Quantile{{Quantile: proto.Float64(0.5), Value: proto.Float64(1)}},
			},
		}},
	}

	body, _ := Encode([]*dto.MetricFamily{mf})
	want := "# TYPE rpc summary\n" +
		"rpc{quantile=\"0.5\"} 1.0\n" +
		"rpc_sum 3.0\n" +
		"rpc_count 2.0\n"
	if string(body) != want {
		t.Errorf("Encode() =\n%s\nwant\n%s", body, want)
	}
}

func TestEncode_InvalidLabels(t *testing.T) {
	mf := &dto.MetricFamily{
		Name: proto.String("jobs_total"),
		Help: proto.String("Jobs."),
		Type: dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{
			{Label: []*dto.LabelPair{label("queue", "ok")}, Counter: &dto.Counter{Value: proto.Float64(1)}},
			{Label: []*dto.LabelPair{label("bad-name", "x")}, Counter: &dto.Counter{Value: proto.Float64(2)}},
			{Label: []*dto.LabelPair{label("queue", "\xff\xfe")}, Counter: &dto.Counter{Value: proto.Float64(3)}},
		},
	}

	body, errs := Encode([]*dto.MetricFamily{mf})
	if len(errs) != 2 {
		t.Fatalf("Encode() returned %d errors, want 2: %v", len(errs), errs)
	}
	for _, err := range errs {
		var encErr *EncodingError
		if !errors.As(err, &encErr) {
			t.Errorf("error type = %T, want *EncodingError", err)
			continue
		}
		if encErr.Metric != "jobs_total" {
			t.Errorf("EncodingError.Metric = %q", encErr.Metric)
		}
	}

	want := "# HELP jobs_total Jobs.\n" +
		"# TYPE jobs_total counter\n" +
		"jobs_total{queue=\"ok\"} 1.0\n"
	if string(body) != want {
		t.Errorf("Encode() =\n%s\nwant\n%s", body, want)
	}
}

func TestEncode_Deterministic(t *testing.T) {
	families := []*dto.MetricFamily{
		counterFamily("a_total", "A.", 1.1, label("x", "1")),
		counterFamily("b_total", "B.", 2),
	}

	first, _ := Encode(families)
	second, _ := Encode(families)
	if !bytes.Equal(first, second) {
		t.Errorf("Encode() not deterministic:\n%s\n---\n%s", first, second)
	}
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name     string
		accept   string
		wantType expfmt.FormatType
		wantCT   string
	}{
		{name: "no header", accept: "", wantType: expfmt.TypeTextPlain, wantCT: ContentType},
		{name: "plain text", accept: "text/plain", wantType: expfmt.TypeTextPlain, wantCT: ContentType},
		{
			name:     "protobuf",
			accept:   "application/vnd.google.protobuf;proto=io.prometheus.client.MetricFamily;encoding=delimited",
			wantType: expfmt.TypeProtoDelim,
		},
		{
			name:     "openmetrics",
			accept:   "application/openmetrics-text; version=1.0.0",
			wantType: expfmt.TypeOpenMetrics,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.accept != "" {
				h.Set("Accept", tt.accept)
			}
			format, ct := Negotiate(h)
			if format.FormatType() != tt.wantType {
				t.Errorf("FormatType() = %v, want %v", format.FormatType(), tt.wantType)
			}
			if tt.wantCT != "" && ct != tt.wantCT {
				t.Errorf("content type = %q, want %q", ct, tt.wantCT)
			}
			if tt.wantCT == "" && ct == ContentType {
				t.Errorf("content type = %q, want the negotiated format", ct)
			}
		})
	}
}

func TestEncodeFormat_OpenMetrics(t *testing.T) {
	families := []*dto.MetricFamily{
		counterFamily("requests_total", "Requests.", 3, label("a", "x")),
	}

	var buf bytes.Buffer
	warnings, err := EncodeFormat(&buf, families, expfmt.NewFormat(expfmt.TypeOpenMetrics))
	if err != nil {
		t.Fatalf("EncodeFormat() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("EncodeFormat() warnings = %v", warnings)
	}

	out := buf.String()
	if !strings.Contains(out, `requests_total{a="x"} 3.0`) {
		t.Errorf("OpenMetrics output missing sample:\n%s", out)
	}
	if !strings.HasSuffix(out, "# EOF\n") {
		t.Errorf("OpenMetrics output not terminated:\n%s", out)
	}
}

func TestEncodeFormat_Text(t *testing.T) {
	families := []*dto.MetricFamily{counterFamily("x_total", "X.", 2)}

	var buf bytes.Buffer
	if _, err := EncodeFormat(&buf, families, expfmt.NewFormat(expfmt.TypeTextPlain)); err != nil {
		t.Fatalf("EncodeFormat() error = %v", err)
	}
	want, _ := Encode(families)
	if buf.String() != string(want) {
		t.Errorf("EncodeFormat(text) =\n%s\nwant\n%s", buf.String(), want)
	}
}

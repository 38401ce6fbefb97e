package multiproc

import "fmt"

// Kind is the metric type of a descriptor and of the process file holding
// its samples.
type Kind int

const (
	// KindCounter is a monotonically increasing value. Merged by sum.
	KindCounter Kind = iota + 1
	// KindGauge is a value that can go up and down. Merged by GaugeMode.
	KindGauge
	// KindHistogram is a bucketed distribution. Merged by summing each bucket.
	KindHistogram
)

// String returns the name used in file names and TYPE lines.
func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindGauge:
		return "gauge"
	case KindHistogram:
		return "histogram"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses the file-name form of a kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "counter":
		return KindCounter, nil
	case "gauge":
		return KindGauge, nil
	case "histogram":
		return KindHistogram, nil
	default:
		return 0, fmt.Errorf("unknown metric kind %q", s)
	}
}

// GaugeMode selects how gauge values written by several processes are merged
// into one value at collection time.
type GaugeMode string

const (
	// GaugeModeUnset resolves to the registry's default mode.
	GaugeModeUnset GaugeMode = ""

	// GaugeModeAll exposes one series per process with a "pid" label.
	GaugeModeAll GaugeMode = "all"
	// GaugeModeLiveAll is GaugeModeAll restricted to live processes.
	GaugeModeLiveAll GaugeMode = "liveall"
	// GaugeModeSum sums the values of every process, dead or alive.
	GaugeModeSum GaugeMode = "sum"
	// GaugeModeLiveSum sums the values of live processes.
	GaugeModeLiveSum GaugeMode = "livesum"
	// GaugeModeMax keeps the largest value.
	GaugeModeMax GaugeMode = "max"
	// GaugeModeLiveMax keeps the largest value among live processes.
	GaugeModeLiveMax GaugeMode = "livemax"
	// GaugeModeMin keeps the smallest value.
	GaugeModeMin GaugeMode = "min"
	// GaugeModeLiveMin keeps the smallest value among live processes.
	GaugeModeLiveMin GaugeMode = "livemin"
	// GaugeModeMostRecent keeps the value with the newest write timestamp.
	GaugeModeMostRecent GaugeMode = "mostrecent"
	// GaugeModeLiveMostRecent is GaugeModeMostRecent among live processes.
	GaugeModeLiveMostRecent GaugeMode = "livemostrecent"
)

// DefaultGaugeMode is used when neither the metric nor the registry picks one.
const DefaultGaugeMode = GaugeModeLiveSum

var gaugeModes = map[GaugeMode]struct{}{
	GaugeModeAll:            {},
	GaugeModeLiveAll:        {},
	GaugeModeSum:            {},
	GaugeModeLiveSum:        {},
	GaugeModeMax:            {},
	GaugeModeLiveMax:        {},
	GaugeModeMin:            {},
	GaugeModeLiveMin:        {},
	GaugeModeMostRecent:     {},
	GaugeModeLiveMostRecent: {},
}

// ParseGaugeMode validates s as a gauge mode.
func ParseGaugeMode(s string) (GaugeMode, error) {
	m := GaugeMode(s)
	if _, ok := gaugeModes[m]; !ok {
		return GaugeModeUnset, fmt.Errorf("unknown gauge mode %q", s)
	}
	return m, nil
}

// Live reports whether the mode only counts processes that are still alive.
// Files of live modes are the ones the Reaper retires.
func (m GaugeMode) Live() bool {
	switch m {
	case GaugeModeLiveAll, GaugeModeLiveSum, GaugeModeLiveMax, GaugeModeLiveMin, GaugeModeLiveMostRecent:
		return true
	}
	return false
}

// base strips the live prefix: livesum -> sum.
func (m GaugeMode) base() GaugeMode {
	switch m {
	case GaugeModeLiveAll:
		return GaugeModeAll
	case GaugeModeLiveSum:
		return GaugeModeSum
	case GaugeModeLiveMax:
		return GaugeModeMax
	case GaugeModeLiveMin:
		return GaugeModeMin
	case GaugeModeLiveMostRecent:
		return GaugeModeMostRecent
	}
	return m
}

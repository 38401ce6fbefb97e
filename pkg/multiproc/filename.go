package multiproc

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	fileExt      = ".db"
	tombstoneExt = ".tomb"
	deadPrefix   = "dead_"
)

var processIDPattern = regexp.MustCompile(`^[A-Za-z0-9.\-]+$`)

// ValidateProcessID checks that id can be embedded in a file name and
// recovered from it. Underscores are the field separator and are rejected.
func ValidateProcessID(id string) error {
	if !processIDPattern.MatchString(id) {
		return fmt.Errorf("invalid process id %q: must match %s", id, processIDPattern)
	}
	return nil
}

// FileInfo is what a process file name says about its content.
type FileInfo struct {
	Kind      Kind
	Mode      GaugeMode
	ProcessID string
}

// FileName returns the file name for a (kind, mode, process) triple:
//
//	counter_<pid>.db
//	histogram_<pid>.db
//	gauge_<mode>_<pid>.db
func FileName(kind Kind, mode GaugeMode, pid string) string {
	if kind == KindGauge {
		return fmt.Sprintf("%s_%s_%s%s", kind, mode, pid, fileExt)
	}
	return fmt.Sprintf("%s_%s%s", kind, pid, fileExt)
}

// ParseFileName classifies a directory entry by name alone. ok is false for
// files that are not process files.
func ParseFileName(name string) (info FileInfo, ok bool) {
	stem, found := strings.CutSuffix(name, fileExt)
	if !found {
		return FileInfo{}, false
	}
	parts := strings.Split(stem, "_")

	kind, err := ParseKind(parts[0])
	if err != nil {
		return FileInfo{}, false
	}

	switch {
	case kind == KindGauge && len(parts) == 3:
		mode, err := ParseGaugeMode(parts[1])
		if err != nil {
			return FileInfo{}, false
		}
		info = FileInfo{Kind: kind, Mode: mode, ProcessID: parts[2]}
	case kind != KindGauge && len(parts) == 2:
		info = FileInfo{Kind: kind, ProcessID: parts[1]}
	default:
		return FileInfo{}, false
	}

	if ValidateProcessID(info.ProcessID) != nil {
		return FileInfo{}, false
	}
	return info, true
}

// TombstoneName returns the marker file name written when a process is
// marked dead under the grace policy.
func TombstoneName(pid string) string {
	return deadPrefix + pid + tombstoneExt
}

// ParseTombstoneName returns the process id of a tombstone file name.
func ParseTombstoneName(name string) (string, bool) {
	stem, found := strings.CutSuffix(name, tombstoneExt)
	if !found {
		return "", false
	}
	pid, found := strings.CutPrefix(stem, deadPrefix)
	if !found || ValidateProcessID(pid) != nil {
		return "", false
	}
	return pid, true
}

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/procmetrics/pkg/multiproc"
)

func exists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	return err == nil
}

func TestReap_PID(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	recordWorker(t, dir, "w1", 5, 1)
	recordWorker(t, dir, "w2", 1, 1)

	stdout, _, err := execute(t, "reap", "--dir", dir, "--pid", "w1")
	if err != nil {
		t.Fatalf("reap error = %v", err)
	}
	if !strings.Contains(stdout, "w1 marked dead") || !strings.Contains(stdout, "1 files removed") {
		t.Errorf("unexpected report: %q", stdout)
	}

	live := filepath.Join(dir, multiproc.FileName(multiproc.KindGauge, multiproc.GaugeModeLiveSum, "w1"))
	if exists(t, live) {
		t.Error("live gauge file of w1 not removed")
	}
	if !exists(t, filepath.Join(dir, multiproc.FileName(multiproc.KindCounter, "", "w1"))) {
		t.Error("counter file of w1 removed without --remove-all")
	}

	stdout, _, err = execute(t, "collect", "--dir", dir)
	if err != nil {
		t.Fatalf("collect error = %v", err)
	}
	if !strings.Contains(stdout, `jobs_total{queue="a"} 6.0`) || !strings.Contains(stdout, "busy_workers 1.0") {
		t.Errorf("merged view after reap:\n%s", stdout)
	}
}

func TestReap_PIDRemoveAll(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	recordWorker(t, dir, "w1", 5, 1)

	stdout, _, err := execute(t, "reap", "--dir", dir, "--pid", "w1", "--remove-all", "--format", "json")
	if err != nil {
		t.Fatalf("reap error = %v", err)
	}
	var report reapReport
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("invalid JSON %q: %v", stdout, err)
	}
	if report.Removed != 2 || report.Action != "pid" || report.Policy != string(multiproc.ReapImmediate) {
		t.Errorf("report = %+v", report)
	}
}

func TestReap_GraceAndSweep(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	recordWorker(t, dir, "w1", 5, 1)

	stdout, _, err := execute(t, "reap", "--dir", dir, "--pid", "w1", "--policy", "grace")
	if err != nil {
		t.Fatalf("reap error = %v", err)
	}
	if !strings.Contains(stdout, "grace policy") {
		t.Errorf("unexpected report: %q", stdout)
	}
	tombstone := filepath.Join(dir, multiproc.TombstoneName("w1"))
	if !exists(t, tombstone) {
		t.Fatal("tombstone not written")
	}

	// Within the grace period nothing is swept.
	stdout, _, err = execute(t, "reap", "--dir", dir, "--sweep")
	if err != nil {
		t.Fatalf("sweep error = %v", err)
	}
	if !strings.Contains(stdout, "removed 0 files") {
		t.Errorf("early sweep: %q", stdout)
	}

	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(tombstone, old, old); err != nil {
		t.Fatal(err)
	}
	stdout, _, err = execute(t, "reap", "--dir", dir, "--sweep")
	if err != nil {
		t.Fatalf("sweep error = %v", err)
	}
	if !strings.Contains(stdout, "removed 1 files") {
		t.Errorf("sweep after grace period: %q", stdout)
	}
	if exists(t, tombstone) {
		t.Error("tombstone kept after sweep")
	}
}

func TestReap_All(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	recordWorker(t, dir, "w1", 1, 1)
	recordWorker(t, dir, "w2", 1, 1)
	foreign := filepath.Join(dir, "README")
	if err := os.WriteFile(foreign, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := execute(t, "reap", "--dir", dir, "--all")
	if err != nil {
		t.Fatalf("reap error = %v", err)
	}
	if !strings.Contains(stdout, "4 files removed") {
		t.Errorf("unexpected report: %q", stdout)
	}
	if !exists(t, foreign) {
		t.Error("foreign file removed")
	}
}

func TestReap_FlagErrors(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
	}{
		{name: "no action", args: []string{"reap", "--dir", dir}},
		{name: "two actions", args: []string{"reap", "--dir", dir, "--pid", "w1", "--all"}},
		{name: "bad policy", args: []string{"reap", "--dir", dir, "--pid", "w1", "--policy", "later"}},
		{name: "bad pid", args: []string{"reap", "--dir", dir, "--pid", "w/1"}},
		{name: "missing directory", args: []string{"reap", "--dir", filepath.Join(dir, "missing"), "--all"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := execute(t, tt.args...); err == nil {
				t.Error("reap succeeded, want an error")
			}
		})
	}
}

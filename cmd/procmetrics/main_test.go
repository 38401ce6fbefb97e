package main

import (
	"bytes"
	"testing"

	"mercator-hq/procmetrics/pkg/config"
	"mercator-hq/procmetrics/pkg/multiproc"
)

// execute runs a fresh command tree with args and returns its output.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

// isolateEnv clears the environment variables that select a directory.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.MultiprocDirEnv, "")
	t.Setenv(config.LegacyMultiprocDirEnv, "")
	t.Setenv(config.EnvPrefix+"METRICS_MULTIPROC_DIR", "")
	t.Setenv(config.EnvPrefix+"METRICS_REAPER_POLICY", "")
}

// recordWorker writes the files of one worker into dir and closes them.
func recordWorker(t *testing.T, dir, pid string, jobs float64, busy float64) {
	t.Helper()
	if !multiproc.Supported() {
		t.Skip("memory-mapped process files not supported on this platform")
	}

	store, err := multiproc.OpenStore(dir, pid, nil)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	reg := multiproc.NewRegistry(store, multiproc.RegistryOptions{})
	reg.MustNewCounter(multiproc.CounterOpts{
		Name:       "jobs_total",
		Help:       "Jobs processed.",
		LabelNames: []string{"queue"},
	}).WithLabelValues("a").Add(jobs)
	reg.MustNewGauge(multiproc.GaugeOpts{
		Name: "busy_workers",
		Help: "Workers busy.",
		Mode: multiproc.GaugeModeLiveSum,
	}).WithLabelValues().Set(busy)

	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

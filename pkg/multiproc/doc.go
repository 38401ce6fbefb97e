// Package multiproc implements Prometheus metrics for a group of worker
// processes that share nothing but a directory.
//
// # Process Files
//
// Every process writes its metrics into memory-mapped files in the
// multiprocess directory, one file per metric kind (and per merge mode for
// gauges):
//
//	counter_<pid>.db
//	histogram_<pid>.db
//	gauge_livesum_<pid>.db
//
// Each file holds one entry per sample. The key is a JSON array of metric
// name, sample name, label names, label values and help text; the value and
// the time of the last write are stored as float64. Writes are plain atomic
// stores into the mapping, so recording a metric never takes a cross-process
// lock and never does a system call once the key exists.
//
// # Basic Usage
//
//	store, err := multiproc.OpenStore(dir, "", logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	reg := multiproc.NewRegistry(store, multiproc.RegistryOptions{})
//	requests := reg.MustNewCounter(multiproc.CounterOpts{
//	    Name:       "requests",
//	    Help:       "Requests handled.",
//	    LabelNames: []string{"method"},
//	})
//	requests.WithLabelValues("GET").Inc()
//
// # Collection
//
// A Collector lists the directory on every scrape, reads all process files
// and merges them:
//
//   - Counters: summed across processes
//   - Histograms: each bucket and the sum summed, then made cumulative
//   - Gauges: merged by the gauge mode in the file name
//
// Gauge modes are all, sum, max, min and mostrecent. Each has a live variant
// (liveall, livesum, ...) that ignores processes marked dead. The default is
// livesum. Under all and liveall each process keeps its own series with a
// "pid" label.
//
// The result does not depend on the order files are listed in, and unchanged
// files produce the same MergedRegistry on every pass. A file that cannot be
// read is skipped and reported as a *PartialCollectionError.
//
// # Dead Processes
//
// A process that shuts down cleanly calls Reaper.MarkDead. Under the
// immediate policy its live-mode gauge files are deleted at once; under the
// grace policy a dead_<pid>.tomb file hides them until Sweep deletes them.
// Counter and histogram files are kept, so totals never go backwards when a
// worker is replaced.
//
// # Limitations
//
//   - Label cardinality is not bounded. Every label combination stays in the
//     process file until the file is removed.
//   - Processes that crash never mark themselves dead. Their files keep the
//     last written values until CleanDirectory or "procmetrics reap" removes
//     them.
//   - Shared memory maps need a unix platform; elsewhere Supported reports
//     false and the store cannot be opened.
package multiproc

// Package extension attaches multiprocess Prometheus metrics to a host
// server.
//
// Startup checks its preconditions first: a host version of at least
// MinHostVersion and a platform where process files can be memory-mapped.
// Either failure is a *ConfigurationError and nothing is created. Setup then
// wires the pieces together:
//
//   - a multiproc.Store and Registry for this process, handed back to the
//     caller for instrumentation
//   - a multiproc.Collector and the metrics handler, registered on the host
//     at metrics.path with ExcludeFromDocs set
//   - a multiproc.Reaper, whose sweep scheduler runs under the grace policy
//   - a multiproc.DirWatcher when metrics.watch_directory is set
//   - a shutdown hook that closes the process files and marks the process
//     dead
//
// The directory comes from metrics.multiproc_dir, PROMETHEUS_MULTIPROC_DIR or
// prometheus_multiproc_dir, in that order. Without one the process runs in
// single-process mode on a temporary directory removed at shutdown.
//
//	srv := server.New(cfg.Server, server.Options{Version: version})
//	m, err := extension.New(cfg, extension.Options{Logger: logger}).Startup(ctx, srv)
//	if err != nil {
//	    return err
//	}
//	jobs := m.Registry.MustNewCounter(multiproc.CounterOpts{Name: "jobs_total", Help: "Jobs run."})
package extension

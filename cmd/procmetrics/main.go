// Procmetrics serves and inspects multiprocess Prometheus metrics.
//
// Every worker of a group records into its own memory-mapped files in a
// shared directory. Any worker answers a scrape by merging all of them.
//
// Usage:
//
//	# Start one worker with default configuration
//	PROMETHEUS_MULTIPROC_DIR=/run/metrics procmetrics run
//
//	# Start with a configuration file
//	procmetrics run --config /etc/procmetrics/config.yaml
//
//	# Print the merged metrics of a directory
//	procmetrics collect --dir /run/metrics
//
//	# Retire a dead worker, or clear the directory before a restart
//	procmetrics reap --dir /run/metrics --pid worker-3
//	procmetrics reap --dir /run/metrics --all
//
//	# Show version information
//	procmetrics version
package main

import "os"

func main() {
	os.Exit(Execute())
}

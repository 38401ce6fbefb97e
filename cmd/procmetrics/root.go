package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/procmetrics/pkg/cli"
	"mercator-hq/procmetrics/pkg/config"
	"mercator-hq/procmetrics/pkg/telemetry/logging"
)

// rootOptions holds the global flags.
type rootOptions struct {
	cfgFile string
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "procmetrics",
		Short: "Procmetrics - multiprocess Prometheus metrics",
		Long: `Procmetrics keeps Prometheus metrics for groups of worker processes.

Each worker records into memory-mapped files in a shared directory. A scrape
of any worker merges the files of the whole group:
  - counters and histograms are summed across workers
  - gauges merge by their configured mode (all, liveall, livesum, max, min, sum)
  - files of dead workers are reaped by policy`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file path (defaults and environment only when empty)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newCollectCmd(opts),
		newReapCmd(opts),
		newVersionCmd(),
		newCompletionCmd(rootCmd),
	)
	return rootCmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return cli.ExitCode(err)
}

// loadConfig loads the configuration file with environment overrides into
// the global configuration and returns it.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if err := config.ReloadConfig(o.cfgFile); err != nil {
		return nil, cli.NewConfigError(o.cfgFile, err)
	}
	return config.MustGetConfig(), nil
}

// newLogger builds the process logger. --verbose forces debug level.
func (o *rootOptions) newLogger(cfg config.LoggingConfig, w io.Writer) (*logging.Logger, error) {
	if o.verbose {
		cfg.Level = "debug"
	}
	logger, err := logging.New(logging.FromConfig(cfg, w))
	if err != nil {
		return nil, cli.NewConfigError(o.cfgFile, err)
	}
	return logger, nil
}

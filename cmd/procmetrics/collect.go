package main

import (
	"errors"
	"fmt"

	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"mercator-hq/procmetrics/pkg/cli"
	"mercator-hq/procmetrics/pkg/config"
	"mercator-hq/procmetrics/pkg/exposition"
	"mercator-hq/procmetrics/pkg/multiproc"
)

type collectOptions struct {
	*rootOptions
	dir         string
	openMetrics bool
	stats       bool
	format      string
}

// collectReport summarizes one collection pass for --stats.
type collectReport struct {
	Dir            string `json:"dir" yaml:"dir"`
	Files          int    `json:"files" yaml:"files"`
	Missing        int    `json:"missing" yaml:"missing"`
	SkippedDead    int    `json:"skipped_dead" yaml:"skipped_dead"`
	Families       int    `json:"families" yaml:"families"`
	PartialErrors  int    `json:"partial_errors" yaml:"partial_errors"`
	EncodingErrors int    `json:"encoding_errors" yaml:"encoding_errors"`
}

func (r collectReport) String() string {
	return fmt.Sprintf("%s: %d files merged into %d families (%d missing, %d dead skipped, %d unreadable, %d samples dropped)",
		r.Dir, r.Files, r.Families, r.Missing, r.SkippedDead, r.PartialErrors, r.EncodingErrors)
}

func newCollectCmd(root *rootOptions) *cobra.Command {
	opts := &collectOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Print the merged metrics of a multiprocess directory",
		Long: `Run one collection pass over a multiprocess directory and print the merged
metrics in the Prometheus text format.

Unreadable process files and samples that cannot be encoded are reported on
stderr and left out; the command still succeeds. It fails only when the
directory itself cannot be read.

Examples:
  # Scrape a directory
  procmetrics collect --dir /run/metrics

  # Use PROMETHEUS_MULTIPROC_DIR and print a summary as JSON
  procmetrics collect --stats --format json

  # OpenMetrics output
  procmetrics collect --dir /run/metrics --openmetrics`,
		Args: cobra.NoArgs,
		RunE: opts.run,
	}

	cmd.Flags().StringVarP(&opts.dir, "dir", "d", "", "multiprocess directory (defaults to metrics.multiproc_dir or PROMETHEUS_MULTIPROC_DIR)")
	cmd.Flags().BoolVar(&opts.openMetrics, "openmetrics", false, "print OpenMetrics instead of the text format")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "print a collection summary on stderr")
	cmd.Flags().StringVar(&opts.format, "format", "text", "summary format: text, json, yaml")
	return cmd
}

func (o *collectOptions) run(cmd *cobra.Command, args []string) error {
	outputFormat, err := cli.ParseOutputFormat(o.format)
	if err != nil {
		return err
	}

	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	dir, err := resolveDir(o.dir, cfg)
	if err != nil {
		return err
	}
	logger, err := o.newLogger(cfg.Telemetry.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	collector := multiproc.NewCollector(dir, multiproc.CollectorOptions{Logger: logger.Slog()})
	merged, stats, errs := collector.CollectWithStats()
	for _, err := range errs {
		var perr *multiproc.PartialCollectionError
		if errors.As(err, &perr) && perr.Path == dir {
			return cli.NewCommandError("collect", err)
		}
		fmt.Fprintf(stderr, "warning: %v\n", err)
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	if o.openMetrics {
		format = expfmt.NewFormat(expfmt.TypeOpenMetrics)
	}
	families := merged.MetricFamilies()
	warnings, err := exposition.EncodeFormat(cmd.OutOrStdout(), families, format)
	if err != nil {
		return cli.NewCommandError("collect", err)
	}
	for _, w := range warnings {
		fmt.Fprintf(stderr, "warning: %v\n", w)
	}

	if o.stats {
		report := collectReport{
			Dir:            dir,
			Files:          stats.Files,
			Missing:        stats.Missing,
			SkippedDead:    stats.SkippedDead,
			Families:       len(families),
			PartialErrors:  len(errs),
			EncodingErrors: len(warnings),
		}
		if err := cli.NewFormatter(outputFormat).FormatTo(stderr, report); err != nil {
			return err
		}
	}
	return nil
}

// resolveDir returns flagValue, or the directory configured through the
// config file or the environment.
func resolveDir(flagValue string, cfg *config.Config) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if cfg.Metrics.MultiprocDir == "" {
		return "", errors.New("no multiprocess directory: set --dir or PROMETHEUS_MULTIPROC_DIR")
	}
	return cfg.Metrics.MultiprocDir, nil
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/procmetrics/pkg/cli"
	"mercator-hq/procmetrics/pkg/config"
	"mercator-hq/procmetrics/pkg/multiproc"
)

type reapOptions struct {
	*rootOptions
	dir       string
	pid       string
	all       bool
	sweep     bool
	policy    string
	removeAll bool
	format    string
}

// reapReport describes what a reap run changed.
type reapReport struct {
	Dir        string `json:"dir" yaml:"dir"`
	Action     string `json:"action" yaml:"action"`
	ProcessID  string `json:"pid,omitempty" yaml:"pid,omitempty"`
	Policy     string `json:"policy,omitempty" yaml:"policy,omitempty"`
	Removed    int    `json:"removed" yaml:"removed"`
	Tombstoned bool   `json:"tombstoned" yaml:"tombstoned"`
}

func (r reapReport) String() string {
	switch {
	case r.Tombstoned:
		return fmt.Sprintf("✓ %s marked dead in %s (grace policy, files kept until the sweep)", r.ProcessID, r.Dir)
	case r.Action == "pid":
		return fmt.Sprintf("✓ %s marked dead in %s, %d files removed", r.ProcessID, r.Dir, r.Removed)
	case r.Action == "sweep":
		return fmt.Sprintf("✓ Sweep of %s removed %d files", r.Dir, r.Removed)
	default:
		return fmt.Sprintf("✓ Cleaned %s, %d files removed", r.Dir, r.Removed)
	}
}

func newReapCmd(root *rootOptions) *cobra.Command {
	opts := &reapOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Retire process files from a multiprocess directory",
		Long: `Retire the files of dead workers from a multiprocess directory.

--pid marks one process dead using the configured reaper policy: immediate
removes its live gauge files (or all of its files with --remove-all), grace
writes a tombstone so the next sweep removes them.

--sweep removes the files of tombstoned processes whose grace period expired.

--all removes every process file and tombstone. Run it only while no worker
is running, typically before a group starts.

Examples:
  procmetrics reap --dir /run/metrics --pid worker-3
  procmetrics reap --dir /run/metrics --pid worker-3 --policy grace
  procmetrics reap --dir /run/metrics --sweep
  procmetrics reap --dir /run/metrics --all`,
		Args: cobra.NoArgs,
		RunE: opts.run,
	}

	cmd.Flags().StringVarP(&opts.dir, "dir", "d", "", "multiprocess directory (defaults to metrics.multiproc_dir or PROMETHEUS_MULTIPROC_DIR)")
	cmd.Flags().StringVar(&opts.pid, "pid", "", "process id to mark dead")
	cmd.Flags().BoolVar(&opts.all, "all", false, "remove every process file")
	cmd.Flags().BoolVar(&opts.sweep, "sweep", false, "remove files of tombstoned processes past the grace period")
	cmd.Flags().StringVar(&opts.policy, "policy", "", "override metrics.reaper.policy (immediate, grace)")
	cmd.Flags().BoolVar(&opts.removeAll, "remove-all", false, "with --pid and the immediate policy, remove counters and histograms too")
	cmd.Flags().StringVar(&opts.format, "format", "text", "output format: text, json, yaml")
	cmd.MarkFlagsMutuallyExclusive("pid", "all", "sweep")
	cmd.MarkFlagsOneRequired("pid", "all", "sweep")
	return cmd
}

func (o *reapOptions) run(cmd *cobra.Command, args []string) error {
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
	if err := multiproc.CheckDirectory(dir); err != nil {
		return cli.NewCommandError("reap", err)
	}

	report := reapReport{Dir: dir}
	switch {
	case o.all:
		report.Action = "all"
		report.Removed, err = multiproc.CleanDirectory(dir)
	default:
		report, err = o.reapWithPolicy(cmd, cfg, dir)
	}
	if err != nil {
		return cli.NewCommandError("reap", err)
	}

	return cli.NewFormatter(outputFormat).FormatTo(cmd.OutOrStdout(), report)
}

func (o *reapOptions) reapWithPolicy(cmd *cobra.Command, cfg *config.Config, dir string) (reapReport, error) {
	report := reapReport{Dir: dir}

	if o.policy != "" {
		cfg.Metrics.Reaper.Policy = o.policy
	}
	policy, err := multiproc.ParseReapPolicy(cfg.Metrics.Reaper.Policy)
	if err != nil {
		return report, cli.NewConfigError(o.cfgFile, err)
	}
	logger, err := o.newLogger(cfg.Telemetry.Logging, cmd.ErrOrStderr())
	if err != nil {
		return report, err
	}

	reaper, err := multiproc.NewReaper(dir, multiproc.ReaperOptions{
		Policy:      policy,
		GracePeriod: cfg.Metrics.Reaper.GracePeriod,
		RemoveAll:   o.removeAll || cfg.Metrics.Reaper.RemoveAll,
		Logger:      logger.Slog(),
	})
	if err != nil {
		return report, err
	}
	report.Policy = string(policy)

	if o.sweep {
		report.Action = "sweep"
		report.Removed, err = reaper.Sweep()
		return report, err
	}

	report.Action = "pid"
	report.ProcessID = o.pid
	before, err := countProcessFiles(dir, o.pid)
	if err != nil {
		return report, err
	}
	if err := reaper.MarkDead(o.pid); err != nil {
		return report, err
	}
	after, err := countProcessFiles(dir, o.pid)
	if err != nil {
		return report, err
	}
	report.Removed = before - after
	report.Tombstoned = policy == multiproc.ReapGrace
	return report, nil
}

func countProcessFiles(dir, pid string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, de := range entries {
		if info, ok := multiproc.ParseFileName(de.Name()); ok && info.ProcessID == pid {
			n++
		}
	}
	return n, nil
}

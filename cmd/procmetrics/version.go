package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"mercator-hq/procmetrics/pkg/cli"
	"mercator-hq/procmetrics/pkg/telemetry/health"
)

var (
	// Version is the semantic version (set by build flags)
	Version = "1.2.0"
	// GitCommit is the git commit hash (set by build flags)
	GitCommit = "unknown"
	// BuildDate is the build timestamp (set by build flags)
	BuildDate = "unknown"
)

func newVersionCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print detailed version information including Git commit and build date.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, err := cli.ParseOutputFormat(format)
			if err != nil {
				return err
			}

			info := health.NewVersionInfo(Version, GitCommit, BuildDate)
			out := cmd.OutOrStdout()
			if outputFormat != cli.FormatText {
				return cli.NewFormatter(outputFormat).FormatTo(out, info)
			}

			fmt.Fprintf(out, "procmetrics %s\n", info.Version)
			fmt.Fprintf(out, "Git Commit: %s\n", info.Commit)
			fmt.Fprintf(out, "Build Date: %s\n", info.BuildTime)
			fmt.Fprintf(out, "Go Version: %s\n", info.GoVersion)
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json, yaml")
	return cmd
}

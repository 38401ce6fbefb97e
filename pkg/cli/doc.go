/*
Package cli provides helpers shared by the procmetrics commands.

Output Formatting:

Command reports print as text, JSON or YAML:

	format, err := cli.ParseOutputFormat(flagValue)
	if err != nil {
		return err
	}
	if err := cli.NewFormatter(format).FormatTo(os.Stdout, report); err != nil {
		return err
	}

Errors:

ConfigError and CommandError wrap failures with the file or command they
came from. ExitCode maps them to the process exit status.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
	return srv.Start(ctx)
*/
package cli

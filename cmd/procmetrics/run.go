package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/procmetrics/pkg/cli"
	"mercator-hq/procmetrics/pkg/config"
	"mercator-hq/procmetrics/pkg/extension"
	"mercator-hq/procmetrics/pkg/server"
	"mercator-hq/procmetrics/pkg/telemetry/health"
	"mercator-hq/procmetrics/pkg/telemetry/metrics"
	"mercator-hq/procmetrics/pkg/telemetry/tracing"
)

type runOptions struct {
	*rootOptions
	listenAddress string
	logLevel      string
	processID     string
	dryRun        bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a worker serving multiprocess metrics",
		Long: `Start one worker of a group with the specified configuration.

The worker records its own metrics into the multiprocess directory and serves
the merged metrics of the whole group on the metrics path, next to the health
endpoints. On shutdown its files are retired according to the reaper policy.

Examples:
  # Start with defaults, single-process mode
  procmetrics run

  # Join a worker group
  PROMETHEUS_MULTIPROC_DIR=/run/metrics procmetrics run --process-id worker-1

  # Override listen address
  procmetrics run --listen 0.0.0.0:9100

  # Validate config without starting the server
  procmetrics run --dry-run`,
		Args: cobra.NoArgs,
		RunE: opts.run,
	}

	cmd.Flags().StringVarP(&opts.listenAddress, "listen", "l", "", "override listen address")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.processID, "process-id", "", "override the process id used in file names")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "validate config without starting server")
	return cmd
}

func (o *runOptions) run(cmd *cobra.Command, args []string) error {
	loaded, err := o.loadConfig()
	if err != nil {
		return err
	}

	cfg := *loaded
	if o.listenAddress != "" {
		cfg.Server.ListenAddress = o.listenAddress
	}
	if o.logLevel != "" {
		cfg.Telemetry.Logging.Level = o.logLevel
	}
	if o.processID != "" {
		cfg.Metrics.ProcessID = o.processID
	}
	if err := config.Validate(&cfg); err != nil {
		return cli.NewConfigError(o.cfgFile, err)
	}
	config.SetConfig(&cfg)

	logger, err := o.newLogger(cfg.Telemetry.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	logger.SetDefault()

	out := cmd.OutOrStdout()
	if o.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	srv, err := newWorker(ctx, config.MustGetConfig(), logger.Slog())
	if err != nil {
		if extension.IsConfigurationError(err) {
			return cli.NewConfigError(o.cfgFile, err)
		}
		return cli.NewCommandError("run", err)
	}

	go announce(ctx, srv, &cfg, out)

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

// newWorker builds the host server with health endpoints and the metrics
// extension attached. The tracer is flushed by the last shutdown hook.
func newWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*server.Server, error) {
	tracer, err := tracing.New(cfg.Telemetry.Tracing, Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	srv := server.New(cfg.Server, server.Options{
		Version: Version,
		Logger:  logger,
		Tracer:  tracer,
	})

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	info := health.NewVersionInfo(Version, GitCommit, BuildDate)
	for _, ep := range checker.Endpoints(cfg.Telemetry.Health, info) {
		if err := srv.Handle(server.Route{Path: ep.Path, Handler: ep.Handler, ExcludeFromDocs: true}); err != nil {
			return nil, fmt.Errorf("failed to register health endpoint: %w", err)
		}
	}

	m, err := extension.New(cfg, extension.Options{
		Logger: logger,
		Tracer: tracer,
		Health: checker,
	}).Startup(ctx, srv)
	if err != nil {
		_ = tracer.Shutdown(context.Background())
		return nil, err
	}

	if m != nil {
		rm, err := metrics.NewRequestMetrics(m.Registry, metrics.RequestMetricsOptions{
			Buckets: cfg.Metrics.RequestDurationBuckets,
		})
		if err != nil {
			_ = srv.Shutdown(context.Background())
			_ = tracer.Shutdown(context.Background())
			return nil, fmt.Errorf("failed to register request metrics: %w", err)
		}
		srv.Instrument(rm)
	}

	srv.OnShutdown(tracer.Shutdown)
	return srv, nil
}

func announce(ctx context.Context, srv *server.Server, cfg *config.Config, out io.Writer) {
	select {
	case <-ctx.Done():
		return
	case <-srv.Ready():
	}

	addr := srv.Addr()
	fmt.Fprintf(out, "procmetrics v%s\n", Version)
	fmt.Fprintf(out, "✓ Server listening on %s\n", addr)
	if cfg.Telemetry.Health.Enabled {
		fmt.Fprintf(out, "✓ Health endpoint: http://%s%s\n", addr, cfg.Telemetry.Health.LivenessPath)
	}
	if cfg.Metrics.Enabled {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", addr, cfg.Metrics.Path)
		if cfg.Metrics.Handler == "text" {
			fmt.Fprintf(out, "✓ Scrape diagnostics: http://%s%s\n", addr, cfg.Metrics.DiagnosticsPath)
		}
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"tapcanvas/threadgate/pkg/cli"
	"tapcanvas/threadgate/pkg/config"
	"tapcanvas/threadgate/pkg/server"
	"tapcanvas/threadgate/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the threadgate proxy",
	Long: `Start the threadgate proxy with the specified configuration.

The proxy listens on the configured address and relays every request to the
upstream, translating thread aliases on the way. The upstream process is
started when the first request needs it.

Examples:
  # Start with config.yaml, or defaults when it does not exist
  threadgate run

  # Start with a custom config
  threadgate run --config /etc/threadgate/config.yaml

  # Override listen address
  threadgate run --listen 0.0.0.0:8787

  # Validate config without starting the proxy
  threadgate run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the proxy")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Proxy.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}
	config.SetConfig(cfg)

	logger, err := logging.Setup(cfg.Telemetry.Logging, os.Stdout)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		printSummary(out, cfg)
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

	opts := server.Options{
		Config: cfg,
		Build:  server.BuildInfo{Version: Version, Commit: GitCommit, BuildTime: BuildDate},
		Logger: logger,
	}
	if configFileExists() {
		opts.ConfigPath = cfgFile
	}

	srv, err := server.New(ctx, opts)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	logger.Info("threadgate starting",
		slog.String("version", Version),
		slog.String("config", cfgFile),
		slog.String("listen", cfg.Proxy.ListenAddress),
	)
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

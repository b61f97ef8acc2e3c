package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tapcanvas/threadgate/pkg/cli"
	"tapcanvas/threadgate/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration file, apply defaults and environment overrides,
and report every validation problem at once.

Examples:
  threadgate validate
  threadgate validate --config /etc/threadgate/config.yaml`,
	Args: cobra.NoArgs,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintf(out, "✗ %d problem(s) in %s:\n", len(verr.Errors), cfgFile)
			for _, fe := range verr.Errors {
				fmt.Fprintf(out, "  - %s\n", fe.Error())
			}
		}
		return cli.NewConfigError("", err.Error())
	}

	if configFileExists() {
		fmt.Fprintf(out, "✓ %s is valid\n", cfgFile)
	} else {
		fmt.Fprintf(out, "✓ %s not found, defaults and environment are valid\n", cfgFile)
	}
	printSummary(out, cfg)
	return nil
}

func printSummary(w io.Writer, cfg *config.Config) {
	upstream := cfg.Upstream.Command
	if upstream == "" {
		upstream = "(external)"
	}
	fmt.Fprintf(w, "  listen:        %s\n", cfg.Proxy.ListenAddress)
	fmt.Fprintf(w, "  upstream:      %s on %s:%d\n", upstream, cfg.Upstream.Host, cfg.Upstream.Port)
	fmt.Fprintf(w, "  alias backend: %s\n", cfg.Aliases.Backend)
	fmt.Fprintf(w, "  metrics:       %t\n", cfg.Telemetry.Metrics.Enabled)
	fmt.Fprintf(w, "  tracing:       %t\n", cfg.Telemetry.Tracing.Enabled)
}

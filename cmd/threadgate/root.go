package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tapcanvas/threadgate/pkg/cli"
	"tapcanvas/threadgate/pkg/config"
)

var (
	// Global flags
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "threadgate",
	Short: "threadgate - session-aware reverse proxy for thread APIs",
	Long: `threadgate sits in front of a single upstream thread service and gives
clients thread identifiers that never change.

Requests to /threads/<alias>/... are rewritten to the upstream's current
internal thread id. When the upstream forgets a thread (404), threadgate
creates a new one, remembers the mapping and replays the request. Thread ids
in JSON responses are rewritten back to the alias.

The upstream process is started on first use and probed until ready.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return cli.ExitCode(err)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
}

// loadConfig reads cfgFile, falling back to defaults and the environment
// when the file does not exist.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}
	return cfg, nil
}

// configFileExists reports whether cfgFile names an existing file. Only an
// existing file is watched for changes.
func configFileExists() bool {
	if cfgFile == "" {
		return false
	}
	info, err := os.Stat(cfgFile)
	return err == nil && !info.IsDir()
}

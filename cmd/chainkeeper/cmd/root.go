package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/chainkeeper/internal/config"
	"github.com/oshokin/chainkeeper/internal/logger"
	"github.com/oshokin/chainkeeper/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// logLevel controls the minimum level of emitted log lines.
	logLevel string

	// rootCmd represents the base command for operating a full node.
	rootCmd = &cobra.Command{
		Use:   "chainkeeper",
		Short: "Provision, upgrade and monitor a blockchain full node.",
		Long: `Operator toolkit for a supervised blockchain full node.

Chainkeeper sequences the external contracts a node operator otherwise drives
by hand: the node's RPC endpoints, the binary-release download convention,
the snapshot hosting convention, the process supervisor, and systemd.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}
		},
	}
)

// Execute runs the chainkeeper CLI and exits with non-zero status on error.
func Execute() {
	version.Attach(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup persistent flags shared by every subcommand.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c",
		config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"minimum log level (debug, info, warn, error)")
}

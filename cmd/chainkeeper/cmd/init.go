package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/oshokin/chainkeeper/internal/config"
	"github.com/oshokin/chainkeeper/internal/logger"
)

var (
	// initDaemonName is the node binary the settings file is generated for.
	initDaemonName string
	// initChainID is the network identifier recorded in the settings.
	initChainID string
	// initMoniker is the operator-visible node name recorded in the settings.
	initMoniker string

	// initCmd writes a starter settings file.
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a starter chainkeeper settings file.",
		Long: `Write a chainkeeper settings file with defaults filled in.

The generated file records the daemon identity and the default RPC endpoint,
supervisor name and timeouts; release and snapshot URLs are left for the
operator to fill in.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := logger.WithName(context.Background(), "init")

			cfg := &config.Config{
				DaemonName: initDaemonName,
				ChainID:    initChainID,
				Moniker:    initMoniker,
			}

			if err := config.Save(configPath, cfg); err != nil {
				return err
			}

			logger.InfoKV(ctx, "Wrote settings file", "path", configPath)
			logger.Info(ctx, "Fill in release_url_template and snapshot_index_url before provisioning")

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	initCmd.Flags().StringVar(&initDaemonName, "daemon-name", "",
		"node binary name (required)")
	initCmd.Flags().StringVar(&initChainID, "chain-id", "",
		"network identifier passed to the node on init")
	initCmd.Flags().StringVar(&initMoniker, "moniker", "",
		"operator-visible node name")

	if err := initCmd.MarkFlagRequired("daemon-name"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(initCmd)
}

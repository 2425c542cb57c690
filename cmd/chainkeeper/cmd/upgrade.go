package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/chainkeeper/internal/service/upgrade"
)

var (
	// targetVersion is the release the node upgrades to.
	targetVersion string
	// blocksAhead is the activation offset past the current height.
	blocksAhead int64
	// upgradeName is the on-chain upgrade name registered with the supervisor.
	upgradeName string
	// upgradeDaemonName and upgradeDaemonHome override the configured daemon identity.
	upgradeDaemonName string
	upgradeDaemonHome string
	// forceUpgrade schedules even when the node is still catching up.
	forceUpgrade bool

	// upgradeCmd schedules a binary upgrade with the process supervisor.
	upgradeCmd = &cobra.Command{
		Use:   "upgrade",
		Short: "Schedule a node binary upgrade at a future block height.",
		Long: `Schedule a node binary upgrade with the process supervisor.

Queries the node for its current height, computes the activation height as
current height plus --blocks-ahead, downloads the --target-version release
for this host's architecture, and stages the binary so the supervisor swaps
it in when the chain reaches the scheduled height.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &upgrade.Options{
				ConfigPath:    configPath,
				TargetVersion: targetVersion,
				BlocksAhead:   blocksAhead,
				UpgradeName:   upgradeName,
				DaemonName:    upgradeDaemonName,
				DaemonHome:    upgradeDaemonHome,
				Force:         forceUpgrade,
			}

			return upgrade.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	upgradeCmd.Flags().StringVar(&targetVersion, "target-version", "",
		"release version to upgrade to (required)")
	upgradeCmd.Flags().Int64Var(&blocksAhead, "blocks-ahead", upgrade.DefaultBlocksAhead,
		"blocks past the current height at which the upgrade activates")
	upgradeCmd.Flags().StringVar(&upgradeName, "upgrade-name", "",
		"on-chain upgrade name (defaults to the target version)")
	upgradeCmd.Flags().StringVar(&upgradeDaemonName, "daemon-name", "",
		"node binary name (overrides configuration)")
	upgradeCmd.Flags().StringVar(&upgradeDaemonHome, "daemon-home", "",
		"node home directory (overrides configuration)")
	upgradeCmd.Flags().BoolVar(&forceUpgrade, "force", false,
		"schedule even when the node is still catching up")

	if err := upgradeCmd.MarkFlagRequired("target-version"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(upgradeCmd)
}

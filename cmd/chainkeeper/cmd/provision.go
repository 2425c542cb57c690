package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/chainkeeper/internal/service/provision"
)

var (
	// provisionVersion is the node release installed on the host.
	provisionVersion string
	// serviceUser is the system user the unit runs as.
	serviceUser string
	// skipSnapshot provisions without bootstrapping from a snapshot.
	skipSnapshot bool
	// skipService provisions without installing the systemd unit.
	skipService bool

	// provisionCmd installs a full node on this host.
	provisionCmd = &cobra.Command{
		Use:   "provision",
		Short: "Install a supervised full node on this host.",
		Long: `Install a full node on this host from scratch.

Creates the supervisor directory layout under the daemon home, downloads the
node binary release for this host's architecture, initializes the node
configuration with the configured moniker, optionally bootstraps the data
directory from the latest hosted snapshot, and installs and starts a systemd
unit running the node under the process supervisor.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &provision.Options{
				ConfigPath:   configPath,
				Version:      provisionVersion,
				User:         serviceUser,
				SkipSnapshot: skipSnapshot,
				SkipService:  skipService,
			}

			return provision.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	provisionCmd.Flags().StringVar(&provisionVersion, "version", "",
		"node release version to install (required)")
	provisionCmd.Flags().StringVar(&serviceUser, "user", "",
		"system user the service runs as")
	provisionCmd.Flags().BoolVar(&skipSnapshot, "skip-snapshot", false,
		"do not bootstrap the data directory from a snapshot")
	provisionCmd.Flags().BoolVar(&skipService, "skip-service", false,
		"do not install the systemd unit")

	if err := provisionCmd.MarkFlagRequired("version"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(provisionCmd)
}

package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/chainkeeper/internal/service/restore"
)

var (
	// snapshotURL restores a specific archive instead of the index's latest.
	snapshotURL string
	// keepFiles lists extra data-dir files preserved across the restore.
	keepFiles []string
	// restoreSkipService leaves the systemd unit alone around the restore.
	restoreSkipService bool

	// restoreCmd replaces the data directory from a hosted snapshot.
	restoreCmd = &cobra.Command{
		Use:   "restore",
		Short: "Replace the node data directory from the latest snapshot.",
		Long: `Replace the node's data directory from a hosted chain snapshot.

Stops the service, preserves the validator's consensus-state file, streams
the newest *.tar.lz4 archive from the configured snapshot index over the
data directory, restores the preserved files, and starts the service again.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &restore.Options{
				ConfigPath:  configPath,
				SnapshotURL: snapshotURL,
				Keep:        keepFiles,
				SkipService: restoreSkipService,
			}

			return restore.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	restoreCmd.Flags().StringVar(&snapshotURL, "snapshot-url", "",
		"restore this archive instead of the index's latest")
	restoreCmd.Flags().StringSliceVar(&keepFiles, "keep", nil,
		"extra data-dir files to preserve across the restore")
	restoreCmd.Flags().BoolVar(&restoreSkipService, "skip-service", false,
		"do not stop or start the systemd unit")

	rootCmd.AddCommand(restoreCmd)
}

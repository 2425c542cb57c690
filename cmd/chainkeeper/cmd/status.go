package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/chainkeeper/internal/service/status"
)

var (
	// statusEndpoint optionally overrides the configured RPC endpoint.
	statusEndpoint string

	// statusCmd prints a one-shot summary of the node.
	statusCmd = &cobra.Command{
		Use:   "status [rpc-endpoint]",
		Short: "Print the node's identity and sync status.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use the endpoint argument if provided, otherwise rely on config.
			endpoint := statusEndpoint
			if len(args) > 0 {
				endpoint = args[0]
			}

			options := &status.Options{
				ConfigPath:  configPath,
				RPCEndpoint: endpoint,
				Output:      cmd.OutOrStdout(),
			}

			return status.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	statusCmd.Flags().StringVar(&statusEndpoint, "rpc-endpoint", "",
		"node RPC endpoint (overrides configuration)")

	rootCmd.AddCommand(statusCmd)
}

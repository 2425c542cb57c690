package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/chainkeeper/internal/service/monitor"
)

var (
	// monitorEndpoint optionally overrides the configured RPC endpoint.
	monitorEndpoint string
	// monitorInterval overrides the configured polling interval.
	monitorInterval time.Duration
	// metricsAddr enables a prometheus listener when set.
	metricsAddr string
	// stallPolls is the unchanged-height threshold for stall warnings.
	stallPolls int
	// once performs a single readiness probe instead of a polling loop.
	once bool

	// monitorCmd polls the node's sync status.
	monitorCmd = &cobra.Command{
		Use:   "monitor [rpc-endpoint]",
		Short: "Poll node sync status and warn on stalls.",
		Long: `Poll the node RPC on a fixed interval and report sync progress.

Each probe logs the latest block height, catching-up state and peer count.
A warning is emitted when the height stops advancing for several probes.
With --metrics-addr the same observations are exported as prometheus
metrics; with --once a single probe is performed and a non-zero exit code
reports an unreachable or still-syncing node.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use the endpoint argument if provided, otherwise rely on config.
			endpoint := monitorEndpoint
			if len(args) > 0 {
				endpoint = args[0]
			}

			options := &monitor.Options{
				ConfigPath:   configPath,
				RPCEndpoint:  endpoint,
				PollInterval: monitorInterval,
				MetricsAddr:  metricsAddr,
				StallPolls:   stallPolls,
				Once:         once,
			}

			return monitor.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	monitorCmd.Flags().StringVar(&monitorEndpoint, "rpc-endpoint", "",
		"node RPC endpoint (overrides configuration)")
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 0,
		"polling interval (overrides configuration)")
	monitorCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "",
		"listen address for prometheus metrics (disabled when empty)")
	monitorCmd.Flags().IntVar(&stallPolls, "stall-polls", monitor.DefaultStallPolls,
		"unchanged-height probes before a stall warning")
	monitorCmd.Flags().BoolVar(&once, "once", false,
		"probe once and exit non-zero when the node is not ready")

	rootCmd.AddCommand(monitorCmd)
}

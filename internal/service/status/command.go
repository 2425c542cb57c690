// Package status performs a one-shot probe of the node and prints a
// human-readable summary to standard output.
package status

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oshokin/chainkeeper/internal/config"
	"github.com/oshokin/chainkeeper/internal/logger"
	"github.com/oshokin/chainkeeper/internal/proc"
	"github.com/oshokin/chainkeeper/internal/rpc"
)

// Options are inputs accepted by the status entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// RPCEndpoint provides an optional node RPC endpoint override.
	RPCEndpoint string
	// Output receives the rendered summary (stdout in the CLI).
	Output io.Writer
}

// Run probes the node once and writes the summary to opts.Output.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "status")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		// A remote endpoint can be probed without a settings file.
		if !errors.Is(err, os.ErrNotExist) || opts.RPCEndpoint == "" {
			return fmt.Errorf("load configuration: %w", err)
		}

		cfg = &config.Config{RPCEndpoint: opts.RPCEndpoint, Timeout: config.DefaultTimeout}
	}

	endpoint := cfg.RPCEndpoint
	if opts.RPCEndpoint != "" {
		endpoint = opts.RPCEndpoint
	}

	client, err := rpc.NewClient(endpoint, rpc.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return fmt.Errorf("create RPC client: %w", err)
	}

	status, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("probe node: %w", err)
	}

	// Application version and peers are optional details.
	if appVersion, versionErr := client.AppVersion(ctx); versionErr == nil {
		status.AppVersion = appVersion
	}

	if peers, peersErr := client.PeerCount(ctx); peersErr == nil {
		status.Peers = peers
	}

	var daemonRunning bool
	if cfg.DaemonName != "" {
		if daemonRunning, err = proc.IsRunning(cfg.DaemonName); err != nil {
			logger.DebugKV(ctx, "Process lookup failed", "error", err)
		}
	}

	syncState := "synced"
	if status.CatchingUp {
		syncState = "catching up"
	}

	processState := "not running"
	if daemonRunning {
		processState = "running"
	}

	fmt.Fprintf(opts.Output, "moniker:       %s\n", status.Node.Moniker)
	fmt.Fprintf(opts.Output, "node id:       %s\n", status.Node.ID)
	fmt.Fprintf(opts.Output, "network:       %s\n", status.Node.Network)
	fmt.Fprintf(opts.Output, "node version:  %s\n", status.Node.Version)

	if status.AppVersion != "" {
		fmt.Fprintf(opts.Output, "app version:   %s\n", status.AppVersion)
	}

	fmt.Fprintf(opts.Output, "height:        %d\n", status.LatestHeight)
	fmt.Fprintf(opts.Output, "block time:    %s\n", status.LatestBlockTime.Format(time.RFC3339))
	fmt.Fprintf(opts.Output, "sync:          %s\n", syncState)

	if status.Peers >= 0 {
		fmt.Fprintf(opts.Output, "peers:         %d\n", status.Peers)
	}

	if cfg.DaemonName != "" {
		fmt.Fprintf(opts.Output, "process (%s): %s\n", cfg.DaemonName, processState)
	}

	return nil
}

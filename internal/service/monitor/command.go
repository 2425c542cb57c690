package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/oshokin/chainkeeper/internal/config"
	domain "github.com/oshokin/chainkeeper/internal/domain/node"
	"github.com/oshokin/chainkeeper/internal/logger"
	"github.com/oshokin/chainkeeper/internal/metrics"
	"github.com/oshokin/chainkeeper/internal/rpc"
)

// Options controls the monitor polling behavior and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// RPCEndpoint provides an optional node RPC endpoint override.
	RPCEndpoint string
	// PollInterval defines the interval between node probes.
	PollInterval time.Duration
	// MetricsAddr enables a prometheus listener when non-empty.
	MetricsAddr string
	// StallPolls is how many unchanged-height polls trigger a stall warning.
	StallPolls int
	// Once performs a single probe and exits.
	Once bool
}

// DefaultStallPolls is the number of unchanged-height probes after which the
// node is considered stalled.
const DefaultStallPolls = 6

// ErrNodeNotReady indicates a one-shot probe found the node unreachable or
// still catching up.
var ErrNodeNotReady = errors.New("node is not ready")

// prober is the slice of the RPC client the monitor needs; tests provide fakes.
type prober interface {
	Status(ctx context.Context) (*domain.Status, error)
	PeerCount(ctx context.Context) (int, error)
}

// watcher tracks probe history across ticks to detect height stalls.
type watcher struct {
	client     prober
	collector  *metrics.Collector
	stallPolls int

	lastHeight     int64
	unchangedPolls int
}

// Run polls the node and logs its sync status until the context is canceled.
// With Options.Once a single probe is performed and the node's readiness is
// the exit status.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "monitor")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		// Monitoring a remote node needs no settings file; the endpoint
		// flag alone is enough.
		if !errors.Is(err, os.ErrNotExist) || opts.RPCEndpoint == "" {
			return fmt.Errorf("load configuration: %w", err)
		}

		cfg = &config.Config{
			RPCEndpoint:  opts.RPCEndpoint,
			Timeout:      config.DefaultTimeout,
			PollInterval: config.DefaultPollInterval,
		}
	}

	endpoint := cfg.RPCEndpoint
	if opts.RPCEndpoint != "" {
		endpoint = opts.RPCEndpoint
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = cfg.PollInterval
	}

	if opts.StallPolls <= 0 {
		opts.StallPolls = DefaultStallPolls
	}

	client, err := rpc.NewClient(endpoint, rpc.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return fmt.Errorf("create RPC client: %w", err)
	}

	w := &watcher{
		client:     client,
		stallPolls: opts.StallPolls,
	}

	if opts.Once {
		return w.probeOnce(ctx)
	}

	if opts.MetricsAddr != "" {
		w.collector = metrics.NewCollector()

		go func() {
			if serveErr := w.collector.Serve(ctx, opts.MetricsAddr); serveErr != nil {
				logger.ErrorKV(ctx, "Metrics listener failed", "error", serveErr)
			}
		}()
	}

	logger.InfoKV(ctx, "Polling node status",
		"endpoint", endpoint, "interval", opts.PollInterval.String())

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case <-ticker.C:
			if err = w.checkState(ctx); err != nil {
				logger.ErrorKV(ctx, "Probe failed", "error", err)

				if w.collector != nil {
					w.collector.ObserveError()
				}
			}
		}
	}
}

// probeOnce performs a single readiness probe.
func (w *watcher) probeOnce(ctx context.Context) error {
	status, err := w.client.Status(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNodeNotReady, err)
	}

	logStatus(ctx, status)

	if status.CatchingUp {
		return fmt.Errorf("catching up at height %d: %w", status.LatestHeight, ErrNodeNotReady)
	}

	return nil
}

// checkState retrieves the node status, records metrics, and tracks stalls.
func (w *watcher) checkState(ctx context.Context) error {
	status, err := w.client.Status(ctx)
	if err != nil {
		return err
	}

	// Peer count is best-effort; the probe stays useful without it.
	peers, err := w.client.PeerCount(ctx)
	if err != nil {
		logger.DebugKV(ctx, "Peer count unavailable", "error", err)
		peers = -1
	}

	status.Peers = peers
	logStatus(ctx, status)

	if w.collector != nil {
		w.collector.Observe(status.LatestHeight, status.CatchingUp, peers)
	}

	w.trackStall(ctx, status.LatestHeight)

	return nil
}

// trackStall warns when the reported height stops advancing.
func (w *watcher) trackStall(ctx context.Context, height int64) {
	if height != w.lastHeight {
		w.lastHeight = height
		w.unchangedPolls = 0

		return
	}

	w.unchangedPolls++
	if w.unchangedPolls >= w.stallPolls {
		logger.WarnKV(ctx, "Node height is not advancing",
			"height", height, "polls", w.unchangedPolls)
	}
}

// logStatus emits one line per probe with the fields operators watch.
func logStatus(ctx context.Context, status *domain.Status) {
	syncState := "synced"
	if status.CatchingUp {
		syncState = "catching up"
	}

	logger.InfoKV(ctx, "Node status",
		"moniker", status.Node.Moniker,
		"height", status.LatestHeight,
		"sync", syncState,
		"peers", status.Peers,
		"block_time", status.LatestBlockTime.Format(time.RFC3339))
}

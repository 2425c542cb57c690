// Package metrics exposes the monitor's node gauges over a prometheus
// /metrics endpoint.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/chainkeeper/internal/logger"
)

// readHeaderTimeout bounds slow-client header reads on the metrics listener.
const readHeaderTimeout = 5 * time.Second

// Collector holds the node gauges updated by the monitor on every probe.
type Collector struct {
	// registry keeps the collector self-contained so tests can run in parallel.
	registry *prometheus.Registry

	latestHeight prometheus.Gauge
	catchingUp   prometheus.Gauge
	peers        prometheus.Gauge
	probeErrors  prometheus.Counter
}

// NewCollector registers the node gauges on a fresh registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	collector := &Collector{
		registry: registry,
		latestHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chainkeeper",
			Name:      "node_latest_block_height",
			Help:      "Latest block height reported by the node.",
		}),
		catchingUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chainkeeper",
			Name:      "node_catching_up",
			Help:      "1 when the node is still syncing towards the chain tip.",
		}),
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chainkeeper",
			Name:      "node_peers",
			Help:      "Number of connected peers.",
		}),
		probeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chainkeeper",
			Name:      "probe_errors_total",
			Help:      "Total number of failed node probes.",
		}),
	}

	registry.MustRegister(
		collector.latestHeight,
		collector.catchingUp,
		collector.peers,
		collector.probeErrors,
	)

	return collector
}

// Observe records a successful probe.
func (c *Collector) Observe(height int64, catchingUp bool, peers int) {
	c.latestHeight.Set(float64(height))

	if catchingUp {
		c.catchingUp.Set(1)
	} else {
		c.catchingUp.Set(0)
	}

	if peers >= 0 {
		c.peers.Set(float64(peers))
	}
}

// ObserveError records a failed probe.
func (c *Collector) ObserveError() {
	c.probeErrors.Inc()
}

// Handler returns the /metrics HTTP handler for this collector.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve runs a metrics listener on addr until the context is canceled.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), readHeaderTimeout)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	logger.InfoKV(ctx, "Serving metrics", "address", addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/chainkeeper/internal/config"
	domain "github.com/oshokin/chainkeeper/internal/domain/node"
)

var errProbeFailed = errors.New("probe failed")

// fakeProber is a minimal in-memory prober implementation for tests.
type fakeProber struct {
	// statuses are returned in order; the last one repeats.
	statuses []*domain.Status
	// statusErr is returned from Status when set.
	statusErr error
	// peers is returned from PeerCount.
	peers int

	calls int
}

func (f *fakeProber) Status(context.Context) (*domain.Status, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}

	index := f.calls
	if index >= len(f.statuses) {
		index = len(f.statuses) - 1
	}

	f.calls++

	return f.statuses[index].Clone(), nil
}

func (f *fakeProber) PeerCount(context.Context) (int, error) {
	return f.peers, nil
}

// statusAt builds a synced status at the given height.
func statusAt(height int64) *domain.Status {
	return &domain.Status{
		Node:         &domain.Identity{Moniker: "relay-01"},
		LatestHeight: height,
	}
}

// TestWatcher_StallDetection counts unchanged-height polls.
func TestWatcher_StallDetection(t *testing.T) {
	t.Parallel()

	w := &watcher{
		client:     &fakeProber{statuses: []*domain.Status{statusAt(100)}, peers: 5},
		stallPolls: 3,
	}

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.NoError(t, w.checkState(ctx))
	}

	// First poll sets the height; the next three leave it unchanged.
	require.Equal(t, int64(100), w.lastHeight)
	require.Equal(t, 3, w.unchangedPolls)

	// Advancing height resets the counter.
	w.client = &fakeProber{statuses: []*domain.Status{statusAt(101)}, peers: 5}
	require.NoError(t, w.checkState(ctx))
	require.Equal(t, int64(101), w.lastHeight)
	require.Zero(t, w.unchangedPolls)
}

// TestWatcher_ProbeOnce checks the readiness contract of one-shot probes.
func TestWatcher_ProbeOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	w := &watcher{client: &fakeProber{statuses: []*domain.Status{statusAt(100)}}}
	require.NoError(t, w.probeOnce(ctx))

	catching := statusAt(100)
	catching.CatchingUp = true
	w = &watcher{client: &fakeProber{statuses: []*domain.Status{catching}}}
	require.ErrorIs(t, w.probeOnce(ctx), ErrNodeNotReady)

	w = &watcher{client: &fakeProber{statusErr: errProbeFailed}}
	err := w.probeOnce(ctx)
	require.ErrorIs(t, err, ErrNodeNotReady)
	require.ErrorIs(t, err, errProbeFailed)
}

// TestRun_PollsAndReturnsOnCancel runs the monitor against a live fake node
// and cancels it.
func TestRun_PollsAndReturnsOnCancel(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"result":{
			"node_info":{"id":"aa","moniker":"relay-01","network":"testchain","version":"0.38.7"},
			"sync_info":{"latest_block_height":"100","latest_block_time":"2024-05-01T12:00:00Z","catching_up":false}}}`)
	})
	mux.HandleFunc("/net_info", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"result":{"n_peers":"7"}}`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfgPath := filepath.Join(t.TempDir(), "chainkeeper.yaml")
	require.NoError(t, config.Save(cfgPath, &config.Config{
		RPCEndpoint: server.URL,
		DaemonName:  "testd",
		DaemonHome:  t.TempDir(),
	}))

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- Run(runCtx, &Options{
			ConfigPath:   cfgPath,
			PollInterval: 20 * time.Millisecond,
		})
	}()

	// Let the monitor take a few polls, then cancel.
	time.Sleep(90 * time.Millisecond)
	cancel()

	require.NoError(t, <-done)
}

// TestRun_Once verifies the one-shot mode against the config-loaded endpoint.
func TestRun_Once(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"result":{
			"node_info":{"id":"aa","moniker":"relay-01","network":"testchain","version":"0.38.7"},
			"sync_info":{"latest_block_height":"100","latest_block_time":"2024-05-01T12:00:00Z","catching_up":true}}}`)
	}))
	t.Cleanup(server.Close)

	cfgPath := filepath.Join(t.TempDir(), "chainkeeper.yaml")
	require.NoError(t, config.Save(cfgPath, &config.Config{
		RPCEndpoint: server.URL,
		DaemonName:  "testd",
		DaemonHome:  t.TempDir(),
	}))

	err := Run(context.Background(), &Options{ConfigPath: cfgPath, Once: true})
	require.ErrorIs(t, err, ErrNodeNotReady)
}

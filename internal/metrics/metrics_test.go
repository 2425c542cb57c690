package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCollectorObserve verifies gauges show up on the /metrics handler.
func TestCollectorObserve(t *testing.T) {
	t.Parallel()

	collector := NewCollector()
	collector.Observe(21_430_551, true, 34)
	collector.ObserveError()

	server := httptest.NewServer(collector.Handler())
	t.Cleanup(server.Close)

	response, err := server.Client().Get(server.URL)
	require.NoError(t, err)

	defer func() {
		_ = response.Body.Close()
	}()

	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)

	page := string(body)
	require.Contains(t, page, "chainkeeper_node_latest_block_height 2.1430551e+07")
	require.Contains(t, page, "chainkeeper_node_catching_up 1")
	require.Contains(t, page, "chainkeeper_node_peers 34")
	require.Contains(t, page, "chainkeeper_probe_errors_total 1")

	// Unknown peers leave the gauge untouched.
	collector.Observe(21_430_552, false, -1)

	response, err = server.Client().Get(server.URL)
	require.NoError(t, err)

	defer func() {
		_ = response.Body.Close()
	}()

	body, err = io.ReadAll(response.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "chainkeeper_node_peers 34")
	require.Contains(t, string(body), "chainkeeper_node_catching_up 0")
}

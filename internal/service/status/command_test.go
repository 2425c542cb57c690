package status

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/chainkeeper/internal/config"
)

// TestRun_PrintsSummary drives a one-shot probe against a fake node.
func TestRun_PrintsSummary(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"result":{
			"node_info":{"id":"3b6a27bc","moniker":"relay-01","network":"testchain","version":"0.38.7"},
			"sync_info":{"latest_block_height":"21430551","latest_block_time":"2024-05-01T12:34:56Z","catching_up":false}}}`)
	})
	mux.HandleFunc("/abci_info", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"result":{"response":{"version":"v17.2.0","last_block_height":"21430551"}}}`)
	})
	mux.HandleFunc("/net_info", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"result":{"n_peers":"34"}}`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfgPath := filepath.Join(t.TempDir(), "chainkeeper.yaml")
	require.NoError(t, config.Save(cfgPath, &config.Config{
		RPCEndpoint: server.URL,
		DaemonName:  "testd",
		DaemonHome:  t.TempDir(),
	}))

	var output bytes.Buffer

	err := Run(context.Background(), &Options{
		ConfigPath: cfgPath,
		Output:     &output,
	})
	require.NoError(t, err)

	summary := output.String()
	require.Contains(t, summary, "moniker:       relay-01")
	require.Contains(t, summary, "node id:       3b6a27bc")
	require.Contains(t, summary, "network:       testchain")
	require.Contains(t, summary, "app version:   v17.2.0")
	require.Contains(t, summary, "height:        21430551")
	require.Contains(t, summary, "sync:          synced")
	require.Contains(t, summary, "peers:         34")
}

// TestRun_NodeDown surfaces a probe error.
func TestRun_NodeDown(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "chainkeeper.yaml")
	require.NoError(t, config.Save(cfgPath, &config.Config{
		RPCEndpoint: "http://127.0.0.1:1",
		DaemonName:  "testd",
		DaemonHome:  t.TempDir(),
	}))

	var output bytes.Buffer

	err := Run(context.Background(), &Options{ConfigPath: cfgPath, Output: &output})
	require.Error(t, err)
}

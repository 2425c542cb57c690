package rpc

import (
	"encoding/json"
	"time"
)

// rpcEnvelope is the outer JSON-RPC response wrapper used by the node.
type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
}

// statusResult mirrors the fields of /status that chainkeeper consumes.
type statusResult struct {
	NodeInfo struct {
		ID      string `json:"id"`
		Moniker string `json:"moniker"`
		Network string `json:"network"`
		Version string `json:"version"`
	} `json:"node_info"`
	SyncInfo struct {
		// Heights come over the wire as decimal strings.
		LatestBlockHeight string    `json:"latest_block_height"`
		LatestBlockTime   time.Time `json:"latest_block_time"`
		CatchingUp        bool      `json:"catching_up"`
	} `json:"sync_info"`
}

// abciInfoResult mirrors the fields of /abci_info that chainkeeper consumes.
type abciInfoResult struct {
	Response struct {
		Version         string `json:"version"`
		LastBlockHeight string `json:"last_block_height"`
	} `json:"response"`
}

// netInfoResult mirrors the fields of /net_info that chainkeeper consumes.
type netInfoResult struct {
	NPeers string `json:"n_peers"`
}

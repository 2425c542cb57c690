// Package rpc is a small client for the node's JSON-over-HTTP RPC.
//
// It covers only the probes chainkeeper needs: /status for sync state and
// node identity, /abci_info for the application version, and /net_info for
// the peer count. Responses are decoded into the domain node types.
package rpc

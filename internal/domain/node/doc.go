// Package node holds the domain model for a monitored full node:
// its identity as reported over RPC and its point-in-time sync status.
package node

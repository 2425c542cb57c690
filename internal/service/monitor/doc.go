// Package monitor polls the node RPC on a fixed interval and reports sync
// progress: height, catching-up state and peer count. It warns when the
// height stops advancing and can export the same observations as
// prometheus metrics.
package monitor

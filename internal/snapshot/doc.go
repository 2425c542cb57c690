// Package snapshot bootstraps a node's data directory from hosted chain
// snapshots. It lists a directory index, selects the newest *.tar.lz4
// archive, and stream-extracts it over the data directory while preserving
// the validator's consensus-state file.
package snapshot

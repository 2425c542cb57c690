// Package provision installs a full node on the host from scratch: the
// supervisor directory layout, the genesis node binary for the host
// architecture, an initialized node configuration with the operator's
// moniker, an optional snapshot bootstrap, and a systemd unit wiring the
// supervisor's environment.
package provision

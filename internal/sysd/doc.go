// Package sysd renders and installs the systemd unit supervising the node
// and wraps the systemctl calls chainkeeper issues against it.
//
// The unit's Environment lines carry the DAEMON_* variables the process
// supervisor reads to decide its restart behavior around upgrades.
package sysd

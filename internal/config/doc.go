// Package config defines host and chain settings used by the chainkeeper
// commands and provides helpers to load, validate and save them in YAML format.
//
// The Config type holds the node RPC endpoint, daemon identity, release and
// snapshot URL conventions, and supervisor restart toggles.
package config

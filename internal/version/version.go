package version

import "fmt"

// Build metadata, stamped with -ldflags at release time. Local builds carry
// the defaults.
var (
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

// String renders the one-line form the version subcommand prints.
func String() string {
	return fmt.Sprintf("chainkeeper %s (commit %s, built %s)", Version, Commit, BuildTime)
}

// UserAgent identifies chainkeeper in outbound HTTP requests, so node and
// snapshot host logs show which tool build hit them.
func UserAgent() string {
	return "chainkeeper/" + Version
}

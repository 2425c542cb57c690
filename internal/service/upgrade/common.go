package upgrade

import (
	"errors"
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultBlocksAhead is how far past the current height an upgrade is
	// scheduled when the operator does not say otherwise.
	DefaultBlocksAhead = 100

	// MarkerFilename marks that an upgrade run is in progress to avoid
	// scheduling the same upgrade twice concurrently.
	MarkerFilename = "chainkeeper-upgrade-marker.bin"

	// markerLifetime is the period after which a stale marker is ignored.
	markerLifetime = 30 * time.Minute
)

var (
	// errTargetVersionRequired is returned when --target-version is missing.
	errTargetVersionRequired = errors.New("target version must be provided")
	// errNegativeBlocksAhead is returned for a negative --blocks-ahead value.
	errNegativeBlocksAhead = errors.New("blocks ahead must be a non-negative integer")
	// errDaemonRequired is returned when neither flags nor config name the daemon.
	errDaemonRequired = errors.New("daemon name and home must be provided")
	// errCatchingUp is returned when the node has not reached the chain tip yet.
	errCatchingUp = errors.New("node is still catching up")
	// errAlreadyRunning is returned when another upgrade run holds the marker.
	errAlreadyRunning = errors.New("an upgrade run is already in progress")
	// errNotAnUpgrade is returned when the target does not exceed the running version.
	errNotAnUpgrade = errors.New("target version is not newer than the running version")
)

// ScheduledHeight computes the upgrade height from the node's latest height
// and the configured offset.
func ScheduledHeight(latestHeight, blocksAhead int64) int64 {
	return latestHeight + blocksAhead
}

// markerPath returns the location of the concurrent-run marker.
func markerPath() string {
	return filepath.Join(os.TempDir(), MarkerFilename)
}

// isRunningNow checks presence of a fresh marker file.
func isRunningNow() bool {
	fileInfo, err := os.Stat(markerPath())
	if err != nil {
		return false
	}

	if time.Since(fileInfo.ModTime()) > markerLifetime {
		_ = os.Remove(markerPath())
		return false
	}

	return true
}

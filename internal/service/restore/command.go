package restore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"

	"github.com/oshokin/chainkeeper/internal/config"
	"github.com/oshokin/chainkeeper/internal/logger"
	"github.com/oshokin/chainkeeper/internal/snapshot"
	"github.com/oshokin/chainkeeper/internal/sysd"
)

// Options are inputs accepted by the snapshot-restore entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// SnapshotURL restores a specific archive instead of the index's latest.
	SnapshotURL string
	// Keep lists extra files (relative to the data dir) preserved across the
	// restore, in addition to the validator state file.
	Keep []string
	// SkipService leaves the systemd unit alone around the restore.
	SkipService bool
}

// ValidatorStateFilename is the consensus-state file a validator must never
// lose; it is preserved across every restore.
const ValidatorStateFilename = "priv_validator_state.json"

// errNoSnapshotSource is returned when neither a snapshot URL nor an index is configured.
var errNoSnapshotSource = errors.New("no snapshot URL or snapshot index configured")

// Run replaces the node's data directory with the latest hosted snapshot,
// preserving the validator state file. It is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "restore")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx = logger.WithKV(ctx, "daemon", cfg.DaemonName)

	archiveURL, err := resolveArchiveURL(ctx, cfg, opts)
	if err != nil {
		return err
	}

	dataDir := filepath.Join(cfg.DaemonHome, "data")
	keep := append([]string{ValidatorStateFilename}, opts.Keep...)

	if !opts.SkipService {
		// A stopped node must not write to the data dir mid-restore. A unit
		// that was never installed is fine to ignore here.
		if stopErr := sysd.Stop(ctx, cfg.DaemonName); stopErr != nil {
			logger.WarnKV(ctx, "Could not stop service before restore", "error", stopErr)
		}
	}

	logger.InfoKV(ctx, "Restoring data directory from snapshot",
		"url", archiveURL, "data_dir", dataDir)

	if err = snapshot.Restore(ctx, archiveURL, dataDir, keep); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}

	if !opts.SkipService {
		if startErr := sysd.Start(ctx, cfg.DaemonName); startErr != nil {
			logger.WarnKV(ctx, "Could not start service after restore", "error", startErr)
		}
	}

	logger.Info(ctx, "Snapshot restore completed")

	return nil
}

// resolveArchiveURL picks the archive to restore: an explicit URL wins,
// otherwise the newest archive listed by the configured index.
func resolveArchiveURL(ctx context.Context, cfg *config.Config, opts *Options) (string, error) {
	if opts.SnapshotURL != "" {
		return opts.SnapshotURL, nil
	}

	if cfg.SnapshotIndexURL == "" {
		return "", errNoSnapshotSource
	}

	names, err := snapshot.ListIndex(ctx, cfg.SnapshotIndexURL)
	if err != nil {
		return "", fmt.Errorf("list snapshot index: %w", err)
	}

	latest, err := snapshot.Latest(names)
	if err != nil {
		return "", err
	}

	logger.InfoKV(ctx, "Selected latest snapshot", "archive", latest)

	indexURL, err := url.Parse(cfg.SnapshotIndexURL)
	if err != nil {
		return "", err
	}

	indexURL.Path = path.Join(indexURL.Path, latest)

	return indexURL.String(), nil
}

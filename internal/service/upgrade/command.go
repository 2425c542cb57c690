package upgrade

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	goversion "github.com/hashicorp/go-version"

	"github.com/oshokin/chainkeeper/internal/config"
	"github.com/oshokin/chainkeeper/internal/logger"
	"github.com/oshokin/chainkeeper/internal/release"
	"github.com/oshokin/chainkeeper/internal/rpc"
	"github.com/oshokin/chainkeeper/internal/supervisor"
)

// Options are inputs accepted by the upgrade entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// TargetVersion is the release to upgrade to. Required.
	TargetVersion string
	// BlocksAhead is how many blocks past the current height the upgrade
	// activates. Must be non-negative.
	BlocksAhead int64
	// UpgradeName is the on-chain upgrade name; defaults to the target version.
	UpgradeName string
	// DaemonName and DaemonHome override the configured values.
	DaemonName string
	DaemonHome string
	// Force schedules even when the node is still catching up.
	Force bool
}

// runner holds the state for a single upgrade-scheduling execution.
// It is intentionally unexported; call Run(ctx, Options) from callers.
type runner struct {
	cfg                *config.Config
	opts               *Options
	client             *rpc.Client
	layout             *supervisor.Layout
	temporaryDirectory string
}

// Run validates the options, computes the scheduled height from the node's
// current height, downloads the target release, and registers it with the
// process supervisor. It is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "upgrade")

	up, err := newRunner(ctx, opts)
	if err != nil {
		return err
	}

	defer up.cleanup(ctx)

	if err = up.run(ctx); err != nil {
		logger.ErrorKV(ctx, "Upgrade scheduling failed", "error", err)
		return err
	}

	return nil
}

// newRunner loads configuration, applies flag overrides, validates inputs
// and claims the concurrent-run marker.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		// Running with flags alone, without a settings file, is supported.
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load configuration: %w", err)
		}

		cfg = &config.Config{DaemonName: opts.DaemonName, DaemonHome: opts.DaemonHome}
		if err = config.Validate(cfg); err != nil {
			return nil, err
		}
	}

	if opts.DaemonName != "" {
		cfg.DaemonName = opts.DaemonName
	}

	if opts.DaemonHome != "" {
		cfg.DaemonHome = opts.DaemonHome
	}

	if cfg.DaemonName == "" || cfg.DaemonHome == "" {
		return nil, errDaemonRequired
	}

	if isRunningNow() {
		return nil, errAlreadyRunning
	}

	client, err := rpc.NewClient(cfg.RPCEndpoint, rpc.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return nil, err
	}

	upgradeName := opts.UpgradeName
	if upgradeName == "" {
		upgradeName = opts.TargetVersion
	}

	opts.UpgradeName = upgradeName

	// The marker is claimed last: every error past this point flows through
	// cleanup, so the claim cannot outlive a failed run.
	marker, err := os.Create(markerPath())
	if err != nil {
		return nil, err
	}

	if err = marker.Close(); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Scheduling upgrade",
		"target_version", opts.TargetVersion,
		"blocks_ahead", opts.BlocksAhead,
		"daemon", cfg.DaemonName,
		"home", cfg.DaemonHome)

	return &runner{
		cfg:    cfg,
		opts:   opts,
		client: client,
		layout: &supervisor.Layout{
			DaemonHome:     cfg.DaemonHome,
			SupervisorName: cfg.SupervisorName,
			DaemonName:     cfg.DaemonName,
		},
	}, nil
}

// validateOptions rejects missing or malformed inputs before any work happens.
func validateOptions(opts *Options) error {
	if opts.TargetVersion == "" {
		return errTargetVersionRequired
	}

	if _, err := goversion.NewVersion(opts.TargetVersion); err != nil {
		return fmt.Errorf("invalid target version %q: %w", opts.TargetVersion, err)
	}

	if opts.BlocksAhead < 0 {
		return fmt.Errorf("%d: %w", opts.BlocksAhead, errNegativeBlocksAhead)
	}

	return nil
}

// run performs the scheduling workflow:
// 1) Probe the node for its current height.
// 2) Compute the scheduled height.
// 3) Download and verify the target release.
// 4) Register the binary with the supervisor at the scheduled height.
func (u *runner) run(ctx context.Context) error {
	status, err := u.client.Status(ctx)
	if err != nil {
		return fmt.Errorf("probe node: %w", err)
	}

	if status.CatchingUp && !u.opts.Force {
		return fmt.Errorf("height %d: %w", status.LatestHeight, errCatchingUp)
	}

	// Downgrades and re-installs of the running version need --force. The
	// application version is best-effort: some nodes report build hashes
	// here, and an unparseable version must not block the schedule.
	if appVersion, versionErr := u.client.AppVersion(ctx); versionErr == nil && appVersion != "" {
		needed, compareErr := release.NeedsUpgrade(appVersion, u.opts.TargetVersion)

		switch {
		case compareErr != nil:
			logger.WarnKV(ctx, "Could not compare versions",
				"running", appVersion, "target", u.opts.TargetVersion, "error", compareErr)
		case !needed && !u.opts.Force:
			return fmt.Errorf("running %s, target %s: %w",
				appVersion, u.opts.TargetVersion, errNotAnUpgrade)
		}
	}

	scheduledHeight := ScheduledHeight(status.LatestHeight, u.opts.BlocksAhead)

	logger.InfoKV(ctx, "Computed upgrade height",
		"latest_height", status.LatestHeight,
		"scheduled_height", scheduledHeight)

	binaryPath, err := u.downloadRelease(ctx)
	if err != nil {
		return err
	}

	if err = u.layout.AddUpgrade(ctx, u.opts.UpgradeName, binaryPath, scheduledHeight); err != nil {
		return fmt.Errorf("register upgrade: %w", err)
	}

	logger.InfoKV(ctx, "Upgrade scheduled",
		"upgrade", u.opts.UpgradeName,
		"height", scheduledHeight)
	logger.Infof(ctx, "Watch the node logs around height %d; the supervisor restarts %s automatically",
		scheduledHeight, u.cfg.DaemonName)

	return nil
}

// downloadRelease fetches the target release tarball into a temporary
// directory, verifies it when sums are published, and extracts the binary.
func (u *runner) downloadRelease(ctx context.Context) (string, error) {
	temporaryDirectory, err := os.MkdirTemp("", "chainkeeper-upgrade-")
	if err != nil {
		return "", err
	}

	u.temporaryDirectory = temporaryDirectory

	archiveURL, err := release.URL(
		u.cfg.ReleaseURLTemplate, u.cfg.DaemonName, u.opts.TargetVersion, runtime.GOARCH)
	if err != nil {
		return "", err
	}

	logger.InfoKV(ctx, "Downloading release", "url", archiveURL)

	archivePath, err := release.Fetch(ctx, archiveURL, temporaryDirectory)
	if err != nil {
		return "", fmt.Errorf("download release: %w", err)
	}

	sums, err := release.FetchSums(ctx, archiveURL, temporaryDirectory)
	if err != nil {
		return "", fmt.Errorf("fetch sums: %w", err)
	}

	checksum, err := release.ChecksumFor(sums, filepath.Base(archivePath))
	if err != nil {
		return "", err
	}

	if err = release.VerifyFile(archivePath, checksum); err != nil {
		return "", err
	}

	binaryPath, err := release.ExtractBinary(archivePath, u.cfg.DaemonName, temporaryDirectory)
	if err != nil {
		return "", fmt.Errorf("extract binary: %w", err)
	}

	return binaryPath, nil
}

// cleanup removes temporary artifacts and the running marker.
// It runs on both success and failure paths.
func (u *runner) cleanup(ctx context.Context) {
	if _, err := os.Stat(markerPath()); err == nil {
		_ = os.Remove(markerPath())
	}

	if u.temporaryDirectory != "" {
		if _, err := os.Stat(u.temporaryDirectory); err == nil {
			_ = os.RemoveAll(u.temporaryDirectory)
		}
	}

	logger.Debug(ctx, "Upgrade run finished, temporary files removed")
}

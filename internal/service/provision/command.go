package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"

	"github.com/oshokin/chainkeeper/internal/config"
	"github.com/oshokin/chainkeeper/internal/logger"
	"github.com/oshokin/chainkeeper/internal/release"
	"github.com/oshokin/chainkeeper/internal/service/restore"
	"github.com/oshokin/chainkeeper/internal/supervisor"
	"github.com/oshokin/chainkeeper/internal/sysd"
)

// Options are inputs accepted by the provision entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Version is the node release to install. Required.
	Version string
	// User is the system user the service unit runs as.
	User string
	// UnitDir overrides the systemd unit directory (used by tests).
	UnitDir string
	// SkipSnapshot provisions without bootstrapping from a snapshot.
	SkipSnapshot bool
	// SkipService provisions without installing the systemd unit.
	SkipService bool
}

var (
	// errVersionRequired is returned when no release version was given.
	errVersionRequired = errors.New("node version must be provided")
	// errNoReleaseTemplate is returned when the settings lack a release URL convention.
	errNoReleaseTemplate = errors.New("release URL template must be configured")

	// monikerLinePattern locates the moniker assignment in config.toml.
	monikerLinePattern = regexp.MustCompile(`(?m)^moniker\s*=\s*".*"$`)
)

// runner holds the state for a single provisioning execution.
type runner struct {
	cfg                *config.Config
	opts               *Options
	layout             *supervisor.Layout
	temporaryDirectory string
}

// Run provisions a full node on this host: supervisor layout, node binary,
// initialized configuration, optional snapshot bootstrap, and a systemd
// unit. It is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "provision")

	p, err := newRunner(opts)
	if err != nil {
		return err
	}

	defer p.cleanup(ctx)

	if err = p.run(ctx); err != nil {
		logger.ErrorKV(ctx, "Provisioning failed", "error", err)
		return err
	}

	logger.Info(ctx, "Provisioning completed")

	return nil
}

// newRunner loads configuration and validates the inputs.
func newRunner(opts *Options) (*runner, error) {
	if opts.Version == "" {
		return nil, errVersionRequired
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	if cfg.ReleaseURLTemplate == "" {
		return nil, errNoReleaseTemplate
	}

	return &runner{
		cfg:  cfg,
		opts: opts,
		layout: &supervisor.Layout{
			DaemonHome:     cfg.DaemonHome,
			SupervisorName: cfg.SupervisorName,
			DaemonName:     cfg.DaemonName,
		},
	}, nil
}

// run executes the provisioning workflow:
// 1) Create the supervisor directory layout.
// 2) Download and install the genesis node binary.
// 3) Initialize the node configuration and patch the moniker.
// 4) Bootstrap the data directory from the latest snapshot.
// 5) Install and start the systemd unit.
func (p *runner) run(ctx context.Context) error {
	logger.InfoKV(ctx, "Creating supervisor layout", "home", p.cfg.DaemonHome)

	if err := p.layout.EnsureGenesisDirs(); err != nil {
		return err
	}

	binaryPath, err := p.downloadRelease(ctx)
	if err != nil {
		return err
	}

	if err = release.Apply(ctx, binaryPath, p.layout.GenesisBinPath(), nil); err != nil {
		return err
	}

	if err = p.initNodeConfig(ctx); err != nil {
		return err
	}

	if !p.opts.SkipSnapshot && p.cfg.SnapshotIndexURL != "" {
		logger.Info(ctx, "Bootstrapping data directory from the latest snapshot")

		restoreOptions := &restore.Options{
			ConfigPath: p.opts.ConfigPath,
			// The unit is installed afterwards; there is nothing to stop yet.
			SkipService: true,
		}
		if err = restore.Run(ctx, restoreOptions); err != nil {
			return err
		}
	}

	if p.opts.SkipService {
		return nil
	}

	return p.installService(ctx)
}

// downloadRelease fetches and extracts the node binary for this host.
func (p *runner) downloadRelease(ctx context.Context) (string, error) {
	temporaryDirectory, err := os.MkdirTemp("", "chainkeeper-provision-")
	if err != nil {
		return "", err
	}

	p.temporaryDirectory = temporaryDirectory

	archiveURL, err := release.URL(
		p.cfg.ReleaseURLTemplate, p.cfg.DaemonName, p.opts.Version, runtime.GOARCH)
	if err != nil {
		return "", err
	}

	logger.InfoKV(ctx, "Downloading node release", "url", archiveURL)

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

	return release.ExtractBinary(archivePath, p.cfg.DaemonName, temporaryDirectory)
}

// initNodeConfig runs the node's init command when no configuration exists
// yet, then patches the moniker line in config.toml.
func (p *runner) initNodeConfig(ctx context.Context) error {
	configPath := filepath.Join(p.cfg.DaemonHome, "config", "config.toml")

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		logger.InfoKV(ctx, "Initializing node configuration", "chain_id", p.cfg.ChainID)

		args := []string{"init", p.cfg.Moniker, "--home", p.cfg.DaemonHome}
		if p.cfg.ChainID != "" {
			args = append(args, "--chain-id", p.cfg.ChainID)
		}

		//nolint:gosec // The binary path is the one this run just installed.
		cmd := exec.CommandContext(ctx, p.layout.GenesisBinPath(), args...)
		if output, runErr := cmd.CombinedOutput(); runErr != nil {
			return fmt.Errorf("init node: %s: %w", string(output), runErr)
		}
	} else if err != nil {
		return err
	}

	if p.cfg.Moniker == "" {
		return nil
	}

	return PatchMoniker(configPath, p.cfg.Moniker)
}

// PatchMoniker rewrites the moniker assignment in an existing config.toml.
// The file is owned by the node binary, so only the one line is substituted.
func PatchMoniker(configPath, moniker string) error {
	contents, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return fmt.Errorf("read node config: %w", err)
	}

	patched := monikerLinePattern.ReplaceAll(contents, fmt.Appendf(nil, "moniker = %q", moniker))

	info, err := os.Stat(configPath)
	if err != nil {
		return err
	}

	if err = os.WriteFile(configPath, patched, info.Mode()); err != nil {
		return fmt.Errorf("write node config: %w", err)
	}

	return nil
}

// installService renders and installs the supervised unit, then starts it.
func (p *runner) installService(ctx context.Context) error {
	supervisorPath, err := exec.LookPath(p.cfg.SupervisorName)
	if err != nil {
		// Fall back to the conventional install location when the
		// supervisor is not on chainkeeper's own PATH.
		supervisorPath = filepath.Join("/usr/local/bin", p.cfg.SupervisorName)
	}

	unit := &sysd.Unit{
		Description:           fmt.Sprintf("%s full node supervised by %s", p.cfg.DaemonName, p.cfg.SupervisorName),
		User:                  p.opts.User,
		ExecStart:             fmt.Sprintf("%s run start --home %s", supervisorPath, p.cfg.DaemonHome),
		DaemonName:            p.cfg.DaemonName,
		DaemonHome:            p.cfg.DaemonHome,
		RestartAfterUpgrade:   p.cfg.RestartAfterUpgrade,
		AllowDownloadBinaries: p.cfg.AllowDownloadBinaries,
		SkipBackup:            p.cfg.SkipBackup,
	}

	rendered, err := unit.Render()
	if err != nil {
		return err
	}

	unitPath, err := sysd.WriteUnitFile(p.opts.UnitDir, p.cfg.DaemonName, rendered)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Installed service unit", "path", unitPath)

	if err = sysd.DaemonReload(ctx); err != nil {
		return err
	}

	if err = sysd.Enable(ctx, p.cfg.DaemonName); err != nil {
		return err
	}

	// Re-provisioning over a live node restarts it instead of failing on start.
	if sysd.IsActive(ctx, p.cfg.DaemonName) {
		return sysd.Restart(ctx, p.cfg.DaemonName)
	}

	return sysd.Start(ctx, p.cfg.DaemonName)
}

// cleanup removes the temporary download directory.
// It runs on both success and failure paths.
func (p *runner) cleanup(ctx context.Context) {
	if p.temporaryDirectory != "" {
		if _, err := os.Stat(p.temporaryDirectory); err == nil {
			_ = os.RemoveAll(p.temporaryDirectory)
		}
	}

	logger.Debug(ctx, "Provision run finished, temporary files removed")
}

package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/oshokin/chainkeeper/internal/logger"
)

const (
	// dirMode is used for supervisor directories.
	dirMode os.FileMode = 0o755
	// infoFilePermissions is the mode of the written upgrade-info file.
	infoFilePermissions os.FileMode = 0o644

	// UpgradeInfoFilename is the on-disk contract telling the supervisor
	// which upgrade applies at which height.
	UpgradeInfoFilename = "upgrade-info.json"
)

// Layout resolves the supervisor's directory convention under a daemon home.
type Layout struct {
	// DaemonHome is the node home directory.
	DaemonHome string
	// SupervisorName is the supervisor's directory name under the home.
	SupervisorName string
	// DaemonName is the node binary name placed into bin directories.
	DaemonName string
}

// Root returns the supervisor directory under the daemon home.
func (l *Layout) Root() string {
	return filepath.Join(l.DaemonHome, l.SupervisorName)
}

// GenesisBinPath is where the initial node binary lives.
func (l *Layout) GenesisBinPath() string {
	return filepath.Join(l.Root(), "genesis", "bin", l.DaemonName)
}

// UpgradeBinPath is where the binary for a named upgrade lives.
func (l *Layout) UpgradeBinPath(upgradeName string) string {
	return filepath.Join(l.Root(), "upgrades", upgradeName, "bin", l.DaemonName)
}

// UpgradeInfoPath is where the scheduled-upgrade contract is written.
func (l *Layout) UpgradeInfoPath() string {
	return filepath.Join(l.DaemonHome, "data", UpgradeInfoFilename)
}

// EnsureGenesisDirs creates the directory skeleton for a fresh install.
func (l *Layout) EnsureGenesisDirs() error {
	for _, dir := range []string{
		filepath.Dir(l.GenesisBinPath()),
		filepath.Join(l.Root(), "upgrades"),
	} {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return fmt.Errorf("create supervisor directory: %w", err)
		}
	}

	return nil
}

// upgradeInfo is the supervisor's upgrade-info.json document.
type upgradeInfo struct {
	Name   string `json:"name"`
	Height int64  `json:"height"`
}

// WriteUpgradeInfo atomically writes upgrade-info.json scheduling the named
// upgrade at the given height. The supervisor watches this file and swaps
// binaries when the node reaches the height.
func (l *Layout) WriteUpgradeInfo(ctx context.Context, upgradeName string, height int64) error {
	infoPath := l.UpgradeInfoPath()
	if err := os.MkdirAll(filepath.Dir(infoPath), dirMode); err != nil {
		return err
	}

	contents, err := json.Marshal(upgradeInfo{Name: upgradeName, Height: height})
	if err != nil {
		return fmt.Errorf("encode upgrade info: %w", err)
	}

	temporaryPath := infoPath + ".tmp"
	if err = os.WriteFile(temporaryPath, contents, infoFilePermissions); err != nil {
		return fmt.Errorf("write upgrade info: %w", err)
	}

	if err = os.Rename(temporaryPath, infoPath); err != nil {
		return fmt.Errorf("publish upgrade info: %w", err)
	}

	logger.InfoKV(ctx, "Wrote upgrade info",
		"path", infoPath, "upgrade", upgradeName, "height", height)

	return nil
}

// AddUpgrade registers a staged binary with the supervisor.
//
// When the supervisor binary is on PATH and understands add-upgrade, it is
// invoked directly; otherwise the binary is placed into the upgrades
// directory and upgrade-info.json is written, which is the same on-disk
// contract the command would produce.
func (l *Layout) AddUpgrade(ctx context.Context, upgradeName, binaryPath string, height int64) error {
	if supervisorPath, err := exec.LookPath(l.SupervisorName); err == nil {
		cmd := exec.CommandContext(ctx, supervisorPath, //nolint:gosec // Supervisor path comes from the operator's config.
			"add-upgrade", upgradeName, binaryPath,
			"--upgrade-height", strconv.FormatInt(height, 10))
		cmd.Env = append(os.Environ(),
			"DAEMON_NAME="+l.DaemonName,
			"DAEMON_HOME="+l.DaemonHome)

		output, runErr := cmd.CombinedOutput()
		if runErr == nil {
			logger.InfoKV(ctx, "Registered upgrade with supervisor",
				"upgrade", upgradeName, "height", height)

			return nil
		}

		logger.WarnKV(ctx, "Supervisor add-upgrade failed, staging manually",
			"error", runErr, "output", string(output))
	}

	return l.stageUpgrade(ctx, upgradeName, binaryPath, height)
}

// stageUpgrade copies the binary into the upgrades directory and writes the
// upgrade-info contract directly.
func (l *Layout) stageUpgrade(ctx context.Context, upgradeName, binaryPath string, height int64) error {
	targetPath := l.UpgradeBinPath(upgradeName)
	if err := os.MkdirAll(filepath.Dir(targetPath), dirMode); err != nil {
		return err
	}

	contents, err := os.ReadFile(filepath.Clean(binaryPath))
	if err != nil {
		return err
	}

	if err = os.WriteFile(targetPath, contents, dirMode); err != nil {
		return fmt.Errorf("stage upgrade binary: %w", err)
	}

	logger.InfoKV(ctx, "Staged upgrade binary", "path", targetPath)

	return l.WriteUpgradeInfo(ctx, upgradeName, height)
}

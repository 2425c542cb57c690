package sysd

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/oshokin/chainkeeper/internal/logger"
)

// ErrUnsupportedOS indicates the host has no systemd to drive.
var ErrUnsupportedOS = errors.New("systemd is only available on linux")

// DaemonReload asks systemd to re-read unit files after installation.
func DaemonReload(ctx context.Context) error {
	return run(ctx, "daemon-reload")
}

// Enable marks the unit to start at boot.
func Enable(ctx context.Context, unit string) error {
	return run(ctx, "enable", unit)
}

// Start starts the unit now.
func Start(ctx context.Context, unit string) error {
	return run(ctx, "start", unit)
}

// Stop stops the unit now.
func Stop(ctx context.Context, unit string) error {
	return run(ctx, "stop", unit)
}

// Restart restarts the unit now.
func Restart(ctx context.Context, unit string) error {
	return run(ctx, "restart", unit)
}

// IsActive reports whether the unit is currently running.
// systemctl exits non-zero for inactive units, which is not an error here.
func IsActive(ctx context.Context, unit string) bool {
	err := run(ctx, "is-active", "--quiet", unit)

	return err == nil
}

// run invokes systemctl with the provided arguments.
func run(ctx context.Context, args ...string) error {
	if !strings.Contains(strings.ToLower(runtime.GOOS), "linux") {
		return fmt.Errorf("%s: %w", runtime.GOOS, ErrUnsupportedOS)
	}

	logger.DebugKV(ctx, "Running systemctl", "args", strings.Join(args, " "))

	output, err := exec.CommandContext(ctx, "systemctl", args...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(output))
		if trimmed != "" {
			return fmt.Errorf("systemctl %s: %s: %w", args[0], trimmed, err)
		}

		return fmt.Errorf("systemctl %s: %w", args[0], err)
	}

	return nil
}

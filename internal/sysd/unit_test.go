package sysd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestUnitRender checks the rendered service file carries the supervisor environment.
func TestUnitRender(t *testing.T) {
	t.Parallel()

	unit := &Unit{
		Description:         "Cosmos Hub full node (gaiad)",
		User:                "gaia",
		ExecStart:           "/usr/local/bin/cosmovisor run start --home /home/gaia/.gaiad",
		DaemonName:          "gaiad",
		DaemonHome:          "/home/gaia/.gaiad",
		RestartAfterUpgrade: true,
	}

	rendered, err := unit.Render()
	require.NoError(t, err)
	require.Contains(t, rendered, "Description=Cosmos Hub full node (gaiad)")
	require.Contains(t, rendered, "User=gaia")
	require.Contains(t, rendered, "ExecStart=/usr/local/bin/cosmovisor run start --home /home/gaia/.gaiad")
	require.Contains(t, rendered, `Environment="DAEMON_NAME=gaiad"`)
	require.Contains(t, rendered, `Environment="DAEMON_HOME=/home/gaia/.gaiad"`)
	require.Contains(t, rendered, `Environment="DAEMON_RESTART_AFTER_UPGRADE=true"`)
	require.Contains(t, rendered, `Environment="DAEMON_ALLOW_DOWNLOAD_BINARIES=false"`)
	require.Contains(t, rendered, `Environment="UNSAFE_SKIP_BACKUP=false"`)
	require.Contains(t, rendered, "Restart=always")

	// Omitted user drops the User line entirely.
	unit.User = ""
	rendered, err = unit.Render()
	require.NoError(t, err)
	require.NotContains(t, rendered, "User=")
}

// TestUnitRender_Incomplete rejects units missing required fields.
func TestUnitRender_Incomplete(t *testing.T) {
	t.Parallel()

	unit := &Unit{Description: "incomplete"}

	_, err := unit.Render()
	require.ErrorIs(t, err, errUnitIncomplete)
}

// TestWriteUnitFile writes the rendered unit into a directory override.
func TestWriteUnitFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	path, err := WriteUnitFile(dir, "gaiad", "[Unit]\nDescription=test\n")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "gaiad.service"), path)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "Description=test")
}

package sysd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// Unit describes a supervised node service rendered into a systemd unit file.
type Unit struct {
	// Description is the human-readable unit description.
	Description string
	// User is the system user the service runs as.
	User string
	// ExecStart is the full command line starting the supervisor.
	ExecStart string
	// DaemonName and DaemonHome populate the supervisor environment.
	DaemonName string
	DaemonHome string
	// RestartAfterUpgrade, AllowDownloadBinaries and SkipBackup control the
	// supervisor's restart behavior via its environment variables.
	RestartAfterUpgrade   bool
	AllowDownloadBinaries bool
	SkipBackup            bool
}

const (
	// DefaultUnitDirectory is where unit files are installed on the host.
	DefaultUnitDirectory = "/etc/systemd/system"

	// unitFilePermissions is the mode for installed unit files.
	unitFilePermissions = 0o644
)

// errUnitIncomplete is returned when required unit fields are missing.
var errUnitIncomplete = errors.New("unit requires description, exec start, daemon name and home")

// unitTemplate is the fixed shape of the rendered service file.
var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description={{.Description}}
After=network-online.target

[Service]
{{- if .User}}
User={{.User}}
{{- end}}
ExecStart={{.ExecStart}}
Restart=always
RestartSec=3
LimitNOFILE=65535
Environment="DAEMON_NAME={{.DaemonName}}"
Environment="DAEMON_HOME={{.DaemonHome}}"
Environment="DAEMON_RESTART_AFTER_UPGRADE={{.RestartAfterUpgrade}}"
Environment="DAEMON_ALLOW_DOWNLOAD_BINARIES={{.AllowDownloadBinaries}}"
Environment="UNSAFE_SKIP_BACKUP={{.SkipBackup}}"

[Install]
WantedBy=multi-user.target
`))

// Render produces the unit file contents.
func (u *Unit) Render() (string, error) {
	if u.Description == "" || u.ExecStart == "" || u.DaemonName == "" || u.DaemonHome == "" {
		return "", errUnitIncomplete
	}

	var buffer bytes.Buffer
	if err := unitTemplate.Execute(&buffer, u); err != nil {
		return "", fmt.Errorf("render unit: %w", err)
	}

	return buffer.String(), nil
}

// WriteUnitFile writes the rendered unit into unitDir under <name>.service
// and returns the written path. An empty unitDir targets the host default.
func WriteUnitFile(unitDir, name, contents string) (string, error) {
	if unitDir == "" {
		unitDir = DefaultUnitDirectory
	}

	unitPath := filepath.Join(unitDir, name+".service")
	if err := os.WriteFile(unitPath, []byte(contents), unitFilePermissions); err != nil {
		return "", fmt.Errorf("write unit file: %w", err)
	}

	return unitPath, nil
}

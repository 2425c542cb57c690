package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds host and chain parameters shared by the chainkeeper commands.
type Config struct {
	// RPCEndpoint is the base URL of the node's RPC listener.
	RPCEndpoint string `yaml:"rpc_endpoint"`
	// DaemonName is the name of the node binary managed by the supervisor.
	DaemonName string `yaml:"daemon_name"`
	// DaemonHome is the node home directory. Defaults to $HOME/.<daemon_name>.
	DaemonHome string `yaml:"daemon_home"`
	// ChainID is the network identifier passed to the node on init.
	ChainID string `yaml:"chain_id"`
	// Moniker is the operator-visible node name written into config.toml.
	Moniker string `yaml:"moniker"`
	// ReleaseURLTemplate is the binary-release download convention. The
	// placeholders {daemon}, {version} and {arch} are expanded at download time.
	ReleaseURLTemplate string `yaml:"release_url_template"`
	// SnapshotIndexURL is the directory index listing *.tar.lz4 snapshots.
	SnapshotIndexURL string `yaml:"snapshot_index_url"`
	// SupervisorName is the process-supervisor binary (defaults to cosmovisor).
	SupervisorName string `yaml:"supervisor_name"`
	// RestartAfterUpgrade controls DAEMON_RESTART_AFTER_UPGRADE in the unit.
	RestartAfterUpgrade bool `yaml:"restart_after_upgrade"`
	// AllowDownloadBinaries controls DAEMON_ALLOW_DOWNLOAD_BINARIES in the unit.
	AllowDownloadBinaries bool `yaml:"allow_download_binaries"`
	// SkipBackup controls UNSAFE_SKIP_BACKUP in the unit.
	SkipBackup bool `yaml:"skip_backup"`
	// Timeout is the duration for HTTP and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// PollInterval is the interval between monitor probes.
	PollInterval time.Duration `yaml:"poll_interval"`
}

const (
	// DefaultConfigFilename is the default filename for chainkeeper settings.
	DefaultConfigFilename = "chainkeeper.yaml"

	// DefaultRPCEndpoint is the node RPC listener on the local host.
	DefaultRPCEndpoint = "http://127.0.0.1:26657"

	// DefaultSupervisorName is the process supervisor driven by provisioning and upgrades.
	DefaultSupervisorName = "cosmovisor"

	// DefaultTimeout is the default duration for HTTP and RPC calls.
	DefaultTimeout = 10 * time.Second

	// DefaultPollInterval is the default interval between monitor probes.
	DefaultPollInterval = 5 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errDaemonNameRequired is returned when the node binary name is missing.
	errDaemonNameRequired = errors.New("daemon name must be provided")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills in defaults for optional ones.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.DaemonName == "" {
		return errDaemonNameRequired
	}

	if cfg.RPCEndpoint == "" {
		cfg.RPCEndpoint = DefaultRPCEndpoint
	}

	if _, err := url.ParseRequestURI(cfg.RPCEndpoint); err != nil {
		return fmt.Errorf("invalid RPC endpoint: %w", err)
	}

	if cfg.DaemonHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}

		cfg.DaemonHome = filepath.Join(home, "."+cfg.DaemonName)
	}

	if cfg.SupervisorName == "" {
		cfg.SupervisorName = DefaultSupervisorName
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	if cfg.ReleaseURLTemplate != "" {
		if _, err := url.ParseRequestURI(cfg.ReleaseURLTemplate); err != nil {
			return fmt.Errorf("invalid release URL template: %w", err)
		}
	}

	if cfg.SnapshotIndexURL != "" {
		if _, err := url.ParseRequestURI(cfg.SnapshotIndexURL); err != nil {
			return fmt.Errorf("invalid snapshot index URL: %w", err)
		}
	}

	return nil
}

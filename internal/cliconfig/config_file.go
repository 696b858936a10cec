package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
// Lifecycle options live under [parameters].
type FileConfig struct {
	LogLevel    string         `toml:"log_level"`
	MetricsAddr string         `toml:"metrics_addr"`
	Virtual     *bool          `toml:"virtual"`
	Watch       *bool          `toml:"watch"`
	Parameters  FileParameters `toml:"parameters"`
}

// FileParameters is the [parameters] table.
type FileParameters struct {
	ContainerName      string `toml:"container_name"`
	MasterDCF          string `toml:"master_dcf"`
	MasterBin          string `toml:"master_bin"`
	CANInterface       string `toml:"can_interface"`
	NodeID             *int   `toml:"node_id"`
	NonTransmitTimeout string `toml:"non_transmit_timeout"`
	JoinTimeout        string `toml:"join_timeout"`
	Config             string `toml:"config"`
	ConfigFile         string `toml:"config_file"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.canmaster/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".canmaster", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setBool("virtual", fc.Virtual, &cfg.Virtual)
	s.setBool("watch", fc.Watch, &cfg.Watch)

	p := fc.Parameters
	s.setString("container-name", p.ContainerName, &cfg.ContainerName)
	s.setString("master-dcf", p.MasterDCF, &cfg.MasterDCF)
	s.setString("master-bin", p.MasterBin, &cfg.MasterBin)
	s.setString("can-interface", p.CANInterface, &cfg.CANInterface)
	s.setInt("node-id", p.NodeID, &cfg.NodeID)
	s.setString("driver-config", p.Config, &cfg.Blob)
	s.setString("driver-config", p.ConfigFile, &cfg.BlobFile)

	if err := s.setDuration("non-transmit-timeout", p.NonTransmitTimeout, &cfg.NonTransmitTimeout); err != nil {
		return err
	}
	if err := s.setDuration("join-timeout", p.JoinTimeout, &cfg.JoinTimeout); err != nil {
		return err
	}

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

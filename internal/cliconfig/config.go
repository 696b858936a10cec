package cliconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/bft-labs/canmaster/pkg/lifecycle"
	"github.com/bft-labs/canmaster/pkg/log"
)

// Config holds CLI configuration for canmaster.
type Config struct {
	LogLevel    string
	MetricsAddr string
	Virtual     bool
	Watch       bool

	ContainerName      string
	MasterDCF          string
	MasterBin          string
	CANInterface       string
	NodeID             int
	NonTransmitTimeout time.Duration
	JoinTimeout        time.Duration

	// Blob is the inline driver configuration. BlobFile, when set, is read
	// instead.
	Blob     string
	BlobFile string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		LogLevel:           string(log.LevelInfo),
		CANInterface:       lifecycle.DefaultCANInterface,
		NodeID:             lifecycle.DefaultNodeID,
		NonTransmitTimeout: lifecycle.DefaultNonTransmitTimeoutMs * time.Millisecond,
		JoinTimeout:        lifecycle.DefaultJoinTimeoutMs * time.Millisecond,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.CANInterface == "" {
		return fmt.Errorf("can-interface is required")
	}
	if c.NodeID < 0 || c.NodeID > 127 {
		return fmt.Errorf("node-id must be within 0..127, got %d", c.NodeID)
	}
	if c.NonTransmitTimeout < 0 {
		return fmt.Errorf("non-transmit-timeout must not be negative")
	}
	if c.JoinTimeout < 0 {
		return fmt.Errorf("join-timeout must not be negative")
	}
	// Options are passed on in whole milliseconds.
	if c.NonTransmitTimeout%time.Millisecond != 0 {
		return fmt.Errorf("non-transmit-timeout must be a whole number of milliseconds, got %v", c.NonTransmitTimeout)
	}
	if c.JoinTimeout%time.Millisecond != 0 {
		return fmt.Errorf("join-timeout must be a whole number of milliseconds, got %v", c.JoinTimeout)
	}
	switch log.Level(c.LogLevel) {
	case log.LevelDebug, log.LevelInfo, log.LevelWarn, log.LevelError:
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// Parameters returns the lifecycle options held by c, keyed by option name.
func (c *Config) Parameters() (map[string]any, error) {
	blob := c.Blob
	if c.BlobFile != "" {
		b, err := os.ReadFile(c.BlobFile)
		if err != nil {
			return nil, fmt.Errorf("read driver config: %w", err)
		}
		blob = string(b)
	}

	return map[string]any{
		lifecycle.ParamContainerName:      c.ContainerName,
		lifecycle.ParamMasterDCF:          c.MasterDCF,
		lifecycle.ParamMasterBin:          c.MasterBin,
		lifecycle.ParamCANInterface:       c.CANInterface,
		lifecycle.ParamNodeID:             c.NodeID,
		lifecycle.ParamNonTransmitTimeout: int(c.NonTransmitTimeout / time.Millisecond),
		lifecycle.ParamJoinTimeout:        int(c.JoinTimeout / time.Millisecond),
		lifecycle.ParamConfig:             blob,
	}, nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value from a pointer if not nil and flag not changed.
// Node id 0 is meaningful, so absence is expressed with nil.
func (s *configSetter) setInt(flag string, value *int, dst *int) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true
	five := 5
	zero := 0

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				LogLevel: "debug",
				Virtual:  &trueVal,
				Parameters: FileParameters{
					CANInterface:       "can1",
					NodeID:             &five,
					NonTransmitTimeout: "250ms",
					JoinTimeout:        "5s",
					ContainerName:      "device_container",
				},
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				LogLevel:           "debug",
				Virtual:            true,
				CANInterface:       "can1",
				NodeID:             5,
				NonTransmitTimeout: 250 * time.Millisecond,
				JoinTimeout:        5 * time.Second,
				ContainerName:      "device_container",
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				Parameters: FileParameters{
					CANInterface: "can1",
					NodeID:       &five,
				},
			},
			changed: map[string]bool{"can-interface": true},
			initial: Config{CANInterface: "vcan9"},
			expected: Config{
				CANInterface: "vcan9", // unchanged because flag was set
				NodeID:       5,
			},
		},
		{
			name: "explicit node id zero overrides",
			fileConfig: FileConfig{
				Parameters: FileParameters{NodeID: &zero},
			},
			changed:  map[string]bool{},
			initial:  Config{NodeID: 7},
			expected: Config{NodeID: 0},
		},
		{
			name: "absent node id keeps current",
			fileConfig: FileConfig{
				Parameters: FileParameters{CANInterface: "can1"},
			},
			changed:  map[string]bool{},
			initial:  Config{NodeID: 7},
			expected: Config{NodeID: 7, CANInterface: "can1"},
		},
		{
			name: "returns error for invalid duration",
			fileConfig: FileConfig{
				Parameters: FileParameters{NonTransmitTimeout: "soon"},
			},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyFileConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyFileConfig() unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("ApplyFileConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.toml")

	tomlContent := `
log_level = "debug"
metrics_addr = ":9100"
virtual = true

[parameters]
can_interface = "vcan1"
node_id = 5
non_transmit_timeout = "100ms"
config = """
heartbeat_ms: 500
"""
`

	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}

	if fc.LogLevel != "debug" {
		t.Errorf("LogLevel = %v, want debug", fc.LogLevel)
	}
	if fc.MetricsAddr != ":9100" {
		t.Errorf("MetricsAddr = %v, want :9100", fc.MetricsAddr)
	}
	if fc.Virtual == nil || !*fc.Virtual {
		t.Errorf("Virtual = %v, want true", fc.Virtual)
	}
	if fc.Parameters.CANInterface != "vcan1" {
		t.Errorf("CANInterface = %v, want vcan1", fc.Parameters.CANInterface)
	}
	if fc.Parameters.NodeID == nil || *fc.Parameters.NodeID != 5 {
		t.Errorf("NodeID = %v, want 5", fc.Parameters.NodeID)
	}
	if fc.Parameters.NonTransmitTimeout != "100ms" {
		t.Errorf("NonTransmitTimeout = %v, want 100ms", fc.Parameters.NonTransmitTimeout)
	}
	if fc.Parameters.Config != "heartbeat_ms: 500\n" {
		t.Errorf("Config = %q", fc.Parameters.Config)
	}
}

func TestLoadFileConfig_InvalidFile(t *testing.T) {
	_, err := LoadFileConfig("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("LoadFileConfig() expected error for nonexistent file")
	}
}

func TestLoadFileConfig_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.toml")

	invalidContent := `
log_level = "info"
this is not valid toml
`

	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	_, err := LoadFileConfig(configPath)
	if err == nil {
		t.Error("LoadFileConfig() expected error for invalid TOML")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	if path != "" && !strings.Contains(path, ".canmaster") {
		t.Errorf("DefaultConfigPath() = %v, should contain .canmaster", path)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "exists.txt")

	if err := os.WriteFile(existingFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if !FileExists(existingFile) {
		t.Error("FileExists() = false, want true for existing file")
	}

	if FileExists(filepath.Join(tmpDir, "nonexistent.txt")) {
		t.Error("FileExists() = true, want false for nonexistent file")
	}
}

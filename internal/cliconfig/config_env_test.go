package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"CANMASTER_CAN_INTERFACE":        "can0",
				"CANMASTER_NODE_ID":              "3",
				"CANMASTER_NON_TRANSMIT_TIMEOUT": "50ms",
				"CANMASTER_LOG_LEVEL":            "warn",
				"CANMASTER_VIRTUAL":              "1",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				CANInterface:       "can0",
				NodeID:             3,
				NonTransmitTimeout: 50 * time.Millisecond,
				LogLevel:           "warn",
				Virtual:            true,
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"CANMASTER_CAN_INTERFACE": "can0",
				"CANMASTER_NODE_ID":       "3",
			},
			changed:  map[string]bool{"node-id": true},
			initial:  Config{NodeID: 8},
			expected: Config{NodeID: 8, CANInterface: "can0"},
		},
		{
			name: "returns error for invalid duration",
			envVars: map[string]string{
				"CANMASTER_JOIN_TIMEOUT": "not-a-duration",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name: "returns error for invalid int",
			envVars: map[string]string{
				"CANMASTER_NODE_ID": "five",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyEnvConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEnvConfig() unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("ApplyEnvConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

// Integration test: precedence order (CLI > Env > File)
func TestConfigPrecedence(t *testing.T) {
	five := 5

	fileConf := FileConfig{
		LogLevel: "debug",
		Parameters: FileParameters{
			CANInterface: "can-file",
			NodeID:       &five,
			MasterDCF:    "/file/master.dcf",
		},
	}

	t.Setenv("CANMASTER_CAN_INTERFACE", "can-env")
	t.Setenv("CANMASTER_NODE_ID", "6")

	// Simulate CLI flags
	changed := map[string]bool{
		"can-interface": true,
	}

	cfg := DefaultConfig()
	cfg.CANInterface = "can-cli"

	if err := ApplyFileConfig(&cfg, fileConf, changed); err != nil {
		t.Fatalf("ApplyFileConfig failed: %v", err)
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig failed: %v", err)
	}

	if cfg.CANInterface != "can-cli" {
		t.Errorf("CANInterface = %v, want can-cli (CLI should win)", cfg.CANInterface)
	}
	if cfg.NodeID != 6 {
		t.Errorf("NodeID = %v, want 6 (env should override file)", cfg.NodeID)
	}
	if cfg.MasterDCF != "/file/master.dcf" {
		t.Errorf("MasterDCF = %v, want /file/master.dcf (file should set)", cfg.MasterDCF)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %v, want debug (file should set)", cfg.LogLevel)
	}
}

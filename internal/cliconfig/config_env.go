package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (CANMASTER_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("log-level", os.Getenv("CANMASTER_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("metrics-addr", os.Getenv("CANMASTER_METRICS_ADDR"), &cfg.MetricsAddr)
	s.setBoolFromString("virtual", os.Getenv("CANMASTER_VIRTUAL"), &cfg.Virtual)
	s.setBoolFromString("watch", os.Getenv("CANMASTER_WATCH"), &cfg.Watch)

	s.setString("container-name", os.Getenv("CANMASTER_CONTAINER_NAME"), &cfg.ContainerName)
	s.setString("master-dcf", os.Getenv("CANMASTER_MASTER_DCF"), &cfg.MasterDCF)
	s.setString("master-bin", os.Getenv("CANMASTER_MASTER_BIN"), &cfg.MasterBin)
	s.setString("can-interface", os.Getenv("CANMASTER_CAN_INTERFACE"), &cfg.CANInterface)
	s.setString("driver-config", os.Getenv("CANMASTER_DRIVER_CONFIG"), &cfg.BlobFile)

	if err := s.setIntFromString("node-id", os.Getenv("CANMASTER_NODE_ID"), &cfg.NodeID); err != nil {
		return err
	}
	if err := s.setDuration("non-transmit-timeout", os.Getenv("CANMASTER_NON_TRANSMIT_TIMEOUT"), &cfg.NonTransmitTimeout); err != nil {
		return err
	}
	if err := s.setDuration("join-timeout", os.Getenv("CANMASTER_JOIN_TIMEOUT"), &cfg.JoinTimeout); err != nil {
		return err
	}

	return nil
}

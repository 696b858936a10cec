package lifecycle

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/bft-labs/canmaster/pkg/params"
)

// Option names declared by Init.
const (
	ParamContainerName      = "container_name"
	ParamMasterDCF          = "master_dcf"
	ParamMasterBin          = "master_bin"
	ParamCANInterface       = "can_interface"
	ParamNodeID             = "node_id"
	ParamNonTransmitTimeout = "non_transmit_timeout"
	ParamConfig             = "config"
	ParamJoinTimeout        = "join_timeout"
)

// Defaults for the declared options.
const (
	DefaultCANInterface = "vcan0"
	DefaultNodeID       = 0
	// DefaultNonTransmitTimeoutMs is in milliseconds.
	DefaultNonTransmitTimeoutMs = 100
	// DefaultJoinTimeoutMs bounds Deactivate's wait for the spinner; 0 waits forever.
	DefaultJoinTimeoutMs = 30000
)

// Configuration is the snapshot read from the parameter store by Configure.
// It is immutable until Cleanup resets it.
type Configuration struct {
	ContainerName      string
	MasterDCF          string
	MasterBin          string
	CANInterface       string `validate:"required"`
	NodeID             uint8
	NonTransmitTimeout time.Duration `validate:"gte=0"`
	JoinTimeout        time.Duration `validate:"gte=0"`

	// Config is the structured configuration blob, parsed as YAML. Its Kind
	// is zero when the blob was empty.
	Config yaml.Node `validate:"-"`
}

// Decode decodes the configuration blob into v. An empty blob leaves v untouched.
func (c *Configuration) Decode(v any) error {
	if c.Config.Kind == 0 {
		return nil
	}
	return c.Config.Decode(v)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func declareOptions(s params.Store) {
	s.Declare(ParamContainerName, "")
	s.Declare(ParamMasterDCF, "")
	s.Declare(ParamMasterBin, "")
	s.Declare(ParamCANInterface, DefaultCANInterface)
	s.Declare(ParamNodeID, DefaultNodeID)
	s.Declare(ParamNonTransmitTimeout, DefaultNonTransmitTimeoutMs)
	s.Declare(ParamConfig, "")
	s.Declare(ParamJoinTimeout, DefaultJoinTimeoutMs)
}

// readConfiguration reads every declared option. Errors from the store and
// from the YAML parser are returned as-is, wrapped with the option name.
func readConfiguration(s params.Store) (Configuration, error) {
	var (
		cfg Configuration
		err error
	)

	if cfg.ContainerName, err = s.String(ParamContainerName); err != nil {
		return Configuration{}, err
	}
	if cfg.MasterDCF, err = s.String(ParamMasterDCF); err != nil {
		return Configuration{}, err
	}
	if cfg.MasterBin, err = s.String(ParamMasterBin); err != nil {
		return Configuration{}, err
	}
	if cfg.CANInterface, err = s.String(ParamCANInterface); err != nil {
		return Configuration{}, err
	}
	if cfg.NodeID, err = s.Uint8(ParamNodeID); err != nil {
		return Configuration{}, err
	}
	if cfg.NonTransmitTimeout, err = s.Millis(ParamNonTransmitTimeout); err != nil {
		return Configuration{}, err
	}
	if cfg.JoinTimeout, err = s.Millis(ParamJoinTimeout); err != nil {
		return Configuration{}, err
	}

	blob, err := s.String(ParamConfig)
	if err != nil {
		return Configuration{}, err
	}
	if err := yaml.Unmarshal([]byte(blob), &cfg.Config); err != nil {
		return Configuration{}, fmt.Errorf("%s: %w", ParamConfig, err)
	}

	if err := validate.Struct(cfg); err != nil {
		return Configuration{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Package basic is a small CANopen master driver built on the lifecycle
// controller. It reads its node list and heartbeat period from the
// configuration blob:
//
//	heartbeat_ms: 1000
//	nodes:
//	  - id: 2
//	  - id: 3
package basic

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bft-labs/canmaster/pkg/can"
	"github.com/bft-labs/canmaster/pkg/cbgroup"
	"github.com/bft-labs/canmaster/pkg/lifecycle"
	"github.com/bft-labs/canmaster/pkg/log"
)

// Options is the driver section of the configuration blob.
type Options struct {
	HeartbeatMs int    `yaml:"heartbeat_ms" validate:"gte=0"`
	Nodes       []Node `yaml:"nodes" validate:"dive"`
}

// Node is a slave the master expects on the bus.
type Node struct {
	ID uint8 `yaml:"id" validate:"gte=1,lte=127"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Driver implements lifecycle.Hooks.
type Driver struct {
	logger log.Logger

	clientGroup *cbgroup.Group
	timerGroup  *cbgroup.Group
	opts        Options
	master      *Master
}

// New creates a driver.
func New(logger log.Logger) *Driver {
	return &Driver{logger: log.OrNoop(logger)}
}

var _ lifecycle.Hooks = (*Driver)(nil)

func (d *Driver) Init(c lifecycle.Caller, ic *lifecycle.InitContext) error {
	d.clientGroup = ic.ClientGroup
	d.timerGroup = ic.TimerGroup
	d.logger.Debug("driver init", log.Stringer("caller", c))
	return nil
}

func (d *Driver) Configure(_ lifecycle.Caller, cfg *lifecycle.Configuration) error {
	var opts Options
	if err := cfg.Decode(&opts); err != nil {
		return fmt.Errorf("decode driver options: %w", err)
	}
	if err := validate.Struct(opts); err != nil {
		return fmt.Errorf("invalid driver options: %w", err)
	}
	d.opts = opts
	d.logger.Info("driver configured",
		log.Int("nodes", len(opts.Nodes)),
		log.Int("heartbeat_ms", opts.HeartbeatMs),
	)
	return nil
}

func (d *Driver) Activate(_ lifecycle.Caller, a *lifecycle.Activation) (lifecycle.Master, error) {
	if d.clientGroup == nil || d.timerGroup == nil {
		groups := cbgroup.NewRegistry()
		d.clientGroup = groups.MutuallyExclusive("client")
		d.timerGroup = groups.MutuallyExclusive("timer")
	}
	m := &Master{
		nodeID:    a.Config.NodeID,
		heartbeat: time.Duration(d.opts.HeartbeatMs) * time.Millisecond,
		expected:  make(map[uint8]bool, len(d.opts.Nodes)),
		exec:      a.Executor,
		timer:     a.Timer,
		ch:        a.Channel,
		client:    d.clientGroup,
		timers:    d.timerGroup,
		logger:    log.OrNoop(a.Logger),
		booted:    make(map[uint8]bool),
	}
	for _, n := range d.opts.Nodes {
		m.expected[n.ID] = true
	}
	a.Channel.SetHandler(func(f can.Frame) {
		m.client.Run(func() { m.handle(f) })
	})

	d.master = m
	return m, nil
}

func (d *Driver) Deactivate(lifecycle.Caller) error {
	if m := d.master; m != nil {
		d.logger.Info("driver deactivated",
			log.Any("sent", m.Sent()),
			log.Any("received", m.Received()),
		)
	}
	return nil
}

func (d *Driver) Cleanup(lifecycle.Caller) error {
	d.opts = Options{}
	return nil
}

func (d *Driver) Shutdown(lifecycle.Caller) error {
	d.master = nil
	return nil
}

// Master returns the master built by the last activation.
func (d *Driver) Master() *Master {
	return d.master
}

package lifecycle

import (
	"github.com/bft-labs/canmaster/pkg/can"
	"github.com/bft-labs/canmaster/pkg/cbgroup"
	"github.com/bft-labs/canmaster/pkg/evloop"
	"github.com/bft-labs/canmaster/pkg/log"
	"github.com/bft-labs/canmaster/pkg/params"
)

// Caller tells a hook who invoked it.
type Caller int

const (
	// CalledDirectly marks a hook called by driver code.
	CalledDirectly Caller = iota
	// CalledByController marks a hook called from a controller operation.
	CalledByController
)

func (c Caller) String() string {
	if c == CalledByController {
		return "controller"
	}
	return "direct"
}

// Master is the protocol engine's master handle.
type Master interface {
	Reset()
}

// Activation is what the activate hook gets to build its master from.
// Executor, Timer and Channel belong to the event loop: use them from jobs
// posted on Executor once the spinner runs.
type Activation struct {
	Executor *evloop.Executor
	Context  *evloop.PollContext
	Timer    *evloop.Timer
	Channel  can.Channel
	Config   Configuration
	Logger   log.Logger
}

// InitContext is handed to the init hook.
type InitContext struct {
	Params      params.Store
	ClientGroup *cbgroup.Group
	TimerGroup  *cbgroup.Group
}

// Hooks is implemented by concrete drivers. Embed NopHooks to only
// override the phases the driver cares about.
type Hooks interface {
	Init(c Caller, ic *InitContext) error
	Configure(c Caller, cfg *Configuration) error

	// Activate must return the master built on a.Executor and a.Timer.
	// Any protocol background work must be driven through a.Executor.
	Activate(c Caller, a *Activation) (Master, error)

	Deactivate(c Caller) error
	Cleanup(c Caller) error
	Shutdown(c Caller) error
}

// NopHooks implements every hook as a no-op. Its Activate returns no
// master, so a driver must override it.
type NopHooks struct{}

func (NopHooks) Init(Caller, *InitContext) error              { return nil }
func (NopHooks) Configure(Caller, *Configuration) error       { return nil }
func (NopHooks) Activate(Caller, *Activation) (Master, error) { return nil, nil }
func (NopHooks) Deactivate(Caller) error                      { return nil }
func (NopHooks) Cleanup(Caller) error                         { return nil }
func (NopHooks) Shutdown(Caller) error                        { return nil }

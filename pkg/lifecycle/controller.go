package lifecycle

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bft-labs/canmaster/internal/ioresources"
	"github.com/bft-labs/canmaster/internal/sigbridge"
	"github.com/bft-labs/canmaster/pkg/can"
	"github.com/bft-labs/canmaster/pkg/cbgroup"
	"github.com/bft-labs/canmaster/pkg/evloop"
	"github.com/bft-labs/canmaster/pkg/log"
	"github.com/bft-labs/canmaster/pkg/params"
)

// Operation names used in errors, logs and metrics.
const (
	OpInit       = "Init"
	OpConfigure  = "Configure"
	OpActivate   = "Activate"
	OpDeactivate = "Deactivate"
	OpCleanup    = "Cleanup"
	OpShutdown   = "Shutdown"
)

var closedCh = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// activation holds everything that lives for exactly one Activated period.
type activation struct {
	set     *ioresources.Set
	master  Master
	spinner *evloop.Spinner
}

// Controller drives a master driver through its lifecycle.
type Controller struct {
	hooks     Hooks
	store     params.Store
	logger    log.Logger
	groups    cbgroup.Allocator
	resources *ioresources.Manager
	metrics   *Metrics

	initialised atomic.Bool
	configured  atomic.Bool
	activated   atomic.Bool
	masterSet   atomic.Bool

	// active is read lock-free by accessors that may run on the loop goroutine.
	active atomic.Pointer[activation]

	mu          sync.Mutex
	cfg         Configuration
	clientGroup *cbgroup.Group
	timerGroup  *cbgroup.Group
}

// New creates a controller in StateUninitialized.
func New(store params.Store, hooks Hooks, opts ...Option) *Controller {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if hooks == nil {
		hooks = NopHooks{}
	}
	bus := o.bus
	if bus == nil {
		bus = can.SocketCAN(o.logger)
	}

	var signals sigbridge.Source
	if o.signals != nil {
		signals = o.signals
	}

	c := &Controller{
		hooks:     hooks,
		store:     store,
		logger:    o.logger,
		groups:    o.groups,
		resources: ioresources.NewManager(bus, signals, o.logger),
		metrics:   o.metrics,
	}
	c.metrics.SetState(StateUninitialized)
	return c
}

// Initialised reports whether Init has completed.
func (c *Controller) Initialised() bool { return c.initialised.Load() }

// Configured reports whether Configure has completed and Cleanup has not.
func (c *Controller) Configured() bool { return c.configured.Load() }

// Activated reports whether the master is activated.
func (c *Controller) Activated() bool { return c.activated.Load() }

// MasterSet reports whether the activate hook supplied a master.
func (c *Controller) MasterSet() bool { return c.masterSet.Load() }

// State derives the lifecycle state from the flags.
func (c *Controller) State() State {
	switch {
	case c.activated.Load():
		return StateActivated
	case c.configured.Load():
		return StateConfigured
	case c.initialised.Load():
		return StateInitialized
	default:
		return StateUninitialized
	}
}

// Configuration returns the configuration read by the last Configure.
func (c *Controller) Configuration() Configuration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Master returns the master handle of the current activation.
func (c *Controller) Master() (Master, error) {
	a := c.active.Load()
	if !c.masterSet.Load() || a == nil {
		return nil, masterError("Master", ErrMasterNotSet)
	}
	return a.master, nil
}

// Executor returns the executor of the current activation.
func (c *Controller) Executor() (*evloop.Executor, error) {
	a := c.active.Load()
	if !c.masterSet.Load() || a == nil {
		return nil, masterError("Executor", ErrMasterNotSet)
	}
	return a.set.Executor, nil
}

// SpinnerAlive reports whether the event-loop goroutine is running.
func (c *Controller) SpinnerAlive() bool {
	a := c.active.Load()
	return a != nil && a.spinner.Alive()
}

// Done is closed when the current activation's spinner exits, whether
// stopped by Deactivate or by a termination signal. It is already closed
// when the controller is not activated.
func (c *Controller) Done() <-chan struct{} {
	if a := c.active.Load(); a != nil {
		return a.spinner.Done()
	}
	return closedCh
}

// Init declares the options and runs the init hook.
func (c *Controller) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.init()
	c.finish(OpInit, err)
	return err
}

func (c *Controller) init() error {
	c.logger.Debug("init_start")
	if c.configured.Load() {
		return masterError(OpInit, ErrAlreadyConfigured)
	}
	if c.activated.Load() {
		return masterError(OpInit, ErrAlreadyActivated)
	}

	c.clientGroup = c.groups.MutuallyExclusive("client")
	c.timerGroup = c.groups.MutuallyExclusive("timer")
	declareOptions(c.store)

	ic := &InitContext{Params: c.store, ClientGroup: c.clientGroup, TimerGroup: c.timerGroup}
	if err := c.hooks.Init(CalledByController, ic); err != nil {
		return fmt.Errorf("init hook: %w", err)
	}

	c.initialised.Store(true)
	c.logger.Debug("init_end")
	return nil
}

// Configure reads the options into the configuration and runs the configure hook.
func (c *Controller) Configure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.configure()
	c.finish(OpConfigure, err)
	return err
}

func (c *Controller) configure() error {
	if !c.initialised.Load() {
		return masterError(OpConfigure, ErrNotInitialised)
	}
	if c.configured.Load() {
		return masterError(OpConfigure, ErrAlreadyConfigured)
	}
	if c.activated.Load() {
		return masterError(OpConfigure, ErrAlreadyActivated)
	}

	cfg, err := readConfiguration(c.store)
	if err != nil {
		return fmt.Errorf("configure: %w", err)
	}
	if err := c.hooks.Configure(CalledByController, &cfg); err != nil {
		return fmt.Errorf("configure hook: %w", err)
	}

	c.cfg = cfg
	c.configured.Store(true)
	c.logger.Debug("configured",
		log.String("container", cfg.ContainerName),
		log.String("iface", cfg.CANInterface),
		log.Uint8("node_id", cfg.NodeID),
		log.Duration("non_transmit_timeout", cfg.NonTransmitTimeout),
	)
	return nil
}

// Activate acquires the I/O resources, builds the master through the
// activate hook, resets it and starts the spinner. On failure every
// acquired resource is released and the state is unchanged.
func (c *Controller) Activate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.activate()
	c.finish(OpActivate, err)
	return err
}

func (c *Controller) activate() error {
	c.logger.Info("activate start")
	if !c.initialised.Load() {
		return masterError(OpActivate, ErrNotInitialised)
	}
	if !c.configured.Load() {
		return masterError(OpActivate, ErrNotConfigured)
	}
	if c.activated.Load() {
		return masterError(OpActivate, ErrAlreadyActivated)
	}

	set, err := c.resources.Acquire(c.cfg.CANInterface)
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}

	master, err := c.hooks.Activate(CalledByController, &Activation{
		Executor: set.Executor,
		Context:  set.Context,
		Timer:    set.Timer,
		Channel:  set.Channel,
		Config:   c.cfg,
		Logger:   c.logger,
	})
	if err == nil && master == nil {
		err = masterError(OpActivate, ErrMasterNotSet)
	} else if err != nil {
		err = fmt.Errorf("activate hook: %w", err)
	}
	if err != nil {
		c.metrics.RecordRollback()
		if rerr := set.Release(); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return err
	}

	c.masterSet.Store(true)
	master.Reset()

	spinner := evloop.StartSpinner(set.Loop, c.logger)
	c.active.Store(&activation{set: set, master: master, spinner: spinner})
	c.activated.Store(true)
	c.metrics.SetSpinnerRunning(true)

	c.logger.Info("activate end",
		log.String("iface", c.cfg.CANInterface),
		log.Uint8("node_id", c.cfg.NodeID),
		log.String("resources", set.ID.String()),
	)
	return nil
}

// Deactivate stops the spinner through its own job queue, waits for it,
// runs the deactivate hook and releases the I/O resources.
//
// If the spinner does not stop within the join timeout, ErrJoinTimeout is
// returned and the controller stays Activated; calling Deactivate again
// waits once more.
func (c *Controller) Deactivate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.deactivate()
	c.finish(OpDeactivate, err)
	return err
}

func (c *Controller) deactivate() error {
	if !c.initialised.Load() {
		return masterError(OpDeactivate, ErrNotInitialised)
	}
	if !c.configured.Load() {
		return masterError(OpDeactivate, ErrNotConfigured)
	}
	if !c.activated.Load() {
		return masterError(OpDeactivate, ErrNotActivated)
	}

	a := c.active.Load()
	// ErrLoopStopped means a signal already stopped the loop.
	if err := a.set.Executor.Post(a.set.Context.Shutdown); err != nil && !errors.Is(err, evloop.ErrLoopStopped) {
		return fmt.Errorf("deactivate: post stop: %w", err)
	}
	if err := a.spinner.Join(c.cfg.JoinTimeout); err != nil {
		return masterError(OpDeactivate, err)
	}
	c.metrics.SetSpinnerRunning(false)

	hookErr := c.hooks.Deactivate(CalledByController)
	if hookErr != nil {
		hookErr = fmt.Errorf("deactivate hook: %w", hookErr)
	}
	releaseErr := a.set.Release()

	c.active.Store(nil)
	c.masterSet.Store(false)
	c.activated.Store(false)
	return errors.Join(hookErr, releaseErr)
}

// Cleanup runs the cleanup hook and forgets the configuration.
func (c *Controller) Cleanup() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.cleanup()
	c.finish(OpCleanup, err)
	return err
}

func (c *Controller) cleanup() error {
	if !c.initialised.Load() {
		return masterError(OpCleanup, ErrNotInitialised)
	}
	if !c.configured.Load() {
		return masterError(OpCleanup, ErrNotConfigured)
	}
	if c.activated.Load() {
		return masterError(OpCleanup, ErrAlreadyActivated)
	}

	if err := c.hooks.Cleanup(CalledByController); err != nil {
		return fmt.Errorf("cleanup hook: %w", err)
	}
	c.cfg = Configuration{}
	c.configured.Store(false)
	return nil
}

// Shutdown deactivates and cleans up as needed, runs the shutdown hook and
// returns the controller to StateUninitialized. It is valid in any state.
// Errors from the cascaded Deactivate or Cleanup are returned unchanged and
// stop the shutdown at that point.
func (c *Controller) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.shutdown()
	c.finish(OpShutdown, err)
	return err
}

func (c *Controller) shutdown() error {
	c.logger.Info("Shutting down.")
	if c.activated.Load() {
		err := c.deactivate()
		c.metrics.RecordOperation(OpDeactivate, err)
		if err != nil {
			return err
		}
	}
	if c.configured.Load() {
		err := c.cleanup()
		c.metrics.RecordOperation(OpCleanup, err)
		if err != nil {
			return err
		}
	}
	if err := c.hooks.Shutdown(CalledByController); err != nil {
		return fmt.Errorf("shutdown hook: %w", err)
	}

	c.masterSet.Store(false)
	c.initialised.Store(false)
	c.configured.Store(false)
	c.activated.Store(false)
	return nil
}

func (c *Controller) finish(op string, err error) {
	c.metrics.RecordOperation(op, err)
	c.metrics.SetState(c.State())
	if err != nil {
		c.logger.Error("lifecycle operation failed",
			log.String("operation", op),
			log.Stringer("state", c.State()),
			log.Err(err),
		)
		return
	}
	c.logger.Debug("lifecycle operation done",
		log.String("operation", op),
		log.Stringer("state", c.State()),
	)
}

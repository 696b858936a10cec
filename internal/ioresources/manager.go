// Package ioresources owns the hardware and OS resources held while the
// master is activated: the I/O guard, poll context, event loop, executor,
// monotonic timer, bus controller, bus channel and signal watch.
//
// Resources are acquired in dependency order. If any step fails, the steps
// that already succeeded are undone in reverse before the error is
// returned, so a failed acquisition holds nothing. Set.Release undoes a
// complete set the same way.
package ioresources

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bft-labs/canmaster/internal/sigbridge"
	"github.com/bft-labs/canmaster/pkg/can"
	"github.com/bft-labs/canmaster/pkg/evloop"
	"github.com/bft-labs/canmaster/pkg/log"
)

// Resource names, in acquisition order.
const (
	ResGuard      = "io_guard"
	ResContext    = "poll_context"
	ResLoop       = "event_loop"
	ResExecutor   = "executor"
	ResTimer      = "timer"
	ResController = "bus_controller"
	ResChannel    = "bus_channel"
	ResSignals    = "signal_watch"
)

// Manager builds resource sets for one bus backend.
type Manager struct {
	opener  can.Opener
	signals sigbridge.Source
	logger  log.Logger
}

// NewManager creates a manager. A nil signals source watches real signals.
func NewManager(opener can.Opener, signals sigbridge.Source, logger log.Logger) *Manager {
	if signals == nil {
		signals = sigbridge.OS()
	}
	return &Manager{
		opener:  opener,
		signals: signals,
		logger:  log.OrNoop(logger),
	}
}

// Set is one activation's worth of resources.
type Set struct {
	ID         uuid.UUID
	Guard      *Guard
	Context    *evloop.PollContext
	Loop       *evloop.Loop
	Executor   *evloop.Executor
	Timer      *evloop.Timer
	Controller can.Controller
	Channel    can.Channel
	Signals    *sigbridge.Bridge

	logger   log.Logger
	undo     []step
	released bool
	order    []string
}

type step struct {
	name    string
	release func() error
}

func (s *Set) push(name string, release func() error) {
	s.undo = append(s.undo, step{name: name, release: release})
	s.logger.Debug("acquired", log.String("resource", name), log.String("set", s.ID.String()))
}

// Acquire builds a set bound to the CAN interface iface.
func (m *Manager) Acquire(iface string) (_ *Set, err error) {
	s := &Set{ID: uuid.New(), logger: m.logger}
	defer func() {
		if err != nil {
			if rerr := s.Release(); rerr != nil {
				err = errors.Join(err, rerr)
			}
		}
	}()

	s.Guard = acquireGuard()
	s.push(ResGuard, func() error { s.Guard.Release(); return nil })

	s.Context = evloop.NewPollContext()
	s.push(ResContext, func() error { s.Context.Shutdown(); return nil })

	s.Loop = evloop.NewLoop(s.Context)
	s.push(ResLoop, func() error { return nil })

	s.Executor = s.Loop.Executor()
	s.push(ResExecutor, func() error { return nil })

	s.Timer = evloop.NewTimer(s.Executor)
	s.push(ResTimer, s.Timer.Close)

	s.Controller, err = m.opener.OpenController(iface)
	if err != nil {
		return nil, fmt.Errorf("open bus controller %s: %w", iface, err)
	}
	s.push(ResController, s.Controller.Close)

	s.Channel, err = m.opener.OpenChannel(s.Controller, s.Executor, s.Context)
	if err != nil {
		return nil, fmt.Errorf("open bus channel on %s: %w", iface, err)
	}
	s.push(ResChannel, s.Channel.Close)

	s.Signals = sigbridge.Install(m.signals, s.Executor, s.Context, m.logger)
	s.push(ResSignals, s.Signals.Close)

	return s, nil
}

// Release undoes every acquired resource in reverse order. It must not be
// called while a spinner is still running the loop. Repeated calls are no-ops.
func (s *Set) Release() error {
	if s.released {
		return nil
	}
	s.released = true

	var errs []error
	for i := len(s.undo) - 1; i >= 0; i-- {
		st := s.undo[i]
		if err := st.release(); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", st.name, err))
		}
		s.order = append(s.order, st.name)
		s.logger.Debug("released", log.String("resource", st.name), log.String("set", s.ID.String()))
	}
	s.undo = nil
	return errors.Join(errs...)
}

// Released reports whether Release has run.
func (s *Set) Released() bool {
	return s.released
}

// ReleaseOrder returns the names of released resources in release order.
func (s *Set) ReleaseOrder() []string {
	return append([]string(nil), s.order...)
}

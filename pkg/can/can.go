// Package can provides the bus controller and bus channel used by the
// master driver: a SocketCAN backend for linux hosts and an in-memory
// virtual bus for tests and hardware-less runs.
//
// A Controller names a CAN network interface. A Channel is an open raw
// socket (or virtual endpoint) bound to a controller. Received frames are
// delivered as jobs on the event loop's executor, never on the reader
// goroutine, so handlers run serialized with the rest of the protocol work.
package can

import (
	"errors"

	"github.com/bft-labs/canmaster/pkg/evloop"
)

var (
	// ErrClosed indicates the channel or controller has been closed.
	ErrClosed = errors.New("can: closed")

	// ErrNoSuchInterface is returned when the named interface does not exist.
	ErrNoSuchInterface = errors.New("can: no such interface")

	// ErrInterfaceDown is returned when the named interface is not up.
	ErrInterfaceDown = errors.New("can: interface down")

	// ErrUnsupported is returned by backends unavailable on this platform.
	ErrUnsupported = errors.New("can: unsupported on this platform")
)

// Handler consumes a received frame on the loop goroutine.
type Handler func(Frame)

// Controller is an opened CAN network interface.
type Controller interface {
	Name() string
	Close() error
}

// Channel is a frame endpoint opened against a Controller.
type Channel interface {
	// Send transmits a frame. It may block until the frame is queued.
	Send(Frame) error

	// SetHandler installs the receive handler. Frames received while no
	// handler is installed are dropped.
	SetHandler(Handler)

	Close() error
}

// Opener creates controllers and channels for one backend.
type Opener interface {
	OpenController(name string) (Controller, error)

	// OpenChannel binds a channel to ctrl. Receive handlers are posted to
	// exec, and the channel stops reading once pc shuts down.
	OpenChannel(ctrl Controller, exec *evloop.Executor, pc *evloop.PollContext) (Channel, error)
}

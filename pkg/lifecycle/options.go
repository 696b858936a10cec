package lifecycle

import (
	"os"

	"github.com/bft-labs/canmaster/pkg/can"
	"github.com/bft-labs/canmaster/pkg/cbgroup"
	"github.com/bft-labs/canmaster/pkg/log"
)

// SignalSource registers and removes signal watches. os/signal is used
// unless WithSignalSource supplies another one.
type SignalSource interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

// Option configures optional behavior of a Controller.
type Option func(*options)

type options struct {
	logger  log.Logger
	groups  cbgroup.Allocator
	bus     can.Opener
	signals SignalSource
	metrics *Metrics
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
		groups: cbgroup.NewRegistry(),
	}
}

// WithLogger sets the logger. If not provided, nothing is logged.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = log.OrNoop(logger)
	}
}

// WithGroupAllocator sets the callback-group allocator used by Init.
func WithGroupAllocator(a cbgroup.Allocator) Option {
	return func(o *options) {
		if a != nil {
			o.groups = a
		}
	}
}

// WithBus sets the CAN backend. Defaults to SocketCAN.
func WithBus(opener can.Opener) Option {
	return func(o *options) {
		o.bus = opener
	}
}

// WithSignalSource replaces the process signal source.
func WithSignalSource(src SignalSource) Option {
	return func(o *options) {
		o.signals = src
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

//go:build !linux

package can

import (
	"github.com/bft-labs/canmaster/pkg/evloop"
	"github.com/bft-labs/canmaster/pkg/log"
)

// SocketCAN returns a backend that fails on platforms without SocketCAN.
func SocketCAN(logger log.Logger) Opener {
	return unsupportedOpener{}
}

type unsupportedOpener struct{}

func (unsupportedOpener) OpenController(name string) (Controller, error) {
	return nil, ErrUnsupported
}

func (unsupportedOpener) OpenChannel(Controller, *evloop.Executor, *evloop.PollContext) (Channel, error) {
	return nil, ErrUnsupported
}

//go:build linux

package can

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bft-labs/canmaster/pkg/evloop"
	"github.com/bft-labs/canmaster/pkg/log"
)

// readTimeout bounds each blocking read so the reader notices Close.
const readTimeout = 100 * time.Millisecond

// SocketCAN returns the linux raw-socket backend.
func SocketCAN(logger log.Logger) Opener {
	return socketOpener{logger: log.OrNoop(logger)}
}

type socketOpener struct {
	logger log.Logger
}

type socketController struct {
	name    string
	ifindex int
}

func (c *socketController) Name() string { return c.name }
func (c *socketController) Close() error { return nil }

func (o socketOpener) OpenController(name string) (Controller, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoSuchInterface, name, err)
	}
	if iface.Flags&net.FlagUp == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInterfaceDown, name)
	}
	return &socketController{name: name, ifindex: iface.Index}, nil
}

func (o socketOpener) OpenChannel(ctrl Controller, exec *evloop.Executor, pc *evloop.PollContext) (Channel, error) {
	sc, ok := ctrl.(*socketController)
	if !ok {
		return nil, fmt.Errorf("can: controller %s is not a SocketCAN controller", ctrl.Name())
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("can: socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: sc.ifindex}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("can: bind %s: %w", sc.name, err)
	}
	tv := unix.NsecToTimeval(readTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("can: set read timeout: %w", err)
	}

	ch := &socketChannel{
		fd:     fd,
		iface:  sc.name,
		exec:   exec,
		pc:     pc,
		logger: o.logger,
		stop:   make(chan struct{}),
	}
	ch.wg.Add(1)
	go ch.readLoop()
	return ch, nil
}

type socketChannel struct {
	fd     int
	iface  string
	exec   *evloop.Executor
	pc     *evloop.PollContext
	logger log.Logger

	mu      sync.Mutex
	handler Handler
	closed  bool

	stop chan struct{}
	wg   sync.WaitGroup
}

func (c *socketChannel) Send(f Frame) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	b, err := f.MarshalBinary()
	if err != nil {
		return err
	}
	for {
		_, err = unix.Write(c.fd, b)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("can: write %s: %w", c.iface, err)
	}
	return nil
}

func (c *socketChannel) SetHandler(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

func (c *socketChannel) readLoop() {
	defer c.wg.Done()

	buf := make([]byte, FrameSize)
	back := newBackoff(10*time.Millisecond, time.Second)

	for {
		select {
		case <-c.stop:
			return
		case <-c.pc.Done():
			return
		default:
		}

		n, err := unix.Read(c.fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			c.logger.Warn("can read error", log.String("iface", c.iface), log.Err(err))
			if !back.wait(c.stop) {
				return
			}
			continue
		}
		back.reset()

		var f Frame
		if err := f.UnmarshalBinary(buf[:n]); err != nil {
			c.logger.Debug("dropping malformed frame", log.String("iface", c.iface), log.Err(err))
			continue
		}

		c.mu.Lock()
		h := c.handler
		c.mu.Unlock()
		if h != nil {
			_ = c.exec.Post(func() { h(f) })
		}
	}
}

func (c *socketChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.handler = nil
	c.mu.Unlock()

	close(c.stop)
	c.wg.Wait()
	return unix.Close(c.fd)
}

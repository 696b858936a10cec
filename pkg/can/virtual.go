package can

import (
	"fmt"
	"sync"

	"github.com/bft-labs/canmaster/pkg/evloop"
)

// VirtualBus is an in-memory set of CAN interfaces. Frames sent on a
// channel are delivered to every other open channel on the same interface.
type VirtualBus struct {
	mu       sync.Mutex
	ifaces   map[string]bool // name -> up
	channels map[string][]*virtualChannel
	ctrls    int
}

// NewVirtualBus creates a bus with the named interfaces, all up.
func NewVirtualBus(ifaces ...string) *VirtualBus {
	b := &VirtualBus{
		ifaces:   make(map[string]bool),
		channels: make(map[string][]*virtualChannel),
	}
	for _, name := range ifaces {
		b.ifaces[name] = true
	}
	return b
}

// SetUp marks an interface up or down, creating it if needed.
func (b *VirtualBus) SetUp(name string, up bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ifaces[name] = up
}

// OpenControllers returns the number of controllers not yet closed.
func (b *VirtualBus) OpenControllers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctrls
}

// OpenChannels returns the number of channels not yet closed on name.
func (b *VirtualBus) OpenChannels(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.channels[name])
}

// Inject delivers f to every open channel on name, as if sent by a peer.
func (b *VirtualBus) Inject(name string, f Frame) {
	b.deliver(name, nil, f)
}

func (b *VirtualBus) OpenController(name string) (Controller, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	up, ok := b.ifaces[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchInterface, name)
	}
	if !up {
		return nil, fmt.Errorf("%w: %s", ErrInterfaceDown, name)
	}
	b.ctrls++
	return &virtualController{bus: b, name: name}, nil
}

func (b *VirtualBus) OpenChannel(ctrl Controller, exec *evloop.Executor, pc *evloop.PollContext) (Channel, error) {
	vc, ok := ctrl.(*virtualController)
	if !ok || vc.bus != b {
		return nil, fmt.Errorf("can: controller %s does not belong to this virtual bus", ctrl.Name())
	}
	if vc.isClosed() {
		return nil, ErrClosed
	}
	ch := &virtualChannel{bus: b, iface: vc.name, exec: exec, pc: pc}

	b.mu.Lock()
	b.channels[vc.name] = append(b.channels[vc.name], ch)
	b.mu.Unlock()
	return ch, nil
}

func (b *VirtualBus) deliver(name string, from *virtualChannel, f Frame) {
	b.mu.Lock()
	peers := append([]*virtualChannel(nil), b.channels[name]...)
	b.mu.Unlock()

	for _, ch := range peers {
		if ch != from {
			ch.receive(f)
		}
	}
}

func (b *VirtualBus) remove(ch *virtualChannel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.channels[ch.iface]
	for i, c := range list {
		if c == ch {
			b.channels[ch.iface] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

type virtualController struct {
	bus  *VirtualBus
	name string

	mu     sync.Mutex
	closed bool
}

func (c *virtualController) Name() string { return c.name }

func (c *virtualController) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *virtualController) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.bus.mu.Lock()
	c.bus.ctrls--
	c.bus.mu.Unlock()
	return nil
}

type virtualChannel struct {
	bus   *VirtualBus
	iface string
	exec  *evloop.Executor
	pc    *evloop.PollContext

	mu      sync.Mutex
	handler Handler
	closed  bool
}

func (c *virtualChannel) Send(f Frame) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if f.Len > MaxDataLen {
		return errBadLength
	}
	c.bus.deliver(c.iface, c, f)
	return nil
}

func (c *virtualChannel) SetHandler(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

func (c *virtualChannel) receive(f Frame) {
	c.mu.Lock()
	h := c.handler
	closed := c.closed
	c.mu.Unlock()
	if closed || h == nil || c.pc.IsShutdown() {
		return
	}
	_ = c.exec.Post(func() { h(f) })
}

func (c *virtualChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.handler = nil
	c.mu.Unlock()

	c.bus.remove(c)
	return nil
}

package basic

import (
	"testing"
	"time"

	"github.com/bft-labs/canmaster/internal/sigbridge"
	"github.com/bft-labs/canmaster/pkg/can"
	"github.com/bft-labs/canmaster/pkg/evloop"
	"github.com/bft-labs/canmaster/pkg/lifecycle"
	"github.com/bft-labs/canmaster/pkg/params"
)

// peer is a second node on the virtual bus with its own event loop.
type peer struct {
	ch     can.Channel
	frames chan can.Frame
	stop   func()
}

func newPeer(t *testing.T, bus *can.VirtualBus, iface string) *peer {
	t.Helper()
	pc := evloop.NewPollContext()
	loop := evloop.NewLoop(pc)
	spinner := evloop.StartSpinner(loop, nil)

	ctrl, err := bus.OpenController(iface)
	if err != nil {
		t.Fatalf("OpenController() error = %v", err)
	}
	ch, err := bus.OpenChannel(ctrl, loop.Executor(), pc)
	if err != nil {
		t.Fatalf("OpenChannel() error = %v", err)
	}

	p := &peer{ch: ch, frames: make(chan can.Frame, 256)}
	ch.SetHandler(func(f can.Frame) {
		select {
		case p.frames <- f:
		default:
		}
	})
	p.stop = func() {
		_ = ch.Close()
		_ = ctrl.Close()
		pc.Shutdown()
		_ = spinner.Join(time.Second)
	}
	t.Cleanup(p.stop)
	return p
}

// expect waits for a frame matching id and payload.
func (p *peer) expect(t *testing.T, id uint32, payload ...byte) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-p.frames:
			if f.ID == id && string(f.Payload()) == string(payload) {
				return
			}
		case <-deadline:
			t.Fatalf("no frame %03X#% X received", id, payload)
		}
	}
}

func newController(t *testing.T, bus *can.VirtualBus, blob string) (*lifecycle.Controller, *Driver) {
	t.Helper()
	store := params.NewStore()
	store.Set(lifecycle.ParamNodeID, 5)
	store.Set(lifecycle.ParamConfig, blob)

	d := New(nil)
	ctrl := lifecycle.New(store, d,
		lifecycle.WithBus(bus),
		lifecycle.WithSignalSource(sigbridge.NewFakeSource()),
	)
	t.Cleanup(func() { _ = ctrl.Shutdown() })

	for _, op := range []func() error{ctrl.Init, ctrl.Configure, ctrl.Activate} {
		if err := op(); err != nil {
			t.Fatalf("bring-up error = %v", err)
		}
	}
	return ctrl, d
}

func TestMaster_ResetSendsNMTResetCommunication(t *testing.T) {
	bus := can.NewVirtualBus("vcan0")
	p := newPeer(t, bus, "vcan0")

	_, d := newController(t, bus, "")
	p.expect(t, 0x000, 0x82, 0x00)

	if d.Master().Resets() != 1 {
		t.Errorf("Resets() = %d, want 1", d.Master().Resets())
	}
}

func TestMaster_StartsBootedNodes(t *testing.T) {
	bus := can.NewVirtualBus("vcan0")
	p := newPeer(t, bus, "vcan0")

	_, d := newController(t, bus, "nodes:\n  - id: 2\n")
	p.expect(t, 0x000, 0x82, 0x00)

	boot, _ := can.NewFrame(0x702, 0x00)
	if err := p.ch.Send(boot); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	p.expect(t, 0x000, 0x01, 0x02)

	if !d.Master().Booted(2) {
		t.Error("node 2 should be booted")
	}

	// Unknown nodes are ignored.
	unknown, _ := can.NewFrame(0x709, 0x00)
	if err := p.ch.Send(unknown); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for d.Master().Received() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if d.Master().Booted(9) {
		t.Error("unexpected node 9 should not be started")
	}
}

func TestMaster_ProducesHeartbeat(t *testing.T) {
	bus := can.NewVirtualBus("vcan0")
	p := newPeer(t, bus, "vcan0")

	newController(t, bus, "heartbeat_ms: 5\n")
	p.expect(t, 0x705, 0x05)
	p.expect(t, 0x705, 0x05)
}

func TestDriver_RejectsBadOptions(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{"negative heartbeat", "heartbeat_ms: -1\n"},
		{"node id zero", "nodes:\n  - id: 0\n"},
		{"node id too big", "nodes:\n  - id: 200\n"},
		{"wrong shape", "nodes: 3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := params.NewStore()
			store.Set(lifecycle.ParamConfig, tt.blob)
			ctrl := lifecycle.New(store, New(nil),
				lifecycle.WithBus(can.NewVirtualBus("vcan0")),
				lifecycle.WithSignalSource(sigbridge.NewFakeSource()),
			)
			if err := ctrl.Init(); err != nil {
				t.Fatal(err)
			}
			if err := ctrl.Configure(); err == nil {
				t.Error("Configure() should reject the options")
			}
			if ctrl.Configured() {
				t.Error("controller should stay unconfigured")
			}
		})
	}
}

func TestDriver_DeactivateStopsTraffic(t *testing.T) {
	bus := can.NewVirtualBus("vcan0")
	p := newPeer(t, bus, "vcan0")

	ctrl, d := newController(t, bus, "heartbeat_ms: 5\n")
	p.expect(t, 0x705, 0x05)

	if err := ctrl.Deactivate(); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
	sent := d.Master().Sent()
	time.Sleep(30 * time.Millisecond)
	if got := d.Master().Sent(); got != sent {
		t.Errorf("master kept sending after deactivate: %d -> %d", sent, got)
	}
	if bus.OpenChannels("vcan0") != 1 {
		t.Errorf("only the peer channel should remain, got %d", bus.OpenChannels("vcan0"))
	}
}

package basic

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/canmaster/pkg/can"
	"github.com/bft-labs/canmaster/pkg/cbgroup"
	"github.com/bft-labs/canmaster/pkg/evloop"
	"github.com/bft-labs/canmaster/pkg/log"
)

// NMT and error-control constants.
const (
	nmtID        uint32 = 0x000
	heartbeatID  uint32 = 0x700
	nodeIDMask   uint32 = 0x07F
	functionMask uint32 = 0x780

	cmdStart      byte = 0x01
	cmdResetComm  byte = 0x82
	stateBootUp   byte = 0x00
	stateOperable byte = 0x05
)

// Master is a minimal NMT master. It resets the network, starts nodes as
// their boot-up messages arrive and produces its own heartbeat.
//
// Everything except the counters runs on the event loop.
type Master struct {
	nodeID    uint8
	heartbeat time.Duration
	expected  map[uint8]bool

	exec   *evloop.Executor
	timer  *evloop.Timer
	ch     can.Channel
	client *cbgroup.Group
	timers *cbgroup.Group
	logger log.Logger

	mu     sync.Mutex
	booted map[uint8]bool

	resets   atomic.Int32
	sent     atomic.Uint64
	received atomic.Uint64
}

// Reset posts an NMT reset-communication to every node and restarts the
// heartbeat producer.
func (m *Master) Reset() {
	m.resets.Add(1)
	if err := m.exec.Post(func() { m.client.Run(m.resetCommunication) }); err != nil {
		m.logger.Warn("reset not scheduled", log.Err(err))
	}
}

func (m *Master) resetCommunication() {
	m.mu.Lock()
	m.booted = make(map[uint8]bool)
	m.mu.Unlock()

	m.send(nmtID, cmdResetComm, 0x00)
	if m.heartbeat > 0 {
		m.armHeartbeat()
	}
}

func (m *Master) armHeartbeat() {
	err := m.timer.SetTimeout(m.heartbeat, func() {
		m.timers.Run(func() {
			m.send(heartbeatID+uint32(m.nodeID), stateOperable)
			m.armHeartbeat()
		})
	})
	if err != nil {
		m.logger.Debug("heartbeat stopped", log.Err(err))
	}
}

func (m *Master) handle(f can.Frame) {
	m.received.Add(1)
	if f.Extended || f.Remote || f.ID&functionMask != heartbeatID || f.Len != 1 || f.Data[0] != stateBootUp {
		return
	}

	id := uint8(f.ID & nodeIDMask)
	if len(m.expected) > 0 && !m.expected[id] {
		m.logger.Debug("boot-up from unknown node", log.Uint8("node_id", id))
		return
	}

	m.mu.Lock()
	m.booted[id] = true
	m.mu.Unlock()

	m.logger.Info("node booted", log.Uint8("node_id", id))
	m.send(nmtID, cmdStart, id)
}

func (m *Master) send(id uint32, data ...byte) {
	f, err := can.NewFrame(id, data...)
	if err == nil {
		err = m.ch.Send(f)
	}
	if err != nil {
		m.logger.Warn("send failed", log.Uint32("cob_id", id), log.Err(err))
		return
	}
	m.sent.Add(1)
}

// Booted reports whether node id sent its boot-up since the last reset.
func (m *Master) Booted(id uint8) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.booted[id]
}

// Resets returns how many times Reset was called.
func (m *Master) Resets() int { return int(m.resets.Load()) }

// Sent returns the number of frames sent.
func (m *Master) Sent() uint64 { return m.sent.Load() }

// Received returns the number of frames received.
func (m *Master) Received() uint64 { return m.received.Load() }

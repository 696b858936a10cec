package ioresources

import (
	"sync"
	"sync/atomic"
)

var liveGuards atomic.Int64

// Guard marks the I/O subsystem as in use for one resource set. It is the
// first resource acquired and the last released.
type Guard struct {
	once sync.Once
}

func acquireGuard() *Guard {
	liveGuards.Add(1)
	return &Guard{}
}

// Release drops the guard. Repeated calls are no-ops.
func (g *Guard) Release() {
	g.once.Do(func() { liveGuards.Add(-1) })
}

// Live returns the number of guards not yet released across the process.
func Live() int {
	return int(liveGuards.Load())
}

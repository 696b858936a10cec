package evloop

import (
	"errors"
	"sync"
	"time"
)

// ErrTimerClosed is returned when arming a closed timer.
var ErrTimerClosed = errors.New("evloop: timer closed")

// Timer delivers expiries as jobs on an executor. Deadlines are measured on
// the runtime's monotonic clock, so wall-clock jumps do not affect them.
type Timer struct {
	exec *Executor

	mu     sync.Mutex
	t      *time.Timer
	gen    uint64
	closed bool
}

// NewTimer creates a disarmed timer posting to exec.
func NewTimer(exec *Executor) *Timer {
	return &Timer{exec: exec}
}

// SetTimeout arms the timer to post fn after d, replacing any pending expiry.
func (t *Timer) SetTimeout(d time.Duration, fn Job) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTimerClosed
	}
	if t.t != nil {
		t.t.Stop()
	}
	t.gen++
	gen := t.gen
	t.t = time.AfterFunc(d, func() {
		if !t.current(gen) {
			return
		}
		_ = t.exec.Post(func() {
			// Checked again on the loop: Cancel or a re-arm may have
			// happened after the post.
			if t.current(gen) {
				fn()
			}
		})
	})
	return nil
}

func (t *Timer) current(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed && gen == t.gen
}

// Cancel disarms a pending expiry. It reports whether one was pending.
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	if t.t == nil {
		return false
	}
	stopped := t.t.Stop()
	t.t = nil
	return stopped
}

// Close disarms the timer for good.
func (t *Timer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.gen++
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
	return nil
}

// Closed reports whether Close has been called.
func (t *Timer) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

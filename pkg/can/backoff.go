package can

import (
	"math/rand"
	"time"
)

// backoff paces the reader goroutine after socket errors.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{
		initial: initial,
		max:     max,
		current: initial,
	}
}

// wait sleeps for the current delay (±20% jitter) or until stop closes,
// then doubles the delay. It reports false if stop closed first.
func (b *backoff) wait(stop <-chan struct{}) bool {
	jitter := float64(b.current) * 0.2 * (rand.Float64()*2 - 1)
	d := time.Duration(float64(b.current) + jitter)

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-stop:
		return false
	}
}

func (b *backoff) reset() {
	b.current = b.initial
}

package sigbridge

import (
	"os"
	"sync"
)

// FakeSource is a Source whose signals are delivered by calling Deliver.
type FakeSource struct {
	mu       sync.Mutex
	watchers map[chan<- os.Signal][]os.Signal
	notifies int
}

// NewFakeSource returns an empty fake source.
func NewFakeSource() *FakeSource {
	return &FakeSource{watchers: make(map[chan<- os.Signal][]os.Signal)}
}

func (f *FakeSource) Notify(c chan<- os.Signal, sig ...os.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watchers[c] = append(f.watchers[c], sig...)
	f.notifies++
}

func (f *FakeSource) Stop(c chan<- os.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.watchers, c)
}

// Deliver sends sig to every watcher registered for it, without blocking,
// and reports how many watchers were notified. Zero means the signal would
// have fallen through to the default disposition.
func (f *FakeSource) Deliver(sig os.Signal) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for c, sigs := range f.watchers {
		for _, s := range sigs {
			if s == sig {
				select {
				case c <- sig:
				default:
				}
				n++
				break
			}
		}
	}
	return n
}

// Watchers returns the number of active watches.
func (f *FakeSource) Watchers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers)
}

// Installs returns how many times Notify has been called.
func (f *FakeSource) Installs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notifies
}

// Package sigbridge turns the first SIGHUP, SIGINT or SIGTERM delivered
// during an activation into a graceful shutdown of the event loop.
//
// The bridge is single-shot. After the first signal the watch is removed,
// so a second signal reaches the process's default disposition.
package sigbridge

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/bft-labs/canmaster/pkg/evloop"
	"github.com/bft-labs/canmaster/pkg/log"
)

// Watched lists the signals the bridge intercepts.
var Watched = []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM}

// Source registers and removes signal watches. The default source is
// os/signal; tests substitute one that delivers signals on demand.
type Source interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

type osSource struct{}

func (osSource) Notify(c chan<- os.Signal, sig ...os.Signal) { signal.Notify(c, sig...) }
func (osSource) Stop(c chan<- os.Signal)                     { signal.Stop(c) }

// OS returns the process signal source.
func OS() Source { return osSource{} }

// Bridge watches the signal set for one activation.
type Bridge struct {
	src    Source
	exec   *evloop.Executor
	pc     *evloop.PollContext
	logger log.Logger

	ch   chan os.Signal
	quit chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	fired   bool
	cleared bool
	signo   os.Signal
}

// Install starts watching. On the first signal the bridge clears the watch
// and posts pc.Shutdown to exec.
func Install(src Source, exec *evloop.Executor, pc *evloop.PollContext, logger log.Logger) *Bridge {
	if src == nil {
		src = OS()
	}
	b := &Bridge{
		src:    src,
		exec:   exec,
		pc:     pc,
		logger: log.OrNoop(logger),
		ch:     make(chan os.Signal, 1),
		quit:   make(chan struct{}),
	}
	src.Notify(b.ch, Watched...)

	b.wg.Add(1)
	go b.wait()
	return b
}

func (b *Bridge) wait() {
	defer b.wg.Done()
	select {
	case sig := <-b.ch:
		b.clear()
		b.mu.Lock()
		b.fired = true
		b.signo = sig
		b.mu.Unlock()

		b.logger.Info("signal received, shutting down event loop", log.Stringer("signal", sig))
		if err := b.exec.Post(b.pc.Shutdown); err != nil {
			// The loop is already gone; shut the context down directly.
			b.pc.Shutdown()
		}
	case <-b.quit:
	}
}

func (b *Bridge) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cleared {
		return
	}
	b.cleared = true
	b.src.Stop(b.ch)
}

// Fired reports whether a signal triggered the shutdown.
func (b *Bridge) Fired() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fired
}

// Signal returns the signal that fired the bridge, or nil.
func (b *Bridge) Signal() os.Signal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.signo
}

// Close removes the watch and waits for the bridge goroutine to exit.
func (b *Bridge) Close() error {
	b.clear()
	select {
	case <-b.quit:
	default:
		close(b.quit)
	}
	b.wg.Wait()
	return nil
}

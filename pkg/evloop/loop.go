// Package evloop implements the cooperative event loop that drives a
// protocol engine: a poll context that can be shut down once, a
// single-consumer job queue with its executor, a monotonic timer whose
// expiries run on that queue, and the spinner goroutine that drains it.
//
// All work touching loop-owned resources is posted through the Executor.
// Only the goroutine running Loop.Run executes jobs, so jobs never race
// with each other.
package evloop

import (
	"errors"
	"sync"
)

// ErrLoopStopped is returned by Executor.Post once the loop has returned.
var ErrLoopStopped = errors.New("evloop: loop stopped")

// Job is a unit of work run on the loop goroutine.
type Job func()

// PollContext is the shutdown signal shared by everything attached to a loop.
type PollContext struct {
	once sync.Once
	done chan struct{}
}

// NewPollContext returns a running poll context.
func NewPollContext() *PollContext {
	return &PollContext{done: make(chan struct{})}
}

// Shutdown asks the loop to stop. Calls after the first are no-ops.
func (c *PollContext) Shutdown() {
	c.once.Do(func() { close(c.done) })
}

// Done is closed once Shutdown has been called.
func (c *PollContext) Done() <-chan struct{} {
	return c.done
}

// IsShutdown reports whether Shutdown has been called.
func (c *PollContext) IsShutdown() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Loop is an unbounded FIFO of jobs drained by a single goroutine.
type Loop struct {
	ctx *PollContext

	mu      sync.Mutex
	queue   []Job
	stopped bool
	wake    chan struct{}

	exec *Executor
}

// NewLoop creates a loop bound to ctx.
func NewLoop(ctx *PollContext) *Loop {
	l := &Loop{
		ctx:  ctx,
		wake: make(chan struct{}, 1),
	}
	l.exec = &Executor{loop: l}
	return l
}

// Context returns the poll context the loop is bound to.
func (l *Loop) Context() *PollContext {
	return l.ctx
}

// Executor returns the executor that feeds this loop.
func (l *Loop) Executor() *Executor {
	return l.exec
}

// Run drains jobs in submission order until the poll context is shut down.
// Jobs already queued at that point still run before Run returns; jobs
// posted afterwards are rejected with ErrLoopStopped. Run must be called at
// most once.
func (l *Loop) Run() {
	for {
		job, ok := l.next()
		if ok {
			job()
			continue
		}
		select {
		case <-l.wake:
		case <-l.ctx.Done():
			l.drain()
			return
		}
	}
}

// Stopped reports whether Run has returned.
func (l *Loop) Stopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

// Pending returns the number of queued jobs.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) next() (Job, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	job := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return job, true
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.stopped = true
			l.mu.Unlock()
			return
		}
		job := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()
		job()
	}
}

func (l *Loop) push(job Job) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrLoopStopped
	}
	l.queue = append(l.queue, job)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Executor posts jobs onto a Loop. It is safe for concurrent use.
type Executor struct {
	loop *Loop
}

// Post enqueues job behind every job posted before it.
func (e *Executor) Post(job Job) error {
	if job == nil {
		return nil
	}
	return e.loop.push(job)
}

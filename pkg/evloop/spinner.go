package evloop

import (
	"errors"
	"sync"
	"time"

	"github.com/bft-labs/canmaster/pkg/log"
)

// ErrJoinTimeout is returned by Spinner.Join when the loop did not return in time.
var ErrJoinTimeout = errors.New("evloop: join timeout")

// Spinner is the goroutine running a Loop for one activation.
type Spinner struct {
	loop   *Loop
	logger log.Logger

	wg   sync.WaitGroup
	done chan struct{}
}

// StartSpinner runs loop.Run on a new goroutine.
func StartSpinner(loop *Loop, logger log.Logger) *Spinner {
	s := &Spinner{
		loop:   loop,
		logger: log.OrNoop(logger),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.done)
		loop.Run()
		s.logger.Info("Spinner stopped.")
	}()
	return s
}

// Done is closed when the loop has returned.
func (s *Spinner) Done() <-chan struct{} {
	return s.done
}

// Alive reports whether the loop goroutine is still running.
func (s *Spinner) Alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Join waits for the loop goroutine to return. A timeout <= 0 waits forever.
// Returns ErrJoinTimeout if the timeout expires first.
func (s *Spinner) Join(timeout time.Duration) error {
	if timeout <= 0 {
		s.wg.Wait()
		return nil
	}

	select {
	case <-s.done:
		s.wg.Wait()
		return nil
	case <-time.After(timeout):
		s.logger.Warn("spinner join timeout",
			log.Duration("timeout", timeout),
			log.Int("pending_jobs", s.loop.Pending()),
		)
		return ErrJoinTimeout
	}
}

package evloop

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bft-labs/canmaster/pkg/log"
)

func TestPollContext_ShutdownIdempotent(t *testing.T) {
	c := NewPollContext()
	if c.IsShutdown() {
		t.Fatal("new context should not be shut down")
	}

	c.Shutdown()
	c.Shutdown()

	if !c.IsShutdown() {
		t.Error("context should be shut down")
	}
	select {
	case <-c.Done():
	default:
		t.Error("Done() should be closed")
	}
}

func TestLoop_RunsJobsInOrder(t *testing.T) {
	ctx := NewPollContext()
	loop := NewLoop(ctx)
	exec := loop.Executor()

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		if err := exec.Post(func() { got = append(got, i) }); err != nil {
			t.Fatalf("Post() error = %v", err)
		}
	}
	if err := exec.Post(ctx.Shutdown); err != nil {
		t.Fatalf("Post(shutdown) error = %v", err)
	}

	loop.Run()

	if len(got) != 100 {
		t.Fatalf("ran %d jobs, want 100", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("job %d ran at position %d", v, i)
		}
	}
	if !loop.Stopped() {
		t.Error("loop should report stopped after Run returns")
	}
}

func TestLoop_DrainsJobsQueuedBeforeShutdown(t *testing.T) {
	ctx := NewPollContext()
	loop := NewLoop(ctx)
	exec := loop.Executor()

	ran := 0
	_ = exec.Post(ctx.Shutdown)
	_ = exec.Post(func() { ran++ })
	_ = exec.Post(func() { ran++ })

	loop.Run()

	if ran != 2 {
		t.Errorf("ran = %d, want 2", ran)
	}
}

func TestExecutor_PostAfterStop(t *testing.T) {
	ctx := NewPollContext()
	loop := NewLoop(ctx)
	ctx.Shutdown()
	loop.Run()

	if err := loop.Executor().Post(func() {}); err != ErrLoopStopped {
		t.Errorf("Post() error = %v, want ErrLoopStopped", err)
	}
}

func TestExecutor_ConcurrentPosters(t *testing.T) {
	ctx := NewPollContext()
	loop := NewLoop(ctx)
	exec := loop.Executor()
	spinner := StartSpinner(loop, log.NewNoopLogger())

	const posters, perPoster = 8, 50
	var (
		mu    sync.Mutex
		count int
		wg    sync.WaitGroup
	)
	for p := 0; p < posters; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perPoster; i++ {
				_ = exec.Post(func() {
					mu.Lock()
					count++
					mu.Unlock()
				})
			}
		}()
	}
	wg.Wait()
	_ = exec.Post(ctx.Shutdown)

	if err := spinner.Join(5 * time.Second); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if count != posters*perPoster {
		t.Errorf("count = %d, want %d", count, posters*perPoster)
	}
}

func TestSpinner_JoinAfterStopJob(t *testing.T) {
	ctx := NewPollContext()
	loop := NewLoop(ctx)
	s := StartSpinner(loop, nil)

	if !s.Alive() {
		t.Fatal("spinner should be alive before the stop job")
	}

	_ = loop.Executor().Post(ctx.Shutdown)

	if err := s.Join(5 * time.Second); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if s.Alive() {
		t.Error("spinner should not be alive after Join")
	}
}

func TestSpinner_JoinTimeout(t *testing.T) {
	ctx := NewPollContext()
	loop := NewLoop(ctx)
	exec := loop.Executor()

	// A job that keeps re-posting itself never lets the loop go idle.
	var stop atomic.Bool
	var again Job
	again = func() {
		time.Sleep(time.Millisecond)
		if !stop.Load() {
			_ = exec.Post(again)
		}
	}
	_ = exec.Post(again)
	s := StartSpinner(loop, nil)
	_ = exec.Post(ctx.Shutdown)

	if err := s.Join(50 * time.Millisecond); err != ErrJoinTimeout {
		t.Fatalf("Join() error = %v, want ErrJoinTimeout", err)
	}
	if !s.Alive() {
		t.Error("spinner should still be alive after a join timeout")
	}

	stop.Store(true)
	if err := s.Join(5 * time.Second); err != nil {
		t.Fatalf("Join() after stopping the recurring job error = %v", err)
	}
}

package simkernel

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ContextFactory resumes a batch of runnable actors for one round and
// returns only once every actor in the batch has parked at a simcall or
// terminated — the barrier the maestro waits on before it starts inspecting
// simcalls. Actor-visible semantics are identical regardless of which
// factory a kernel uses; the choice only affects whether actor code in a
// single round executes serially or on a bounded worker pool.
type ContextFactory interface {
	resumeBatch(actors []*Actor)
}

// serialContextFactory resumes actors one at a time on the calling
// (kernel) goroutine. This is the default: zero goroutine overhead, and
// a total order over actor execution that is trivial to reason about.
type serialContextFactory struct{}

func (serialContextFactory) resumeBatch(actors []*Actor) {
	for _, a := range actors {
		a.resumeCh <- struct{}{}
		<-a.doneCh
	}
}

// parallelContextFactory resumes the actors of a round concurrently,
// bounded to a fixed worker count via a weighted semaphore, and barriers on
// a WaitGroup before returning. It never touches kernel state itself —
// only the resume/done handshake — so the concurrency it introduces is
// confined to actor code between simcalls; simcall dispatch itself always
// happens back on the kernel goroutine, after this barrier.
type parallelContextFactory struct {
	sem *semaphore.Weighted
}

func newParallelContextFactory(workers int) *parallelContextFactory {
	if workers < 1 {
		workers = 1
	}
	return &parallelContextFactory{sem: semaphore.NewWeighted(int64(workers))}
}

func (f *parallelContextFactory) resumeBatch(actors []*Actor) {
	var wg sync.WaitGroup
	for _, a := range actors {
		a := a
		wg.Add(1)
		// Acquire cannot fail with a Background context (no deadline, no
		// cancellation); the error is structurally unreachable here.
		_ = f.sem.Acquire(context.Background(), 1)
		go func() {
			defer wg.Done()
			defer f.sem.Release(1)
			a.resumeCh <- struct{}{}
			<-a.doneCh
		}()
	}
	wg.Wait()
}

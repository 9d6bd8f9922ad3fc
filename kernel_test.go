package simkernel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSleepAdvancesClock covers scenario 1: one actor sleeps 5 seconds,
// then records now(); the recorded value is start + 5.
func TestSleepAdvancesClock(t *testing.T) {
	k, err := NewKernel()
	require.NoError(t, err)

	var observed TimePoint
	k.Spawn(func(ac *ActorContext) {
		start := ac.Now()
		require.NoError(t, ac.Sleep(5))
		observed = ac.Now()
		require.Equal(t, start.Add(5), observed)
	})

	require.NoError(t, k.Run())
	require.Equal(t, TimePoint(5), observed)
}

// TestMutexContention covers scenario 2: A1 acquires M at t=0, sleeps 3,
// releases; A2 calls lock(M) at t=1. A2's lock call returns at t=3.
func TestMutexContention(t *testing.T) {
	k, err := NewKernel()
	require.NoError(t, err)

	m := NewMutex()
	var a2LockedAt TimePoint

	k.Spawn(func(ac *ActorContext) {
		require.NoError(t, m.Lock(ac))
		require.NoError(t, ac.Sleep(3))
		require.NoError(t, m.Unlock(ac))
	})
	k.Spawn(func(ac *ActorContext) {
		require.NoError(t, ac.Sleep(1))
		require.NoError(t, m.Lock(ac))
		a2LockedAt = ac.Now()
	})

	require.NoError(t, k.Run())
	require.Equal(t, TimePoint(3), a2LockedAt)
}

// TestKernelFutureFanOut covers scenario 3: a promise with two independent
// then chains both resolve from the same set_value call, with independent
// results.
func TestKernelFutureFanOut(t *testing.T) {
	k, err := NewKernel()
	require.NoError(t, err)

	var branchA, branchB int
	var done bool

	k.Spawn(func(ac *ActorContext) {
		_, err := KernelSync(ac, func(k *Kernel) Future[struct{}] {
			p := NewPromise[int](k)
			f, _ := p.Future()

			outA := Then(f, func(f Future[int]) (int, error) {
				v, err := f.Get()
				return v + 1, err
			})
			outB := Then(f, func(f Future[int]) (int, error) {
				v, err := f.Get()
				return v * 2, err
			})

			done2 := NewPromise[struct{}](k)
			df, _ := done2.Future()
			ThenVoid(outA, func(f Future[int]) { branchA, _ = f.Get() })
			ThenVoid(outB, func(f Future[int]) {
				branchB, _ = f.Get()
				done = true
				_ = done2.SetValue(struct{}{})
			})

			_ = p.SetValue(42)
			return df
		})
		require.NoError(t, err)
	})

	require.NoError(t, k.Run())
	require.True(t, done)
	require.Equal(t, 43, branchA)
	require.Equal(t, 84, branchB)
}

// TestCondTimeoutReacquiresMutex covers scenario 4: A2 holds M, calls
// wait_for(cv, M, 2) with a predicate (here: nothing ever notifies) that
// never becomes true. At t=2, A2's wait_for returns timeout, and A2 holds M
// again — verified by a concurrent actor's TryLock failing.
func TestCondTimeoutReacquiresMutex(t *testing.T) {
	k, err := NewKernel()
	require.NoError(t, err)

	m := NewMutex()
	cv := NewCond()
	var timedOutAt TimePoint
	var woke bool
	var relockOK bool

	k.Spawn(func(ac *ActorContext) {
		require.NoError(t, m.Lock(ac))
		var err error
		woke, err = cv.WaitFor(ac, m, 2)
		require.NoError(t, err)
		timedOutAt = ac.Now()
		require.NoError(t, ac.Sleep(1))
		require.NoError(t, m.Unlock(ac))
	})
	k.Spawn(func(ac *ActorContext) {
		require.NoError(t, ac.Sleep(2.5))
		var err error
		relockOK, err = m.TryLock(ac)
		require.NoError(t, err)
	})

	require.NoError(t, k.Run())
	require.False(t, woke)
	require.Equal(t, TimePoint(2), timedOutAt)
	require.False(t, relockOK, "mutex should still be held by the first actor after its wait timed out")
}

// TestDeadlockDetected covers scenario 5: two actors each hold one mutex
// and wait for the other.
func TestDeadlockDetected(t *testing.T) {
	k, err := NewKernel()
	require.NoError(t, err)

	m1 := NewMutex()
	m2 := NewMutex()

	k.Spawn(func(ac *ActorContext) {
		require.NoError(t, m1.Lock(ac))
		require.NoError(t, ac.Sleep(1))
		require.NoError(t, m2.Lock(ac))
		require.NoError(t, m2.Unlock(ac))
		require.NoError(t, m1.Unlock(ac))
	})
	k.Spawn(func(ac *ActorContext) {
		require.NoError(t, m2.Lock(ac))
		require.NoError(t, ac.Sleep(1))
		require.NoError(t, m1.Lock(ac))
		require.NoError(t, m1.Unlock(ac))
		require.NoError(t, m2.Unlock(ac))
	})

	err = k.Run()
	var deadlock *DeadlockError
	require.ErrorAs(t, err, &deadlock)
	require.Len(t, deadlock.BlockedActors, 2)
	require.ErrorIs(t, err, ErrDeadlock)
}

// TestKernelSyncComposesWithChainedFuture covers scenario 6: an actor
// calls kernel_sync with a closure returning timer_future(30).then(...),
// resuming at t=30 with the chained value.
func TestKernelSyncComposesWithChainedFuture(t *testing.T) {
	k, err := NewKernel()
	require.NoError(t, err)

	var result int
	var resumedAt TimePoint

	k.Spawn(func(ac *ActorContext) {
		v, err := KernelSync(ac, func(k *Kernel) Future[int] {
			p := NewPromise[struct{}](k)
			f, _ := p.Future()
			k.events.schedule(30, func() { _ = p.SetValue(struct{}{}) })
			return Then(f, func(f Future[struct{}]) (int, error) {
				_, err := f.Get()
				return 42, err
			})
		})
		require.NoError(t, err)
		result = v
		resumedAt = ac.Now()
	})

	require.NoError(t, k.Run())
	require.Equal(t, 42, result)
	require.Equal(t, TimePoint(30), resumedAt)
}

// TestImmediateIdempotence covers the "immediate idempotence" law:
// kernel_immediate returning x does not advance the clock.
func TestImmediateIdempotence(t *testing.T) {
	k, err := NewKernel()
	require.NoError(t, err)

	var before, after TimePoint
	var got int

	k.Spawn(func(ac *ActorContext) {
		before = ac.Now()
		v, err := RunImmediate(ac, func() (int, error) { return 7, nil })
		require.NoError(t, err)
		got = v
		after = ac.Now()
	})

	require.NoError(t, k.Run())
	require.Equal(t, 7, got)
	require.Equal(t, before, after)
}

// TestPromiseAlreadySatisfied covers the "at most one successful set"
// invariant.
func TestPromiseAlreadySatisfied(t *testing.T) {
	k, err := NewKernel()
	require.NoError(t, err)

	k.Spawn(func(ac *ActorContext) {
		_, err := KernelImmediate(ac, func(k *Kernel) (struct{}, error) {
			p := NewPromise[int](k)
			require.NoError(t, p.SetValue(1))
			err := p.SetValue(2)
			require.ErrorIs(t, err, ErrAlreadySatisfied)
			return struct{}{}, nil
		})
		require.NoError(t, err)
	})
	require.NoError(t, k.Run())
}

// TestFutureGetBeforeReadyIsDeadlock covers Future.Get's local-deadlock
// rule: calling Get on a not-yet-ready kernel future fails with
// ErrDeadlock rather than blocking.
func TestFutureGetBeforeReadyIsDeadlock(t *testing.T) {
	k, err := NewKernel()
	require.NoError(t, err)

	p := NewPromise[int](k)
	f, err := p.Future()
	require.NoError(t, err)

	_, err = f.Get()
	require.ErrorIs(t, err, ErrDeadlock)
}

// TestActorPanicIsFatal covers the "non-stop actor exception is fatal"
// propagation rule.
func TestActorPanicIsFatal(t *testing.T) {
	k, err := NewKernel()
	require.NoError(t, err)

	boom := errors.New("boom")
	k.Spawn(func(ac *ActorContext) {
		panic(boom)
	})

	err = k.Run()
	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	var panicErr PanicError
	require.ErrorAs(t, err, &panicErr)
	require.ErrorIs(t, err, boom)
}

// TestParallelContextFactoryMatchesSerial asserts the parallel context
// factory produces the same observable outcome (final values, final clock)
// as the serial one for the same program, per the "scheduling optimisation
// only" design note.
func TestParallelContextFactoryMatchesSerial(t *testing.T) {
	run := func(opts ...KernelOption) (TimePoint, []int) {
		k, err := NewKernel(opts...)
		require.NoError(t, err)
		var order []int
		m := NewMutex()
		for i := 0; i < 5; i++ {
			i := i
			k.Spawn(func(ac *ActorContext) {
				require.NoError(t, m.Lock(ac))
				order = append(order, i)
				require.NoError(t, m.Unlock(ac))
			})
		}
		require.NoError(t, k.Run())
		return k.Now(), order
	}

	serialNow, serialOrder := run()
	parallelNow, parallelOrder := run(WithWorkerCount(4))

	require.Equal(t, serialNow, parallelNow)
	require.ElementsMatch(t, serialOrder, parallelOrder)
	require.Len(t, parallelOrder, 5)
}

// TestKernelStopUnblocksAndRunsCleanup covers spec §4.1's requirement that
// Stop propagate through an actor's own scoped destructors: an actor parked
// on a kernel future that never settles is forced to unwind via the stop
// signal, its registered cleanup still runs, and the actor's own recover
// (ahead of the goroutine trampoline's) observes ErrStopped.
func TestKernelStopUnblocksAndRunsCleanup(t *testing.T) {
	k, err := NewKernel()
	require.NoError(t, err)

	var cleanedUp bool
	var sawErrStopped bool

	k.Spawn(func(ac *ActorContext) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if err, ok := r.(error); ok && errors.Is(err, ErrStopped) {
				sawErrStopped = true
			}
			panic(r)
		}()
		af := KernelAsync(ac, func(k *Kernel) Future[struct{}] {
			p := NewPromise[struct{}](k)
			f, _ := p.Future()
			return f // never settled; only Stop can unpark this actor
		})
		_, _ = af.Get()
	}, WithCleanup(func() { cleanedUp = true }))

	k.Spawn(func(ac *ActorContext) {
		require.NoError(t, ac.Sleep(1))
		_, err := KernelImmediate(ac, func(k *Kernel) (struct{}, error) {
			k.Stop()
			return struct{}{}, nil
		})
		require.NoError(t, err)
	})

	require.NoError(t, k.Run())
	require.True(t, cleanedUp, "cleanup must run even when the actor is unwound by Stop")
	require.True(t, sawErrStopped, "actor code should be able to identify the stop marker via errors.Is")
}

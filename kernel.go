package simkernel

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Kernel is the maestro: the single-threaded scheduler that owns simulated
// time, the pending-event queue, and the kernel future ready list, and
// drives actor goroutines through a [ContextFactory]. A Kernel must only be
// driven by one goroutine at a time (the one calling [Kernel.Run]); that
// goroutine's identity becomes "the kernel goroutine" for the duration of
// the call, the same way the teacher event loop pins loopGoroutineID for
// the duration of Loop.Run.
type Kernel struct {
	clock  Clock
	events *pendingEvents

	// ready holds kernel future continuations awaiting their turn; it is
	// only ever appended to and drained from the kernel goroutine.
	ready []func()

	actors map[uuid.UUID]*Actor
	toRun  []*Actor

	legacyHandlers map[int]LegacyHandler

	contextFactory ContextFactory
	logger         Logger
	overloadLog    *rateLimitedLogger
	metrics        kernelMetrics
	metricsEnabled bool
	onOverload     func(int)
	strictFuture   bool

	goroutineID atomic.Uint64
	running     atomic.Bool
	firstFatal  error
}

// NewKernel constructs a Kernel, ready for [Kernel.Spawn] and [Kernel.Run].
func NewKernel(opts ...KernelOption) (*Kernel, error) {
	cfg, err := resolveKernelOptions(opts)
	if err != nil {
		return nil, err
	}
	k := &Kernel{
		events:         newPendingEvents(),
		actors:         make(map[uuid.UUID]*Actor),
		legacyHandlers: make(map[int]LegacyHandler),
		logger:         cfg.logger,
		overloadLog:    newRateLimitedLogger(cfg.logger, time.Second, 1),
		metricsEnabled: cfg.metricsEnabled,
		onOverload:     cfg.onOverload,
		strictFuture:   cfg.strictFutureMode,
	}
	if cfg.workerCount > 1 {
		k.contextFactory = newParallelContextFactory(cfg.workerCount)
	} else {
		k.contextFactory = serialContextFactory{}
	}
	return k, nil
}

// Now returns the current simulated time. The clock only advances from the
// kernel goroutine, between rounds, and is read without synchronization:
// call Now from the kernel goroutine, from actor code during its turn, or
// while Run is not executing.
func (k *Kernel) Now() TimePoint {
	return k.clock.Now()
}

// Metrics returns a snapshot of the kernel's internal counters. Populated
// only when [WithMetrics] was enabled at construction; otherwise a zero
// value.
func (k *Kernel) Metrics() Metrics {
	return k.metrics.snapshot()
}

// ActorOption configures a newly spawned [Actor].
type ActorOption func(*Actor)

// WithCleanup registers a function to run once, after the actor's code
// returns or is stopped, before the actor is removed from the kernel.
func WithCleanup(fn CleanupFunc) ActorOption {
	return func(a *Actor) {
		a.cleanup = fn
	}
}

// Spawn creates a new actor running fn and schedules it to run on the next
// round. fn receives an [ActorContext] bound to this kernel; it must not be
// shared with, or called from, any other actor.
func (k *Kernel) Spawn(fn ActorFunc, opts ...ActorOption) *Actor {
	a := newActor(uuid.New())
	for _, o := range opts {
		o(a)
	}
	ac := &ActorContext{actor: a, kernel: k}
	k.actors[a.ID] = a
	if k.metricsEnabled {
		k.metrics.actorsSpawned.Add(1)
	}
	a.start(ac, fn)
	k.toRun = append(k.toRun, a)
	return a
}

// ActorCount returns the number of actors not yet terminated.
func (k *Kernel) ActorCount() int {
	return len(k.actors)
}

// Run drains the schedule until every actor has terminated, or until a
// deadlock or fatal condition is detected. It is not reentrant: calling Run
// on the kernel goroutine (from a kernel future continuation or a simcall's
// kernel-side closure) fails with [ErrReentrantRun]; calling it from any
// other goroutine while it is running, including from actor code (which runs
// on the actor's own goroutine), fails with [ErrLoopAlreadyRunning].
func (k *Kernel) Run() error {
	if k.isKernelGoroutine() {
		return ErrReentrantRun
	}
	if !k.running.CompareAndSwap(false, true) {
		return ErrLoopAlreadyRunning
	}
	defer k.running.Store(false)

	k.goroutineID.Store(getGoroutineID())
	defer k.goroutineID.Store(0)

	for {
		k.drainReady()

		if len(k.toRun) > 0 {
			batch := k.toRun
			k.toRun = nil
			if k.metricsEnabled {
				k.metrics.observeReadyLen(len(batch))
			}
			k.contextFactory.resumeBatch(batch)
			for _, a := range batch {
				k.settleActorTurn(a)
			}
			if k.metricsEnabled {
				k.metrics.rounds.Add(1)
			}
			if k.firstFatal != nil {
				return k.firstFatal
			}
			continue
		}

		if k.events.len() > 0 {
			k.events.popAndFire(&k.clock)
			if k.metricsEnabled {
				k.metrics.eventsFired.Add(1)
			}
			continue
		}

		if len(k.actors) == 0 {
			return nil
		}

		var blocked []uuid.UUID
		for id, a := range k.actors {
			if a.state == ActorBlocked {
				blocked = append(blocked, id)
			}
		}
		if len(blocked) == 0 {
			// Actors remain but none are blocked, runnable, or pending an
			// event: an internal scheduling invariant was violated.
			return &FatalError{Cause: fmt.Errorf("simkernel: scheduler quiescent with %d live actor(s) in no known state", len(k.actors))}
		}
		return &DeadlockError{BlockedActors: blocked}
	}
}

// settleActorTurn processes the simcall an actor parked at (or its
// termination) after its resumption this round. A blocking simcall leaves
// the actor parked until some later continuation or event unblocks it. An
// immediate or legacy simcall only marks the actor runnable again for the
// next round: its next simcall is picked up by a fresh run_all/dispatch
// pass together with every other actor from this round, rather than being
// redriven here in place — an actor that chains several immediate simcalls
// must not run to completion before its round-mates get their turn.
func (k *Kernel) settleActorTurn(a *Actor) {
	if a.state == ActorTerminated {
		k.onActorTerminated(a)
		return
	}
	rec := a.pendingSimcall
	a.pendingSimcall = nil
	if rec == nil {
		// Forced onto the run queue (e.g. by Stop) without a fresh
		// simcall in flight; nothing further to dispatch this turn.
		return
	}
	switch rec.tag {
	case SimcallBlocking:
		a.state = ActorBlocked
		rec.closure()
	default:
		rec.closure()
		k.unblock(a)
	}
	if k.strictFuture {
		k.drainReady()
	}
}

func (k *Kernel) onActorTerminated(a *Actor) {
	delete(k.actors, a.ID)
	if k.metricsEnabled {
		k.metrics.actorsTerminated.Add(1)
	}
	if a.fatal != nil && k.firstFatal == nil {
		k.firstFatal = &FatalError{ActorID: a.ID, Cause: a.fatal}
	}
}

// drainReady runs every continuation currently queued, including ones
// enqueued by continuations it runs along the way. Continuations never run
// inline from Promise.settle; this is the only place they run.
func (k *Kernel) drainReady() {
	for len(k.ready) > 0 {
		cont := k.ready[0]
		k.ready[0] = nil
		k.ready = k.ready[1:]
		if len(k.ready) > readyOverloadThreshold {
			k.overloadLog.warnRateLimited("ready-overload", "simkernel: ready list length %d exceeds overload threshold %d", len(k.ready), readyOverloadThreshold)
			if k.onOverload != nil {
				k.onOverload(len(k.ready))
			}
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					k.logger.Errorf("simkernel: kernel future continuation panicked: %v", r)
				}
			}()
			cont()
		}()
	}
}

const readyOverloadThreshold = 1024

// enqueueReady schedules cont to run later, from drainReady, never inline.
func (k *Kernel) enqueueReady(cont func()) {
	k.ready = append(k.ready, cont)
	if k.metricsEnabled {
		k.metrics.observeReadyLen(len(k.ready))
	}
}

// unblock moves a from blocked back to runnable, for the next round.
func (k *Kernel) unblock(a *Actor) {
	a.state = ActorRunnable
	k.toRun = append(k.toRun, a)
}

// Stop requests every live actor to terminate at its next resumption, and
// wakes any currently blocked actor so that resumption happens promptly
// rather than waiting on whatever it was blocked on.
func (k *Kernel) Stop() {
	k.assertKernelGoroutine("Kernel.Stop")
	for _, a := range k.actors {
		a.requestStop()
		if a.state == ActorBlocked {
			k.unblock(a)
		}
	}
}

// isKernelGoroutine reports whether the calling goroutine is the one
// currently executing Run.
func (k *Kernel) isKernelGoroutine() bool {
	id := k.goroutineID.Load()
	if id == 0 {
		return false
	}
	return getGoroutineID() == id
}

// assertKernelGoroutine panics with a FatalError if called off the kernel
// goroutine; it guards operations (settling a promise, attaching a
// continuation) documented as kernel-goroutine-only.
func (k *Kernel) assertKernelGoroutine(op string) {
	if !k.isKernelGoroutine() {
		panic(&FatalError{Cause: fmt.Errorf("simkernel: %s called off the kernel goroutine", op)})
	}
}

// getGoroutineID returns the calling goroutine's runtime id, parsed out of
// its stack trace header. There is no supported API for this; it is used
// only to detect same-goroutine reentrancy, the same trick the teacher
// event loop uses for its own isLoopThread check.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

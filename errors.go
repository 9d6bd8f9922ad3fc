package simkernel

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Standard sentinel errors, checkable via [errors.Is].
var (
	// ErrNoState is returned by an operation on a future or promise that has
	// no associated shared state (a zero-value or already-consumed handle).
	ErrNoState = errors.New("simkernel: no associated state")

	// ErrAlreadySatisfied is returned by a second attempt to settle a promise.
	ErrAlreadySatisfied = errors.New("simkernel: promise already satisfied")

	// ErrDeadlock is returned by Future.Get on a not-yet-ready kernel
	// future, and by Kernel.Run when the scheduler reaches quiescence with
	// actors still blocked and the pending-event queue empty.
	ErrDeadlock = errors.New("simkernel: deadlock")

	// ErrTimeout is returned by a timed wait (on an actor future or a
	// condition variable) that expired before the awaited event occurred.
	ErrTimeout = errors.New("simkernel: timeout")

	// ErrStopped is the error wrapped by the stop signal raised inside a
	// context at its next resumption after Kernel.Stop. It unwinds the
	// actor's goroutine stack through any deferred cleanup the actor's own
	// code registered, and is swallowed at the goroutine trampoline — actor
	// code does not normally observe it directly, except by placing its own
	// recover ahead of the trampoline's and checking
	// errors.Is(recovered, ErrStopped).
	ErrStopped = errors.New("simkernel: actor stopped")

	// ErrKernelTerminated names the condition of operating on a kernel that
	// has already finished running. No function in this package returns it:
	// calling Run again on a finished kernel runs another scheduling pass
	// over whatever it then holds.
	ErrKernelTerminated = errors.New("simkernel: kernel has terminated")

	// ErrLoopAlreadyRunning is returned when Run is called on a kernel that
	// is already running.
	ErrLoopAlreadyRunning = errors.New("simkernel: kernel is already running")

	// ErrReentrantRun is returned when Run is called from within the
	// kernel's own goroutine (e.g. from inside a kernel future continuation
	// or a simcall's kernel-side closure). Actor code runs on its own
	// goroutine; Run called from there fails with ErrLoopAlreadyRunning.
	ErrReentrantRun = errors.New("simkernel: cannot call Run from within the kernel")

	// ErrMutexNotLocked is returned by Mutex.Unlock on a mutex that is not
	// currently held.
	ErrMutexNotLocked = errors.New("simkernel: mutex not locked")
)

func errUnknownLegacyTag(tag int) error {
	return fmt.Errorf("simkernel: no handler registered for legacy simcall tag %d", tag)
}

// SimcallTag identifies which simcall a [FatalError] or diagnostic refers
// to.
type SimcallTag int

const (
	// SimcallUnknown is the zero value, used when no simcall was in flight.
	SimcallUnknown SimcallTag = iota
	// SimcallImmediate identifies the non-blocking generic simcall.
	SimcallImmediate
	// SimcallBlocking identifies the blocking generic simcall.
	SimcallBlocking
	// SimcallLegacy identifies a legacy typed simcall, dispatched by
	// integer tag through the legacy handler table.
	SimcallLegacy
)

func (t SimcallTag) String() string {
	switch t {
	case SimcallImmediate:
		return "immediate"
	case SimcallBlocking:
		return "blocking"
	case SimcallLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// FatalError reports an internal condition that aborts the simulation:
// stack/goroutine allocation failure, an invariant violation, a
// worker-thread error in the parallel context variant, or a user exception
// escaping actor code that was not the stop marker. It identifies the
// offending actor and simcall, per the propagation policy.
type FatalError struct {
	ActorID    uuid.UUID
	SimcallTag SimcallTag
	Cause      error
}

func (e *FatalError) Error() string {
	if e.ActorID == uuid.Nil {
		return fmt.Sprintf("simkernel: fatal: %v", e.Cause)
	}
	return fmt.Sprintf("simkernel: fatal: actor %s (simcall=%s): %v", e.ActorID, e.SimcallTag, e.Cause)
}

func (e *FatalError) Unwrap() error {
	return e.Cause
}

// DeadlockError is returned by [Kernel.Run] when the scheduler reaches
// quiescence (no runnable actors, empty pending-event queue) while live
// actors remain blocked. It names the blocked actors for diagnostics.
type DeadlockError struct {
	BlockedActors []uuid.UUID
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("simkernel: deadlock: %d actor(s) blocked with no pending events: %v", len(e.BlockedActors), e.BlockedActors)
}

func (e *DeadlockError) Unwrap() error {
	return ErrDeadlock
}

// PanicError wraps a panic value recovered from actor code that was not the
// stop marker. It is the Cause carried by the [FatalError] reported for
// that actor, mirroring the teacher event loop's PanicError for recovered
// goroutine panics.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("simkernel: actor panicked: %v", e.Value)
}

func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

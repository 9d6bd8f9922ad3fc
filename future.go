package simkernel

// futureStatus mirrors the monotone status ladder of a kernel future:
// notReady -> ready, never backward.
type futureStatus int

const (
	notReady futureStatus = iota
	ready
)

// futureState is the shared payload of a kernel future/promise pair. It is
// touched only from the kernel goroutine — kernel futures have no blocking
// wait and no internal locking, the same way the teacher's ChainedPromise
// documents that handler resolution is confined to the loop goroutine, just
// taken one step further here since nothing outside the kernel goroutine is
// ever allowed to reach in.
//
// A settled future fans out to any number of independent continuations
// (attached via [Then] or [ThenVoid]) and any number of Get calls; the
// settled value is retained rather than consumed by the first reader.
type futureState[T any] struct {
	k             *Kernel
	status        futureStatus
	value         T
	err           error
	continuations []func()
	futureTaken   bool // get_future callable at most once
}

// Promise is the write side of a kernel future/promise pair. SetValue and
// SetError may each be called at most once in total across the pair;
// subsequent calls fail with [ErrAlreadySatisfied].
type Promise[T any] struct {
	state *futureState[T]
}

// NewPromise creates a new pending promise bound to k's ready list.
func NewPromise[T any](k *Kernel) *Promise[T] {
	return &Promise[T]{state: &futureState[T]{k: k}}
}

// Future returns the [Future] associated with this promise. It may be
// called at most once per promise; subsequent calls return [ErrNoState].
func (p *Promise[T]) Future() (Future[T], error) {
	if p.state == nil || p.state.futureTaken {
		return Future[T]{}, ErrNoState
	}
	p.state.futureTaken = true
	return Future[T]{state: p.state}, nil
}

// SetValue fulfills the promise with v. Returns [ErrAlreadySatisfied] if the
// promise was already settled.
func (p *Promise[T]) SetValue(v T) error {
	return p.settle(v, nil)
}

// SetError rejects the promise with err. Returns [ErrAlreadySatisfied] if
// the promise was already settled.
func (p *Promise[T]) SetError(err error) error {
	var zero T
	return p.settle(zero, err)
}

func (p *Promise[T]) settle(v T, err error) error {
	s := p.state
	s.k.assertKernelGoroutine("Promise.settle")
	if s.status != notReady {
		return ErrAlreadySatisfied
	}
	s.status = ready
	s.value = v
	s.err = err
	// Scheduling rule: continuations are never invoked inline here. Each is
	// enqueued on the kernel's ready list and drained as part of the
	// scheduler's event-processing step — every continuation attached so
	// far fires, fan-out style, in the order it was attached.
	conts := s.continuations
	s.continuations = nil
	for _, cont := range conts {
		s.k.enqueueReady(cont)
	}
	return nil
}

// Future is a read-many handle to a kernel future's result: it fans out to
// any number of [Future.Get] calls and any number of [Then]/[ThenVoid]
// continuations attached to copies of the same handle. It has no blocking
// wait; its use is restricted to the kernel goroutine.
type Future[T any] struct {
	state *futureState[T]
}

// Valid reports whether this handle refers to live shared state (it is not
// the zero value).
func (f Future[T]) Valid() bool {
	return f.state != nil
}

// IsReady reports whether the future has settled.
func (f Future[T]) IsReady() bool {
	return f.state != nil && f.state.status >= ready
}

// Get returns the settled value, or rethrows the stored error. It never
// blocks: calling Get on a handle with no state fails with [ErrNoState];
// calling it before the future is ready fails with [ErrDeadlock], per the
// "local deadlock" rule for kernel futures. Get may be called any number of
// times, including from multiple independent continuations fanned out from
// the same promise — the settled value is retained, not consumed.
func (f Future[T]) Get() (T, error) {
	var zero T
	if f.state == nil {
		return zero, ErrNoState
	}
	if f.state.status == notReady {
		return zero, ErrDeadlock
	}
	return f.state.value, f.state.err
}

// attachContinuation arranges for cb to be scheduled (never called inline)
// once the future settles. Any number of continuations may be attached to
// the same state, fanning out independently off a single settle.
func (f Future[T]) attachContinuation(cb func()) error {
	if f.state == nil {
		return ErrNoState
	}
	f.state.k.assertKernelGoroutine("Future.attachContinuation")
	if f.state.status >= ready {
		f.state.k.enqueueReady(cb)
		return nil
	}
	f.state.continuations = append(f.state.continuations, cb)
	return nil
}

// Then attaches a continuation to f and returns a new future carrying the
// continuation's outcome. f may still be used afterward — calling Then or
// ThenVoid again on it attaches an independent, fanned-out continuation.
// The continuation always receives the settled future itself (not the
// unwrapped value), so it may observe an error by calling Get on it; any
// panic inside the continuation is captured as the produced future's error
// rather than escaping onto the kernel goroutine.
func Then[T, R any](f Future[T], cont func(Future[T]) (R, error)) Future[R] {
	p := NewPromise[R](f.state.k)
	out, _ := p.Future()
	err := f.attachContinuation(func() {
		v, err := safeCall(func() (R, error) { return cont(f) })
		if err != nil {
			_ = p.SetError(err)
		} else {
			_ = p.SetValue(v)
		}
	})
	if err != nil {
		_ = p.SetError(err)
	}
	return out
}

// ThenVoid is like Then but discards the continuation's return value and
// does not allocate a new future — a cheaper chain terminator for
// fire-and-forget reactions.
func ThenVoid[T any](f Future[T], cont func(Future[T])) {
	_ = f.attachContinuation(func() {
		_ = safeCallVoid(func() { cont(f) })
	})
}

func safeCallVoid(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r}
		}
	}()
	f()
	return nil
}

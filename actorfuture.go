package simkernel

// ActorFuture is a wait-based handle to a kernel future's eventual result,
// usable from actor code: unlike [Future], it blocks the calling actor
// (via the blocking simcall) rather than requiring a continuation. Get,
// WaitFor, and WaitUntil do not consume it: the underlying kernel future
// retains its settled value, so they may be called again.
type ActorFuture[T any] struct {
	kf Future[T]
	ac *ActorContext
}

// Get blocks the calling actor until the underlying kernel future settles,
// then returns its value or error.
func (af ActorFuture[T]) Get() (T, error) {
	if !af.kf.Valid() {
		var zero T
		return zero, ErrNoState
	}
	return RunBlocking(af.ac, func(k *Kernel, settle func(T, error)) {
		err := af.kf.attachContinuation(func() {
			v, err := af.kf.Get()
			settle(v, err)
		})
		if err != nil {
			var zero T
			settle(zero, err)
		}
	})
}

// WaitFor blocks the calling actor until the underlying kernel future
// settles or d elapses, whichever comes first. On timeout it returns
// [ErrTimeout].
func (af ActorFuture[T]) WaitFor(d Duration) (T, error) {
	return af.waitUntil(af.ac.Now().Add(d))
}

// WaitUntil is WaitFor expressed as an absolute deadline.
func (af ActorFuture[T]) WaitUntil(deadline TimePoint) (T, error) {
	return af.waitUntil(deadline)
}

func (af ActorFuture[T]) waitUntil(deadline TimePoint) (T, error) {
	if !af.kf.Valid() {
		var zero T
		return zero, ErrNoState
	}
	return RunBlocking(af.ac, func(k *Kernel, settle func(T, error)) {
		done := false
		var handle EventHandle
		err := af.kf.attachContinuation(func() {
			if done {
				return
			}
			done = true
			k.events.cancel(handle)
			v, err := af.kf.Get()
			settle(v, err)
		})
		if err != nil {
			done = true
			var zero T
			settle(zero, err)
			return
		}
		handle = k.events.schedule(deadline, func() {
			if done {
				return
			}
			done = true
			var zero T
			settle(zero, ErrTimeout)
		})
	})
}

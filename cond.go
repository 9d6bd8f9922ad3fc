package simkernel

// Cond is a simulated-time condition variable, always used together with a
// [Mutex]: Wait atomically releases the mutex and blocks the actor, and
// re-acquires the mutex before returning, the same release/block/reacquire
// contract as a standard condition variable.
type Cond struct {
	waiters []*Promise[struct{}]
}

// NewCond returns a new, empty condition variable.
func NewCond() *Cond {
	return &Cond{}
}

// Wait releases mu, blocks until notified, then re-acquires mu before
// returning. The caller must hold mu.
func (c *Cond) Wait(ac *ActorContext, mu *Mutex) error {
	_, err := KernelSync(ac, func(k *Kernel) Future[struct{}] {
		p := NewPromise[struct{}](k)
		f, _ := p.Future()
		c.waiters = append(c.waiters, p)
		_ = mu.unlockLocked(k)
		return f
	})
	if lockErr := mu.Lock(ac); lockErr != nil && err == nil {
		err = lockErr
	}
	return err
}

// WaitFor is Wait with a timeout: it returns woke=false if d elapsed before
// a notification arrived. Either way, mu is re-acquired before returning.
func (c *Cond) WaitFor(ac *ActorContext, mu *Mutex, d Duration) (woke bool, err error) {
	return c.waitUntil(ac, mu, ac.Now().Add(d))
}

// WaitUntil is WaitFor expressed as an absolute deadline.
func (c *Cond) WaitUntil(ac *ActorContext, mu *Mutex, deadline TimePoint) (woke bool, err error) {
	return c.waitUntil(ac, mu, deadline)
}

func (c *Cond) waitUntil(ac *ActorContext, mu *Mutex, deadline TimePoint) (bool, error) {
	timedOut := false
	var p *Promise[struct{}]
	_, err := RunBlocking(ac, func(k *Kernel, settle func(struct{}, error)) {
		p = NewPromise[struct{}](k)
		f, _ := p.Future()
		c.waiters = append(c.waiters, p)
		_ = mu.unlockLocked(k)

		done := false
		var handle EventHandle
		_ = f.attachContinuation(func() {
			if done {
				return
			}
			done = true
			k.events.cancel(handle)
			_, err := f.Get()
			settle(struct{}{}, err)
		})
		handle = k.events.schedule(deadline, func() {
			if done {
				return
			}
			done = true
			timedOut = true
			c.removeWaiter(p)
			settle(struct{}{}, nil)
		})
	})
	if lockErr := mu.Lock(ac); lockErr != nil && err == nil {
		err = lockErr
	}
	return !timedOut, err
}

func (c *Cond) removeWaiter(p *Promise[struct{}]) {
	for i, w := range c.waiters {
		if w == p {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

// NotifyOne wakes the single longest-waiting actor blocked in Wait, if any.
func (c *Cond) NotifyOne(ac *ActorContext) error {
	_, err := KernelImmediate(ac, func(k *Kernel) (struct{}, error) {
		if len(c.waiters) > 0 {
			p := c.waiters[0]
			c.waiters = c.waiters[1:]
			_ = p.SetValue(struct{}{})
		}
		return struct{}{}, nil
	})
	return err
}

// NotifyAll wakes every actor currently blocked in Wait.
func (c *Cond) NotifyAll(ac *ActorContext) error {
	_, err := KernelImmediate(ac, func(k *Kernel) (struct{}, error) {
		waiters := c.waiters
		c.waiters = nil
		for _, p := range waiters {
			_ = p.SetValue(struct{}{})
		}
		return struct{}{}, nil
	})
	return err
}

package simkernel

// Mutex is a simulated-time mutual exclusion lock. Waiters queue in FIFO
// order: the next Lock call to unblock after an Unlock is always the one
// that has been waiting longest, matching the fairness most simulated
// workloads assume when modelling critical sections.
type Mutex struct {
	locked  bool
	waiters []*Promise[struct{}]
}

// NewMutex returns an unlocked Mutex.
func NewMutex() *Mutex {
	return &Mutex{}
}

// Lock blocks the calling actor until the mutex is acquired.
func (m *Mutex) Lock(ac *ActorContext) error {
	_, err := KernelSync(ac, func(k *Kernel) Future[struct{}] {
		return m.lockFuture(k)
	})
	return err
}

func (m *Mutex) lockFuture(k *Kernel) Future[struct{}] {
	p := NewPromise[struct{}](k)
	f, _ := p.Future()
	if !m.locked {
		m.locked = true
		_ = p.SetValue(struct{}{})
	} else {
		m.waiters = append(m.waiters, p)
	}
	return f
}

// TryLock attempts to acquire the mutex without blocking, reporting whether
// it succeeded.
func (m *Mutex) TryLock(ac *ActorContext) (bool, error) {
	return KernelImmediate(ac, func(k *Kernel) (bool, error) {
		if m.locked {
			return false, nil
		}
		m.locked = true
		return true, nil
	})
}

// Unlock releases the mutex, transferring ownership directly to the
// longest-waiting blocked actor (if any) rather than leaving it free to be
// raced for. Returns [ErrMutexNotLocked] if the mutex is not held.
func (m *Mutex) Unlock(ac *ActorContext) error {
	_, err := KernelImmediate(ac, func(k *Kernel) (struct{}, error) {
		return struct{}{}, m.unlockLocked(k)
	})
	return err
}

// unlockLocked is the kernel-goroutine-only body of Unlock, reused by Cond
// to atomically release the mutex while enqueuing a wait.
func (m *Mutex) unlockLocked(k *Kernel) error {
	if !m.locked {
		return ErrMutexNotLocked
	}
	if len(m.waiters) > 0 {
		next := m.waiters[0]
		m.waiters = m.waiters[1:]
		_ = next.SetValue(struct{}{})
		return nil
	}
	m.locked = false
	return nil
}

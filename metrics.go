package simkernel

import "sync/atomic"

// Metrics is a snapshot of kernel-internal counters, populated only when
// [WithMetrics] is enabled. Sampling it has no effect on scheduling.
type Metrics struct {
	Rounds           uint64
	EventsFired      uint64
	ActorsSpawned    uint64
	ActorsTerminated uint64
	ReadyHighWater   uint64
}

// kernelMetrics holds the live counters; Metrics is a value copy taken from
// it. All fields are updated only from the kernel goroutine, but read via
// atomics so Metrics() may safely be called concurrently (e.g. from a
// worker goroutine in the parallel context factory, or from outside the
// kernel while it is not running).
type kernelMetrics struct {
	rounds           atomic.Uint64
	eventsFired      atomic.Uint64
	actorsSpawned    atomic.Uint64
	actorsTerminated atomic.Uint64
	readyHighWater   atomic.Uint64
}

func (m *kernelMetrics) snapshot() Metrics {
	return Metrics{
		Rounds:           m.rounds.Load(),
		EventsFired:      m.eventsFired.Load(),
		ActorsSpawned:    m.actorsSpawned.Load(),
		ActorsTerminated: m.actorsTerminated.Load(),
		ReadyHighWater:   m.readyHighWater.Load(),
	}
}

func (m *kernelMetrics) observeReadyLen(n int) {
	for {
		cur := m.readyHighWater.Load()
		if uint64(n) <= cur {
			return
		}
		if m.readyHighWater.CompareAndSwap(cur, uint64(n)) {
			return
		}
	}
}

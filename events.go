package simkernel

import "container/heap"

// EventHandle identifies a previously scheduled event, for cancellation.
type EventHandle uint64

// eventEntry is one node of the pending-event min-heap, keyed by scheduled
// simulated time with insertion order as the tiebreaker (so two events
// scheduled for the same instant fire in the order they were scheduled,
// per the scheduler's ordering guarantee).
type eventEntry struct {
	at        TimePoint
	seq       uint64
	handle    EventHandle
	cancelled bool
	cb        func()
}

// eventHeap implements container/heap.Interface, ordered by (at, seq).
type eventHeap []*eventEntry

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(*eventEntry))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

// pendingEvents is the kernel's event queue: a time-ordered heap of
// callbacks that advance the simulated clock when fired, plus a lookup so
// cancel can find and mark an entry idempotently.
type pendingEvents struct {
	heap    eventHeap
	byHand  map[EventHandle]*eventEntry
	nextSeq uint64
	nextID  uint64
}

func newPendingEvents() *pendingEvents {
	return &pendingEvents{
		byHand: make(map[EventHandle]*eventEntry),
	}
}

func (p *pendingEvents) schedule(at TimePoint, cb func()) EventHandle {
	p.nextID++
	p.nextSeq++
	e := &eventEntry{at: at, seq: p.nextSeq, handle: EventHandle(p.nextID), cb: cb}
	heap.Push(&p.heap, e)
	p.byHand[e.handle] = e
	return e.handle
}

// cancel marks a previously scheduled event as cancelled. Firing a
// cancelled entry is a no-op (idempotent), so cancel is safe to call even
// if the event has already fired or been cancelled before.
func (p *pendingEvents) cancel(h EventHandle) {
	if e, ok := p.byHand[h]; ok {
		e.cancelled = true
		delete(p.byHand, h)
	}
}

func (p *pendingEvents) len() int {
	return p.heap.Len()
}

// popAndFire pops the single earliest entry, advances clock to its time if
// necessary, and fires its callback (unless cancelled). Returns false if
// the queue was empty.
func (p *pendingEvents) popAndFire(clock *Clock) bool {
	if p.heap.Len() == 0 {
		return false
	}
	e := heap.Pop(&p.heap).(*eventEntry)
	delete(p.byHand, e.handle)
	if e.at > clock.now {
		clock.advanceTo(e.at)
	}
	if !e.cancelled && e.cb != nil {
		e.cb()
	}
	return true
}

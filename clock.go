package simkernel

import "fmt"

// TimePoint is an instant of simulated time, expressed in seconds since the
// kernel started. Arithmetic and comparison are total, matching a strictly
// monotone simulated clock.
type TimePoint float64

// Duration is a span of simulated time, in seconds.
type Duration float64

// Second is one simulated second, for readable literals like 5 *
// simkernel.Second.
const Second Duration = 1

// Add returns t advanced by d. d may be negative (used internally when
// comparing deadlines); scheduling a negative delay is handled by callers
// (e.g. [ActorContext.Sleep] treats it as a no-op that still round-trips through
// the scheduler).
func (t TimePoint) Add(d Duration) TimePoint {
	return t + TimePoint(d)
}

// Sub returns the duration between t and u (t - u).
func (t TimePoint) Sub(u TimePoint) Duration {
	return Duration(t - u)
}

func (t TimePoint) String() string {
	return fmt.Sprintf("%gs", float64(t))
}

func (d Duration) String() string {
	return fmt.Sprintf("%gs", float64(d))
}

// Clock is the kernel's monotone simulated clock. Its value changes only
// between event firings, never while an actor is executing — [Clock.Now]
// observes a constant value for the duration of a round.
//
// Clock is not safe for concurrent use; it is owned exclusively by the
// kernel goroutine, the same way the teacher event loop's tick anchor is
// only ever written from its own loop goroutine.
type Clock struct {
	now TimePoint
}

// Now returns the kernel's current view of simulated time.
func (c *Clock) Now() TimePoint {
	return c.now
}

// advanceTo moves the clock forward. Panics if t is before the current
// time — the pending-event queue guarantees its minimum key is always >=
// the current clock, so this would indicate an internal invariant
// violation (a [FatalError]).
func (c *Clock) advanceTo(t TimePoint) {
	if t < c.now {
		panic(&FatalError{Cause: fmt.Errorf("simkernel: clock moved backwards: %s -> %s", c.now, t)})
	}
	c.now = t
}

package simkernel

// Sleep blocks the calling actor for d simulated seconds. A zero or
// negative d still round-trips through the scheduler as a blocking simcall
// (rather than returning immediately), so callers observe consistent
// ordering relative to other actors scheduled for the same instant.
func (ac *ActorContext) Sleep(d Duration) error {
	return ac.SleepUntil(ac.Now().Add(d))
}

// SleepUntil blocks the calling actor until simulated time reaches t. If t
// is not after the current time, the actor is rescheduled for the current
// instant rather than skipped.
func (ac *ActorContext) SleepUntil(t TimePoint) error {
	if t < ac.Now() {
		t = ac.Now()
	}
	_, err := RunBlocking(ac, func(k *Kernel, settle func(struct{}, error)) {
		k.events.schedule(t, func() {
			settle(struct{}{}, nil)
		})
	})
	return err
}

// Package simkernel implements a discrete-event simulation kernel for
// modeling distributed systems as cooperating actors.
//
// # Architecture
//
// Application code is written as a set of actors that behave as though they
// run concurrently, but are in fact multiplexed onto a single-threaded
// scheduler (the maestro) that advances a virtual clock by jumping from one
// scheduled event to the next. Actors interact with the kernel exclusively
// through simcalls ([RunImmediate], [RunBlocking], and the higher-level
// [KernelImmediate], [KernelSync], [KernelAsync] wrappers) — the only points
// at which simulated time may pass and an actor may be blocked and later
// resumed.
//
// A [Future] is the kernel-side, continuation-based completion primitive:
// it never blocks, and its continuations are always scheduled onto the
// kernel's ready list rather than invoked inline. An [ActorFuture] adapts a
// Future for use from actor code, via a blocking simcall.
//
// [Mutex], [Cond], and [ActorContext.Sleep] are the simulated-time
// synchronization primitives layered on top of the simcall boundary and the
// pending-event queue.
//
// # Execution Model
//
// Each round:
//  1. drain the ready list (run settled futures' continuations),
//  2. run every runnable actor until its next simcall or termination,
//  3. dispatch the resulting simcalls,
//  4. repeat from 1 while any actor is runnable,
//  5. otherwise advance the clock to the next pending event and fire it.
//
// The kernel is quiescent (and the simulation ends) once no actors remain
// and the pending-event queue is empty. If the queue is empty while actors
// remain blocked, that is a deadlock, reported via [ErrDeadlock].
//
// # Context Factory Variants
//
// [NewKernel] with [WithWorkerCount](0 or 1) uses the serial context factory:
// actors are resumed one at a time on the kernel goroutine. A worker count
// greater than one switches to the parallel context factory, which resumes
// independent actors concurrently (bounded by a
// golang.org/x/sync/semaphore.Weighted) during the "run all runnable
// actors" step, then joins before the maestro inspects any simcall record.
// Actor-visible semantics are identical between the two; the parallel
// variant is a scheduling optimisation only.
//
// # Usage
//
//	k, err := simkernel.NewKernel()
//	if err != nil {
//		log.Fatal(err)
//	}
//	k.Spawn(func(ac *simkernel.ActorContext) {
//		ac.Sleep(5 * simkernel.Second)
//		fmt.Println("woke at", ac.Now())
//	})
//	if err := k.Run(); err != nil {
//		log.Fatal(err)
//	}
package simkernel

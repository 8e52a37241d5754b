package crouton

import "sync/atomic"

// suspensionImpl is owned by the Scheduler's suspended map. It is the Go
// analogue of Scheduler::SuspensionImpl (spec.md §3): the parked handle, a
// back-pointer to the owning Scheduler, and a single-shot atomic flag
// recording whether a wake has been requested. The flag's false→true
// transition is the one synchronizing event that makes wakeUp callable from
// any goroutine.
type suspensionImpl struct {
	h         *handle
	sched     *Scheduler
	wakeMe    atomic.Bool
	visible   bool // guarded by sched's own-thread rule
	cancelled bool // guarded by sched's own-thread rule
}

// Suspension is a handle to a parked coroutine. Calling WakeUp makes the
// associated coroutine runnable again; at some point its Scheduler will
// return it from the ready queue. Safe to call from any goroutine, exactly
// once with effect (idempotent thereafter).
type Suspension struct {
	impl *suspensionImpl
}

// Valid reports whether this is a non-empty Suspension.
func (s Suspension) Valid() bool { return s.impl != nil }

// WakeUp makes the associated suspended coroutine runnable again. A no-op on
// an empty Suspension, and idempotent: calling it more than once has the
// same effect as calling it once (spec.md §8 "Idempotent wake").
func (s Suspension) WakeUp() {
	if s.impl == nil {
		return
	}
	s.impl.wakeUp()
}

// Cancel removes the associated coroutine from the suspended set without
// waking it. Used when the coroutine frame is about to be destroyed.
func (s Suspension) Cancel() {
	if s.impl == nil {
		return
	}
	s.impl.cancel()
}

func (si *suspensionImpl) wakeUp() {
	if si.wakeMe.CompareAndSwap(false, true) {
		si.visible = false
		sched := si.sched
		si.sched = nil
		sched.wakeUp()
	}
}

func (si *suspensionImpl) cancel() {
	si.cancelled = true
	if si.wakeMe.CompareAndSwap(false, true) {
		si.visible = false
		sched := si.sched
		si.sched = nil
		sched.wakeUp()
	}
}

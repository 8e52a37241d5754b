package crouton

// CoCondition is a cooperative condition variable: a coroutine that Awaits
// it blocks until something calls NotifyOne or NotifyAll. Unlike Blocker,
// it supports any number of waiters and is NOT thread-safe — notify and
// await must both happen on the condition's owning Scheduler's goroutine
// (original_source/include/crouton/CoCondition.hh).
type CoCondition struct {
	waiters []*suspensionImpl
}

// NotifyOne wakes the single longest-waiting coroutine, if any.
func (c *CoCondition) NotifyOne() {
	if len(c.waiters) == 0 {
		return
	}
	w := c.waiters[0]
	c.waiters = c.waiters[1:]
	w.wakeUp()
}

// NotifyAll wakes every currently-waiting coroutine.
func (c *CoCondition) NotifyAll() {
	waiters := c.waiters
	c.waiters = nil
	for _, w := range waiters {
		w.wakeUp()
	}
}

// Await suspends the calling coroutine until NotifyOne or NotifyAll wakes
// it. Must be called from the CoCondition's owning goroutine.
func (c *CoCondition) Await(yield func()) {
	sched := Current()
	susp := sched.suspend(currentHandle())
	c.waiters = append(c.waiters, susp.impl)
	yield()
}

// Empty reports whether there are no waiting coroutines, the precondition
// for safely discarding a CoCondition (the C++ destructor's precondition).
func (c *CoCondition) Empty() bool { return len(c.waiters) == 0 }

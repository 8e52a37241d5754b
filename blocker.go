package crouton

import (
	"sync"
	"sync/atomic"
)

type blockerState int32

const (
	blockerInitial blockerState = iota
	blockerWaiting
	blockerReady
)

// Blocker is a simpler single-waiter alternative to CoCondition: a
// coroutine that Awaits a Blocker blocks until something calls Notify. It
// is thread-safe — Notify may be called from any goroutine — which makes it
// the usual way to turn a completion-callback API into a coroutine-based
// one (original_source/include/crouton/CoCondition.hh Blocker<T>). mu
// guards suspension/onNotify/value the same way futureState's mu does in
// future.go, so a Notify racing the registration of a new suspension can
// never clobber it or get lost.
type Blocker[T any] struct {
	mu         sync.Mutex
	state      atomic.Int32
	suspension Suspension
	onNotify   func()
	value      T
}

// Notify delivers val to the waiting coroutine (or the next Await/Wait
// call, if none is waiting yet) and wakes it.
func (b *Blocker[T]) Notify(val T) {
	b.mu.Lock()
	b.value = val
	b.state.Store(int32(blockerReady))
	susp := b.suspension
	onNotify := b.onNotify
	b.onNotify = nil
	b.mu.Unlock()

	susp.WakeUp()
	if onNotify != nil {
		onNotify()
	}
}

// Reset returns the Blocker to its initial state, so it can be reused.
func (b *Blocker[T]) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Store(int32(blockerInitial))
	var zero T
	b.value = zero
	b.suspension = Suspension{}
}

// Await suspends the calling coroutine until Notify is called, then returns
// the notified value.
func (b *Blocker[T]) Await(yield func()) T {
	if blockerState(b.state.Load()) == blockerReady {
		b.mu.Lock()
		v := b.value
		b.mu.Unlock()
		return v
	}
	sched := Current()
	susp := sched.suspend(currentHandle())
	b.mu.Lock()
	b.suspension = susp
	// CompareAndSwap, not Store: a concurrent Notify may have run between
	// our top check and sched.suspend above, flipping state to Ready and
	// waking the (at that point still zero-value) old b.suspension — a
	// wake susp above never saw. Losing the CAS means we must not park at
	// all; unwind the now-useless suspension instead.
	ok := b.state.CompareAndSwap(int32(blockerInitial), int32(blockerWaiting))
	b.mu.Unlock()
	if !ok {
		susp.Cancel()
		b.mu.Lock()
		v := b.value
		b.mu.Unlock()
		return v
	}
	yield()
	b.mu.Lock()
	v := b.value
	b.mu.Unlock()
	return v
}

// Wait blocks the calling goroutine (by driving the Scheduler's event loop)
// until Notify is called, for non-coroutine callers.
func (b *Blocker[T]) Wait() T {
	b.mu.Lock()
	if blockerState(b.state.Load()) == blockerReady {
		v := b.value
		b.mu.Unlock()
		return v
	}
	b.mu.Unlock()
	sched := Current()
	_ = sched.EventLoop()
	b.mu.Lock()
	b.onNotify = func() { sched.Post(func() {}) }
	b.mu.Unlock()
	sched.RunUntil(func() bool { return blockerState(b.state.Load()) == blockerReady })
	b.mu.Lock()
	v := b.value
	b.mu.Unlock()
	return v
}

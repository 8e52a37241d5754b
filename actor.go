package crouton

import "sync"

// Actor serializes Future-returning methods onto one Scheduler, guaranteeing
// at most one concurrently-running method per actor, across every caller
// and goroutine (spec.md §4.9). An Actor is typically embedded in a larger
// type whose methods call Submit to run their coroutine bodies serially.
type Actor struct {
	sched   *Scheduler
	mu      sync.Mutex
	active  bool
	pending []*handle
}

// NewActor creates an Actor bound to sched (or the calling goroutine's
// Scheduler, if sched is nil).
func NewActor(sched *Scheduler) *Actor {
	if sched == nil {
		sched = Current()
	}
	return &Actor{sched: sched}
}

// Submit runs fn as a coroutine serialized onto the actor's lane, returning
// a Future for its result. fn's yield func behaves like any coroutine
// body's: call it to suspend until the next resume.
func Submit[T any](a *Actor, fn func(yield func()) Result[T]) Future[T] {
	provider, future := NewProvider[T]()

	var h *handle
	h = newHandle(func(yield func()) {
		defer a.finished()
		defer func() {
			if r := recover(); r != nil {
				provider.Fail(FromPanic(r))
			}
		}()
		provider.Complete(fn(yield))
	})

	a.dispatch(h)
	return future
}

// dispatch implements the three-case rule from spec.md §4.9.
func (a *Actor) dispatch(h *handle) {
	if !a.sched.IsCurrent() {
		// Case 3: wrong thread, hand off via the actor's scheduler event loop.
		a.sched.Post(func() { a.dispatch(h) })
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active {
		// Case 1: idle and on the right thread: mark the actor active and
		// put the method on the ready queue. It starts at the Scheduler's
		// next Resume, not inside Submit.
		a.active = true
		a.sched.schedule(h)
		return
	}
	// Case 2: on the right thread but another method is active, queue it.
	a.pending = append(a.pending, h)
}

func (a *Actor) finished() {
	a.mu.Lock()
	if len(a.pending) == 0 {
		a.active = false
		a.mu.Unlock()
		return
	}
	next := a.pending[0]
	a.pending = a.pending[1:]
	a.mu.Unlock()
	a.sched.schedule(next)
}

// Idle reports whether no method is currently active on this actor.
func (a *Actor) Idle() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.active
}

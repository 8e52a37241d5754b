package crouton

import "sync/atomic"

// Task is a detached background coroutine: one that runs indefinitely
// (typically a loop around co_yield) rather than returning a value, the Go
// analogue of original_source/include/crouton/Task.hh. Use Interrupt to ask
// it to stop, and Join to wait for it to actually finish.
type Task struct {
	shared *taskShared
	h      *handle
}

type taskShared struct {
	alive     atomic.Bool
	interrupt atomic.Bool
	done      Blocker[Error]
}

// Go spawns fn as a detached background coroutine on the calling
// goroutine's Scheduler. fn receives a yield function it should call
// periodically; yield's return value is false once Interrupt has been
// called, signaling fn to wind down and return.
func Go(fn func(yield func() bool)) Task {
	sched := Current()
	shared := &taskShared{}
	shared.alive.Store(true)

	var t Task
	t.shared = shared
	t.h = newHandle(func(baseYield func()) {
		defer func() {
			shared.alive.Store(false)
			r := recover()
			var result Error
			if r != nil {
				result = FromPanic(r)
			}
			shared.done.Notify(result)
		}()
		// A bare yield (not preceded by Scheduler.suspend, as Future/
		// CoCondition/Generator's Await-style calls do) is put straight
		// back on the ready queue by Scheduler.Resume, so the task keeps
		// ticking without needing to reschedule itself here.
		yield := func() bool {
			baseYield()
			return !shared.interrupt.Load()
		}
		fn(yield)
	})
	sched.schedule(t.h)
	return t
}

// Alive reports whether the task coroutine is still running.
func (t Task) Alive() bool { return t.shared.alive.Load() }

// Interrupt asks the task to stop: its next yield call will return false.
func (t Task) Interrupt() { t.shared.interrupt.Store(true) }

// Join returns a Blocker that resolves (with any panic converted to an
// Error, or NoError on normal completion) when the task finishes.
func (t Task) Join() *Blocker[Error] { return &t.shared.done }

package crouton

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// handle is a coroutine handle: a goroutine that only proceeds when resumed,
// via a blocking channel rendezvous. It is the Go-native stand-in for the
// opaque coroutine frame pointer the C++ core resumes/destroys/queries for
// completion (spec.md §3 "Coroutine handle"). Adapted from tcard/coro's
// New/Resume, generalized so the Scheduler (not the caller directly) decides
// when to resume, by holding handles in its ready queue.
type handle struct {
	resume  func() (alive bool)
	yieldCh chan struct{}
	done    chan struct{}

	// sched is the Scheduler this handle currently belongs to. Since each
	// handle owns a dedicated goroutine for its whole life (unlike the
	// single driving goroutine a Scheduler otherwise assumes), affinity
	// cannot be decided by comparing goroutine IDs from inside the
	// coroutine body; code running inside f instead asks its own handle,
	// via currentHandle(), which Scheduler is "current" (see
	// Scheduler.Current/IsCurrent). Set by Scheduler.schedule the first time
	// the handle is scheduled, and reassigned by Scheduler.adoptHandle when
	// the coroutine Transfers to another Scheduler.
	sched *Scheduler
}

// newHandle spawns a coroutine. f receives a yield function: calling it
// suspends the coroutine until the next resume. The coroutine body runs on
// its own goroutine but never executes concurrently with the resumer, since
// every step is gated by the yieldCh rendezvous.
func newHandle(f func(yield func())) *handle {
	yieldCh := make(chan struct{})
	gcCh := make(chan struct{})
	doneCh := make(chan struct{})
	h := &handle{yieldCh: yieldCh, done: doneCh}

	var resumeToken bool
	h.resume = func() (alive bool) {
		resumeToken = !resumeToken
		_, ok := <-yieldCh
		if !ok {
			return false
		}
		_, ok = <-yieldCh
		return ok
	}

	runtime.SetFinalizer(&resumeToken, func(any) { close(gcCh) })

	var yieldPanic error
	waitResume := func() {
		select {
		case yieldCh <- struct{}{}:
			return
		case <-gcCh:
			yieldPanic = errHandleLeaked
		}
		panic(yieldPanic)
	}

	lifecycleSpawned()
	go func() {
		id := goroutineID()
		handleRegistryMu.Lock()
		handleRegistry[id] = h
		handleRegistryMu.Unlock()
		defer func() {
			handleRegistryMu.Lock()
			delete(handleRegistry, id)
			handleRegistryMu.Unlock()
		}()
		defer close(doneCh)
		defer close(yieldCh)
		defer lifecycleEnded()
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if errors.Is(asError(r), errHandleLeaked) {
				return
			}
			panic(r)
		}()

		waitResume()

		f(func() {
			if yieldPanic != nil {
				panic(yieldPanic)
			}
			yieldCh <- struct{}{}
			waitResume()
		})
	}()

	return h
}

func asError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}

// errHandleLeaked is the error with which a handle's goroutine is killed
// when nothing will ever resume it again (its resume func was collected).
var errHandleLeaked = errors.New("crouton: coroutine handle leaked")

// handleRegistry maps a goroutine ID to the handle running its body,
// letting Future.Await and friends find "the coroutine calling this" (the
// Go analogue of a C++ coroutine knowing its own coro_handle) without
// threading a handle parameter through every awaiting call.
var (
	handleRegistryMu sync.Mutex
	handleRegistry   = map[uint64]*handle{}
)

// currentHandle returns the handle owning the calling goroutine, or nil if
// the calling goroutine is not a coroutine body (e.g. it's the program's
// main goroutine driving a Scheduler directly via Wait).
func currentHandle() *handle {
	id := goroutineID()
	handleRegistryMu.Lock()
	h := handleRegistry[id]
	handleRegistryMu.Unlock()
	return h
}

// Resume runs the coroutine until its next suspend point or completion.
// Returns false if the coroutine has finished.
func (h *handle) Resume() bool { return h.resume() }

// Done reports whether the coroutine has finished.
func (h *handle) Done() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

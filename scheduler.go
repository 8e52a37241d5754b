package crouton

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
)

// Scheduler schedules coroutine handles on a single goroutine. Each owning
// goroutine has at most one Scheduler adopted to it. The API is *not*
// goroutine-safe except where noted (spec.md §3 "Scheduler"), mirroring the
// C++ Scheduler's own-thread rule: the ready queue and suspended map are
// only mutated from the Scheduler's own goroutine.
type Scheduler struct {
	mu        sync.Mutex
	ready     []*handle
	suspended map[*handle]*suspensionImpl

	eventLoop     EventLoop
	ownsEventLoop bool

	woke atomic.Bool

	ownerGoroutineID atomic.Uint64 // 0 until adopted

	limiter      *catrate.Limiter
	onOverload   func(error)
	overloadOnce sync.Once
}

// schedulerRegistry maps goroutine IDs to their adopted Scheduler, the
// Go-native analogue of the C++ Scheduler::current() thread-local: since a
// coroutine handle's body runs on a fixed goroutine for its whole life (see
// handle.go), "the calling thread's Scheduler" becomes "the Scheduler
// adopted to the calling goroutine".
var (
	schedulerRegistryMu sync.Mutex
	schedulerRegistry   = map[uint64]*Scheduler{}
)

// NewScheduler constructs a Scheduler with a default rate limiter guarding
// Post/Submit against runaway cross-goroutine submission storms (see
// SPEC_FULL.md §11 for the go-catrate wiring).
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		suspended: make(map[*handle]*suspensionImpl),
		limiter:   catrate.NewLimiter(map[time.Duration]int{time.Second: 10000}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SchedulerOption configures a Scheduler at construction time.
type SchedulerOption func(*Scheduler)

// WithOverloadHandler installs a callback invoked the first time the
// submission rate limiter trips; it is called at most once per Scheduler.
func WithOverloadHandler(fn func(error)) SchedulerOption {
	return func(s *Scheduler) { s.onOverload = fn }
}

// WithSubmissionRateLimit replaces the default submission rate limit.
func WithSubmissionRateLimit(rates map[time.Duration]int) SchedulerOption {
	return func(s *Scheduler) { s.limiter = catrate.NewLimiter(rates) }
}

// goroutineID returns an identifier for the calling goroutine, parsed from
// its runtime.Stack header, matching the teacher's getGoroutineID trick
// (go-eventloop's loop.go) for a thread-affinity fast path.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

// adopt registers the Scheduler against the calling goroutine, if it hasn't
// adopted one yet.
func (s *Scheduler) adopt() {
	if s.ownerGoroutineID.Load() != 0 {
		return
	}
	id := goroutineID()
	if s.ownerGoroutineID.CompareAndSwap(0, id) {
		schedulerRegistryMu.Lock()
		schedulerRegistry[id] = s
		schedulerRegistryMu.Unlock()
	}
}

// Current returns the Scheduler logically running the calling code,
// exactly like Scheduler::current() (spec.md §4.2). If called from inside
// a coroutine body (Task, Actor method, Generator, or anything awaiting a
// Future), that is the Scheduler the coroutine's handle was scheduled on
// — since each handle runs on its own dedicated goroutine, this is looked
// up via the handle, not the physical goroutine ID. Otherwise (a plain
// driving goroutine, e.g. one running Scheduler.Run), it is the Scheduler
// adopted to the calling goroutine, created on first call.
func Current() *Scheduler {
	if h := currentHandle(); h != nil && h.sched != nil {
		return h.sched
	}
	id := goroutineID()
	schedulerRegistryMu.Lock()
	s, ok := schedulerRegistry[id]
	schedulerRegistryMu.Unlock()
	if ok {
		return s
	}
	s = NewScheduler()
	s.ownerGoroutineID.Store(id)
	schedulerRegistryMu.Lock()
	schedulerRegistry[id] = s
	schedulerRegistryMu.Unlock()
	return s
}

// IsCurrent reports whether s is the Scheduler returned by Current() for
// the calling code (see Current's doc for the coroutine-body vs.
// driving-goroutine distinction).
func (s *Scheduler) IsCurrent() bool {
	if h := currentHandle(); h != nil && h.sched != nil {
		return h.sched == s
	}
	s.adopt()
	return s.ownerGoroutineID.Load() == goroutineID()
}

// EventLoop returns the associated EventLoop, creating a DefaultEventLoop on
// first call if none was supplied.
func (s *Scheduler) EventLoop() EventLoop {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eventLoop == nil {
		s.eventLoop = NewDefaultEventLoop()
		s.ownsEventLoop = true
	}
	return s.eventLoop
}

// UseEventLoop associates an existing EventLoop with this Scheduler. Must be
// called on the Scheduler's own goroutine, before EventLoop is first used.
func (s *Scheduler) UseEventLoop(loop EventLoop) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eventLoop != nil {
		panic("crouton: Scheduler already has an EventLoop")
	}
	s.eventLoop = loop
	s.ownsEventLoop = false
}

// IsIdle reports whether there are no coroutines waiting to run.
func (s *Scheduler) IsIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.hasWakersLocked() && len(s.ready) == 0
}

// IsEmpty reports whether there are no coroutines ready or suspended.
func (s *Scheduler) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.hasWakersLocked() && len(s.ready) == 0 && len(s.suspended) == 0
}

// AssertEmpty drives the event loop until idle, ctx is done, or one second
// has passed, then reports whether the Scheduler and all coroutine handles
// process-wide finished.
// The no-leak diagnostic for test harnesses (spec.md §8).
func (s *Scheduler) AssertEmpty(ctx context.Context) bool {
	deadline := time.Now().Add(time.Second)
	for {
		if s.IsEmpty() && LiveHandles() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if time.Now().After(deadline) {
			return false
		}
		idle := !s.Resume()
		s.EventLoop().RunOnce(idle)
	}
}

// schedule appends h to the ready queue if it is not already in it, fixing
// h's Scheduler affinity the first time it is scheduled anywhere.
func (s *Scheduler) schedule(h *handle) {
	if h.sched == nil {
		h.sched = s
	} else if h.sched != s {
		panic("crouton: coroutine handle scheduled on a different Scheduler than it was created on")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.ready {
		if r == h {
			return
		}
	}
	s.ready = append(s.ready, h)
}

// nextOr pops the next ready handle, after first sweeping the suspended set
// for wake-requested entries, or returns dflt if none are ready.
func (s *Scheduler) nextOr(dflt *handle) *handle {
	s.mu.Lock()
	s.scheduleWakersLocked()
	if len(s.ready) == 0 {
		s.mu.Unlock()
		return dflt
	}
	h := s.ready[0]
	s.ready = s.ready[1:]
	s.mu.Unlock()
	return h
}

// suspend inserts h into the suspended set and returns a Suspension
// referencing it. Precondition: h is not already ready.
func (s *Scheduler) suspend(h *handle) Suspension {
	_ = s.EventLoop() // must exist to be woken later
	impl := &suspensionImpl{h: h, sched: s, visible: true}
	s.mu.Lock()
	s.suspended[h] = impl
	s.mu.Unlock()
	return Suspension{impl: impl}
}

// destroying removes h from both the ready queue and the suspended set. A
// cross-goroutine waker may still hold the entry's Suspension; that is
// harmless, since the suspensionImpl stays alive for it and, with the entry
// gone and marked cancelled, its wake re-queues nothing.
func (s *Scheduler) destroying(h *handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if impl, ok := s.suspended[h]; ok {
		impl.cancelled = true
		delete(s.suspended, h)
	}
	for i, r := range s.ready {
		if r == h {
			s.ready = append(s.ready[:i], s.ready[i+1:]...)
			break
		}
	}
}

// Resume resumes the next ready coroutine and returns true, or returns false
// if none are ready. A coroutine that suspends itself via suspend (Future,
// CoCondition, Blocker, Select, Generator all do this) stays parked until
// something calls WakeUp on its Suspension; one that merely yields without
// registering a suspension (a Task's bare "let others run" tick) is put
// straight back on the ready queue, since nothing else will ever resume it
// otherwise.
func (s *Scheduler) Resume() bool {
	h := s.nextOr(nil)
	if h == nil {
		return false
	}
	if alive := h.Resume(); alive {
		s.mu.Lock()
		_, parked := s.suspended[h]
		s.mu.Unlock()
		if !parked {
			s.schedule(h)
		}
	}
	return true
}

// RunUntil drives the loop: pop and resume ready handles until there are
// none, then run the event loop for one iteration (blocking iff the ready
// queue is empty), repeating until pred returns true. pred is checked
// before each iteration.
func (s *Scheduler) RunUntil(pred func() bool) {
	loop := s.EventLoop()
	for !pred() {
		idle := !s.Resume()
		if !idle && pred() {
			break
		}
		loop.RunOnce(idle)
	}
}

// Run runs the Scheduler's event loop indefinitely: it is RunUntil with a
// predicate that is never true, so it does not return. Stopping the
// EventLoop only ends its current iteration.
func (s *Scheduler) Run() {
	s.RunUntil(func() bool { return false })
}

// Post schedules fn to run as soon as possible: immediately if s is the
// calling goroutine's Scheduler, else on s's next event loop iteration via
// its EventLoop's Perform. Goroutine-safe.
func (s *Scheduler) Post(fn func()) {
	if s.IsCurrent() {
		fn()
		return
	}
	if _, allowed := s.limiter.Allow("post"); !allowed {
		s.reportOverload()
	}
	s.EventLoop().Perform(fn, false)
}

// PostSync schedules fn to run on s's own goroutine and blocks until it has
// executed. Must not be called from s's own goroutine (it would deadlock).
func (s *Scheduler) PostSync(fn func()) {
	if s.IsCurrent() {
		panic("crouton: PostSync called on the Scheduler's own goroutine")
	}
	s.EventLoop().Perform(fn, true)
}

func (s *Scheduler) reportOverload() {
	s.overloadOnce.Do(func() {
		logDebug("scheduler overload", nil)
		if s.onOverload != nil {
			s.onOverload(ErrSchedulerBusy)
		}
	})
}

// adoptHandle reassigns h's Scheduler affinity to s and enqueues it on s's
// ready queue, via s's event loop's Perform since the caller is not
// necessarily running on s's own goroutine yet. prev and prevSusp are the
// Scheduler h is leaving and the Suspension Transfer parked it under there
// (to stop prev.Resume from auto-rescheduling it while the move is in
// flight); both are released once s has actually taken ownership. Used when
// a coroutine transfers itself to a different Scheduler (co_await sched,
// spec.md §4.2).
func (s *Scheduler) adoptHandle(h *handle, prev *Scheduler, prevSusp Suspension) {
	s.Post(func() {
		prevSusp.Cancel()
		if prev != nil {
			prev.destroying(h)
		}
		h.sched = s
		s.schedule(h)
	})
}

func (s *Scheduler) wakeUp() {
	if s.woke.CompareAndSwap(false, true) {
		if s.IsCurrent() {
			if s.eventLoop != nil && s.eventLoop.IsRunning() {
				s.eventLoop.Stop(false)
			}
		} else {
			s.EventLoop().Stop(true)
		}
	}
}

func (s *Scheduler) hasWakersLocked() bool {
	if !s.woke.Load() {
		return false
	}
	for _, impl := range s.suspended {
		if impl.wakeMe.Load() && !impl.cancelled {
			return true
		}
	}
	return false
}

// scheduleWakersLocked finds waiting coroutines whose wake flag is set,
// removes them from the suspended map, and appends them to the ready queue;
// called with s.mu held.
func (s *Scheduler) scheduleWakersLocked() {
	for s.woke.CompareAndSwap(true, false) {
		for h, impl := range s.suspended {
			if impl.wakeMe.Load() {
				if !impl.cancelled {
					s.ready = append(s.ready, h)
				}
				delete(s.suspended, h)
			}
		}
	}
}

// Transfer moves the calling coroutine's affinity from s to target, then
// suspends it so target's own goroutine picks up where it left off. Must be
// called from inside the coroutine being transferred. The low-level
// primitive backing "co_await sched" (spec.md §4.2).
func (s *Scheduler) Transfer(ctx context.Context, target *Scheduler, yield func()) error {
	if target.IsCurrent() {
		return nil
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("crouton: transfer cancelled: %w", ctx.Err())
	default:
	}
	h := currentHandle()
	if h == nil {
		panic("crouton: Transfer must be called from inside a coroutine body")
	}
	// Park h under s, same as any other Await, so Scheduler.Resume's bare-
	// yield auto-reschedule doesn't put it straight back on s's ready queue
	// while adoptHandle is still in flight to target.
	susp := s.suspend(h)
	target.adoptHandle(h, s, susp)
	yield()
	return nil
}

package crouton

import (
	"container/heap"
	"sync"
	"time"
)

// EventLoop is the contract the Scheduler consumes from an I/O back-end
// (spec.md §6). Network sockets, TLS, HTTP/WebSocket/BLIP framing, and
// platform adapters (libuv, Network.framework, lwIP, mbedTLS) are external
// collaborators that only need to satisfy this interface; none of them are
// implemented by this module. DefaultEventLoop below is a minimal,
// dependency-free reference implementation sufficient to drive Scheduler in
// tests and simple programs.
type EventLoop interface {
	// RunOnce runs one iteration. If waitForIO is true and nothing is
	// otherwise ready, it blocks until a timer fires or Stop/Perform wakes
	// it.
	RunOnce(waitForIO bool) error
	// Run runs iterations until Stop is called.
	Run() error
	// Stop requests exit of the current (or next) iteration. threadSafe
	// must be true when called from a goroutine other than the loop's own.
	Stop(threadSafe bool)
	// Perform schedules fn to run on the loop's own goroutine; if sync is
	// true, Perform blocks until fn has been executed.
	Perform(fn func(), sync bool)
	// IsRunning reports whether Run/RunOnce is currently executing.
	IsRunning() bool
}

// Selectable is anything exposing an OnReady callback registration,
// consumed by Select and by Future.Wait (spec.md §6).
type Selectable interface {
	// OnReady registers a callback invoked exactly once when the object
	// becomes ready. Passing nil clears any existing registration. Calling
	// when already ready invokes fn before OnReady returns.
	OnReady(fn func())
}

// timerEntry is a scheduled function paired with its fire time, ordered by
// a container/heap.Interface min-heap, matching the teacher's timerHeap.
type timerEntry struct {
	when time.Time
	fn   func()
	id   uint64
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].when.Before(h[j].when) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)         { *h = append(*h, x.(*timerEntry)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// DefaultEventLoop is a minimal EventLoop: a timer heap plus a wakeup
// channel for cross-goroutine Stop/Perform, in the spirit of the teacher's
// fast-path channel wakeup (go-eventloop's pollFastMode), without a real
// non-blocking I/O poller — deliberately out of scope, since spec.md §1
// scopes the runtime to the EventLoop *interface*, not a production poller.
type DefaultEventLoop struct {
	mu        sync.Mutex
	timers    timerHeap
	nextID    uint64
	running   bool
	stopped   bool
	wake      chan struct{}
	perform   []func()
	performWg sync.WaitGroup
}

// NewDefaultEventLoop constructs a ready-to-use DefaultEventLoop.
func NewDefaultEventLoop() *DefaultEventLoop {
	return &DefaultEventLoop{wake: make(chan struct{}, 1)}
}

// ScheduleTimer arranges for fn to run on the loop's own goroutine, from
// RunOnce, once delay has passed. Returns a cancel function.
func (l *DefaultEventLoop) ScheduleTimer(delay time.Duration, fn func()) (cancel func()) {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	entry := &timerEntry{when: time.Now().Add(delay), fn: fn, id: id}
	heap.Push(&l.timers, entry)
	l.mu.Unlock()
	l.signal()
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, e := range l.timers {
			if e.id == id {
				heap.Remove(&l.timers, i)
				return
			}
		}
	}
}

func (l *DefaultEventLoop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *DefaultEventLoop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *DefaultEventLoop) Stop(bool) {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	l.signal()
}

func (l *DefaultEventLoop) Perform(fn func(), sync bool) {
	if sync {
		l.performWg.Add(1)
		inner := fn
		fn = func() {
			defer l.performWg.Done()
			inner()
		}
	}
	l.mu.Lock()
	l.perform = append(l.perform, fn)
	l.mu.Unlock()
	l.signal()
	if sync {
		l.performWg.Wait()
	}
}

func (l *DefaultEventLoop) drainPerform() {
	l.mu.Lock()
	batch := l.perform
	l.perform = nil
	l.mu.Unlock()
	for _, fn := range batch {
		fn()
	}
}

func (l *DefaultEventLoop) runTimers() {
	now := time.Now()
	for {
		l.mu.Lock()
		if len(l.timers) == 0 || l.timers[0].when.After(now) {
			l.mu.Unlock()
			return
		}
		entry := heap.Pop(&l.timers).(*timerEntry)
		l.mu.Unlock()
		entry.fn()
	}
}

func (l *DefaultEventLoop) nextTimeout() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.timers) == 0 {
		return -1
	}
	d := time.Until(l.timers[0].when)
	if d < 0 {
		return 0
	}
	return d
}

// RunOnce runs timers and pending Perform callbacks due now; if waitForIO is
// true and nothing was due, blocks until the next timer or a wakeup.
func (l *DefaultEventLoop) RunOnce(waitForIO bool) error {
	l.mu.Lock()
	l.running = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	l.runTimers()
	l.drainPerform()

	if !waitForIO {
		return nil
	}

	timeout := l.nextTimeout()
	if timeout == 0 {
		return nil
	}
	var timerC <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timerC = t.C
	}
	select {
	case <-l.wake:
	case <-timerC:
	}
	l.runTimers()
	l.drainPerform()
	return nil
}

// Run runs iterations until Stop is called.
func (l *DefaultEventLoop) Run() error {
	for {
		l.mu.Lock()
		stopped := l.stopped
		l.mu.Unlock()
		if stopped {
			l.mu.Lock()
			l.stopped = false
			l.mu.Unlock()
			return nil
		}
		if err := l.RunOnce(true); err != nil {
			return err
		}
	}
}

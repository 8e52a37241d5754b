package crouton

import (
	"sync"
	"sync/atomic"
)

// futureState is the shared state behind a Future/Provider pair, the Go
// analogue of FutureState<T> (original_source/include/crouton/Future.hh).
// Provider.complete is the only writer of result; everything else only
// reads it after ready is observed true.
type futureState[T any] struct {
	mu         sync.Mutex
	result     Result[T]
	ready      atomic.Bool
	suspension Suspension
	onReady    func()

	chainedCallback func()
}

// Provider is the write side of a Future: the producer of an eventual
// value. Exactly one of Resolve/Fail/Complete must be called on it exactly
// once (spec.md §4.3 "at-most-once resolve").
type Provider[T any] struct {
	state *futureState[T]
}

// NewProvider creates a Provider together with the Future reading from it.
func NewProvider[T any]() (Provider[T], Future[T]) {
	st := &futureState[T]{}
	return Provider[T]{state: st}, Future[T]{state: st}
}

// Resolve sets the Future's result to a value.
func (p Provider[T]) Resolve(v T) { p.complete(OK(v)) }

// Fail sets the Future's result to an error.
func (p Provider[T]) Fail(err Error) { p.complete(Failed[T](err)) }

// Complete sets the Future's result directly from a Result.
func (p Provider[T]) Complete(r Result[T]) { p.complete(r) }

func (p Provider[T]) complete(r Result[T]) {
	st := p.state
	st.mu.Lock()
	if st.ready.Load() {
		st.mu.Unlock()
		panic("crouton: Future resolved more than once")
	}
	st.result = r
	st.ready.Store(true)
	onReady := st.onReady
	susp := st.suspension
	chainedCallback := st.chainedCallback
	st.mu.Unlock()

	if onReady != nil {
		onReady()
	}
	susp.WakeUp()
	if chainedCallback != nil {
		chainedCallback()
	}
}

// Future represents a value of type T that may not be available yet
// (spec.md §4.3). The zero Future is not usable; construct one via
// NewProvider, Ready, or FailedFuture.
type Future[T any] struct {
	state *futureState[T]
}

// Ready creates an already-resolved Future.
func Ready[T any](v T) Future[T] {
	st := &futureState[T]{}
	st.result = OK(v)
	st.ready.Store(true)
	return Future[T]{state: st}
}

// FailedFuture creates an already-failed Future.
func FailedFuture[T any](err Error) Future[T] {
	st := &futureState[T]{}
	st.result = Failed[T](err)
	st.ready.Store(true)
	return Future[T]{state: st}
}

// HasResult reports whether a value or error has been set.
func (f Future[T]) HasResult() bool { return f.state.ready.Load() }

// Result returns the Future's result. Only valid once HasResult is true.
func (f Future[T]) Result() Result[T] {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	return f.state.result
}

// OnReady registers fn to run exactly once, when the result becomes
// available (immediately, if it already is). Satisfies Selectable.
func (f Future[T]) OnReady(fn func()) {
	st := f.state
	st.mu.Lock()
	if st.ready.Load() {
		st.mu.Unlock()
		if fn != nil {
			fn()
		}
		return
	}
	st.onReady = fn
	st.mu.Unlock()
}

// Await suspends the calling coroutine (via yield) until the Future
// resolves, then returns its Result. Must be called from within a
// coroutine body (Task, Actor method, or similar), on the Scheduler that
// owns the calling goroutine.
func (f Future[T]) Await(yield func()) Result[T] {
	st := f.state
	if st.ready.Load() {
		return f.Result()
	}
	sched := Current()
	st.mu.Lock()
	if st.ready.Load() {
		st.mu.Unlock()
		return f.Result()
	}
	h := currentHandle()
	susp := sched.suspend(h)
	st.suspension = susp
	st.mu.Unlock()
	yield()
	return f.Result()
}

// Wait blocks the calling goroutine (by driving the owning Scheduler's
// event loop) until the Future resolves, then returns its Result. For
// non-coroutine callers only (spec.md §4.3 "Synchronous/blocking
// accessors").
func (f Future[T]) Wait() Result[T] {
	st := f.state
	if st.ready.Load() {
		return f.Result()
	}
	sched := Current()
	_ = sched.EventLoop()
	f.OnReady(func() { sched.Post(func() {}) })
	sched.RunUntil(func() bool { return st.ready.Load() })
	return f.Result()
}

// Then registers a callback invoked when f resolves successfully, and
// returns a new Future resolving to the callback's return value. If f
// fails, the callback is skipped and the returned Future fails with the
// same error (spec.md §4.3 "then" chaining, adapted from
// original_source/include/crouton/Future.hh Future<T>::then).
func Then[T, U any](f Future[T], fn func(T) U) Future[U] {
	up, uf := NewProvider[U]()
	chain := func() {
		r := f.Result()
		if r.IsError() {
			up.Fail(r.Error())
			return
		}
		if r.IsEmpty() {
			up.Fail(ErrEmptyResult)
			return
		}
		up.Resolve(fn(r.Value()))
	}
	attachChain(f.state, chain)
	return uf
}

// ThenResult is like Then, but fn sees the full Result (including errors)
// and produces the next Future's Result directly, the Go analogue of
// NoThrow chaining (original_source/include/crouton/Future.hh NoThrow<T>).
func ThenResult[T, U any](f Future[T], fn func(Result[T]) Result[U]) Future[U] {
	up, uf := NewProvider[U]()
	chain := func() { up.Complete(fn(f.Result())) }
	attachChain(f.state, chain)
	return uf
}

// Catch registers a callback invoked only when f fails, and returns a new
// Future: if f succeeded, the value passes through unchanged; if f failed,
// the callback's return value becomes the result (recovering the error).
func Catch[T any](f Future[T], fn func(Error) T) Future[T] {
	up, uf := NewProvider[T]()
	chain := func() {
		r := f.Result()
		if r.IsError() {
			up.Resolve(fn(r.Error()))
			return
		}
		up.Complete(r)
	}
	attachChain(f.state, chain)
	return uf
}

func attachChain[T any](st *futureState[T], chain func()) {
	st.mu.Lock()
	if st.ready.Load() {
		st.mu.Unlock()
		chain()
		return
	}
	sched := Current()
	prev := st.chainedCallback
	st.chainedCallback = func() {
		if prev != nil {
			prev()
		}
		if sched.IsCurrent() {
			chain()
		} else {
			sched.Post(chain)
		}
	}
	st.mu.Unlock()
}

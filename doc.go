// Package crouton is a single-threaded cooperative asynchronous runtime.
//
// It schedules goroutine-backed "coroutines" onto a per-goroutine Scheduler
// that owns a ready queue and a suspended set, in the manner of a stackless
// coroutine runtime: a coroutine only ever runs when explicitly resumed by
// its Scheduler, and suspends only at well-defined points (awaiting a
// Future, a CoCondition, a Blocker, or a Select, pulling from or yielding
// to a Generator, or a Task's yield). The package provides:
//
//   - Scheduler / Suspension — the ready queue, suspended set, and the
//     cross-thread wake handshake.
//   - Future[T] / Provider[T] — a one-shot typed result with chained
//     Then/Catch and synchronous Wait.
//   - CoCondition — a single-threaded, multi-waiter condition variable.
//   - Blocker[T] — a thread-safe, single-waiter latch.
//   - Select — an N-way readiness multiplexer.
//   - Task — a joinable, cooperatively interruptible background coroutine.
//   - Generator[T] — a caller-driven lazy sequence.
//   - Queue[T] / BoundedQueue[T] — producer/consumer queues with close
//     semantics and backpressure.
//   - Actor — serializes Future-returning methods of a value onto one
//     Scheduler.
//   - Error / Result[T] — the domain-tagged error type and result sum type
//     that round-trip across suspension without panicking by default.
//
// The runtime does not implement network I/O, TLS, HTTP, or any wire
// protocol; those are external collaborators that only need to satisfy the
// EventLoop and Selectable contracts in eventloop.go.
package crouton

package crouton

import "sync/atomic"

// lifecycle is pure observability: it tracks coroutine handle counts for
// Scheduler.AssertEmpty's no-leak diagnostic. Implementations may replace it
// with no-ops without affecting correctness, per the coroutine lifecycle
// contract (spec.md §4.1); here it is a package-level counter rather than a
// pluggable hook set, since nothing in this module needs to intercept
// individual transitions, only count live handles.
var lifecycleCount atomic.Int64

// lifecycleSpawned records that a new coroutine-backed Handle came into
// existence (a Task, a Generator's producer, or an Actor method).
func lifecycleSpawned() { lifecycleCount.Add(1) }

// lifecycleEnded records that a coroutine-backed Handle finished or was
// destroyed.
func lifecycleEnded() { lifecycleCount.Add(-1) }

// LiveHandles returns the number of coroutine-backed Handles that have been
// spawned but not yet ended, process-wide. Intended for test harnesses; see
// Scheduler.AssertEmpty.
func LiveHandles() int64 { return lifecycleCount.Load() }

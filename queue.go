package crouton

import (
	"context"

	"github.com/joeycumines/go-microbatch"
)

// QueueState is the lifecycle of a Queue (spec.md §4.8).
type QueueState uint8

const (
	// QueueOpen accepts both pushes and pops.
	QueueOpen QueueState = iota
	// QueueClosing accepts pops but rejects pushes; the generator drains
	// remaining items before signaling EOF.
	QueueClosing
	// QueueClosed accepts neither; the generator signals EOF immediately.
	QueueClosed
)

// Queue is a producer-consumer FIFO with a Generator-based asynchronous
// read side (spec.md §4.8, original_source/include/crouton/Queue.hh
// AsyncQueue<T>). The generate() side may only be used once per Queue.
type Queue[T any] struct {
	items         []T
	pullCond      CoCondition
	closeErr      Error
	state         QueueState
	generating    bool
	closeOnEmpty  bool
}

// NewQueue constructs an open, empty Queue.
func NewQueue[T any]() *Queue[T] { return &Queue[T]{} }

// State reports the queue's current lifecycle state.
func (q *Queue[T]) State() QueueState { return q.state }

// Empty reports whether the queue currently holds no items.
func (q *Queue[T]) Empty() bool { return len(q.items) == 0 }

// Len returns the number of items currently queued.
func (q *Queue[T]) Len() int { return len(q.items) }

// Error returns the terminal error, once the queue has drained empty.
func (q *Queue[T]) Error() Error {
	if q.Empty() {
		return q.closeErr
	}
	return NoError()
}

// ClosePush closes the push side: State becomes QueueClosing. No more items
// can be pushed, but remaining items can still be popped or yielded.
func (q *Queue[T]) ClosePush(err Error) {
	if q.state == QueueOpen {
		q.state = QueueClosing
		q.closeOnEmpty = true
		if !q.closeErr.IsError() {
			q.closeErr = err
		}
	}
}

// CloseWhenEmpty arranges for the queue to fully Close once it next drains
// empty, while still accepting pushes in the meantime.
func (q *Queue[T]) CloseWhenEmpty(err Error) {
	if q.Empty() {
		q.Close(err)
		return
	}
	q.closeOnEmpty = true
	if !q.closeErr.IsError() {
		q.closeErr = err
	}
}

// Close closes the queue immediately: clears it and moves to QueueClosed.
func (q *Queue[T]) Close(err Error) {
	if q.state != QueueClosed {
		q.state = QueueClosed
		if !q.closeErr.IsError() {
			q.closeErr = err
		}
		q.items = nil
		q.pullCond.NotifyOne()
	}
}

// Push adds an item to the tail of the queue. Returns false if the queue is
// not open.
func (q *Queue[T]) Push(v T) bool {
	if q.state != QueueOpen {
		return false
	}
	q.items = append(q.items, v)
	if len(q.items) == 1 {
		q.pullCond.NotifyOne()
	}
	return true
}

// PushResult pushes r's value if it holds one, or closes the push side with
// r's error otherwise.
func (q *Queue[T]) PushResult(r Result[T]) bool {
	if r.Ok() {
		return q.Push(r.Value())
	}
	q.ClosePush(r.Error())
	return true
}

// Pop removes and returns the front item. Illegal to call on an empty
// queue.
func (q *Queue[T]) Pop() T {
	item := q.items[0]
	q.items = q.items[1:]
	if q.closeOnEmpty && q.Empty() {
		q.Close(NoError())
	}
	return item
}

// Generate returns a Generator yielding items from the queue until it
// closes. May only be called once per Queue.
func (q *Queue[T]) Generate() *Generator[T] {
	if q.generating {
		panic("crouton: Queue.Generate called more than once")
	}
	q.generating = true
	return NewGenerator[T](func(yield func(T), park func()) {
		for q.state != QueueClosed {
			if q.Empty() {
				if q.closeOnEmpty {
					q.Close(NoError())
					break
				}
				q.pullCond.Await(park)
				if q.Empty() {
					break
				}
			}
			yield(q.Pop())
		}
	})
}

// BoundedQueue is a Queue with a maximum size: Push returns false once full,
// and AsyncPush parks the caller until there is room
// (original_source/include/crouton/Queue.hh BoundedAsyncQueue<T>).
type BoundedQueue[T any] struct {
	Queue[T]
	maxSize  int
	pushCond CoCondition
}

// NewBoundedQueue constructs an open, empty BoundedQueue with the given
// capacity.
func NewBoundedQueue[T any](maxSize int) *BoundedQueue[T] {
	if maxSize <= 0 {
		panic("crouton: BoundedQueue maxSize must be positive")
	}
	return &BoundedQueue[T]{maxSize: maxSize}
}

// Full reports whether the queue is at capacity.
func (q *BoundedQueue[T]) Full() bool { return q.Len() >= q.maxSize }

// Push adds an item, refusing if the queue is full.
func (q *BoundedQueue[T]) Push(v T) bool {
	if q.Full() {
		return false
	}
	return q.Queue.Push(v)
}

// Pop removes and returns the front item, waking a parked AsyncPush if the
// queue was full.
func (q *BoundedQueue[T]) Pop() T {
	wasFull := q.Full()
	item := q.Queue.Pop()
	if wasFull {
		q.pushCond.NotifyOne()
	}
	return item
}

// ClosePush overrides Queue.ClosePush to also release any parked AsyncPush
// callers (they'll observe the queue no longer Open and return false).
func (q *BoundedQueue[T]) ClosePush(err Error) {
	q.Queue.ClosePush(err)
	q.pushCond.NotifyAll()
}

// Close overrides Queue.Close to also release any parked AsyncPush callers.
func (q *BoundedQueue[T]) Close(err Error) {
	q.Queue.Close(err)
	q.pushCond.NotifyAll()
}

// AsyncPush pushes v, parking the calling coroutine until there is room if
// the queue is currently full. Returns false if the queue closed while
// waiting.
func (q *BoundedQueue[T]) AsyncPush(yield func(), v T) bool {
	for q.Full() && q.State() == QueueOpen {
		q.pushCond.Await(yield)
	}
	return q.Push(v)
}

// PushGenerator starts a background Task that pulls from gen and AsyncPushes
// each value into the queue; when gen ends, it CloseWhenEmpty()s the queue.
func (q *BoundedQueue[T]) PushGenerator(gen *Generator[T]) Task {
	return Go(func(yield func() bool) {
		for q.State() == QueueOpen {
			r := gen.Next(func() { yield() })
			if r.Ok() {
				if !q.AsyncPush(func() { yield() }, r.Value()) {
					break
				}
			} else {
				q.CloseWhenEmpty(NoError())
				break
			}
			if !yield() {
				break
			}
		}
	})
}

// DrainBatch drains up to the queue's Generator output in bounded batches,
// processing each batch with process, via go-microbatch's Batcher
// (SPEC_FULL.md §11): useful when a consumer wants amortized,
// concurrency-limited processing instead of one coroutine step per item.
func (q *Queue[T]) DrainBatch(ctx context.Context, cfg *microbatch.BatcherConfig, process microbatch.BatchProcessor[T]) error {
	batcher := microbatch.NewBatcher(cfg, process)
	defer batcher.Close()

	gen := q.Generate()
	// Close on every exit path, not just natural EOF: a ctx cancellation or
	// batcher.Submit error otherwise leaves the producer parked in the
	// Scheduler's suspended set forever.
	defer gen.Close()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r := gen.Pull()
		if r.IsError() {
			return r.Error()
		}
		if r.IsEmpty() {
			return nil
		}
		if _, err := batcher.Submit(ctx, r.Value()); err != nil {
			return err
		}
	}
}

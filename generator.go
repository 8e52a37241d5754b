package crouton

import (
	"context"
	"errors"
	"io"

	"github.com/joeycumines/go-longpoll"
)

// Generator is a caller-driven lazy sequence (spec.md §4.7): the producer
// coroutine calls its yield function to emit a value, which parks it until
// the consumer calls Next or Pull again. Not restartable — once the
// producer returns or fails, the Generator is exhausted.
type Generator[T any] struct {
	h        *handle
	pending  Result[T]
	consSusp Suspension // the waiting consumer, woken when a value/EOF is ready
	prodSusp Suspension // the parked producer, woken when the consumer wants more
	ready    bool
	started  bool
	done     bool
}

// NewGenerator starts (lazily) a Generator whose body is produce. produce
// receives a yield function (call it with a value to park the producer
// until the consumer pulls again) and a park function (call it to suspend
// without emitting a value, e.g. while awaiting a CoCondition). Returning
// from produce, or panicking, ends the sequence
// (original_source/include/crouton/Queue.hh generate(), adapted to a
// standalone producer/consumer pair).
func NewGenerator[T any](produce func(yield func(T), park func())) *Generator[T] {
	g := &Generator[T]{}
	var h *handle
	h = newHandle(func(baseYield func()) {
		park := func() {
			// Register our own suspension before parking, so
			// Scheduler.Resume leaves us alone until the consumer's next
			// Next/Pull explicitly wakes us via prodSusp, rather than
			// running us ahead of demand.
			sched := Current()
			g.prodSusp = sched.suspend(h)
			baseYield()
		}
		defer func() {
			g.done = true
			// Whatever value was left in g.pending from the last yield was
			// already delivered by a prior Next/Pull call; this defer only
			// runs once produce actually returns or panics, which is always
			// a later resume than that last yield.
			if r := recover(); r != nil {
				g.pending = Failed[T](FromPanic(r))
			} else {
				g.pending = Empty[T]()
			}
			g.ready = true
			g.consSusp.WakeUp()
		}()
		produce(func(v T) {
			g.pending = OK(v)
			g.ready = true
			g.consSusp.WakeUp()
			park()
		}, park)
	})
	g.h = h
	return g
}

// Close abandons the Generator: if the producer is currently parked it is
// cancelled rather than woken, and if it is merely sitting in the ready
// queue (scheduled but not yet resumed) it is removed outright, so its frame
// never runs again (original_source/include/crouton/Queue.hh ~Generator(),
// spec.md §4.7's "destroying the Generator destroys the producer frame").
// Safe to call more than once, and whether or not the producer ever ran.
func (g *Generator[T]) Close() {
	if g.done {
		return
	}
	g.done = true
	g.pending = Empty[T]()
	g.prodSusp.Cancel()
	if sched := g.h.sched; sched != nil {
		sched.destroying(g.h)
	}
}

// resumeProducer kicks the producer off on its first use, or wakes it from
// its registered park otherwise.
func (g *Generator[T]) resumeProducer(sched *Scheduler) {
	if !g.started {
		g.started = true
		sched.schedule(g.h)
		return
	}
	g.prodSusp.WakeUp()
}

// Next resumes the producer (suspending the calling coroutine meanwhile)
// and returns the next value. A Result with IsEmpty true means the
// producer returned (end of sequence); IsError true means the producer
// failed. Must be called from within a coroutine body.
func (g *Generator[T]) Next(yield func()) Result[T] {
	if g.done {
		return g.pending
	}
	g.ready = false
	sched := Current()
	g.consSusp = sched.suspend(currentHandle())
	g.resumeProducer(sched)
	yield()
	return g.pending
}

// Pull resumes the producer synchronously, by driving the calling
// goroutine's Scheduler until a value (or EOF/error) is produced. For
// non-coroutine callers, the Generator analogue of Future.Wait.
func (g *Generator[T]) Pull() Result[T] {
	if g.done {
		return g.pending
	}
	g.ready = false
	sched := Current()
	_ = sched.EventLoop()
	g.resumeProducer(sched)
	sched.RunUntil(func() bool { return g.ready })
	return g.pending
}

// Collect drains the Generator into a slice, stopping at the first empty
// or error Result, via a channel-mediated pull loop built on go-longpoll's
// bounded channel batching (SPEC_FULL.md §11), so a consumer goroutine that
// isn't itself a coroutine can still harvest bounded batches efficiently.
func (g *Generator[T]) Collect(ctx context.Context, max int) ([]T, error) {
	ch := make(chan T, 1)
	errCh := make(chan error, 1)

	// Pull drives its own Scheduler's event loop synchronously, so it must
	// always be called from the same dedicated goroutine: the first call
	// fixes the generator handle's affinity (see handle.sched), and a second
	// caller driving the same Scheduler concurrently would violate the
	// own-thread rule.
	go func() {
		defer close(ch)
		// Close whenever this loop stops driving the producer, whether by
		// EOF, error, ctx cancellation, or hitting max, so an abandoned
		// producer doesn't stay parked in the Scheduler's suspended set
		// forever; a no-op if the producer already finished on its own.
		defer g.Close()
		for i := 0; max <= 0 || i < max; i++ {
			if ctx.Err() != nil {
				errCh <- ctx.Err()
				return
			}
			r := g.Pull()
			if r.IsError() {
				errCh <- r.Error()
				return
			}
			if r.IsEmpty() {
				return
			}
			select {
			case ch <- r.Value():
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
	}()

	var out []T
	cfg := &longpoll.ChannelConfig{MaxSize: 64, MinSize: 1}
	for {
		err := longpoll.Channel(ctx, cfg, ch, func(value T) error {
			out = append(out, value)
			return nil
		})
		switch {
		case errors.Is(err, io.EOF):
			select {
			case genErr := <-errCh:
				return out, genErr
			default:
				return out, nil
			}
		case err != nil:
			return out, err
		case max > 0 && len(out) >= max:
			return out, nil
		}
	}
}

package crouton

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockerAwaitFromCoroutine(t *testing.T) {
	sched := Current()
	var b Blocker[string]
	var got string

	Go(func(yield func() bool) {
		got = b.Await(func() { yield() })
	})

	drainReady(sched)
	assert.Empty(t, got)

	b.Notify("hello")
	drainReady(sched)
	assert.Equal(t, "hello", got)
}

func TestBlockerWaitFromDifferentGoroutine(t *testing.T) {
	var b Blocker[int]
	go func() {
		b.Notify(7)
	}()
	assert.Equal(t, 7, b.Wait())
}

// TestBlockerConcurrentNotifyDuringAwaitNeverHangs exercises the window
// where a cross-goroutine Notify can land between Await's initial
// not-ready check and its suspension registration: Await must always
// either park and later be woken, or notice it lost the race and return
// the notified value directly, never parking forever.
func TestBlockerConcurrentNotifyDuringAwaitNeverHangs(t *testing.T) {
	for i := 0; i < 50; i++ {
		sched := Current()
		var b Blocker[int]
		var got int
		done := make(chan struct{})

		Go(func(yield func() bool) {
			got = b.Await(func() { yield() })
			close(done)
		})
		go b.Notify(i)

		for {
			drainReady(sched)
			select {
			case <-done:
				goto resolved
			default:
			}
		}
	resolved:
		assert.Equal(t, i, got)
	}
}

func TestBlockerResetAllowsReuse(t *testing.T) {
	var b Blocker[int]
	b.Notify(1)
	assert.Equal(t, 1, b.Wait())
	b.Reset()
	b.Notify(2)
	assert.Equal(t, 2, b.Wait())
}

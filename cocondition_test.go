package crouton

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// drainReady resumes ready coroutines until none remain ready, without
// blocking on the event loop (for tests with no timers/IO in play).
func drainReady(sched *Scheduler) {
	for sched.Resume() {
	}
}

func TestCoConditionNotifyOneWakesOldestFirst(t *testing.T) {
	sched := Current()
	var cond CoCondition
	var order []int

	for i := 0; i < 3; i++ {
		i := i
		Go(func(yield func() bool) {
			cond.Await(func() { yield() })
			order = append(order, i)
		})
	}

	drainReady(sched)
	assert.True(t, len(order) == 0)

	cond.NotifyOne()
	drainReady(sched)
	assert.Equal(t, []int{0}, order)

	cond.NotifyOne()
	drainReady(sched)
	assert.Equal(t, []int{0, 1}, order)

	cond.NotifyAll()
	drainReady(sched)
	assert.Equal(t, []int{0, 1, 2}, order)
	assert.True(t, cond.Empty())
}

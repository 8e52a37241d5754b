package crouton

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskRunsUntilInterrupted(t *testing.T) {
	sched := Current()
	iterations := 0

	task := Go(func(yield func() bool) {
		for yield() {
			iterations++
		}
	})

	sched.RunUntil(func() bool { return iterations >= 3 })
	assert.True(t, task.Alive())

	task.Interrupt()
	sched.RunUntil(func() bool { return !task.Alive() })

	r := task.Join().Wait()
	assert.False(t, r.IsError())
	assert.GreaterOrEqual(t, iterations, 3)
}

func TestTaskPanicBecomesJoinError(t *testing.T) {
	task := Go(func(yield func() bool) {
		panic("boom")
	})

	r := task.Join().Wait()
	require.True(t, r.IsError())
	assert.False(t, task.Alive())
}

func TestSchedulerAssertEmptyAfterTask(t *testing.T) {
	task := Go(func(yield func() bool) { return })
	sched := Current()
	_ = task.Join().Wait()
	ok := sched.AssertEmpty(context.Background())
	assert.True(t, ok)
}

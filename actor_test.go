package crouton

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActorSerializesConcurrentSubmits(t *testing.T) {
	sched := Current()
	actor := NewActor(sched)

	var running int
	var maxRunning int
	var order []int

	runMethod := func(id int) Future[int] {
		return Submit(actor, func(yield func()) Result[int] {
			running++
			if running > maxRunning {
				maxRunning = running
			}
			yield()
			order = append(order, id)
			running--
			return OK(id)
		})
	}

	f1 := runMethod(1)
	f2 := runMethod(2)
	f3 := runMethod(3)

	drainReady(sched)

	r1 := f1.Result()
	r2 := f2.Result()
	r3 := f3.Result()
	require.True(t, r1.Ok())
	require.True(t, r2.Ok())
	require.True(t, r3.Ok())
	assert.Equal(t, 1, maxRunning, "actor must serialize methods: at most one running at a time")
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.True(t, actor.Idle())
}

func TestActorIdleBeforeAnySubmit(t *testing.T) {
	actor := NewActor(Current())
	assert.True(t, actor.Idle())
}

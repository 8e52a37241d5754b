package crouton

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePushPopFIFO(t *testing.T) {
	q := NewQueue[int]()
	assert.True(t, q.Push(1))
	assert.True(t, q.Push(2))
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 1, q.Pop())
	assert.Equal(t, 2, q.Pop())
	assert.True(t, q.Empty())
}

func TestQueueGenerateDrainsThenClosesOnEmpty(t *testing.T) {
	q := NewQueue[int]()
	q.Push(1)
	q.Push(2)
	q.CloseWhenEmpty(NoError())

	gen := q.Generate()
	r1 := gen.Pull()
	require.True(t, r1.Ok())
	assert.Equal(t, 1, r1.Value())

	r2 := gen.Pull()
	require.True(t, r2.Ok())
	assert.Equal(t, 2, r2.Value())

	r3 := gen.Pull()
	assert.True(t, r3.IsEmpty())
	assert.Equal(t, QueueClosed, q.State())
}

func TestQueueGenerateOnlyOnce(t *testing.T) {
	q := NewQueue[int]()
	_ = q.Generate()
	assert.Panics(t, func() { q.Generate() })
}

func TestBoundedQueueRejectsPushWhenFull(t *testing.T) {
	q := NewBoundedQueue[int](2)
	assert.True(t, q.Push(1))
	assert.True(t, q.Push(2))
	assert.True(t, q.Full())
	assert.False(t, q.Push(3))
}

func TestBoundedQueueAsyncPushParksUntilRoom(t *testing.T) {
	sched := Current()
	q := NewBoundedQueue[int](1)
	q.Push(1)

	pushed := false
	Go(func(yield func() bool) {
		ok := q.AsyncPush(func() { yield() }, 2)
		pushed = ok
	})

	drainReady(sched)
	assert.False(t, pushed) // still full, producer parked

	assert.Equal(t, 1, q.Pop()) // frees a slot, wakes the parked pusher
	drainReady(sched)
	assert.True(t, pushed)
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 2, q.Pop())
}

func TestBoundedQueuePushGeneratorDrainsSource(t *testing.T) {
	sched := Current()
	q := NewBoundedQueue[int](2)
	src := NewGenerator[int](func(yield func(int), park func()) {
		yield(10)
		yield(20)
		yield(30)
	})

	task := q.PushGenerator(src)

	var drained []int
	for {
		drainReady(sched)
		for !q.Empty() {
			drained = append(drained, q.Pop())
		}
		if !task.Alive() && q.State() != QueueOpen {
			break
		}
		if len(drained) >= 3 && q.State() == QueueClosing {
			break
		}
	}
	assert.ElementsMatch(t, []int{10, 20, 30}, drained)
}

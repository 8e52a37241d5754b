package crouton

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fibonacci(n int) *Generator[int] {
	return NewGenerator[int](func(yield func(int), park func()) {
		a, b := 0, 1
		for i := 0; i < n; i++ {
			yield(a)
			a, b = b, a+b
		}
	})
}

func TestGeneratorPullSequence(t *testing.T) {
	gen := fibonacci(6)
	var got []int
	for {
		r := gen.Pull()
		if !r.Ok() {
			assert.True(t, r.IsEmpty())
			break
		}
		got = append(got, r.Value())
	}
	assert.Equal(t, []int{0, 1, 1, 2, 3, 5}, got)
}

func TestGeneratorNextFromCoroutine(t *testing.T) {
	sched := Current()
	gen := fibonacci(4)
	var got []int
	done := make(chan struct{})

	Go(func(yield func() bool) {
		defer close(done)
		for {
			r := gen.Next(func() { yield() })
			if !r.Ok() {
				return
			}
			got = append(got, r.Value())
		}
	})

	sched.RunUntil(func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	})
	assert.Equal(t, []int{0, 1, 1, 2}, got)
}

func TestGeneratorPropagatesProducerPanic(t *testing.T) {
	gen := NewGenerator[int](func(yield func(int), park func()) {
		yield(1)
		panic("producer exploded")
	})

	r1 := gen.Pull()
	require.True(t, r1.Ok())
	assert.Equal(t, 1, r1.Value())

	r2 := gen.Pull()
	assert.True(t, r2.IsError())
}

func TestGeneratorCloseUnparksProducerFromScheduler(t *testing.T) {
	sched := Current()
	gen := NewGenerator[int](func(yield func(int), park func()) {
		for i := 0; ; i++ {
			yield(i)
		}
	})

	r := gen.Pull()
	require.True(t, r.Ok())
	assert.False(t, sched.IsEmpty(), "producer should be parked in the suspended set after the first Pull")

	gen.Close()
	assert.True(t, sched.IsEmpty(), "Close must remove the abandoned producer from the Scheduler")

	r2 := gen.Pull()
	assert.True(t, r2.IsEmpty(), "Pull after Close reports end of sequence rather than resuming the cancelled producer")
}

func TestGeneratorCollect(t *testing.T) {
	gen := fibonacci(5)
	out, err := gen.Collect(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 1, 2, 3}, out)
}

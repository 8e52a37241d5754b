package crouton

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectAwaitsFirstReady(t *testing.T) {
	sched := Current()
	p1, f1 := NewProvider[int]()
	p2, f2 := NewProvider[int]()
	_ = p1

	sel := NewSelect(f1, f2).EnableAll()
	defer sel.Close()

	var winner int
	Go(func(yield func() bool) {
		winner = sel.Await(func() { yield() })
		return
	})

	drainReady(sched)
	assert.Zero(t, winner) // nothing ready yet, coroutine still parked

	p2.Resolve(99)
	drainReady(sched)
	assert.Equal(t, 1, winner)

	r2, err := f2.Result().Unpack()
	require.NoError(t, err)
	assert.Equal(t, 99, r2)
}

func TestSelectAwaitWithNothingEnabledReturnsNegativeOne(t *testing.T) {
	sel := NewSelect()
	defer sel.Close()
	idx := sel.Await(func() {})
	assert.Equal(t, -1, idx)
}

func TestSelectReturnsIndexOfFiredSource(t *testing.T) {
	sched := Current()
	p, f := NewProvider[int]()

	sel := NewSelect(f)
	sel.Enable(0)
	defer sel.Close()

	var results []int
	Go(func(yield func() bool) {
		idx := sel.Await(func() { yield() })
		results = append(results, idx)
	})

	p.Resolve(5)
	drainReady(sched)
	assert.Equal(t, []int{0}, results)
}

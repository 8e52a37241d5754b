package crouton

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFutureResolveWait(t *testing.T) {
	provider, future := NewProvider[int]()
	provider.Resolve(42)

	r := future.Wait()
	require.True(t, r.Ok())
	assert.Equal(t, 42, r.Value())
}

func TestFutureFailWait(t *testing.T) {
	provider, future := NewProvider[int]()
	provider.Fail(ErrTimeout)

	r := future.Wait()
	assert.True(t, r.IsError())
	assert.ErrorIs(t, r.Error(), ErrTimeout)
}

func TestFutureResolveAfterAsyncProducer(t *testing.T) {
	provider, future := NewProvider[string]()
	go func() {
		provider.Resolve("done")
	}()

	r := future.Wait()
	require.True(t, r.Ok())
	assert.Equal(t, "done", r.Value())
}

func TestFutureDoubleResolvePanics(t *testing.T) {
	provider, _ := NewProvider[int]()
	provider.Resolve(1)
	assert.Panics(t, func() { provider.Resolve(2) })
}

func TestThenChain(t *testing.T) {
	provider, future := NewProvider[int]()
	doubled := Then(future, func(v int) int { return v * 2 })

	provider.Resolve(21)

	r := doubled.Wait()
	require.True(t, r.Ok())
	assert.Equal(t, 42, r.Value())
}

func TestThenSkippedOnError(t *testing.T) {
	provider, future := NewProvider[int]()
	called := false
	chained := Then(future, func(v int) int {
		called = true
		return v
	})

	provider.Fail(ErrLogicError)

	r := chained.Wait()
	assert.False(t, called)
	assert.True(t, r.IsError())
	assert.ErrorIs(t, r.Error(), ErrLogicError)
}

func TestCatchRecoversError(t *testing.T) {
	provider, future := NewProvider[int]()
	recovered := Catch(future, func(Error) int { return -1 })

	provider.Fail(ErrCancelled)

	r := recovered.Wait()
	require.True(t, r.Ok())
	assert.Equal(t, -1, r.Value())
}

func TestFutureOnReadyAlreadyResolved(t *testing.T) {
	f := Ready(7)
	called := false
	f.OnReady(func() { called = true })
	assert.True(t, called)
}

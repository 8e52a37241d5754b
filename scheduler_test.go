package crouton

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTransferMovesCoroutineToTargetScheduler checks that a coroutine which
// Transfers itself actually resumes under the target Scheduler afterward,
// and that doing so leaves the source Scheduler clean (no orphaned
// suspended entry) once the handoff completes.
func TestTransferMovesCoroutineToTargetScheduler(t *testing.T) {
	src := Current()
	target := NewScheduler()

	var seenBefore, seenAfter *Scheduler
	done := make(chan struct{})

	Go(func(yield func() bool) {
		seenBefore = Current()
		err := src.Transfer(context.Background(), target, func() { yield() })
		require.NoError(t, err)
		seenAfter = Current()
		close(done)
	})

	// Drive src until the coroutine transfers itself and parks there,
	// waiting for target to take ownership.
	drainReady(src)
	assert.Same(t, src, seenBefore)
	assert.False(t, src.IsEmpty(), "Transfer must park the handle under src until target adopts it")

	// target's adoptHandle posts asynchronously through its EventLoop;
	// drain that, then let target resume the handle the rest of the way.
	target.EventLoop().RunOnce(false)
	for {
		select {
		case <-done:
			goto finished
		default:
		}
		if !target.Resume() {
			break
		}
	}
finished:
	<-done
	assert.Same(t, target, seenAfter)
	assert.True(t, src.IsEmpty(), "src must release the parked entry once the coroutine moved to target")
	assert.True(t, target.IsEmpty())
}

// TestTransferToAlreadyCurrentSchedulerIsANoOp checks that Transfer returns
// immediately without parking when the target is already current.
func TestTransferToAlreadyCurrentSchedulerIsANoOp(t *testing.T) {
	sched := Current()
	done := make(chan struct{})

	Go(func(yield func() bool) {
		err := sched.Transfer(context.Background(), sched, func() { yield() })
		require.NoError(t, err)
		close(done)
	})

	drainReady(sched)
	select {
	case <-done:
	default:
		t.Fatal("Transfer to the already-current Scheduler should not have parked the coroutine")
	}
}

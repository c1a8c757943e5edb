package goasio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIoContext_RunAutoStopsWithNoOutstandingWork(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	done := make(chan struct{})
	go func() {
		err := ctx.Run(nil)
		assert.NoError(t, err)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not auto-stop with no outstanding work")
	}
}

func TestIoContext_WorkGuardPreventsAutoStop(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	work := NewIoContextWork(ctx)
	done := make(chan struct{})
	go func() {
		ctx.Run(nil)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Run returned while a work guard was still held")
	case <-time.After(50 * time.Millisecond):
	}

	work.Release()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the work guard was released")
	}
}

func TestIoContext_PostRunsExactlyOnce(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	calls := 0
	ctx.Post(func() { calls++ })
	ctx.Run(nil)
	assert.Equal(t, 1, calls)
}

func TestIoContext_DispatchRunsInlineWhenAlreadyOnWorker(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	order := []string{}
	ctx.Post(func() {
		order = append(order, "outer-start")
		ctx.Dispatch(func() {
			order = append(order, "inline")
		})
		order = append(order, "outer-end")
	})
	ctx.Run(nil)
	assert.Equal(t, []string{"outer-start", "inline", "outer-end"}, order)
}

func TestIoContext_RunOneStepsOneTaskAtATime(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	calls := 0
	ctx.Post(func() { calls++ })
	ctx.Post(func() { calls++ })

	ran, err := ctx.RunOne()
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1, calls)

	ran, err = ctx.RunOne()
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 2, calls)

	ran, err = ctx.RunOne()
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestIoContext_StopDrainsRemainingTasks(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	ran := make(chan struct{}, 1)
	ctx.Post(func() {
		ctx.Stop()
		ctx.Post(func() { ran <- struct{}{} })
	})

	done := make(chan struct{})
	go func() {
		ctx.Run(nil)
		close(done)
	}()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("Run must still drain tasks queued after Stop was called")
	}
	<-done
}

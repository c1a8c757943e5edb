package goasio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoroutine_AwaitResumesWithTimerResult(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	var observed time.Time
	var awaitErr error

	co := Spawn(ctx, func(co *Coroutine) {
		timer := NewSteadyTimer(ctx)
		timer.ExpiresAfter(10 * time.Millisecond)
		observed, awaitErr = Await(co, func(h Handler[time.Time]) Callee[time.Time] {
			return timer.AsyncWait(h)
		})
	})

	done := make(chan struct{})
	go func() {
		ctx.Run(nil)
		close(done)
	}()

	select {
	case <-co.Done():
	case <-time.After(time.Second):
		t.Fatal("coroutine body never returned")
	}
	<-done

	require.NoError(t, awaitErr)
	assert.False(t, observed.IsZero())
}

// TestCoroutine_AwaitTimeoutFiresBeforeSlowOp exercises the actual auto-stop
// guarantee: the slow timer's wait must be canceled (not merely abandoned)
// once AwaitTimeout gives up, or the outstanding-work count it holds would
// keep Run from ever returning on its own. The test deliberately does not
// call ctx.Stop(), since that would force-clean a leaked timer and mask the
// bug this guards against.
func TestCoroutine_AwaitTimeoutFiresBeforeSlowOp(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	var awaitErr error
	slowTimer := NewSteadyTimer(ctx)
	co := Spawn(ctx, func(co *Coroutine) {
		slowTimer.ExpiresAfter(time.Hour)
		_, awaitErr = AwaitTimeout(co, 10*time.Millisecond, func(h Handler[time.Time]) (Callee[time.Time], func()) {
			return slowTimer.AsyncWait(h), func() { slowTimer.Cancel() }
		})
	})

	done := make(chan struct{})
	go func() {
		ctx.Run(nil)
		close(done)
	}()

	select {
	case <-co.Done():
	case <-time.After(time.Second):
		t.Fatal("coroutine body never returned")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not auto-stop: the slow timer's outstanding work was never released")
	}

	assert.ErrorIs(t, awaitErr, ErrTimedOut)
}

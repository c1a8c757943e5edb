package goasio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTimer_ResetFiresAtNewDeadline is the "timer reset" end-to-end
// scenario: a timer armed for 1s is reset to 10ms at the 100ms mark. The
// 1s deadline must never fire; exactly one success completion, close to
// the 10ms deadline, is expected.
func TestTimer_ResetFiresAtNewDeadline(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	timer := NewSteadyTimer(ctx)
	timer.ExpiresAfter(time.Second)

	start := time.Now()
	results := make(chan error, 2)
	timer.AsyncWait(CallbackHandler[time.Time]{Func: func(_ time.Time, err error) {
		results <- err
	}})

	go func() {
		time.Sleep(100 * time.Millisecond)
		timer.ExpiresAfter(10 * time.Millisecond)
		timer.AsyncWait(CallbackHandler[time.Time]{Func: func(_ time.Time, err error) {
			results <- err
		}})
	}()

	stopped := make(chan struct{})
	go func() {
		ctx.Run(nil)
		close(stopped)
	}()

	first := <-results
	assert.ErrorIs(t, first, ErrOperationCanceled, "the displaced 1s wait must complete canceled")

	second := <-results
	elapsed := time.Since(start)
	assert.NoError(t, second)
	assert.Less(t, elapsed, 500*time.Millisecond, "the reset wait must fire near its new 10ms deadline, not the original 1s one")

	ctx.Stop()
	<-stopped
}

func TestTimer_CancelCompletesWithOperationCanceled(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	timer := NewSteadyTimer(ctx)
	timer.ExpiresAfter(time.Hour)

	var gotErr error
	done := make(chan struct{})
	timer.AsyncWait(CallbackHandler[time.Time]{Func: func(_ time.Time, err error) {
		gotErr = err
		close(done)
	}})

	assert.True(t, timer.Cancel())
	assert.False(t, timer.Cancel(), "a second cancel with nothing pending reports false")

	go ctx.Run(nil)
	<-done
	assert.ErrorIs(t, gotErr, ErrOperationCanceled)
	ctx.Stop()
}

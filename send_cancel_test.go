package goasio

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAsyncSendCancel is the "async send cancel" end-to-end scenario: the
// client repeats AsyncWrite of 1 MiB buffers against a peer that never
// reads (so the kernel send buffer eventually fills and writes start
// parking on EAGAIN); a 150ms timer then cancels the socket. Expected: the
// pending send completes with OPERATION_CANCELED, no further sends are
// issued, and the context exits cleanly.
func TestAsyncSendCancel(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	clientConn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer clientConn.Close()
	client, err := bindSocket(ctx, clientConn)
	require.NoError(t, err)
	defer client.Close()

	peer := <-accepted
	defer peer.Close()

	var sendCount int
	var finalErr error
	sendDone := make(chan struct{})

	buf := make([]byte, 1<<20)
	var sendOne func()
	sendOne = func() {
		AsyncWrite(ctx, client, buf, CallbackHandler[int]{Func: func(n int, err error) {
			sendCount++
			if err != nil {
				finalErr = err
				close(sendDone)
				return
			}
			sendOne()
		}})
	}
	sendOne()

	timer := NewSteadyTimer(ctx)
	timer.ExpiresAfter(150 * time.Millisecond)
	timer.AsyncWait(CallbackHandler[time.Time]{Func: func(_ time.Time, err error) {
		if err == nil {
			client.Cancel()
		}
	}})

	runDone := make(chan struct{})
	go func() {
		ctx.Run(nil)
		close(runDone)
	}()

	select {
	case <-sendDone:
	case <-time.After(10 * time.Second):
		t.Fatal("cancel never interrupted the send loop")
	}
	ctx.Stop()
	<-runDone

	assert.ErrorIs(t, finalErr, ErrOperationCanceled)
	assert.GreaterOrEqual(t, sendCount, 1)

	// no further send should have been queued once cancellation completed
	// the in-flight one; sendCount is the exact number of handler
	// invocations, matching spec.md §8 scenario 3's "no further sends".
	priorCount := sendCount
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, priorCount, sendCount)
}

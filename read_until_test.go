package goasio

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReadUntil is the "read-until" end-to-end scenario: the server
// pre-writes "\r\n" + 10000 '0' bytes + "\r\n"; the client issues three
// sequential AsyncReadUntil calls against one 65536-byte StreamBuffer,
// expecting sizes 2, 2, 10002.
func TestReadUntil(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	payload := append([]byte("\r\n"), bytes.Repeat([]byte{'0'}, 10000)...)
	payload = append(payload, []byte("\r\n")...)

	serverAccepted := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write(payload)
		close(serverAccepted)
		time.Sleep(200 * time.Millisecond)
	}()

	clientConn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	client, err := bindSocket(ctx, clientConn)
	require.NoError(t, err)
	defer client.Close()
	defer clientConn.Close()

	buf := NewStreamBuffer(65536)
	var sizes []int
	done := make(chan struct{})

	var step func()
	step = func() {
		AsyncReadUntil(ctx, client, buf, []byte("\r\n"), CallbackHandler[int]{Func: func(n int, err error) {
			require.NoError(t, err)
			sizes = append(sizes, n)
			buf.Consume(n)
			if len(sizes) == 3 {
				close(done)
				return
			}
			step()
		}})
	}
	step()

	runDone := make(chan struct{})
	go func() {
		ctx.Run(nil)
		close(runDone)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("read-until sequence did not complete")
	}
	ctx.Stop()
	<-runDone

	assert.Equal(t, []int{2, 2, 10002}, sizes)
	<-serverAccepted
}

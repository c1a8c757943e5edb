package goasio

import (
	"net"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// acceptOp is spec.md §3's "Op" specialized for a single accept attempt
// against a listening descriptor, grounded on the teacher's tryRead loop
// shape but calling accept4 instead of read.
type acceptOp struct {
	fd     int
	caller Caller[net.Conn]
}

func (op *acceptOp) perform() bool {
	nfd, _, err := unix.Accept4(op.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if isWouldBlock(err) {
			return false
		}
		op.caller.failure(errnoToSystemError("accept", err.(syscall.Errno)))
		return true
	}
	f := os.NewFile(uintptr(nfd), "")
	conn, err := net.FileConn(f)
	f.Close()
	if err != nil {
		op.caller.failure(err)
		return true
	}
	op.caller.success(conn)
	return true
}

func (op *acceptOp) cancel() { op.caller.failure(ErrOperationCanceled) }

// AsyncAccept submits a single accept against a listening boundDescriptor,
// delivering the accepted connection. Spec.md §2 item 11; the accepted
// net.Conn is a plain stdlib connection — callers pass it to bindSocket
// themselves to read/write it through this package's async operations.
func AsyncAccept(ctx *IoContext, listener *boundDescriptor, h Handler[net.Conn]) Callee[net.Conn] {
	caller, callee := h.channel()
	if ctx.Stopped() {
		caller.failure(ErrOperationCanceled)
		return callee
	}
	ctx.workAdd()
	tic := globalCallStack.contains(ctx)
	op := &acceptOp{fd: listener.fd, caller: workDoneCaller[net.Conn]{ctx: ctx, inner: caller}}
	ctx.reactor.addReadOp(tic, listener.fd, op)
	return callee
}

// BindListener wraps an already-listening net.Listener (TCPListener,
// UnixListener) for use with AsyncAccept.
func BindListener(ctx *IoContext, l net.Listener) (*boundDescriptor, error) {
	return bindSocket(ctx, l)
}

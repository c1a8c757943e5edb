package goasio

import "golang.org/x/sys/unix"

// NewSeqPacketSocket opens a UNIX-domain SOCK_SEQPACKET socket bound to
// localAddr (empty for an unbound/client socket) and registers it with
// ctx's reactor, reusing AsyncRead/AsyncWrite/AsyncConnect/AsyncAccept since
// SEQPACKET preserves record boundaries the same way a stream socket's
// queue-per-direction model already serializes one op at a time. Spec.md
// §5.9 (original_source's local/mod.rs).
func NewSeqPacketSocket(ctx *IoContext, localAddr string) (*boundDescriptor, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	if localAddr != "" {
		if err := unix.Bind(fd, &unix.SockaddrUnix{Name: localAddr}); err != nil {
			unix.Close(fd)
			return nil, err
		}
		if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
			unix.Close(fd)
			return nil, err
		}
	}
	d, err := ctx.reactor.registerSocket(fd, ctx)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &boundDescriptor{fd: fd, desc: d}, nil
}

// AsyncAcceptSeqPacket accepts one pending connection on a listening
// SEQPACKET socket, delivering a boundDescriptor for the accepted peer
// (SEQPACKET has no net.Conn implementation in the standard library, so the
// accepted fd is registered directly rather than routed through
// net.FileConn as AsyncAccept does for stream sockets).
func AsyncAcceptSeqPacket(ctx *IoContext, listener *boundDescriptor, h Handler[*boundDescriptor]) Callee[*boundDescriptor] {
	caller, callee := h.channel()
	if ctx.Stopped() {
		caller.failure(ErrOperationCanceled)
		return callee
	}
	ctx.workAdd()
	tic := globalCallStack.contains(ctx)
	op := &seqpacketAcceptOp{ctx: ctx, fd: listener.fd, caller: workDoneCaller[*boundDescriptor]{ctx: ctx, inner: caller}}
	ctx.reactor.addReadOp(tic, listener.fd, op)
	return callee
}

type seqpacketAcceptOp struct {
	ctx    *IoContext
	fd     int
	caller Caller[*boundDescriptor]
}

func (op *seqpacketAcceptOp) perform() bool {
	nfd, _, err := unix.Accept4(op.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if isWouldBlock(err) {
			return false
		}
		op.caller.failure(err)
		return true
	}
	d, err := op.ctx.reactor.registerSocket(nfd, op.ctx)
	if err != nil {
		unix.Close(nfd)
		op.caller.failure(err)
		return true
	}
	op.caller.success(&boundDescriptor{fd: nfd, desc: d})
	return true
}

func (op *seqpacketAcceptOp) cancel() { op.caller.failure(ErrOperationCanceled) }

package goasio

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// syscallConnSource is implemented by every net.Conn, net.PacketConn and
// net.Listener the standard library returns (TCPConn, UDPConn, UnixConn,
// TCPListener, UnixListener, IPConn...). Ported from the teacher's dupconn,
// generalized to any fd-backed object rather than just net.Conn.
type syscallConnSource interface {
	SyscallConn() (syscall.RawConn, error)
}

// dupFD duplicates the file descriptor underlying src, the way the teacher's
// dupconn does, so the reactor's descriptorContext owns an independent fd
// that survives the caller closing its own net.Conn. Spec.md §4.2 "why a
// descriptor context duplicates the fd".
func dupFD(src interface{}) (int, error) {
	sc, ok := src.(syscallConnSource)
	if !ok {
		return -1, ErrUnsupportedConn
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return -1, ErrUnsupportedConn
	}

	var newfd int
	var dupErr error
	ctrlErr := rc.Control(func(fd uintptr) {
		newfd, dupErr = unix.Dup(int(fd))
	})
	if ctrlErr != nil {
		return -1, ctrlErr
	}
	if dupErr != nil {
		return -1, dupErr
	}
	if err := unix.SetNonblock(newfd, true); err != nil {
		unix.Close(newfd)
		return -1, err
	}
	unix.CloseOnExec(newfd)
	return newfd, nil
}

// boundDescriptor pairs a duplicated, reactor-registered fd with the
// original net.Conn/net.PacketConn/net.Listener it was duplicated from (kept
// alive so the kernel socket itself is not released out from under the
// duplicated fd's peer state), and the descriptorContext tracking its queues.
type boundDescriptor struct {
	fd   int
	src  interface{ Close() error }
	desc *descriptorContext
}

// bindSocket duplicates src's fd, registers it with ctx's reactor for both
// read and write readiness, and returns the resulting boundDescriptor that
// AsyncRead, AsyncWrite, AsyncAccept and the other descriptor operations
// take. AsyncConnect and the NewDatagramSocket/NewSeqPacketSocket/
// NewRawSocket constructors create their own fd and register it directly.
func bindSocket(ctx *IoContext, src interface{ Close() error }) (*boundDescriptor, error) {
	fd, err := dupFD(src)
	if err != nil {
		return nil, err
	}
	d, err := ctx.reactor.registerSocket(fd, ctx)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	d.conn = src
	return &boundDescriptor{fd: fd, src: src, desc: d}, nil
}

// Close deregisters the descriptor from the reactor (canceling any pending
// ops) and closes the duplicated fd. The original net.Conn passed to
// bindSocket is left untouched; callers close it separately.
func (b *boundDescriptor) Close() error {
	_ = b.ctxReactorDeregister()
	return unix.Close(b.fd)
}

func (b *boundDescriptor) ctxReactorDeregister() error {
	return b.desc.ctx.reactor.deregisterSocket(b.fd)
}

// Cancel fails every op currently queued against this descriptor with
// OPERATION_CANCELED, without closing the fd or deregistering it — further
// ops may still be submitted afterwards, they just won't run until the
// reactor resets the canceled flag (it does not; a canceled descriptor's
// queues stay canceled until Close()). Spec.md §8 scenario 3 ("async send
// cancel").
func (b *boundDescriptor) Cancel() {
	b.desc.ctx.reactor.cancelOps(b.fd)
}

// rawRead/rawWrite perform exactly one nonblocking syscall attempt, mirroring
// the teacher's tryRead/tryWrite inner loop bodies but without the loop: the
// reactor's addReadOp/addWriteOp + runRead/runWrite already provide the
// retry-on-EAGAIN loop at the op-queue level.
func rawRead(fd int, buf []byte) (int, error) {
	n, err := unix.Read(fd, buf)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func rawWrite(fd int, buf []byte) (int, error) {
	n, err := unix.Write(fd, buf)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// isWouldBlock reports whether err is EAGAIN/EWOULDBLOCK/EINTR, the set of
// errnos that mean "not done yet, stay parked" rather than a hard failure.
// Spec.md §4.4 "perform()'s nonblocking loop".
func isWouldBlock(err error) bool {
	errno, ok := err.(syscall.Errno)
	if !ok {
		return false
	}
	return errno == unix.EAGAIN || errno == unix.EWOULDBLOCK || errno == unix.EINTR
}

// fdOf extracts the live (non-duplicated) fd from a net.Conn-like value,
// used only where a raw, non-duplicated view of the descriptor is required
// (e.g. setting socket options before duplication).
func fdOf(src interface{}) (int, error) {
	sc, ok := src.(syscallConnSource)
	if !ok {
		return -1, ErrUnsupportedConn
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return -1, ErrUnsupportedConn
	}
	var fd int
	cerr := rc.Control(func(f uintptr) { fd = int(f) })
	if cerr != nil {
		return -1, cerr
	}
	return fd, nil
}

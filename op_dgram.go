package goasio

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// DatagramResult is AsyncReadFrom's result type: the byte count and the
// sender's address, mirroring net.PacketConn.ReadFrom's two-value return
// collapsed into one struct since Handler is parameterized on a single R.
type DatagramResult struct {
	N    int
	Addr net.Addr
}

// recvFromOp is readOp's datagram counterpart, spec.md §5.9 "datagram
// sockets" (original_source's dgram_socket.rs).
type recvFromOp struct {
	fd     int
	buf    []byte
	family int // not set by AsyncReadFrom; sockaddrToAddr decodes by Sockaddr type
	caller Caller[DatagramResult]
}

func (op *recvFromOp) perform() bool {
	n, from, err := unix.Recvfrom(op.fd, op.buf, 0)
	if err != nil {
		if isWouldBlock(err) {
			return false
		}
		op.caller.failure(errnoToSystemError("recvfrom", err.(syscall.Errno)))
		return true
	}
	op.caller.success(DatagramResult{N: n, Addr: sockaddrToAddr(from)})
	return true
}

func (op *recvFromOp) cancel() { op.caller.failure(ErrOperationCanceled) }

func sockaddrToAddr(sa unix.Sockaddr) net.Addr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.UDPAddr{IP: a.Addr[:], Port: a.Port}
	case *unix.SockaddrInet6:
		return &net.UDPAddr{IP: a.Addr[:], Port: a.Port}
	case *unix.SockaddrUnix:
		return &net.UnixAddr{Name: a.Name, Net: "unixgram"}
	default:
		return nil
	}
}

// AsyncReadFrom submits a single recvfrom against a datagram descriptor,
// delivering the byte count and sender address. Spec.md §5.9.
func AsyncReadFrom(ctx *IoContext, d *boundDescriptor, buf []byte, h Handler[DatagramResult]) Callee[DatagramResult] {
	caller, callee := h.channel()
	if ctx.Stopped() {
		caller.failure(ErrOperationCanceled)
		return callee
	}
	ctx.workAdd()
	tic := globalCallStack.contains(ctx)
	op := &recvFromOp{fd: d.fd, buf: buf, caller: workDoneCaller[DatagramResult]{ctx: ctx, inner: caller}}
	ctx.reactor.addReadOp(tic, d.fd, op)
	return callee
}

// sendToOp is AsyncWriteTo's boxed operation.
type sendToOp struct {
	fd     int
	buf    []byte
	to     unix.Sockaddr
	caller Caller[int]
}

func (op *sendToOp) perform() bool {
	err := unix.Sendto(op.fd, op.buf, 0, op.to)
	if err != nil {
		if isWouldBlock(err) {
			return false
		}
		op.caller.failure(errnoToSystemError("sendto", err.(syscall.Errno)))
		return true
	}
	op.caller.success(len(op.buf))
	return true
}

func (op *sendToOp) cancel() { op.caller.failure(ErrOperationCanceled) }

// AsyncWriteTo submits a single sendto of buf to addr against a datagram
// descriptor. Spec.md §5.9.
func AsyncWriteTo(ctx *IoContext, d *boundDescriptor, buf []byte, addr net.Addr, h Handler[int]) Callee[int] {
	caller, callee := h.channel()
	if ctx.Stopped() {
		caller.failure(ErrOperationCanceled)
		return callee
	}
	_, sa, err := addrToSockaddr(addr)
	if err != nil {
		caller.failure(err)
		return callee
	}
	ctx.workAdd()
	tic := globalCallStack.contains(ctx)
	op := &sendToOp{fd: d.fd, buf: buf, to: sa, caller: workDoneCaller[int]{ctx: ctx, inner: caller}}
	ctx.reactor.addWriteOp(tic, d.fd, op)
	return callee
}

func addrToSockaddr(addr net.Addr) (domain int, sa unix.Sockaddr, err error) {
	switch a := addr.(type) {
	case *net.UDPAddr:
		if ip4 := a.IP.To4(); ip4 != nil {
			var buf [4]byte
			copy(buf[:], ip4)
			return unix.AF_INET, &unix.SockaddrInet4{Port: a.Port, Addr: buf}, nil
		}
		var buf [16]byte
		copy(buf[:], a.IP.To16())
		return unix.AF_INET6, &unix.SockaddrInet6{Port: a.Port, Addr: buf}, nil
	case *net.UnixAddr:
		return unix.AF_UNIX, &unix.SockaddrUnix{Name: a.Name}, nil
	default:
		return 0, nil, ErrUnsupportedConn
	}
}

// NewDatagramSocket creates a nonblocking UDP or UNIX-datagram socket bound
// to localAddr (empty for an ephemeral port) and registers it with ctx's
// reactor. Spec.md §5.9 "datagram sockets".
func NewDatagramSocket(ctx *IoContext, network, localAddr string) (*boundDescriptor, error) {
	sockType := unix.SOCK_DGRAM
	var domain int
	var sa unix.Sockaddr
	var err error
	if localAddr != "" {
		domain, sa, err = resolveSockaddr(netForDgram(network), localAddr)
	} else if network == "udp" || network == "udp4" {
		domain = unix.AF_INET
	} else if network == "udp6" {
		domain = unix.AF_INET6
	} else {
		domain = unix.AF_UNIX
	}
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(domain, sockType|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	if sa != nil {
		if err := unix.Bind(fd, sa); err != nil {
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

// netForDgram maps a datagram network name to the stream-style name
// resolveSockaddr understands (it only switches on address family, not
// SOCK_DGRAM vs SOCK_STREAM).
func netForDgram(network string) string {
	switch network {
	case "udp", "udp4":
		return "tcp4"
	case "udp6":
		return "tcp6"
	default:
		return "unix"
	}
}

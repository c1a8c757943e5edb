package goasio

import (
	"fmt"
	"net"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// connectOp waits for the connecting descriptor to become writable, then
// inspects SO_ERROR to distinguish a completed connection from a failed
// one — the standard nonblocking-connect idiom, driven here through the
// same write-readiness queue every other write op uses. Spec.md §4.4
// "perform() reaches a terminal state".
type connectOp struct {
	fd     int
	caller Caller[net.Conn]
}

func (op *connectOp) perform() bool {
	errno, err := unix.GetsockoptInt(op.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		op.caller.failure(err)
		return true
	}
	if errno != 0 {
		op.caller.failure(errnoToSystemError("connect", syscall.Errno(errno)))
		return true
	}
	// still connecting: stay parked until the descriptor becomes writable.
	if _, err := unix.Getpeername(op.fd); err == unix.ENOTCONN {
		return false
	}
	f := os.NewFile(uintptr(op.fd), "")
	conn, err := net.FileConn(f)
	f.Close()
	if err != nil {
		op.caller.failure(err)
		return true
	}
	op.caller.success(conn)
	return true
}

func (op *connectOp) cancel() { op.caller.failure(ErrOperationCanceled) }

// resolveSockaddr turns a (network, address) pair into a raw domain/sockaddr
// pair for unix.Socket/unix.Connect, supporting the address families
// spec.md §2 item 11 names: IPv4, IPv6, and UNIX-domain.
func resolveSockaddr(network, address string) (domain int, sa unix.Sockaddr, err error) {
	switch network {
	case "tcp", "tcp4", "tcp6":
		addr, err := net.ResolveTCPAddr(network, address)
		if err != nil {
			return 0, nil, err
		}
		if ip4 := addr.IP.To4(); ip4 != nil {
			var a [4]byte
			copy(a[:], ip4)
			return unix.AF_INET, &unix.SockaddrInet4{Port: addr.Port, Addr: a}, nil
		}
		var a [16]byte
		copy(a[:], addr.IP.To16())
		return unix.AF_INET6, &unix.SockaddrInet6{Port: addr.Port, Addr: a}, nil
	case "unix", "unixpacket":
		addr, err := net.ResolveUnixAddr(network, address)
		if err != nil {
			return 0, nil, err
		}
		return unix.AF_UNIX, &unix.SockaddrUnix{Name: addr.Name}, nil
	default:
		return 0, nil, fmt.Errorf("goasio: unsupported network %q", network)
	}
}

// AsyncConnect creates a nonblocking socket for (network, address), starts
// the connect, and delivers the resulting net.Conn through h once it
// completes (or fails). Spec.md §2 item 11.
func AsyncConnect(ctx *IoContext, network, address string, h Handler[net.Conn]) Callee[net.Conn] {
	caller, callee := h.channel()
	if ctx.Stopped() {
		caller.failure(ErrOperationCanceled)
		return callee
	}

	sockType := unix.SOCK_STREAM
	if network == "unixpacket" {
		sockType = unix.SOCK_SEQPACKET
	}
	domain, sa, err := resolveSockaddr(network, address)
	if err != nil {
		caller.failure(err)
		return callee
	}
	fd, err := unix.Socket(domain, sockType|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		caller.failure(err)
		return callee
	}

	// registerSocket expects to own an already-duplicated fd (the normal
	// path duplicates from an existing net.Conn); here the fd was created
	// fresh for this connect, so register it directly instead of going
	// through bindSocket/dupFD.
	if _, err := ctx.reactor.registerSocket(fd, ctx); err != nil {
		unix.Close(fd)
		caller.failure(err)
		return callee
	}

	connErr := unix.Connect(fd, sa)
	wrapped := workDoneCaller[net.Conn]{ctx: ctx, inner: caller}
	ctx.workAdd()
	op := &connectOp{fd: fd, caller: wrapped}

	if connErr == nil {
		// connected synchronously (rare, usually loopback UNIX sockets).
		tic := globalCallStack.contains(ctx)
		if tic != nil {
			tic.enqueue(func() { op.perform() })
		} else {
			op.perform()
		}
		return callee
	}
	if connErr != unix.EINPROGRESS {
		_ = ctx.reactor.deregisterSocket(fd)
		unix.Close(fd)
		wrapped.failure(errnoToSystemError("connect", connErr.(syscall.Errno)))
		return callee
	}

	tic := globalCallStack.contains(ctx)
	ctx.reactor.addWriteOp(tic, fd, op)
	return callee
}

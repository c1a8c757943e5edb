package goasio

import (
	"net"
	"os"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"
)

// packetConnFromFD wraps a raw socket fd as a net.PacketConn for
// golang.org/x/net's ipv4.RawConn/ipv6.PacketConn, which both require one.
// It dups fd first so the os.File's eventual close (which net.FilePacketConn
// requires of its caller) never touches the original, reactor-owned fd.
func packetConnFromFD(fd int, domainName string) (net.PacketConn, error) {
	dup, err := unix.Dup(fd)
	if err != nil {
		return nil, err
	}
	name := "ip4-raw"
	if domainName == "ip6" {
		name = "ip6-raw"
	}
	f := os.NewFile(uintptr(dup), name)
	pc, err := net.FilePacketConn(f)
	f.Close()
	if err != nil {
		return nil, err
	}
	return pc, nil
}

// RawSocket is spec.md §5.9's "raw sockets" supplement (original_source's
// raw_socket.rs): an IPv4 or IPv6 raw socket (typically ICMP) driven
// through the same per-descriptor Ops queue as a stream socket, with
// protocol-specific header/option access delegated to golang.org/x/net's
// ipv4.RawConn/ipv6.PacketConn rather than reimplemented here.
type RawSocket struct {
	bound *boundDescriptor
	v4    *ipv4.RawConn
	v6    *ipv6.PacketConn
}

// NewRawSocket opens a raw IP socket for the given protocol number (e.g.
// unix.IPPROTO_ICMP) in the requested domain ("ip4" or "ip6") and registers
// it with ctx's reactor.
func NewRawSocket(ctx *IoContext, domainName string, proto int) (*RawSocket, error) {
	domain := unix.AF_INET
	if domainName == "ip6" {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, unix.SOCK_RAW|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, proto)
	if err != nil {
		return nil, err
	}
	d, err := ctx.reactor.registerSocket(fd, ctx)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	bound := &boundDescriptor{fd: fd, desc: d}
	rs := &RawSocket{bound: bound}

	// ipv4.RawConn/ipv6.PacketConn wrap a net.PacketConn for option and
	// header access; build one from a dup of fd so the reactor's copy and
	// the x/net wrapper's copy stay independent.
	pc, err := packetConnFromFD(fd, domainName)
	if err != nil {
		_ = ctx.reactor.deregisterSocket(fd)
		unix.Close(fd)
		return nil, err
	}
	if domainName == "ip6" {
		rs.v6 = ipv6.NewPacketConn(pc)
	} else {
		raw, err := ipv4.NewRawConn(pc)
		if err != nil {
			return nil, err
		}
		rs.v4 = raw
	}
	return rs, nil
}

// AsyncRead reads one packet from the raw socket through the ordinary
// read-op queue; header parsing (IPv4) or control-message access (IPv6) is
// left to the caller via the ipv4.RawConn/ipv6.PacketConn accessors.
func (rs *RawSocket) AsyncRead(ctx *IoContext, buf []byte, h Handler[int]) Callee[int] {
	return AsyncRead(ctx, rs.bound, buf, h)
}

// AsyncWrite writes one packet through the raw socket's write-op queue.
func (rs *RawSocket) AsyncWrite(ctx *IoContext, buf []byte, h Handler[int]) Callee[int] {
	return AsyncWrite(ctx, rs.bound, buf, h)
}

// V4 exposes the ipv4.RawConn for header construction and socket options
// (TTL, header-included mode, multicast), nil unless opened with "ip4".
func (rs *RawSocket) V4() *ipv4.RawConn { return rs.v4 }

// V6 exposes the ipv6.PacketConn for hop-limit/traffic-class control
// messages, nil unless opened with "ip6".
func (rs *RawSocket) V6() *ipv6.PacketConn { return rs.v6 }

func (rs *RawSocket) Close() error { return rs.bound.Close() }

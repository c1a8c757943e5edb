//go:build linux

package goasio

import (
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// linuxSignalBackend registers a signalfd descriptor with the reactor
// directly, letting signal readiness flow through the same dispatch path as
// socket readiness (descSignal kind). Spec.md §5.9.
type linuxSignalBackend struct {
	fd   int
	mask unix.Sigset_t
	onSig func(os.Signal)
}

func newSignalBackend(ctx *IoContext, onSig func(os.Signal)) (signalBackend, error) {
	b := &linuxSignalBackend{onSig: onSig}
	fd, err := unix.Signalfd(-1, &b.mask, unix.SFD_NONBLOCK|unix.SFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	b.fd = fd
	if _, err := ctx.reactor.registerIntr(fd, descSignal, ctx, b.onReadable); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return b, nil
}

// sigsetAdd sets the bit for signal num in set, using the same (64-bit word,
// bit-within-word) layout golang.org/x/sys/unix's Sigset_t uses on Linux.
func sigsetAdd(set *unix.Sigset_t, num syscall.Signal) {
	n := uint(num) - 1
	set.Val[n/64] |= 1 << (n % 64)
}

func (b *linuxSignalBackend) addSignal(sig os.Signal) error {
	num, ok := sig.(syscall.Signal)
	if !ok {
		return ErrUnsupportedConn
	}
	sigsetAdd(&b.mask, num)
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &b.mask, nil); err != nil {
		return err
	}
	// re-arm the existing signalfd with the widened mask.
	if _, err := unix.Signalfd(b.fd, &b.mask, unix.SFD_NONBLOCK|unix.SFD_CLOEXEC); err != nil {
		return err
	}
	return nil
}

var sizeofSiginfo = int(unsafe.Sizeof(unix.SignalfdSiginfo{}))

func (b *linuxSignalBackend) onReadable() {
	buf := make([]byte, sizeofSiginfo)
	for {
		n, err := unix.Read(b.fd, buf)
		if err != nil || n != sizeofSiginfo {
			return
		}
		info := (*unix.SignalfdSiginfo)(unsafe.Pointer(&buf[0]))
		b.onSig(syscall.Signal(info.Signo))
	}
}

func (b *linuxSignalBackend) close() error {
	return unix.Close(b.fd)
}

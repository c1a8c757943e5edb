//go:build linux

package goasio

import "golang.org/x/sys/unix"

// interrupter is the kernel-visible wakeup primitive described in spec.md
// §4.3. On Linux it is a single eventfd: writing increments a 64-bit kernel
// counter and makes the fd readable; reading drains it back to zero.
type interrupter struct {
	fd int
}

func newInterrupter() (*interrupter, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &interrupter{fd: fd}, nil
}

func (i *interrupter) readFD() int { return i.fd }

// interrupt writes one 8-byte counter increment, breaking a blocked
// epoll_wait. Safe to call redundantly; unix.Write may return EAGAIN if the
// counter is already non-zero (meaning a wakeup is already pending), which
// is not an error worth surfacing.
func (i *interrupter) interrupt() error {
	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(i.fd, buf[:])
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

// drain resets the eventfd counter to zero.
func (i *interrupter) drain() {
	var buf [8]byte
	for {
		_, err := unix.Read(i.fd, buf[:])
		if err != nil {
			return
		}
	}
}

func (i *interrupter) close() error {
	return unix.Close(i.fd)
}

//go:build darwin

package goasio

import "golang.org/x/sys/unix"

// interrupter on Darwin/BSD uses a self-pipe (no eventfd equivalent),
// spec.md §4.3: "on others it uses a non-blocking loopback TCP pair or
// self-pipe."
type interrupter struct {
	rfd, wfd int
}

func newInterrupter() (*interrupter, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, err
	}
	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			return nil, err
		}
		unix.CloseOnExec(fd)
	}
	return &interrupter{rfd: fds[0], wfd: fds[1]}, nil
}

func (i *interrupter) readFD() int { return i.rfd }

func (i *interrupter) interrupt() error {
	_, err := unix.Write(i.wfd, []byte{0})
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

func (i *interrupter) drain() {
	var buf [64]byte
	for {
		_, err := unix.Read(i.rfd, buf[:])
		if err != nil {
			return
		}
	}
}

func (i *interrupter) close() error {
	unix.Close(i.wfd)
	return unix.Close(i.rfd)
}

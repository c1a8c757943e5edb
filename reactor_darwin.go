//go:build darwin

package goasio

import (
	"golang.org/x/sys/unix"
)

const maxPollEvents = 1024

type kqueueBackend struct {
	kq  int
	buf []unix.Kevent_t
}

func newPollerBackend() (pollerBackend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &kqueueBackend{kq: kq, buf: make([]unix.Kevent_t, maxPollEvents)}, nil
}

func (b *kqueueBackend) changeFD(fd int, filter int16, enable bool) error {
	flags := unix.EV_ADD | unix.EV_CLEAR
	if !enable {
		flags = unix.EV_DELETE
	}
	ev := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: filter,
		Flags:  uint16(flags),
	}
	_, err := unix.Kevent(b.kq, []unix.Kevent_t{ev}, nil, nil)
	if err != nil && !enable && err == unix.ENOENT {
		return nil
	}
	return err
}

func (b *kqueueBackend) addFD(fd int, readInterest, writeInterest bool) error {
	if readInterest {
		if err := b.changeFD(fd, unix.EVFILT_READ, true); err != nil {
			return err
		}
	}
	if writeInterest {
		if err := b.changeFD(fd, unix.EVFILT_WRITE, true); err != nil {
			return err
		}
	}
	return nil
}

func (b *kqueueBackend) modFD(fd int, readInterest, writeInterest bool) error {
	return b.addFD(fd, readInterest, writeInterest)
}

func (b *kqueueBackend) delFD(fd int) error {
	_ = b.changeFD(fd, unix.EVFILT_READ, false)
	_ = b.changeFD(fd, unix.EVFILT_WRITE, false)
	return nil
}

func (b *kqueueBackend) wait(timeoutMillis int) ([]pollEvent, error) {
	var ts *unix.Timespec
	if timeoutMillis >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMillis) * 1e6)
		ts = &t
	}
	n, err := unix.Kevent(b.kq, nil, b.buf, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	byFD := make(map[int]*pollEvent, n)
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		e := b.buf[i]
		fd := int(e.Ident)
		pe, ok := byFD[fd]
		if !ok {
			pe = &pollEvent{fd: fd}
			byFD[fd] = pe
			order = append(order, fd)
		}
		if e.Filter == unix.EVFILT_READ {
			pe.readable = true
		}
		if e.Filter == unix.EVFILT_WRITE {
			pe.writable = true
		}
		if e.Flags&(unix.EV_EOF|unix.EV_ERROR) != 0 {
			pe.errHup = true
		}
	}
	out := make([]pollEvent, 0, len(order))
	for _, fd := range order {
		out = append(out, *byFD[fd])
	}
	return out, nil
}

func (b *kqueueBackend) close() error {
	return unix.Close(b.kq)
}

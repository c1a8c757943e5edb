//go:build linux

package goasio

import (
	"time"

	"golang.org/x/sys/unix"
)

// timerFD arms a Linux timerfd, letting the reactor poll it alongside
// sockets instead of computing an explicit poll timeout. Spec.md §4.3
// "Timer-fd variant".
type timerFD struct {
	fd int
}

func newTimerFD() (*timerFD, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &timerFD{fd: fd}, nil
}

func (t *timerFD) readFD() int { return t.fd }

func (t *timerFD) arm(d time.Duration) {
	if d < time.Nanosecond {
		d = time.Nanosecond // 0 would disarm; clamp to "fire immediately"
	}
	spec := unix.ItimerSpec{
		Value: unix.NsecToTimespec(d.Nanoseconds()),
	}
	_ = unix.TimerfdSettime(t.fd, 0, &spec, nil)
}

func (t *timerFD) disarm() {
	var spec unix.ItimerSpec
	_ = unix.TimerfdSettime(t.fd, 0, &spec, nil)
}

func (t *timerFD) drain() {
	var buf [8]byte
	unix.Read(t.fd, buf[:])
}

func (t *timerFD) close() error {
	return unix.Close(t.fd)
}

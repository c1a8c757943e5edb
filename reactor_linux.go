//go:build linux

package goasio

import (
	"golang.org/x/sys/unix"
)

// maxPollEvents bounds one epoll_wait batch; batching amortizes the
// context-switch cost of the syscall over many ready descriptors, the same
// rationale the teacher's aio_generic.go documents for its maxEvents.
const maxPollEvents = 1024

type epollBackend struct {
	epfd int
	buf  []unix.EpollEvent
}

func newPollerBackend() (pollerBackend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollBackend{epfd: epfd, buf: make([]unix.EpollEvent, maxPollEvents)}, nil
}

func interestMask(readInterest, writeInterest bool) uint32 {
	var ev uint32 = unix.EPOLLET
	if readInterest {
		ev |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if writeInterest {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (b *epollBackend) addFD(fd int, readInterest, writeInterest bool) error {
	ev := unix.EpollEvent{Events: interestMask(readInterest, writeInterest), Fd: int32(fd)}
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (b *epollBackend) modFD(fd int, readInterest, writeInterest bool) error {
	ev := unix.EpollEvent{Events: interestMask(readInterest, writeInterest), Fd: int32(fd)}
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (b *epollBackend) delFD(fd int) error {
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (b *epollBackend) wait(timeoutMillis int) ([]pollEvent, error) {
	n, err := unix.EpollWait(b.epfd, b.buf, timeoutMillis)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	out := make([]pollEvent, 0, n)
	for i := 0; i < n; i++ {
		e := b.buf[i]
		out = append(out, pollEvent{
			fd:       int(e.Fd),
			readable: e.Events&(unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			writable: e.Events&(unix.EPOLLOUT|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			errHup:   e.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
		})
	}
	return out, nil
}

func (b *epollBackend) close() error {
	return unix.Close(b.epfd)
}

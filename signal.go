package goasio

import (
	"os"
	"sync"
)

// SignalSet delivers os.Signal values through the same handler/yield
// machinery as a read-ready descriptor, spec.md §5.9 (original_source's
// core/signal_impl.rs, ops/signal_wait.rs). The backing mechanism is
// platform-specific: signal_linux.go registers a signalfd descriptor
// directly with the reactor; signal_darwin.go falls back to
// os/signal.Notify piped through the interrupter, since BSD/Darwin has no
// signalfd equivalent (recorded in DESIGN.md, not hidden).
type SignalSet struct {
	ctx     *IoContext
	backend signalBackend

	mu      sync.Mutex
	waiters []Caller[os.Signal]
}

// signalBackend is implemented once per platform.
type signalBackend interface {
	addSignal(sig os.Signal) error
	close() error
}

// NewSignalSet creates an empty signal set bound to ctx.
func NewSignalSet(ctx *IoContext) (*SignalSet, error) {
	s := &SignalSet{ctx: ctx}
	backend, err := newSignalBackend(ctx, s.deliver)
	if err != nil {
		return nil, err
	}
	s.backend = backend
	return s, nil
}

// Add registers sig as one this set watches for.
func (s *SignalSet) Add(sig os.Signal) error {
	return s.backend.addSignal(sig)
}

// AsyncWait completes with the next signal delivered to this set. Spec.md
// §5.9.
func (s *SignalSet) AsyncWait(h Handler[os.Signal]) Callee[os.Signal] {
	caller, callee := h.channel()
	if s.ctx.Stopped() {
		caller.failure(ErrOperationCanceled)
		return callee
	}
	s.ctx.workAdd()
	s.mu.Lock()
	s.waiters = append(s.waiters, workDoneCaller[os.Signal]{ctx: s.ctx, inner: caller})
	s.mu.Unlock()
	return callee
}

// deliver is called by the platform backend (on the descriptor's onReadable
// path for Linux, or from the forwarding goroutine on Darwin) with one
// signal, completing exactly one pending waiter FIFO, spec.md §4.4's "per
// direction at most one op in flight" restated for signal delivery.
func (s *SignalSet) deliver(sig os.Signal) {
	s.mu.Lock()
	if len(s.waiters) == 0 {
		s.mu.Unlock()
		return
	}
	next := s.waiters[0]
	s.waiters = s.waiters[1:]
	s.mu.Unlock()
	next.success(sig)
}

// Close releases the backend's OS resources; any still-pending waiters
// complete with OPERATION_CANCELED.
func (s *SignalSet) Close() error {
	s.mu.Lock()
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()
	for _, w := range waiters {
		w.failure(ErrOperationCanceled)
	}
	return s.backend.close()
}

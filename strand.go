package goasio

import "sync"

// Strand is spec.md §4.6's serialized executor: at most one executable
// bound to a given Strand runs at a time, even when submitted from several
// worker goroutines, and the value it wraps is only ever touched by the
// executable currently running. Ported from the teacher's single-goroutine
// dispatch loop, generalized here to a mutex-protected FIFO shared across
// however many goroutines call IoContext.Run.
type Strand[T any] struct {
	ctx *IoContext
	val T

	mu      sync.Mutex
	running bool
	q       []func(*T)
}

// NewStrand creates a strand bound to ctx, wrapping an initial value.
func NewStrand[T any](ctx *IoContext, initial T) *Strand[T] {
	return &Strand[T]{ctx: ctx, val: initial}
}

// Dispatch runs f immediately on the calling goroutine if no executable is
// running on the strand, then drains whatever was queued meanwhile. If the
// strand is busy (including a call from inside a strand executable), f is
// queued and runs after the current one returns. Spec.md §4.6 "dispatch is
// eager, post is not" (shared vocabulary with IoContext).
func (s *Strand[T]) Dispatch(f func(*T)) {
	s.mu.Lock()
	if !s.running {
		s.running = true
		s.mu.Unlock()
		f(&s.val)
		s.drain()
		return
	}
	s.q = append(s.q, f)
	s.mu.Unlock()
}

// Post enqueues f to run on the strand, posting the pump to the owning
// IoContext rather than running it inline.
func (s *Strand[T]) Post(f func(*T)) {
	s.mu.Lock()
	s.q = append(s.q, f)
	alreadyRunning := s.running
	if !alreadyRunning {
		s.running = true
	}
	s.mu.Unlock()
	if !alreadyRunning {
		s.ctx.Post(s.drain)
	}
}

// drain runs queued executables one at a time until the queue is empty,
// never holding s.mu while f runs so further Post/Dispatch calls can
// interleave. Spec.md §4.6 "at most one executable in flight".
func (s *Strand[T]) drain() {
	for {
		s.mu.Lock()
		if len(s.q) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		f := s.q[0]
		s.q = s.q[1:]
		s.mu.Unlock()
		f(&s.val)
	}
}

// Wrap returns a function that, when called with an argument, runs fn on
// the strand via Dispatch — the idiom used to adapt an AsyncWait/AsyncRead
// completion handler so it always executes serialized with the strand's
// other work, spec.md §4.6 "wrap".
func Wrap[T any, A any](s *Strand[T], fn func(*T, A)) func(A) {
	return func(a A) {
		s.Dispatch(func(v *T) { fn(v, a) })
	}
}

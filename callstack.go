package goasio

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// ThreadIoContext is the per-goroutine frame pushed onto the call-stack
// registry while a worker goroutine is inside IoContext.Run. It doubles as
// the pending queue described in spec.md §3 ("ThreadIoContext"): operations
// that become immediately ready while add_read_op/add_write_op hold the
// reactor lock are appended here instead of re-entering the reactor, and
// drained once the lock is released.
type ThreadIoContext struct {
	ctx     *IoContext
	pending []func()
}

func (t *ThreadIoContext) enqueue(f func()) {
	t.pending = append(t.pending, f)
}

func (t *ThreadIoContext) drain() {
	for len(t.pending) > 0 {
		f := t.pending[0]
		t.pending = t.pending[1:]
		f()
	}
}

// callStack is the registry described in spec.md §4.8, generalized to Go:
// there is no stable, portable thread-identity API, so frames are keyed by
// the calling goroutine's id (parsed from runtime.Stack, the same technique
// goroutine-local-storage shims use in lieu of true TLS). Each goroutine's
// frame list models the "singly-linked list of active IoContext frames".
type callStack struct {
	mu     sync.Mutex
	frames map[uint64][]*frame
}

type frame struct {
	ctx   *IoContext
	value *ThreadIoContext
}

var globalCallStack = &callStack{frames: make(map[uint64][]*frame)}

// goroutineID extracts the numeric id from the header line of runtime.Stack.
// Best-effort: used only to detect re-entrancy onto the same worker, never
// for correctness of scheduling decisions.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	// "goroutine 123 [running]:"
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

// wind pushes a frame for ctx onto the calling goroutine's stack; the
// returned func pops it. Called once per goroutine at the top of Run.
func (s *callStack) wind(ctx *IoContext) (*ThreadIoContext, func()) {
	gid := goroutineID()
	tic := &ThreadIoContext{ctx: ctx}
	f := &frame{ctx: ctx, value: tic}

	s.mu.Lock()
	s.frames[gid] = append(s.frames[gid], f)
	s.mu.Unlock()

	return tic, func() {
		s.mu.Lock()
		fs := s.frames[gid]
		for i := len(fs) - 1; i >= 0; i-- {
			if fs[i] == f {
				fs = append(fs[:i], fs[i+1:]...)
				break
			}
		}
		if len(fs) == 0 {
			delete(s.frames, gid)
		} else {
			s.frames[gid] = fs
		}
		s.mu.Unlock()
	}
}

// contains reports whether the calling goroutine already has a frame for
// ctx, returning it for inline dispatch (spec.md: "do_dispatch detects
// inline execution").
func (s *callStack) contains(ctx *IoContext) *ThreadIoContext {
	gid := goroutineID()
	s.mu.Lock()
	defer s.mu.Unlock()
	fs := s.frames[gid]
	for i := len(fs) - 1; i >= 0; i-- {
		if fs[i].ctx == ctx {
			return fs[i].value
		}
	}
	return nil
}

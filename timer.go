package goasio

import (
	"container/heap"
	"sync"
	"time"
)

// TimerKind selects the clock a Timer is expressed against, spec.md §5.3
// ("wall-clock timers project to monotonic at insertion").
type TimerKind int

const (
	// Steady timers use the monotonic clock directly.
	Steady TimerKind = iota
	// Realtime timers are expressed on the wall clock and projected to a
	// monotonic deadline at insertion.
	Realtime
)

// Timer is spec.md §3's "Timer" entity: a node with a monotonic expiry, a
// back-reference to its IoContext, and at most one pending wait op.
type Timer struct {
	ctx  *IoContext
	kind TimerKind

	mu      sync.Mutex
	expiry  time.Time
	caller  Caller[time.Time]
	pending bool
	seq     uint64 // tie-break for stable ordering, spec.md "(expiry, stable-address)"
	index   int    // heap index, maintained by container/heap
}

// NewSteadyTimer creates a timer expressed on the monotonic clock.
func NewSteadyTimer(ctx *IoContext) *Timer {
	return &Timer{ctx: ctx, kind: Steady}
}

// NewSystemTimer creates a timer expressed on the wall clock; its expiry is
// projected to a monotonic deadline at the moment it is armed.
func NewSystemTimer(ctx *IoContext) *Timer {
	return &Timer{ctx: ctx, kind: Realtime}
}

// ExpiresAfter arms the timer to fire after d, displacing and canceling any
// currently pending wait. Spec.md §4.3 "Insertion".
func (t *Timer) ExpiresAfter(d time.Duration) {
	t.arm(time.Now().Add(d))
}

// ExpiresAt arms the timer to fire at tm (wall-clock time for Realtime
// timers, otherwise treated as already-monotonic).
func (t *Timer) ExpiresAt(tm time.Time) {
	if t.kind == Realtime {
		tm = time.Now().Add(time.Until(tm))
	}
	t.arm(tm)
}

func (t *Timer) arm(expiry time.Time) {
	t.mu.Lock()
	wasPending := t.pending
	var displaced Caller[time.Time]
	if wasPending {
		displaced = t.caller
		t.caller = nil
		t.pending = false
	}
	t.expiry = expiry
	t.mu.Unlock()

	if wasPending {
		t.ctx.timers.remove(t)
		t.ctx.workDone()
		displaced.failure(ErrOperationCanceled)
	}
}

// AsyncWait submits a wait op, delivering either the fired time or
// OPERATION_CANCELED if the timer is reset or canceled first. Spec.md §4.3,
// §4.7 ("the coroutine's optional timeout uses a monotonic timer").
func (t *Timer) AsyncWait(h Handler[time.Time]) Callee[time.Time] {
	caller, callee := h.channel()
	t.mu.Lock()
	if t.pending {
		old := t.caller
		t.caller = caller
		t.mu.Unlock()
		old.failure(ErrOperationCanceled)
		// the displaced wait already held a heap slot; the new one reuses it.
		return callee
	}
	t.pending = true
	t.caller = caller
	expiry := t.expiry
	t.mu.Unlock()

	t.ctx.workAdd()
	t.ctx.timers.insert(t, expiry)
	return callee
}

// Cancel displaces any pending wait, completing it with OPERATION_CANCELED.
// Returns true if a wait was actually pending. Spec.md §4.3 "Cancellation".
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	if !t.pending {
		t.mu.Unlock()
		return false
	}
	caller := t.caller
	t.caller = nil
	t.pending = false
	t.mu.Unlock()

	t.ctx.timers.remove(t)
	t.ctx.workDone()
	caller.failure(ErrOperationCanceled)
	return true
}

// fire is called by the timer queue once expiry has passed; it completes
// the pending wait with success exactly once.
func (t *Timer) fire(now time.Time) {
	t.mu.Lock()
	if !t.pending {
		t.mu.Unlock()
		return
	}
	caller := t.caller
	t.caller = nil
	t.pending = false
	t.mu.Unlock()

	t.ctx.workDone()
	caller.success(now)
}

// --- timer queue -------------------------------------------------------------

// timerHeap orders pending timers by (expiry, stable sequence number) to
// break ties deterministically, spec.md §3 "Timer" invariant.
type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if !h[i].expiry.Equal(h[j].expiry) {
		return h[i].expiry.Before(h[j].expiry)
	}
	return h[i].seq < h[j].seq
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// timerQueue is the ordered set of pending timers described in spec.md
// §4.3, either driven by a Linux timerfd (see timerfd_linux.go) or by
// computing a poll timeout (the polling variant, used on every other
// platform and when WithTimerFD(false) is set).
type timerQueue struct {
	mu      sync.Mutex
	h       timerHeap
	nextSeq uint64
	ctx     *IoContext

	fd *timerFD // nil in the polling variant
}

func newTimerQueue(ctx *IoContext, useFD bool) *timerQueue {
	q := &timerQueue{ctx: ctx}
	if useFD {
		if fd, err := newTimerFD(); err == nil {
			q.fd = fd
		}
	}
	return q
}

func (q *timerQueue) insert(t *Timer, expiry time.Time) {
	q.mu.Lock()
	t.seq = q.nextSeq
	q.nextSeq++
	t.expiry = expiry
	heap.Push(&q.h, t)
	isMin := t.index == 0
	var rearm time.Duration
	if isMin && q.fd != nil {
		rearm = time.Until(expiry)
	}
	q.mu.Unlock()

	if isMin {
		if q.fd != nil {
			q.fd.arm(rearm)
		} else {
			q.ctx.interrupter.interrupt()
		}
	}
}

func (q *timerQueue) remove(t *Timer) {
	q.mu.Lock()
	if t.index < 0 || t.index >= len(q.h) || q.h[t.index] != t {
		q.mu.Unlock()
		return
	}
	heap.Remove(&q.h, t.index)
	q.rearmLocked()
	q.mu.Unlock()
}

// rearmLocked re-arms the timerfd for the new minimum; caller holds q.mu.
func (q *timerQueue) rearmLocked() {
	if q.fd == nil {
		return
	}
	if len(q.h) == 0 {
		q.fd.disarm()
		return
	}
	q.fd.arm(time.Until(q.h[0].expiry))
}

// nextExpiryTimeout returns the poll timeout (milliseconds, -1 = block
// forever) appropriate for the polling variant.
func (q *timerQueue) nextExpiryTimeout() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return -1
	}
	d := time.Until(q.h[0].expiry)
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if ms > 1<<30 {
		ms = 1 << 30
	}
	return int(ms)
}

// expire pops and fires every timer whose expiry has passed.
func (q *timerQueue) expire() {
	now := time.Now()
	var ready []*Timer
	q.mu.Lock()
	for len(q.h) > 0 && !q.h[0].expiry.After(now) {
		ready = append(ready, heap.Pop(&q.h).(*Timer))
	}
	q.rearmLocked()
	q.mu.Unlock()

	for _, t := range ready {
		t.fire(now)
	}
}

// onTimerFDReadable drains the timerfd and fires ready timers; registered as
// the reactor's onReadable callback for the timerfd descriptor.
func (q *timerQueue) onTimerFDReadable() {
	q.fd.drain()
	q.expire()
}

func (q *timerQueue) cancelAll() {
	q.mu.Lock()
	all := make([]*Timer, len(q.h))
	copy(all, q.h)
	q.h = q.h[:0]
	if q.fd != nil {
		q.fd.disarm()
	}
	q.mu.Unlock()

	for _, t := range all {
		t.mu.Lock()
		caller := t.caller
		t.caller = nil
		t.pending = false
		t.mu.Unlock()
		if caller != nil {
			t.ctx.workDone()
			caller.failure(ErrOperationCanceled)
		}
	}
}

func (q *timerQueue) close() error {
	if q.fd != nil {
		return q.fd.close()
	}
	return nil
}

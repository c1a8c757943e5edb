package goasio

import (
	"container/list"
	gocontext "context"
	"sync"
	"sync/atomic"
)

// IoContext is the execution engine described in spec.md §3/§4.1: a FIFO
// task queue, the owned reactor, timer queue and interrupter, a stopped
// flag, and an outstanding-work counter. As long as the counter is above
// zero or a work guard is alive, Run does not return.
type IoContext struct {
	cfg config

	mu          sync.Mutex
	cond        *sync.Cond
	tasks       list.List
	stopped     bool
	reactorBusy bool

	outstanding atomic.Int64
	workGuards  atomic.Int64

	reactor     *reactor
	timers      *timerQueue
	interrupter *interrupter
}

// NewIoContext constructs the reactor, timer queue and interrupter,
// registering the interrupter's read side with the reactor. Spec.md §4.1.
func NewIoContext(opts ...Option) (*IoContext, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	r, err := newReactor()
	if err != nil {
		return nil, err
	}

	c := &IoContext{cfg: cfg, reactor: r}
	c.cond = sync.NewCond(&c.mu)

	intr, err := newInterrupter()
	if err != nil {
		r.close()
		return nil, err
	}
	c.interrupter = intr
	if _, err := r.registerIntr(intr.readFD(), descInterrupter, c, intr.drain); err != nil {
		intr.close()
		r.close()
		return nil, err
	}

	timers := newTimerQueue(c, cfg.useTimerFD)
	if timers.fd != nil {
		if _, err := r.registerIntr(timers.fd.readFD(), descTimerFD, c, timers.onTimerFDReadable); err != nil {
			// fall back to the polling variant rather than failing construction.
			timers.fd.close()
			timers.fd = nil
		}
	}
	c.timers = timers

	return c, nil
}

// workAdd accounts one more unit of outstanding work: an accepted
// executable or an armed operation/timer. Spec.md §4.1.
func (c *IoContext) workAdd() { c.outstanding.Add(1) }

// workDone accounts completion of one unit of outstanding work, waking any
// worker parked in Run (on the condvar, or blocked inside a reactor poll)
// so it can observe the counter reaching zero.
func (c *IoContext) workDone() {
	if c.outstanding.Add(-1) == 0 {
		c.wakeForAutoStop()
	}
}

// IoContextWork is an RAII-style guard that keeps a context alive across a
// period with no pending work, spec.md §4.1.
type IoContextWork struct {
	ctx  *IoContext
	once sync.Once
}

// NewIoContextWork increments ctx's work-guard count.
func NewIoContextWork(ctx *IoContext) *IoContextWork {
	ctx.workGuards.Add(1)
	return &IoContextWork{ctx: ctx}
}

// Release decrements the guard count; idempotent.
func (w *IoContextWork) Release() {
	w.once.Do(func() {
		if w.ctx.workGuards.Add(-1) == 0 {
			w.ctx.wakeForAutoStop()
		}
	})
}

// wakeForAutoStop wakes every worker that might be able to return from Run
// now that outstanding work and work guards are both potentially zero:
// goroutines parked on the condvar via Broadcast, and whichever single
// goroutine currently owns the blocking reactor poll via the interrupter.
func (c *IoContext) wakeForAutoStop() {
	c.mu.Lock()
	c.cond.Broadcast()
	c.mu.Unlock()
	c.interrupter.interrupt()
}

// Dispatch runs f immediately if the calling goroutine already holds a
// ThreadIoContext for this IoContext (i.e. it is already inside Run), else
// enqueues it like Post. Spec.md §4.1.
func (c *IoContext) Dispatch(f func()) {
	if tic := globalCallStack.contains(c); tic != nil {
		f()
		return
	}
	c.Post(f)
}

// Post unconditionally enqueues f; it never runs before Post returns.
// Spec.md §4.1, §5 ("post never runs the handler before returning").
func (c *IoContext) Post(f func()) {
	c.workAdd()
	c.mu.Lock()
	c.tasks.PushBack(f)
	c.mu.Unlock()
	c.cond.Signal()
	// in case the sole worker is parked in a blocking reactor poll rather
	// than the condvar, kick it so it re-checks the task queue promptly.
	c.interrupter.interrupt()
}

// Stopped reports the stopped flag.
func (c *IoContext) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Stop idempotently stops the context: it cancels every descriptor and
// timer and wakes every worker blocked in Run. Workers drain the remaining
// task queue (so RAII-style cleanup handlers still fire) before returning.
// Spec.md §4.1, §5 "Cancellation semantics".
func (c *IoContext) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()

	c.reactor.cancelAll()
	c.timers.cancelAll()
	c.interrupter.interrupt()

	c.mu.Lock()
	c.cond.Broadcast()
	c.mu.Unlock()
}

// Restart clears the stopped flag. Must not be called while any worker is
// inside Run.
func (c *IoContext) Restart() {
	c.mu.Lock()
	c.stopped = false
	c.mu.Unlock()
}

// Close releases the reactor, timer queue and interrupter's OS resources.
// Only safe once no worker is in Run.
func (c *IoContext) Close() error {
	c.timers.close()
	c.interrupter.close()
	return c.reactor.close()
}

func (c *IoContext) popTaskLocked() func() {
	front := c.tasks.Front()
	if front == nil {
		return nil
	}
	c.tasks.Remove(front)
	return front.Value.(func())
}

// Run pops and invokes queued executables until stopped and drained, or
// until outstanding work reaches zero with no IoContextWork guard alive —
// spec.md's "auto-stop" testable property. If parent is non-nil, canceling
// it also calls Stop. Any number of goroutines may call Run concurrently on
// the same IoContext (spec.md §5 "Scheduling model"); the reactor's kernel
// poll is owned by at most one of them at a time.
func (c *IoContext) Run(parent gocontext.Context) error {
	tic, unwind := globalCallStack.wind(c)
	defer unwind()

	if parent != nil {
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-parent.Done():
				c.Stop()
			case <-done:
			}
		}()
	}

	for {
		c.mu.Lock()
		for {
			if f := c.popTaskLocked(); f != nil {
				c.mu.Unlock()
				f()
				c.workDone()
				tic.drain()
				goto next
			}
			if c.stopped {
				c.mu.Unlock()
				return nil
			}
			if c.outstanding.Load() == 0 && c.workGuards.Load() == 0 {
				c.mu.Unlock()
				return nil
			}
			if !c.reactorBusy {
				c.reactorBusy = true
				c.mu.Unlock()
				c.pollOnce(tic)
				tic.drain()
				c.mu.Lock()
				c.reactorBusy = false
				c.cond.Broadcast()
				continue
			}
			c.cond.Wait()
		}
	next:
	}
}

// RunOne pops and invokes at most one queued executable (not a reactor
// poll), returning ran=false if the queue was empty. Ported from
// original_source's task_executor.rs poll_one; useful for single-stepping
// in tests.
func (c *IoContext) RunOne() (ran bool, err error) {
	c.mu.Lock()
	f := c.popTaskLocked()
	c.mu.Unlock()
	if f == nil {
		return false, nil
	}
	f()
	c.workDone()
	return true, nil
}

// pollOnce runs one reactor poll, blocking up to the next timer expiry (or
// indefinitely if none is pending and outstanding work exists), or
// returning immediately if there is no outstanding work to wait for.
func (c *IoContext) pollOnce(tic *ThreadIoContext) {
	timeout := -1
	if c.timers.fd == nil {
		timeout = c.timers.nextExpiryTimeout()
	}
	if c.outstanding.Load() == 0 && c.workGuards.Load() == 0 {
		timeout = 0
	}
	if err := c.reactor.poll(timeout, tic); err != nil {
		l := logger()
		if c.cfg.logger != nil {
			l = c.cfg.logger
		}
		l.Debug().Err(err).Msg("goasio: reactor poll error")
	}
	if c.timers.fd == nil {
		c.timers.expire()
	}
}

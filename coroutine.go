package goasio

import "time"

// Coroutine is the Go-idiomatic substitution for spec.md §4.7's stackful
// coroutine: rather than a ucontext-style stack switch, the coroutine's own
// goroutine IS the stackful context, parked on a channel while an async
// operation is outstanding. Resumption always runs through the coroutine's
// own strand, preserving §4.7's "resumptions are automatically serialized".
type Coroutine struct {
	ctx    *IoContext
	strand *Strand[struct{}]
	done   chan struct{}
}

// Spawn starts body on a new goroutine bound to ctx and returns immediately.
// ctx's outstanding-work count is held until body returns, so Run does not
// exit early while a coroutine is alive. Spec.md §4.7 "spawn".
func Spawn(ctx *IoContext, body func(co *Coroutine)) *Coroutine {
	co := &Coroutine{
		ctx:    ctx,
		strand: NewStrand(ctx, struct{}{}),
		done:   make(chan struct{}),
	}
	ctx.workAdd()
	go func() {
		defer func() {
			close(co.done)
			ctx.workDone()
		}()
		body(co)
	}()
	return co
}

// Done reports whether the coroutine's body has returned.
func (co *Coroutine) Done() <-chan struct{} { return co.done }

// CoroutineHandler adapts an async operation's completion into a resume of
// the owning coroutine's parked goroutine. It implements Handler, Caller and
// Callee for R, mirroring blockingHandler but dispatching the wakeup through
// the coroutine's strand instead of delivering it directly.
type CoroutineHandler[R any] struct {
	co *Coroutine
	ch chan blockingResult[R]
}

// CoroutineWrap builds a CoroutineHandler bound to co, ready to pass to any
// AsyncXxx(handler Handler[R]) call made from inside co's body. Spec.md §4.7
// ("yield_context wraps the coroutine's strand").
func CoroutineWrap[R any](co *Coroutine) *CoroutineHandler[R] {
	return &CoroutineHandler[R]{co: co, ch: make(chan blockingResult[R], 1)}
}

func (h *CoroutineHandler[R]) channel() (Caller[R], Callee[R]) { return h, h }

func (h *CoroutineHandler[R]) success(r R) {
	h.co.strand.Dispatch(func(_ *struct{}) { h.ch <- blockingResult[R]{r: r} })
}

func (h *CoroutineHandler[R]) failure(err error) {
	h.co.strand.Dispatch(func(_ *struct{}) { h.ch <- blockingResult[R]{err: err} })
}

func (h *CoroutineHandler[R]) yieldReturn() (R, error) {
	res := <-h.ch
	return res.r, res.err
}

// Await submits an async operation via submit and blocks co's goroutine
// until it completes, returning its result. Intended to be called only from
// inside the body passed to Spawn. Spec.md §4.7 "coroutine call style".
func Await[R any](co *Coroutine, submit func(Handler[R]) Callee[R]) (R, error) {
	h := CoroutineWrap[R](co)
	submit(h)
	return h.yieldReturn()
}

// AwaitTimeout is Await with a monotonic deadline: submit returns both the
// submitted op's Callee and a cancel function for it. If d elapses before
// the op completes, AwaitTimeout invokes cancel (balancing the op's
// ctx.workAdd(), the way boundDescriptor.Cancel()/Timer.Cancel() already do
// for their own callers) and returns ErrTimedOut. Spec.md §4.7 "a coroutine
// with an active timeout cancels the outstanding op when the timer fires".
func AwaitTimeout[R any](co *Coroutine, d time.Duration, submit func(Handler[R]) (Callee[R], func())) (R, error) {
	h := CoroutineWrap[R](co)
	_, cancel := submit(h)

	timer := NewSteadyTimer(co.ctx)
	timer.ExpiresAfter(d)
	timedOut := make(chan struct{}, 1)
	timer.AsyncWait(CallbackHandler[time.Time]{Func: func(_ time.Time, err error) {
		if err == nil {
			co.strand.Dispatch(func(_ *struct{}) {
				select {
				case timedOut <- struct{}{}:
				default:
				}
			})
		}
	}})

	select {
	case res := <-h.ch:
		timer.Cancel()
		return res.r, res.err
	case <-timedOut:
		cancel()
		var zero R
		return zero, ErrTimedOut
	}
}

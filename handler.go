package goasio

import "sync"

// Handler is consumed by exactly one operation and split by channel() into a
// Caller (invoked by the op at completion) and a Callee (returned to the
// caller of the async operation). Spec.md §4.5. R is the operation's
// result-value type; every public operation in this package is generic over
// its own R (e.g. AsyncRead yields int, AsyncAccept yields net.Conn).
type Handler[R any] interface {
	channel() (Caller[R], Callee[R])
}

// Caller is the completion sink: the op invokes success or failure exactly
// once, never both, never twice.
type Caller[R any] interface {
	success(r R)
	failure(err error)
}

// Callee produces the operation's user-visible return value.
type Callee[R any] interface {
	yieldReturn() (R, error)
}

// --- fire-and-forget handler -------------------------------------------------

// CallbackHandler adapts a plain callback func(R, error) into a Handler. Its
// Callee is a no-op: the call site returns immediately and the result is only
// observed by the callback.
type CallbackHandler[R any] struct {
	Func func(R, error)
}

func (h CallbackHandler[R]) channel() (Caller[R], Callee[R]) {
	c := &callbackCaller[R]{fn: h.Func}
	return c, nullCallee[R]{}
}

type callbackCaller[R any] struct{ fn func(R, error) }

func (c *callbackCaller[R]) success(r R)       { c.fn(r, nil) }
func (c *callbackCaller[R]) failure(err error) { var zero R; c.fn(zero, err) }

type nullCallee[R any] struct{}

func (nullCallee[R]) yieldReturn() (R, error) { var zero R; return zero, nil }

// --- ArcHandler ---------------------------------------------------------------

// ArcHandler holds a shared reference to state plus a function; success and
// failure both invoke the function with the shared state and the result.
// Spec.md §4.5. Output type is () — the user observes the call through the
// captured state, not through yieldReturn.
type ArcHandler[T any, R any] struct {
	State *T
	Func  func(*T, R, error)
}

func (h ArcHandler[T, R]) channel() (Caller[R], Callee[R]) {
	c := &arcCaller[T, R]{state: h.State, fn: h.Func}
	return c, nullCallee[R]{}
}

type arcCaller[T any, R any] struct {
	state *T
	fn    func(*T, R, error)
}

func (c *arcCaller[T, R]) success(r R)       { c.fn(c.state, r, nil) }
func (c *arcCaller[T, R]) failure(err error) { var zero R; c.fn(c.state, zero, err) }

// --- blocking handler (used by the synchronous wrappers and tests) ----------

// blockingHandler parks the calling goroutine on a channel until the op
// completes; this is the Callee used by "synchronous-looking" call sites
// that are not coroutines (e.g. direct use from a non-worker goroutine).
type blockingHandler[R any] struct {
	once sync.Once
	ch   chan blockingResult[R]
}

type blockingResult[R any] struct {
	r   R
	err error
}

func newBlockingHandler[R any]() *blockingHandler[R] {
	return &blockingHandler[R]{ch: make(chan blockingResult[R], 1)}
}

func (h *blockingHandler[R]) channel() (Caller[R], Callee[R]) {
	return h, h
}

func (h *blockingHandler[R]) success(r R) {
	h.once.Do(func() { h.ch <- blockingResult[R]{r: r} })
}

func (h *blockingHandler[R]) failure(err error) {
	h.once.Do(func() { h.ch <- blockingResult[R]{err: err} })
}

func (h *blockingHandler[R]) yieldReturn() (R, error) {
	res := <-h.ch
	return res.r, res.err
}

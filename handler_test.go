package goasio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallbackHandler_SuccessAndFailure(t *testing.T) {
	var gotR int
	var gotErr error
	h := CallbackHandler[int]{Func: func(r int, err error) {
		gotR, gotErr = r, err
	}}
	caller, callee := h.channel()
	caller.success(42)
	assert.Equal(t, 42, gotR)
	assert.NoError(t, gotErr)

	r, err := callee.yieldReturn()
	assert.Zero(t, r)
	assert.NoError(t, err)
}

func TestArcHandler_SharesState(t *testing.T) {
	type state struct{ calls int }
	s := &state{}
	h := ArcHandler[state, int]{State: s, Func: func(st *state, r int, err error) {
		st.calls++
	}}
	caller, _ := h.channel()
	caller.success(1)
	caller.failure(errors.New("boom"))
	assert.Equal(t, 2, s.calls)
}

func TestBlockingHandler_DeliversOnce(t *testing.T) {
	h := newBlockingHandler[string]()
	caller, callee := h.channel()
	go caller.success("done")
	r, err := callee.yieldReturn()
	assert.NoError(t, err)
	assert.Equal(t, "done", r)
}

func TestBlockingHandler_OnceGuardsDoubleDelivery(t *testing.T) {
	h := newBlockingHandler[int]()
	caller, callee := h.channel()
	caller.success(1)
	caller.success(2) // must be ignored by sync.Once
	r, err := callee.yieldReturn()
	assert.NoError(t, err)
	assert.Equal(t, 1, r)
}

package goasio

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrnoToSystemError_MapsKnownErrnos(t *testing.T) {
	err := errnoToSystemError("read", syscall.ECONNRESET)
	assert.True(t, errors.Is(err, ErrConnectionReset))
	assert.False(t, errors.Is(err, ErrBrokenPipe))
	assert.Equal(t, "read: connection reset by peer", err.Error())
}

func TestErrnoToSystemError_UnmappedErrnoStillWraps(t *testing.T) {
	err := errnoToSystemError("write", syscall.ENOTTY)
	assert.Equal(t, syscall.ENOTTY, err.Errno)
	assert.ErrorIs(t, err, syscall.ENOTTY)
}

func TestSystemError_TemporaryAndTimeout(t *testing.T) {
	assert.True(t, errnoToSystemError("read", syscall.EAGAIN).Temporary())
	assert.False(t, ErrConnectionReset.Temporary())
	assert.True(t, ErrTimedOut.Timeout())
	assert.False(t, ErrConnectionReset.Timeout())
}

func TestSystemError_IsIgnoresOp(t *testing.T) {
	a := ErrConnectionRefused.withOp("connect")
	b := ErrConnectionRefused.withOp("accept")
	assert.True(t, errors.Is(a, b))
	assert.True(t, errors.Is(a, ErrConnectionRefused))
}

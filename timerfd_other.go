//go:build !linux

package goasio

import (
	"errors"
	"time"
)

// timerFD has no Darwin/BSD equivalent (no kqueue EVFILT_TIMER wiring here,
// see DESIGN.md); newTimerFD always fails so timerQueue silently falls back
// to the polling variant, which is the default everywhere but Linux anyway.
type timerFD struct{}

func newTimerFD() (*timerFD, error) {
	return nil, errors.New("goasio: timerfd not supported on this platform")
}

func (t *timerFD) readFD() int        { return -1 }
func (t *timerFD) arm(d time.Duration) {}
func (t *timerFD) disarm()            {}
func (t *timerFD) drain()             {}
func (t *timerFD) close() error       { return nil }

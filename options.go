package goasio

import "github.com/rs/zerolog"

// Option configures an IoContext at construction, following the functional
// options convention used throughout the pack (eventloop's Option, logiface's
// Option[E]).
type Option func(*config)

type config struct {
	readBufSize int
	useTimerFD  bool
	logger      *zerolog.Logger
}

func defaultConfig() config {
	return config{
		readBufSize: 65536,
		useTimerFD:  true,
	}
}

// WithReadBufferSize records n (if positive) as the context's read buffer
// size, the same knob the teacher exposes via NewWatcherSize. No operation in
// this package reads the value: AsyncRead reads into the caller's buffer as
// given and does not substitute an internal buffer for a nil one.
func WithReadBufferSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.readBufSize = n
		}
	}
}

// WithTimerFD selects between the timerfd-backed timer queue (default on
// Linux) and the polling variant that computes a poll timeout instead of
// arming a kernel timer descriptor. Ignored on platforms without timerfd.
func WithTimerFD(enabled bool) Option {
	return func(c *config) { c.useTimerFD = enabled }
}

// WithLogger overrides the logger used for this context's reactor poll
// diagnostics, without affecting the package-wide default.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.logger = &l }
}

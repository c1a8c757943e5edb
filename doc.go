// Package goasio is an asynchronous network I/O runtime built around the
// Proactor pattern: application code submits operations together with
// completion handlers, and an IoContext drives those operations to
// completion on one or more worker goroutines, invoking each handler
// exactly once.
//
// The execution engine is a readiness-based reactor (epoll on Linux,
// kqueue on Darwin/BSD) multiplexing descriptors registered by stream,
// datagram, raw and sequenced-packet sockets, a monotonic/wall-clock timer
// queue, and a signal set, all feeding a single per-IoContext task FIFO.
// Strands serialize access to shared state across worker goroutines, and
// coroutines (goroutines parked on a channel) turn chains of asynchronous
// operations into straight-line code.
package goasio

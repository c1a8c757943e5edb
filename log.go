package goasio

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// pkgLogger is the package-wide structured logger, swappable via SetLogger.
// Infrastructure concern shared across every IoContext, same rationale the
// eventloop package uses for its package-level logger: reactor diagnostics
// are cross-cutting, not per-instance configuration surface.
var pkgLogger atomic.Pointer[zerolog.Logger]

var defaultLoggerOnce sync.Once

func init() {
	defaultLoggerOnce.Do(func() {
		l := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
		pkgLogger.Store(&l)
	})
}

// SetLogger replaces the package-wide logger used for reactor poll
// diagnostics (unless a context was built WithLogger). Pass zerolog.Nop() to
// silence logging entirely.
func SetLogger(l zerolog.Logger) {
	pkgLogger.Store(&l)
}

func logger() *zerolog.Logger {
	return pkgLogger.Load()
}

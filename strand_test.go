package goasio

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStrand_SerializesConcurrentPosts is the "strand serialization"
// end-to-end scenario: several goroutines call Run concurrently; 1000
// strand.Post closures each increment a shared counter. The strand must
// never let two closures run at once (checked with a re-entry flag), and
// the final counter must be exactly 1000.
func TestStrand_SerializesConcurrentPosts(t *testing.T) {
	ctx, err := NewIoContext()
	require.NoError(t, err)
	defer ctx.Close()

	strand := NewStrand(ctx, 0)
	var reentered int32
	var counter int
	const n = 1000

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		strand.Post(func(v *int) {
			if !atomic.CompareAndSwapInt32(&reentered, 0, 1) {
				t.Error("strand allowed concurrent execution")
			}
			*v++
			counter++
			atomic.StoreInt32(&reentered, 0)
			wg.Done()
		})
	}

	done := make(chan struct{})
	const workers = 10
	for i := 0; i < workers; i++ {
		go func() {
			ctx.Run(nil)
		}()
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for all strand posts to run")
	}
	ctx.Stop()

	assert.Equal(t, n, counter)
}

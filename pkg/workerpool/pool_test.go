package workerpool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGroupBoundsConcurrency(t *testing.T) {
	pool := New(2)
	var inFlight, maxInFlight int32
	var g Group

	for i := 0; i < 8; i++ {
		g.Go(pool, func() {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				cur := atomic.LoadInt32(&maxInFlight)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInFlight, cur, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		})
	}
	g.Wait()

	require.LessOrEqual(t, int(atomic.LoadInt32(&maxInFlight)), 2)
}

func TestGroupRunsEveryTask(t *testing.T) {
	pool := New(4)
	var done int32
	var g Group
	for i := 0; i < 20; i++ {
		g.Go(pool, func() { atomic.AddInt32(&done, 1) })
	}
	g.Wait()
	require.Equal(t, int32(20), done)
}

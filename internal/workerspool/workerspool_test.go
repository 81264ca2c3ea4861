package workerspool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gomlx/runtime/pkg/support/xsync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// submitBlocked submits numTasks that block on release, and returns the max number seen
// running at the same time once they are all done.
func submitBlocked(t *testing.T, pool *Pool, numTasks, wantRunning int) int32 {
	var running, maxRunning atomic.Int32
	release := xsync.NewLatch()
	var wg sync.WaitGroup
	wg.Add(numTasks)
	for range numTasks {
		// Submit never blocks, even when the pool is full.
		pool.Submit(func() {
			defer wg.Done()
			current := running.Add(1)
			for {
				prev := maxRunning.Load()
				if current <= prev || maxRunning.CompareAndSwap(prev, current) {
					break
				}
			}
			release.Wait()
			running.Add(-1)
		})
	}
	require.Eventually(t, func() bool { return running.Load() == int32(wantRunning) }, time.Second, time.Millisecond)
	release.Trigger()
	wg.Wait()
	return maxRunning.Load()
}

func TestPool_Submit(t *testing.T) {
	pool := NewWithParallelism(2)
	assert.Equal(t, int32(2), submitBlocked(t, pool, 6, 2))
	require.Eventually(t, func() bool { return pool.NumRunning() == 0 }, time.Second, time.Millisecond)
}

func TestPool_NoParallelism(t *testing.T) {
	pool := NewWithParallelism(0)
	assert.Equal(t, int32(1), submitBlocked(t, pool, 3, 1))

	// Tasks run in submission order.
	var order []int
	var wg sync.WaitGroup
	wg.Add(5)
	for ii := range 5 {
		pool.Submit(func() {
			order = append(order, ii)
			wg.Done()
		})
	}
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestPool_Unlimited(t *testing.T) {
	pool := NewWithParallelism(-1)
	assert.Equal(t, int32(10), submitBlocked(t, pool, 10, 10))
	assert.Zero(t, pool.NumRunning())
}

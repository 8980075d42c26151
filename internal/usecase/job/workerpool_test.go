package job

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorkerPool_CloseDrainsQueuedTasks(t *testing.T) {
	pool := NewWorkerPool(2, 8)
	pool.Start(context.Background())

	var done atomic.Int32
	for range 8 {
		require.NoError(t, pool.Submit(func(context.Context) {
			time.Sleep(5 * time.Millisecond)
			done.Add(1)
		}))
	}
	pool.Close()
	require.EqualValues(t, 8, done.Load())

	require.ErrorIs(t, pool.Submit(func(context.Context) {}), ErrPoolClosed)
	pool.Close()
}

func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	pool := NewWorkerPool(3, 0)
	require.Equal(t, 3, pool.Workers())
	pool.Start(context.Background())

	var running, peak atomic.Int32
	for range 12 {
		require.NoError(t, pool.Submit(func(context.Context) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
		}))
	}
	pool.Close()
	require.LessOrEqual(t, peak.Load(), int32(3))
}

func TestWorkerPool_TasksSeeStartContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "runner")
	pool := NewWorkerPool(1, 1)
	pool.Start(ctx)

	got := make(chan any, 1)
	require.NoError(t, pool.Submit(func(ctx context.Context) { got <- ctx.Value(key{}) }))
	pool.Close()
	require.Equal(t, "runner", <-got)
}

package workpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/casualjim/perch/mpsc"
	"github.com/casualjim/perch/pkg/slogx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsEveryTaskOnce(t *testing.T) {
	const workers, jobs = 8, 128

	pool := New(WithWorkers(workers))
	var runs [jobs]atomic.Int32
	futures := make([]*Future, 0, jobs)
	for i := range jobs {
		f, err := pool.Submit(func(context.Context) error {
			runs[i].Add(1)
			return nil
		})
		require.NoError(t, err)
		futures = append(futures, f)
	}

	require.NoError(t, pool.Close())
	for i := range jobs {
		assert.True(t, futures[i].IsComplete(), "job %d", i)
		assert.NoError(t, futures[i].Await())
		assert.EqualValues(t, 1, runs[i].Load(), "job %d", i)
	}

	stats := pool.Stats()
	assert.Equal(t, workers, stats.Workers)
	assert.EqualValues(t, jobs, stats.Submitted)
	assert.EqualValues(t, jobs, stats.Completed)
	assert.Zero(t, stats.Failed)
	assert.Zero(t, stats.Pending)
	assert.True(t, stats.Closed)
}

func TestPoolSharesWorkAcrossWorkers(t *testing.T) {
	const workers = 4

	pool := New(WithWorkers(workers))
	defer pool.Close()

	// every worker must hold a task at the same time for the barrier to open
	var started sync.WaitGroup
	started.Add(workers)
	release := make(chan struct{})
	futures := make([]*Future, workers)
	for i := range workers {
		futures[i] = pool.Go(func(context.Context) error {
			started.Done()
			<-release
			return nil
		})
	}

	waited := make(chan struct{})
	go func() {
		started.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("tasks did not run in parallel")
	}
	assert.EqualValues(t, workers, pool.Stats().Active)

	close(release)
	for _, f := range futures {
		assert.NoError(t, f.Await())
	}
}

func TestPoolTaskResults(t *testing.T) {
	pool := New(WithWorkers(2), WithLogger(slogx.Discard()))
	defer pool.Close()

	t.Run("error is returned by the future", func(t *testing.T) {
		boom := errors.New("boom")
		f := pool.Go(func(context.Context) error { return boom })
		assert.ErrorIs(t, f.Await(), boom)
	})

	t.Run("panic is recovered", func(t *testing.T) {
		f := pool.Go(func(context.Context) error { panic("kaput") })
		err := f.Await()
		assert.ErrorIs(t, err, ErrTaskPanic)
		assert.Contains(t, err.Error(), "kaput")
	})

	t.Run("pool survives failures", func(t *testing.T) {
		f := pool.Go(func(context.Context) error { return nil })
		assert.NoError(t, f.Await())
	})

	t.Run("nil task is rejected", func(t *testing.T) {
		f, err := pool.Submit(nil)
		assert.Nil(t, f)
		assert.Error(t, err)
	})
}

func TestPoolLIFO(t *testing.T) {
	pool := New(WithWorkers(1), WithStrategy(mpsc.LIFO))

	started := make(chan struct{})
	release := make(chan struct{})
	pool.Go(func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	var mu sync.Mutex
	var order []int
	for i := range 3 {
		pool.Go(func(context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}
	assert.Equal(t, 3, pool.Stats().Pending)

	close(release)
	require.NoError(t, pool.Close())
	assert.Equal(t, []int{2, 1, 0}, order)
}

func TestPoolClose(t *testing.T) {
	pool := New(WithWorkers(2))
	require.NoError(t, pool.Close())

	f, err := pool.Submit(func(context.Context) error { return nil })
	assert.Nil(t, f)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, pool.Go(func(context.Context) error { return nil }).Await(), ErrClosed)

	assert.ErrorIs(t, pool.Close(), ErrClosed)
	assert.ErrorIs(t, pool.Shutdown(context.Background()), ErrClosed)
}

func TestPoolShutdown(t *testing.T) {
	t.Run("drains within the deadline", func(t *testing.T) {
		pool := New(WithWorkers(2))
		var ran atomic.Int32
		for range 10 {
			pool.Go(func(context.Context) error {
				ran.Add(1)
				return nil
			})
		}
		require.NoError(t, pool.Shutdown(context.Background()))
		assert.EqualValues(t, 10, ran.Load())
	})

	t.Run("cancels tasks past the deadline", func(t *testing.T) {
		pool := New(WithWorkers(1))
		started := make(chan struct{})
		blocked := pool.Go(func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
		<-started
		queued := pool.Go(func(context.Context) error { return nil })

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, pool.Shutdown(ctx), context.DeadlineExceeded)

		assert.ErrorIs(t, blocked.Await(), context.Canceled)
		assert.ErrorIs(t, queued.Await(), context.Canceled)
		assert.EqualValues(t, 2, pool.Stats().Failed)
	})
}

func TestFutureAwaitContext(t *testing.T) {
	pool := New(WithWorkers(1))
	release := make(chan struct{})
	f := pool.Go(func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.AwaitContext(ctx), context.DeadlineExceeded)
	assert.False(t, f.IsComplete())

	close(release)
	<-f.Done()
	assert.NoError(t, f.AwaitContext(context.Background()))
	require.NoError(t, pool.Close())
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	assert.Panics(t, func() { New(WithWorkers(0)) })
}

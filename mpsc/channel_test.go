package mpsc

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveN[T any](t *testing.T, ch *Channel[T], n int) []T {
	t.Helper()
	out := make([]T, 0, n)
	for range n {
		out = append(out, ch.Receive())
	}
	return out
}

func TestChannelOrdering(t *testing.T) {
	tests := []struct {
		name    string
		options []Option
		want    []string
	}{
		{name: "fifo by default", want: []string{"a", "b", "c"}},
		{name: "explicit fifo", options: []Option{WithStrategy(FIFO)}, want: []string{"a", "b", "c"}},
		{name: "lifo", options: []Option{WithStrategy(LIFO)}, want: []string{"c", "b", "a"}},
		{name: "stack shorthand", options: []Option{Stack()}, want: []string{"c", "b", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := New[string](tt.options...)
			tx := ch.Producer()
			for _, v := range []string{"a", "b", "c"} {
				require.NoError(t, tx.Send(v))
			}
			assert.Equal(t, tt.want, receiveN(t, ch, 3))
		})
	}
}

func TestChannel(t *testing.T) {
	t.Run("producers share one buffer", func(t *testing.T) {
		ch := New[int]()
		p1 := ch.Producer()
		p2 := ch.Producer()
		p3 := p1 // copies address the same channel

		require.NoError(t, p1.Send(1))
		require.NoError(t, p2.Send(2))
		require.NoError(t, p3.Send(3))

		assert.Equal(t, 3, ch.Len())
		assert.Equal(t, []int{1, 2, 3}, receiveN(t, ch, 3))
	})

	t.Run("detached producer rejects sends", func(t *testing.T) {
		var p Producer[int]
		assert.ErrorIs(t, p.Send(1), ErrDetached)
	})

	t.Run("invalid strategy panics", func(t *testing.T) {
		assert.Panics(t, func() { New[int](WithStrategy(Strategy(42))) })
	})

	t.Run("strategy is reported", func(t *testing.T) {
		assert.Equal(t, LIFO, New[int](Stack()).Strategy())
		assert.Equal(t, FIFO, New[int]().Strategy())
	})

	t.Run("receive blocks until a send", func(t *testing.T) {
		ch := New[string]()
		got := make(chan string, 1)
		go func() { got <- ch.Receive() }()

		require.Eventually(t, func() bool { return ch.Stats().Waiting == 1 }, time.Second, time.Millisecond)
		require.NoError(t, ch.Producer().Send("wake"))

		select {
		case v := <-got:
			assert.Equal(t, "wake", v)
		case <-time.After(time.Second):
			t.Fatal("receive did not return")
		}
	})

	t.Run("try receive does not block", func(t *testing.T) {
		ch := New[int]()
		_, ok := ch.TryReceive()
		assert.False(t, ok)

		require.NoError(t, ch.Producer().Send(5))
		v, ok := ch.TryReceive()
		require.True(t, ok)
		assert.Equal(t, 5, v)
	})

	t.Run("receive context honours cancellation", func(t *testing.T) {
		ch := New[int]()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := ch.ReceiveContext(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("close drains then reports closed", func(t *testing.T) {
		ch := New[int]()
		tx := ch.Producer()
		require.NoError(t, tx.Send(1))
		require.NoError(t, ch.Close())
		assert.True(t, ch.Closed())
		assert.ErrorIs(t, ch.Close(), ErrClosed)
		assert.ErrorIs(t, tx.Send(2), ErrClosed)

		v, err := ch.ReceiveContext(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, v)

		_, err = ch.ReceiveContext(context.Background())
		assert.ErrorIs(t, err, ErrClosed)
		assert.Zero(t, ch.Receive())
	})

	t.Run("close releases blocked receivers", func(t *testing.T) {
		ch := New[int]()
		const waiters = 3
		errs := make(chan error, waiters)
		for range waiters {
			go func() {
				_, err := ch.ReceiveContext(context.Background())
				errs <- err
			}()
		}
		require.Eventually(t, func() bool { return ch.Stats().Waiting == waiters }, time.Second, time.Millisecond)
		require.NoError(t, ch.Close())

		for range waiters {
			select {
			case err := <-errs:
				assert.ErrorIs(t, err, ErrClosed)
			case <-time.After(time.Second):
				t.Fatal("receiver still blocked after close")
			}
		}
	})

	t.Run("all stops on close", func(t *testing.T) {
		ch := New[int]()
		tx := ch.Producer()
		for i := range 5 {
			require.NoError(t, tx.Send(i))
		}
		require.NoError(t, ch.Close())

		var got []int
		for v := range ch.All(context.Background()) {
			got = append(got, v)
		}
		assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	})

	t.Run("all stops when the loop breaks", func(t *testing.T) {
		ch := New[int]()
		tx := ch.Producer()
		for i := range 5 {
			require.NoError(t, tx.Send(i))
		}
		for v := range ch.All(context.Background()) {
			if v == 1 {
				break
			}
		}
		assert.Equal(t, 3, ch.Len())
	})
}

func TestNoLossNoDuplication(t *testing.T) {
	const producers, perProducer = 4, 100
	total := producers * perProducer

	ch := New[int]()
	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		tx := ch.Producer()
		go func() {
			defer wg.Done()
			for i := range perProducer {
				assert.NoError(t, tx.Send(p*perProducer+i))
			}
		}()
	}

	results := make(chan int, total)
	var rg sync.WaitGroup
	for range total {
		rg.Add(1)
		go func() {
			defer rg.Done()
			results <- ch.Receive()
		}()
	}

	wg.Wait()
	rg.Wait()
	close(results)

	seen := make(map[int]int, total)
	for v := range results {
		seen[v]++
	}
	require.Len(t, seen, total)
	for v, n := range seen {
		assert.Equal(t, 1, n, "value %d delivered %d times", v, n)
	}
}

func TestPerProducerOrder(t *testing.T) {
	const producers, perProducer = 4, 200
	ch := New[[2]int]()

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		tx := ch.Producer()
		go func() {
			defer wg.Done()
			for i := range perProducer {
				assert.NoError(t, tx.Send([2]int{p, i}))
			}
		}()
	}
	wg.Wait()

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	for range producers * perProducer {
		v := ch.Receive()
		assert.Greater(t, v[1], last[v[0]], "producer %d out of order", v[0])
		last[v[0]] = v[1]
	}
}

func TestWorkDistribution(t *testing.T) {
	const workers, jobs = 8, 128

	ch := New[func()]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var executed [jobs]atomic.Int32
	var done sync.WaitGroup
	done.Add(jobs)

	var pool sync.WaitGroup
	for range workers {
		pool.Add(1)
		go func() {
			defer pool.Done()
			for job := range ch.All(ctx) {
				job()
			}
		}()
	}

	for i := range jobs {
		tx := ch.Producer()
		require.NoError(t, tx.Send(func() {
			executed[i].Add(1)
			done.Done()
		}))
	}

	finished := make(chan struct{})
	go func() {
		done.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("not every job ran")
	}

	require.NoError(t, ch.Close())
	pool.Wait()

	for i := range executed {
		assert.Equal(t, int32(1), executed[i].Load(), "job %d", i)
	}
	assert.Equal(t, uint64(jobs), ch.Stats().Popped)
}

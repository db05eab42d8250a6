package waitbuf

import (
	"context"
	"errors"
	"sync"

	"github.com/gammazero/deque"
)

var (
	// ErrClosed is returned by Push after Close, and by Pop once the buffer is
	// closed and fully drained.
	ErrClosed = errors.New("perch: channel closed")

	// ErrUnknownStrategy is returned when parsing an insertion strategy fails.
	ErrUnknownStrategy = errors.New("perch: unknown insertion strategy")
)

// Buffer is an unbounded queue guarded by one mutex and one condition
// variable. Any number of goroutines may push and pop concurrently; each
// pushed value is handed to exactly one Pop.
//
// The zero value is not ready for use; construct with New.
type Buffer[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    *deque.Deque[T]
	strategy Strategy
	closed   bool

	// stats, guarded by mu
	waiting int
	pushed  uint64
	popped  uint64
}

// Stats is a point-in-time snapshot of a buffer.
type Stats struct {
	Pending int    // values currently buffered
	Waiting int    // goroutines blocked in Pop
	Pushed  uint64 // values accepted since creation
	Popped  uint64 // values handed out since creation
	Closed  bool
}

// New creates an empty buffer using the given insertion strategy.
func New[T any](strategy Strategy) *Buffer[T] {
	b := &Buffer[T]{
		items:    new(deque.Deque[T]),
		strategy: strategy,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Strategy returns the insertion strategy the buffer was created with.
func (b *Buffer[T]) Strategy() Strategy {
	return b.strategy
}

// Push inserts v according to the buffer's strategy and wakes one waiter.
// It never blocks beyond lock contention.
func (b *Buffer[T]) Push(v T) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	Insert(b.strategy, b.items, v)
	b.pushed++
	b.mu.Unlock()

	b.cond.Signal()
	return nil
}

// Pop removes and returns the front value, waiting until one is available.
//
// Values buffered before Close are still handed out; once the buffer is closed
// and empty Pop returns ErrClosed. When ctx is done first Pop returns
// ctx.Err(). A nil ctx waits without a deadline.
func (b *Buffer[T]) Pop(ctx context.Context) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.items.Len() == 0 && !b.closed {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}
		if ctx.Done() != nil {
			// Wake every waiter on cancellation; the ones whose context is
			// still live go back to sleep.
			stop := context.AfterFunc(ctx, func() {
				b.mu.Lock()
				b.cond.Broadcast()
				b.mu.Unlock()
			})
			defer stop()
		}

		b.waiting++
		for b.items.Len() == 0 && !b.closed && ctx.Err() == nil {
			b.cond.Wait()
		}
		b.waiting--
	}

	if b.items.Len() > 0 {
		b.popped++
		return b.items.PopFront(), nil
	}
	var zero T
	if b.closed {
		return zero, ErrClosed
	}
	return zero, ctx.Err()
}

// TryPop removes and returns the front value without waiting.
func (b *Buffer[T]) TryPop() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.items.Len() == 0 {
		var zero T
		return zero, false
	}
	b.popped++
	return b.items.PopFront(), true
}

// Len returns the number of buffered values.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.items.Len()
}

// Close stops the buffer from accepting values and wakes every waiter.
// It reports whether this call closed the buffer.
func (b *Buffer[T]) Close() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.closed = true
	b.cond.Broadcast()
	return true
}

// Closed reports whether Close has been called.
func (b *Buffer[T]) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Stats returns a snapshot of the buffer counters.
func (b *Buffer[T]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Pending: b.items.Len(),
		Waiting: b.waiting,
		Pushed:  b.pushed,
		Popped:  b.popped,
		Closed:  b.closed,
	}
}

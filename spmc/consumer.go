package spmc

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/casualjim/perch/internal/waitbuf"
	"github.com/casualjim/perch/pkg/slogx"
	"github.com/google/uuid"
)

// Consumer is one registered endpoint of a broadcast channel. It has a private
// FIFO buffer that only its producer writes to.
//
// A Consumer keeps its producer reachable, so the producer lives at least as
// long as any consumer it handed out. Unsubscribe is terminal: once it returns
// the producer no longer references the consumer.
type Consumer[T any] struct {
	id       uuid.UUID
	producer *Producer[T]
	buf      *waitbuf.Buffer[T]

	once    sync.Once
	retired atomic.Bool

	mu     sync.Mutex
	detach func() bool
}

// ID returns the consumer's registry key.
func (c *Consumer[T]) ID() uuid.UUID {
	return c.id
}

// Registered reports whether the consumer still receives broadcasts.
func (c *Consumer[T]) Registered() bool {
	return !c.retired.Load()
}

// Unsubscribe removes the consumer from its producer's registry. It is safe to
// call more than once and from any goroutine. Buffered messages can still be
// received afterwards; once they run out ReceiveContext returns ErrClosed.
func (c *Consumer[T]) Unsubscribe() {
	c.once.Do(func() {
		remaining := c.producer.remove(c.id)
		c.retire()
		c.producer.logger.Debug("consumer unregistered", slogx.Consumer(c.id), slog.Int("consumers", remaining))
	})
}

// retire runs exactly once per consumer, after it left the registry.
func (c *Consumer[T]) retire() {
	c.retired.Store(true)
	c.buf.Close()

	c.mu.Lock()
	detach := c.detach
	c.detach = nil
	c.mu.Unlock()
	if detach != nil {
		detach()
	}
}

// Receive blocks until a message is available and returns the oldest one. On
// a retired, drained consumer it returns the zero value; use ReceiveContext to
// tell the two apart.
func (c *Consumer[T]) Receive() T {
	v, _ := c.buf.Pop(context.Background())
	return v
}

// ReceiveContext is Receive with cancellation. It returns ErrClosed once the
// consumer is retired and drained, or ctx.Err() if ctx is done first.
func (c *Consumer[T]) ReceiveContext(ctx context.Context) (T, error) {
	return c.buf.Pop(ctx)
}

// TryReceive returns the oldest buffered message without blocking.
func (c *Consumer[T]) TryReceive() (T, bool) {
	return c.buf.TryPop()
}

// All returns an iterator over received messages. It ends when the consumer is
// retired and drained, or when ctx is done.
func (c *Consumer[T]) All(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			v, err := c.buf.Pop(ctx)
			if err != nil {
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

// Len returns the size of the consumer's backlog.
func (c *Consumer[T]) Len() int {
	return c.buf.Len()
}

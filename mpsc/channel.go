package mpsc

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/casualjim/perch/internal/waitbuf"
	"github.com/casualjim/perch/pkg/slogx"
	"github.com/fogfish/opts"
)

// Strategy decides where Send places a value relative to what is already
// queued. Receive always takes from the head.
type Strategy = waitbuf.Strategy

const (
	// FIFO delivers values in arrival order.
	FIFO = waitbuf.FIFO
	// LIFO delivers the most recently sent value first.
	LIFO = waitbuf.LIFO
)

// Stats is a point-in-time snapshot of a channel's counters.
type Stats = waitbuf.Stats

// ErrClosed is returned by Send after Close, and by ReceiveContext once the
// channel is closed and drained.
var ErrClosed = waitbuf.ErrClosed

// ErrUnknownStrategy is returned by ParseStrategy for unrecognized names.
var ErrUnknownStrategy = waitbuf.ErrUnknownStrategy

// ErrDetached is returned by Send on a Producer that was not obtained from a
// Channel.
var ErrDetached = errors.New("mpsc: producer is not attached to a channel")

// ParseStrategy converts "fifo" or "lifo" into a Strategy.
func ParseStrategy(text string) (Strategy, error) {
	return waitbuf.ParseStrategy(text)
}

type config struct {
	strategy Strategy
	logger   *slog.Logger
}

// Option configures a Channel.
type Option = opts.Option[config]

var (
	// WithStrategy sets the insertion strategy. The default is FIFO.
	WithStrategy = opts.ForName[config, Strategy]("strategy")

	// WithLogger sets the logger used for lifecycle events.
	WithLogger = opts.ForName[config, *slog.Logger]("logger")
)

// Stack is shorthand for WithStrategy(LIFO).
func Stack() Option {
	return WithStrategy(LIFO)
}

type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Channel is the consumer endpoint of a fan-in queue. Values sent through any
// of its producers are delivered to exactly one Receive call, so several
// goroutines can drain the same Channel to share work.
//
// A Channel must not be copied after first use: every Producer refers to the
// buffer of the Channel that created it.
type Channel[T any] struct {
	_      noCopy
	buf    *waitbuf.Buffer[T]
	logger *slog.Logger
}

// New creates an open, empty channel.
func New[T any](options ...Option) *Channel[T] {
	cfg := config{strategy: FIFO}
	if err := opts.Apply(&cfg, options); err != nil {
		panic(err)
	}
	if !cfg.strategy.Valid() {
		panic(fmt.Errorf("mpsc: %w: %d", waitbuf.ErrUnknownStrategy, uint8(cfg.strategy)))
	}

	return &Channel[T]{
		buf:    waitbuf.New[T](cfg.strategy),
		logger: slogx.Named(cfg.logger, "mpsc").With(slogx.Strategy(cfg.strategy)),
	}
}

// Producer returns a send handle for the channel. Handles are cheap values;
// call Producer as often as needed or copy the result freely.
func (c *Channel[T]) Producer() Producer[T] {
	return Producer[T]{buf: c.buf}
}

// Receive blocks until a value is available and removes it from the queue.
// It waits indefinitely while the channel is open and empty. On a closed,
// drained channel it returns the zero value; use ReceiveContext to tell the
// two apart.
func (c *Channel[T]) Receive() T {
	v, _ := c.buf.Pop(context.Background())
	return v
}

// ReceiveContext is Receive with cancellation. It returns ErrClosed once the
// channel is closed and every buffered value has been handed out, or
// ctx.Err() if ctx is done first.
func (c *Channel[T]) ReceiveContext(ctx context.Context) (T, error) {
	return c.buf.Pop(ctx)
}

// TryReceive removes the head value if there is one, without blocking.
func (c *Channel[T]) TryReceive() (T, bool) {
	return c.buf.TryPop()
}

// All returns an iterator that receives values until the channel is closed and
// drained, or ctx is done.
func (c *Channel[T]) All(ctx context.Context) iter.Seq[T] {
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

// Close stops the channel from accepting new values and wakes every blocked
// receiver. Values already queued can still be received. Closing twice
// returns ErrClosed.
func (c *Channel[T]) Close() error {
	if !c.buf.Close() {
		return ErrClosed
	}
	c.logger.Debug("channel closed", slog.Int("pending", c.buf.Len()))
	return nil
}

// Closed reports whether Close has been called.
func (c *Channel[T]) Closed() bool {
	return c.buf.Closed()
}

// Len returns the number of queued values.
func (c *Channel[T]) Len() int {
	return c.buf.Len()
}

// Strategy returns the channel's insertion strategy.
func (c *Channel[T]) Strategy() Strategy {
	return c.buf.Strategy()
}

// Stats returns a snapshot of the channel counters.
func (c *Channel[T]) Stats() Stats {
	return c.buf.Stats()
}

// Producer is a send handle for a Channel. The zero value is detached and
// rejects every Send.
type Producer[T any] struct {
	buf *waitbuf.Buffer[T]
}

// Send queues v according to the channel's strategy and wakes one receiver.
// It does not block beyond lock contention.
func (p Producer[T]) Send(v T) error {
	if p.buf == nil {
		return ErrDetached
	}
	return p.buf.Push(v)
}

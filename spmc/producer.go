package spmc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/casualjim/perch/internal/waitbuf"
	"github.com/casualjim/perch/pkg/slogx"
	"github.com/casualjim/perch/pkg/uuidx"
	"github.com/fogfish/opts"
	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrClosed is returned by Subscribe once the producer is closed, and by
// ReceiveContext once a retired consumer has been drained.
var ErrClosed = waitbuf.ErrClosed

var errNilCloner = errors.New("spmc: cloner must not be nil")

type config struct {
	cloner any
	logger *slog.Logger
}

// Option configures a Producer.
type Option = opts.Option[config]

// WithLogger sets the logger used for registration events.
var WithLogger = opts.ForName[config, *slog.Logger]("logger")

// WithCloner sets the function Broadcast uses to make each consumer's copy of
// a message. Without it every consumer gets a plain Go assignment of the
// value, which shares the backing storage of slices, maps and pointers.
//
// The cloner's type parameter must match the producer's message type, or New
// panics.
func WithCloner[T any](clone func(T) T) Option {
	return opts.Type[config](func(c *config) error {
		if clone == nil {
			return errNilCloner
		}
		c.cloner = clone
		return nil
	})
}

// Stats is a point-in-time snapshot of a producer.
type Stats struct {
	Consumers  int    // currently registered
	Broadcasts uint64 // Broadcast calls that ran while open
	Deliveries uint64 // copies pushed into consumer buffers
	Closed     bool
}

// Producer is the sending side of a broadcast channel. It owns the registry
// of consumers; every Broadcast copies the message into each of them.
//
// A Producer must not be copied after first use.
type Producer[T any] struct {
	// mu is the registry lock. Broadcast holds it for the whole fan-out and
	// takes one consumer buffer lock at a time underneath it; nothing may
	// acquire mu while holding a consumer buffer lock.
	mu         sync.Mutex
	consumers  *orderedmap.OrderedMap[uuid.UUID, *Consumer[T]]
	closed     bool
	broadcasts uint64
	deliveries uint64

	clone  func(T) T
	logger *slog.Logger
}

// New creates a producer with no consumers.
func New[T any](options ...Option) *Producer[T] {
	var cfg config
	if err := opts.Apply(&cfg, options); err != nil {
		panic(err)
	}

	clone := func(v T) T { return v }
	if cfg.cloner != nil {
		fn, ok := cfg.cloner.(func(T) T)
		if !ok {
			var zero T
			panic(fmt.Errorf("spmc: cloner %T cannot copy %T", cfg.cloner, zero))
		}
		clone = fn
	}

	return &Producer[T]{
		consumers: orderedmap.New[uuid.UUID, *Consumer[T]](),
		clone:     clone,
		logger:    slogx.Named(cfg.logger, "spmc"),
	}
}

// Subscribe registers a new consumer. The consumer receives every message
// broadcast after Subscribe returns, until it is unsubscribed. The caller owns
// the consumer and should release it with Unsubscribe, typically deferred.
func (p *Producer[T]) Subscribe() (*Consumer[T], error) {
	c := &Consumer[T]{
		id:       uuidx.New(),
		producer: p,
		buf:      waitbuf.New[T](waitbuf.FIFO),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.consumers.Set(c.id, c)
	n := p.consumers.Len()
	p.mu.Unlock()

	p.logger.Debug("consumer registered", slogx.Consumer(c.id), slog.Int("consumers", n))
	return c, nil
}

// SubscribeContext registers a consumer that unsubscribes itself when ctx is
// done. Calling Unsubscribe earlier is still allowed.
func (p *Producer[T]) SubscribeContext(ctx context.Context) (*Consumer[T], error) {
	c, err := p.Subscribe()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// retired is set before retire reads detach under c.mu
	if !c.retired.Load() {
		c.detach = context.AfterFunc(ctx, c.Unsubscribe)
	}
	return c, nil
}

// Broadcast pushes a copy of v into the buffer of every consumer registered at
// this instant and returns how many consumers it reached.
//
// The registry lock is held for the whole fan-out, so a concurrent Subscribe
// or Unsubscribe happens entirely before or entirely after this call. Buffers
// are unbounded: a consumer that drains slower than the producer broadcasts
// accumulates a backlog that grows without limit.
//
// After Close, Broadcast delivers nothing and returns 0.
func (p *Producer[T]) Broadcast(v T) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0
	}

	delivered := 0
	for pair := p.consumers.Oldest(); pair != nil; pair = pair.Next() {
		if err := pair.Value.buf.Push(p.clone(v)); err != nil {
			// unreachable while registered; a consumer leaves the registry
			// before its buffer closes
			continue
		}
		delivered++
	}
	p.broadcasts++
	p.deliveries += uint64(delivered)
	return delivered
}

// Len returns the number of registered consumers.
func (p *Producer[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.consumers.Len()
}

// Consumers returns the IDs of the registered consumers in registration
// order.
func (p *Producer[T]) Consumers() []uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]uuid.UUID, 0, p.consumers.Len())
	for pair := p.consumers.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// Stats returns a snapshot of the producer counters.
func (p *Producer[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Consumers:  p.consumers.Len(),
		Broadcasts: p.broadcasts,
		Deliveries: p.deliveries,
		Closed:     p.closed,
	}
}

// Close retires every registered consumer and rejects new subscriptions.
// Messages already buffered stay receivable; blocked receivers wake up once
// their consumer is drained. Closing twice returns ErrClosed.
func (p *Producer[T]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.closed = true
	retired := make([]*Consumer[T], 0, p.consumers.Len())
	for pair := p.consumers.Oldest(); pair != nil; pair = pair.Next() {
		retired = append(retired, pair.Value)
	}
	p.consumers = orderedmap.New[uuid.UUID, *Consumer[T]]()
	p.mu.Unlock()

	// buffer locks are taken only after the registry lock is released
	for _, c := range retired {
		c.once.Do(c.retire)
	}
	p.logger.Debug("producer closed", slog.Int("retired", len(retired)))
	return nil
}

// Closed reports whether Close has been called.
func (p *Producer[T]) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Producer[T]) remove(id uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consumers.Delete(id)
	return p.consumers.Len()
}

package broker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/perch/mpsc"
	"github.com/casualjim/perch/pkg/slogx"
	"github.com/casualjim/perch/spmc"
)

var _ Broker[string] = (*LocalBroker[string])(nil)

// LocalBroker keeps topics and queues in process memory.
type LocalBroker[T any] struct {
	topics *haxmap.Map[string, *topic[T]]
	queues *haxmap.Map[string, *mpsc.Channel[T]]
	logger *slog.Logger

	queueStrategy mpsc.Strategy
	topicOptions  []spmc.Option
}

// Local creates an empty in-process broker.
func Local[T any]() *LocalBroker[T] {
	return &LocalBroker[T]{
		topics: haxmap.New[string, *topic[T]](),
		queues: haxmap.New[string, *mpsc.Channel[T]](),
		logger: slogx.Named(nil, "broker"),
	}
}

// WithLogger sets the logger for the broker and every topic or queue it
// creates afterwards.
func (b *LocalBroker[T]) WithLogger(logger *slog.Logger) *LocalBroker[T] {
	b.logger = slogx.Named(logger, "broker")
	return b
}

// WithQueueStrategy sets the insertion strategy for queues created afterwards.
func (b *LocalBroker[T]) WithQueueStrategy(strategy mpsc.Strategy) *LocalBroker[T] {
	b.queueStrategy = strategy
	return b
}

// WithTopicOptions configures the producers of topics created afterwards.
func (b *LocalBroker[T]) WithTopicOptions(options ...spmc.Option) *LocalBroker[T] {
	b.topicOptions = append(b.topicOptions, options...)
	return b
}

func (b *LocalBroker[T]) Topic(ctx context.Context, name string) Topic[T] {
	t, _ := b.topics.GetOrCompute(name, func() *topic[T] {
		logger := b.logger.With(slogx.Topic(name))
		logger.DebugContext(ctx, "topic created")
		options := append([]spmc.Option{spmc.WithLogger(logger)}, b.topicOptions...)
		return &topic[T]{
			name:     name,
			producer: spmc.New[T](options...),
			logger:   logger,
		}
	})
	return t
}

func (b *LocalBroker[T]) Queue(ctx context.Context, name string) *mpsc.Channel[T] {
	q, _ := b.queues.GetOrCompute(name, func() *mpsc.Channel[T] {
		logger := b.logger.With(slogx.Topic(name))
		logger.DebugContext(ctx, "queue created", slogx.Strategy(b.queueStrategy))
		return mpsc.New[T](mpsc.WithStrategy(b.queueStrategy), mpsc.WithLogger(logger))
	})
	return q
}

// Close closes every topic and queue the broker has handed out.
func (b *LocalBroker[T]) Close() error {
	var errs []error
	b.topics.ForEach(func(_ string, t *topic[T]) bool {
		if err := t.Close(); err != nil && !errors.Is(err, ErrTopicClosed) {
			errs = append(errs, err)
		}
		return true
	})
	b.queues.ForEach(func(_ string, q *mpsc.Channel[T]) bool {
		if err := q.Close(); err != nil && !errors.Is(err, mpsc.ErrClosed) {
			errs = append(errs, err)
		}
		return true
	})
	return errors.Join(errs...)
}

type topic[T any] struct {
	name     string
	producer *spmc.Producer[T]
	logger   *slog.Logger
}

func (t *topic[T]) Name() string {
	return t.name
}

func (t *topic[T]) Publish(ctx context.Context, msg T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.producer.Broadcast(msg) == 0 && t.producer.Closed() {
		return ErrTopicClosed
	}
	return nil
}

func (t *topic[T]) Consumer(ctx context.Context) (*spmc.Consumer[T], error) {
	c, err := t.producer.SubscribeContext(ctx)
	if errors.Is(err, spmc.ErrClosed) {
		return nil, ErrTopicClosed
	}
	return c, err
}

func (t *topic[T]) Subscribe(ctx context.Context, hook Hook[T]) (Subscription, error) {
	if hook == nil {
		return nil, ErrHookRequired
	}
	consumer, err := t.Consumer(ctx)
	if err != nil {
		return nil, err
	}
	sub := &subscription[T]{
		ctx:      ctx,
		consumer: consumer,
		hook:     hook,
		done:     make(chan struct{}),
	}
	go sub.forwardToHook()
	return sub, nil
}

func (t *topic[T]) Subscribers() int {
	return t.producer.Len()
}

func (t *topic[T]) Close() error {
	if err := t.producer.Close(); err != nil {
		return ErrTopicClosed
	}
	t.logger.Debug("topic closed")
	return nil
}

type subscription[T any] struct {
	ctx       context.Context
	consumer  *spmc.Consumer[T]
	hook      Hook[T]
	closeOnce sync.Once
	done      chan struct{}
}

func (s *subscription[T]) ID() string {
	return s.consumer.ID().String()
}

func (s *subscription[T]) Unsubscribe() {
	s.closeOnce.Do(s.consumer.Unsubscribe)
}

func (s *subscription[T]) Done() <-chan struct{} {
	return s.done
}

// forwardToHook delivers the consumer backlog in order. After Unsubscribe or
// cancellation it still drains what was buffered, so the hook sees every
// message broadcast while the subscription was registered. The drain itself
// ignores s.ctx: cancellation retires the consumer, which closes its buffer
// and ends the loop once the backlog is empty.
func (s *subscription[T]) forwardToHook() {
	defer close(s.done)
	defer s.Unsubscribe()

	for msg := range s.consumer.All(context.Background()) {
		s.hook.OnMessage(s.ctx, msg)
	}
	s.hook.OnDone(s.ctx, context.Cause(s.ctx))
}

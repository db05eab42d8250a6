package broker

import (
	"context"
	"errors"

	"github.com/casualjim/perch/mpsc"
	"github.com/casualjim/perch/spmc"
)

var (
	// ErrHookRequired is returned by Subscribe when the hook is nil.
	ErrHookRequired = errors.New("broker: hook is required")

	// ErrTopicClosed is returned by Publish and Subscribe on a closed topic.
	ErrTopicClosed = errors.New("broker: topic closed")
)

type Broker[T any] interface {
	Topic(context.Context, string) Topic[T]
	Queue(context.Context, string) *mpsc.Channel[T]
	Close() error
}

type Topic[T any] interface {
	Name() string
	Publish(context.Context, T) error
	Subscribe(context.Context, Hook[T]) (Subscription, error)
	Consumer(context.Context) (*spmc.Consumer[T], error)
	Subscribers() int
	Close() error
}

type Subscription interface {
	ID() string
	Unsubscribe()
	// Done is closed once the hook has seen its last message.
	Done() <-chan struct{}
}

package broker

import (
	"context"
	"log/slog"
	"slices"

	"github.com/casualjim/perch/pkg/slogx"
	json "github.com/goccy/go-json"
)

// Hook receives the messages of one topic subscription, in broadcast order,
// on a goroutine owned by the subscription.
//
// OnDone is called exactly once after the last message. Its error is nil when
// the subscription ended through Unsubscribe or a closed topic, and the
// context's cause when it ended through cancellation.
type Hook[T any] interface {
	OnMessage(context.Context, T)
	OnDone(context.Context, error)
}

// HookFunc adapts a function to a Hook that ignores OnDone.
type HookFunc[T any] func(context.Context, T)

func (f HookFunc[T]) OnMessage(ctx context.Context, msg T) {
	f(ctx, msg)
}

func (HookFunc[T]) OnDone(context.Context, error) {}

func LoggingHook[T any](logger *slog.Logger) Hook[T] {
	return &loggingHook[T]{logger: slogx.Named(logger, "broker.hook")}
}

type loggingHook[T any] struct {
	logger *slog.Logger
}

func (h *loggingHook[T]) OnMessage(ctx context.Context, msg T) {
	b, err := json.Marshal(msg)
	if err != nil {
		h.logger.ErrorContext(ctx, "message is not JSON encodable", slogx.Error(err))
		return
	}
	h.logger.InfoContext(ctx, "message", slogx.ByteString("message", b))
}

func (h *loggingHook[T]) OnDone(ctx context.Context, err error) {
	if err != nil {
		h.logger.WarnContext(ctx, "subscription cancelled", slogx.Error(err))
		return
	}
	h.logger.DebugContext(ctx, "subscription ended")
}

func NewCompositeHook[T any](hooks ...Hook[T]) Hook[T] {
	return CompositeHook[T](hooks)
}

// CompositeHook fans each callback out to every hook in order.
type CompositeHook[T any] []Hook[T]

func (c CompositeHook[T]) OnMessage(ctx context.Context, msg T) {
	for h := range slices.Values(c) {
		h.OnMessage(ctx, msg)
	}
}

func (c CompositeHook[T]) OnDone(ctx context.Context, err error) {
	for h := range slices.Values(c) {
		h.OnDone(ctx, err)
	}
}

// Package broker looks up broadcast topics and work queues by name and
// forwards topic messages to hooks.
//
// Design decisions:
//   - Context-first: every operation accepts a context.Context; subscriptions
//     end when their context does
//   - Topic-based: each topic is one spmc.Producer, each queue is one
//     mpsc.Channel, created on first use and shared afterwards
//   - Hook integration: Subscribe runs a goroutine that hands every message
//     of its consumer to a Hook
//   - Subscription management: explicit Unsubscribe, safe to call repeatedly
//
// Interface hierarchy:
//   - Broker: top-level access to topics and queues
//     └── Topic: publish to and subscribe on one broadcast channel
//     └── Subscription: handle for one hook forwarding loop
//
// Example usage:
//
//	b := broker.Local[string]()
//	defer b.Close()
//	topic := b.Topic(ctx, "heartbeat")
//
//	sub, err := topic.Subscribe(ctx, broker.HookFunc[string](func(ctx context.Context, msg string) {
//	    fmt.Println(msg)
//	}))
//	if err != nil {
//	    return err
//	}
//	defer sub.Unsubscribe()
//
//	if err := topic.Publish(ctx, "Heartbeat #0"); err != nil {
//	    return err
//	}
//
// Messages stay in-process. Every topic subscriber owns an unbounded backlog,
// see package spmc for the resource caveats.
package broker

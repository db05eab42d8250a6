// Package spmc implements a fan-out broadcast channel: one producer, many
// independently registered consumers, each receiving its own copy of every
// message.
//
// Design decisions:
//   - Registry under one lock: Broadcast, Subscribe and Unsubscribe all take
//     the producer's registry lock, so a broadcast reaches exactly the
//     consumers registered when it ran and never a partial set.
//   - Lock order: the registry lock is taken first, then one consumer buffer
//     lock at a time. The reverse never happens.
//   - Ownership: a consumer holds a pointer to its producer, so the producer
//     cannot disappear while a consumer still needs to deregister.
//   - Scoped registration: defer Unsubscribe, or use SubscribeContext to tie
//     the registration to a context.
//
// Example usage:
//
//	bus := spmc.New[string]()
//	rx, err := bus.Subscribe()
//	if err != nil {
//	    return err
//	}
//	defer rx.Unsubscribe()
//
//	go func() {
//	    for msg := range rx.All(ctx) {
//	        fmt.Println(msg)
//	    }
//	}()
//	bus.Broadcast("heartbeat")
//
// Resource usage: every consumer buffer is unbounded and each message is
// duplicated once per consumer. A consumer that cannot keep up with the
// producer builds a backlog that grows until it catches up or unsubscribes.
// Values are copied by plain assignment unless WithCloner supplies a deep copy.
package spmc

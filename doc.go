/*
Package perch provides in-process channels for moving values between
goroutines when Go's built-in channels do not fit: unbounded queues with a
choice of delivery order, and broadcast with dynamic membership.

The module is organized around two channel kinds:

  - mpsc: many producers, one shared drain. Any number of Producer handles
    feed a single queue; one or more goroutines receive from it and each value
    is delivered once. Values are delivered first-in-first-out, or
    last-in-first-out with mpsc.Stack().
  - spmc: one producer, many consumers. Each Consumer registered with the
    Producer gets its own copy of every broadcast made while it is registered,
    in broadcast order.

Neither kind bounds its queues: senders never block, receivers block until a
value arrives, the channel is closed, or their context ends.

# Basic Usage

Sharing work between goroutines:

	ch := mpsc.New[func()]()
	for range 8 {
		go func() {
			for job := range ch.All(ctx) {
				job()
			}
		}()
	}
	tx := ch.Producer()
	_ = tx.Send(func() { fmt.Println("hello") })

Broadcasting:

	bus := spmc.New[string]()
	rx, _ := bus.Subscribe()
	defer rx.Unsubscribe()
	bus.Broadcast("Heartbeat #0")
	fmt.Println(rx.Receive())

# Higher Level

Package workpool runs tasks on a fixed set of workers draining one mpsc
channel. Package internal/broker names topics and queues and forwards topic
messages to hooks; the programs under examples/ are built on both.
*/
package perch

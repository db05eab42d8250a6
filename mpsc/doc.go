// Package mpsc implements a fan-in work queue: many producers, one consumer
// endpoint, any number of goroutines draining that endpoint.
//
// A Channel owns a single unbounded buffer. Producer handles obtained from it
// are plain values that can be copied and used from any goroutine; every Send
// lands in the same buffer. Each sent value is handed to exactly one Receive,
// so goroutines blocked on the same Channel split the work between them
// without duplicates:
//
//	jobs := mpsc.New[func()]()
//	for range 8 {
//	    go func() {
//	        for job := range jobs.All(ctx) {
//	            job()
//	        }
//	    }()
//	}
//	tx := jobs.Producer()
//	_ = tx.Send(func() { fmt.Println("hello") })
//
// # Insertion strategy
//
// Values always leave from the head of the buffer. The strategy decides where
// Send puts a new value: FIFO (the default) appends it so values come out in
// arrival order, LIFO prepends it so the newest value comes out first. Order is
// only meaningful per producer; concurrent producers interleave arbitrarily.
//
// # Closing
//
// Receive waits for as long as it takes. Close is opt-in: once called, Send
// fails with ErrClosed, buffered values can still be received, and
// ReceiveContext reports ErrClosed when nothing is left. Use ReceiveContext or
// All to stop waiting on cancellation.
//
// The buffer has no capacity limit. A producer that outpaces its consumers
// grows memory without bound.
package mpsc

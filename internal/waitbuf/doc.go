// Package waitbuf provides the blocking buffer shared by the mpsc and spmc
// channels: a gammazero/deque ring guarded by a mutex, plus a condition
// variable that wakes a blocked reader once the buffer becomes non-empty.
//
// The deque is only mutated while the mutex is held. Push signals exactly one
// waiter; Close and context cancellation broadcast to all of them so each can
// observe the new state. Where new values land is decided by a Strategy (FIFO
// appends, LIFO prepends); values always leave from the front.
package waitbuf

// Package util provides a bounded Multi-Producer Single-Consumer (MPSC) queue.
//
// Features and Guarantees:
//
//   - Lock-Free appends: producers link their items with atomic operations
//   - Bounded Size: at most Capacity items are buffered, Push blocks while the queue is full
//   - Cancellable: a producer blocked on a full queue returns when its context is done
//   - Single Consumer: Designed for a single goroutine to consume values (via the Recv() channel).
//   - No Strict FIFO Guarantee: Under concurrent Push() operations, the exact ordering of items
//     is determined by which producer completes its operation first, not by which producer
//     started first. Items of a single producer are delivered in order.
package util

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Push after the queue was closed
var ErrClosed = errors.New("queue closed")

// node represents a single element in the queue
type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// MPSC is a bounded multi-producer single-consumer queue.
// The items are kept in a linked list that producers append to with atomic
// operations; a single internal goroutine moves them to the Recv() channel.
type MPSC[T any] struct {
	head     atomic.Pointer[node[T]]
	tail     atomic.Pointer[node[T]]
	out      chan T
	closed   atomic.Bool
	capacity int64
	size     int64 // buffered items (including reserved slots), guarded by mu

	// mu guards size and the condition variables
	mu    sync.Mutex
	ready *sync.Cond // signals the consumer that items are available
	space *sync.Cond // signals producers that slots are free
}

// NewMPSC creates a new queue buffering at most capacity items (capacity <= 0 = unbounded)
func NewMPSC[T any](capacity int) *MPSC[T] {
	// Create a sentinel node (dummy node at the beginning)
	sentinel := &node[T]{}

	q := &MPSC[T]{
		out:      make(chan T),
		capacity: int64(capacity),
	}
	q.ready = sync.NewCond(&q.mu)
	q.space = sync.NewCond(&q.mu)

	// Set the initial head and tail to the sentinel node
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	go q.consume()

	return q
}

// Push adds an item to the queue, waiting for a free slot if the queue is full.
// It returns ErrClosed if the queue is closed and ctx.Err() if ctx is done first.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *MPSC[T]) Push(ctx context.Context, value T) error {
	if err := q.reserve(ctx); err != nil {
		return err
	}

	newNode := &node[T]{value: value}
	var backoff uint8 = 0

	for {
		tailNode := q.tail.Load()

		// try to atomically append our node to the current tail
		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// CAS may fail if another producer already moved the tail, which is fine
				q.tail.CompareAndSwap(tailNode, newNode)

				q.mu.Lock()
				q.ready.Signal()
				q.mu.Unlock()
				return nil
			}
		} else {
			// help a producer that appended but has not moved the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		// exponential backoff under contention
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// reserve waits until a slot is free and takes it.
func (q *MPSC[T]) reserve(ctx context.Context) error {
	// wake up waiting producers when ctx is done
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.space.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.closed.Load() {
			return ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if q.capacity <= 0 || q.size < q.capacity {
			q.size++
			return nil
		}
		q.space.Wait()
	}
}

// consume continuously sends items from the linked list to the output channel
func (q *MPSC[T]) consume() {
	defer close(q.out)

	for {
		head := q.head.Load()
		next := head.next.Load()

		if next == nil {
			q.mu.Lock()
			// Double-check condition after acquiring lock
			for q.head.Load().next.Load() == nil && !q.closed.Load() {
				q.ready.Wait()
			}
			done := q.head.Load().next.Load() == nil && q.closed.Load()
			q.mu.Unlock()
			if done {
				return
			}
			continue
		}

		// move head pointer before sending so the node can be collected
		value := next.value
		var zero T
		next.value = zero
		q.head.Store(next)

		q.out <- value

		q.mu.Lock()
		q.size--
		q.space.Signal()
		q.mu.Unlock()
	}
}

// Recv returns a receive-only channel for consuming from the queue.
// The channel is closed once the queue is closed and all items were received.
func (q *MPSC[T]) Recv() <-chan T {
	return q.out
}

// Close closes the queue, preventing further writes.
// Any items already in the queue will still be delivered to the consumer.
// Close must not race with Push: call it once all producers have returned.
func (q *MPSC[T]) Close() {
	q.mu.Lock()
	q.closed.Store(true)
	q.ready.Broadcast()
	q.space.Broadcast()
	q.mu.Unlock()
}

// IsClosed returns true if the queue is closed.
func (q *MPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns the number of buffered items, including items of producers that are
// about to be appended.
func (q *MPSC[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int(q.size)
}

// Package mailbox implements the unbounded FIFO command queue consumed
// by every actor. Push never blocks, which keeps enqueueing from the
// orchestrator's dispatch loop free of head-of-line blocking regardless
// of how many commands are outstanding.
package mailbox

import "sync"

// Queue is an unbounded FIFO queue. The zero value is not usable; create
// queues with New.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	closed bool
}

// New creates an empty open queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an item. Returns false when the queue is closed, in which
// case the item is dropped.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, item)
	q.cond.Signal()
	return true
}

// PushAndClose atomically appends a final item and closes the queue, so
// no other producer can slip a command in after it. Returns false when
// the queue was already closed.
func (q *Queue[T]) PushAndClose(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, item)
	q.closed = true
	q.cond.Broadcast()
	return true
}

// Pop blocks until an item is available or the queue is closed and
// drained. The second return value is false only when no item will ever
// be delivered again.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Close stops intake. Items already queued are still delivered by Pop.
// Closing twice is a no-op.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Closed reports whether intake has stopped.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

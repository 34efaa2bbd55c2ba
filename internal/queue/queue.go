// Package queue provides the bounded FIFO used between pipeline stages.
package queue

import "sync"

// Queue is a fixed-capacity FIFO with a drop-oldest overflow policy. Push
// never blocks: when the queue is full the oldest element is evicted to make
// room, which keeps producers (chat adapters) live when a consumer falls
// behind. Surviving elements preserve their relative insertion order.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	dropped  int64
}

// New creates a queue with the given capacity. Capacities below 1 are
// treated as 1.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Push appends an item, evicting the oldest element first if the queue is at
// capacity. It never blocks.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) >= q.capacity {
		q.evictOldest()
	}
	q.items = append(q.items, item)
}

// TryPop removes and returns the oldest item, or reports false if the queue
// is empty. Workers poll this with a short sleep rather than blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	// Shift rather than reslice so evicted heads don't pin the backing array.
	copy(q.items, q.items[1:])
	q.items[len(q.items)-1] = zero
	q.items = q.items[:len(q.items)-1]
	return item, true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many items have been evicted by Push overflow.
func (q *Queue[T]) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Resize changes the capacity at runtime. If the queue currently holds more
// items than the new capacity, the oldest items are evicted.
func (q *Queue[T]) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.capacity = capacity
	for len(q.items) > q.capacity {
		q.evictOldest()
	}
}

// Clear discards all queued items.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	for i := range q.items {
		q.items[i] = zero
	}
	q.items = q.items[:0]
}

// evictOldest drops the head element. Caller holds q.mu.
func (q *Queue[T]) evictOldest() {
	var zero T
	copy(q.items, q.items[1:])
	q.items[len(q.items)-1] = zero
	q.items = q.items[:len(q.items)-1]
	q.dropped++
}

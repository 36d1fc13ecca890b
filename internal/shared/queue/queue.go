// Package queue implements a small fixed-capacity FIFO ring under a mutex.
// Used for the deferred-write retry queue; capacity bounds are part of the
// engine's resource-exhaustion fallback story, so a full queue reports
// failure instead of growing.
package queue

import "sync"

type Queue[T any] struct {
	mu         sync.Mutex
	buf        []T
	head, tail int
}

func New[T any](size int) *Queue[T] {
	if size < 2 {
		size = 2
	}
	// One slot stays unused to distinguish full from empty.
	return &Queue[T]{buf: make([]T, size+1)}
}

func (q *Queue[T]) TryPush(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	next := (q.head + 1) % len(q.buf)
	if next == q.tail { // full
		return false
	}
	q.buf[q.head] = v
	q.head = next
	return true
}

func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if q.head == q.tail {
		return zero, false
	}
	v := q.buf[q.tail]
	q.buf[q.tail] = zero
	q.tail = (q.tail + 1) % len(q.buf)
	return v, true
}

// TryPeek returns the head without removing it.
func (q *Queue[T]) TryPeek() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if q.head == q.tail {
		return zero, false
	}
	return q.buf[q.tail], true
}

func (q *Queue[T]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.head == q.tail
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head >= q.tail {
		return q.head - q.tail
	}
	return len(q.buf) - q.tail + q.head
}

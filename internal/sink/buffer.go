// Package sink provides the bounded hand-off buffer between the acquisition
// loop and downstream consumers.
package sink

// Buffer is a bounded FIFO with non-blocking push and pop. Safe for one
// producer and any number of consumers.
type Buffer[T any] struct {
	ch chan T
}

// New creates a buffer holding at most capacity items (minimum 1).
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{ch: make(chan T, capacity)}
}

// TryPush enqueues v, or returns false (and drops v) when the buffer is full.
func (b *Buffer[T]) TryPush(v T) bool {
	select {
	case b.ch <- v:
		return true
	default:
		return false
	}
}

// TryPop dequeues the oldest item if one is available.
func (b *Buffer[T]) TryPop() (T, bool) {
	select {
	case v := <-b.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// C exposes the receive side for consumers that prefer to block in a select.
func (b *Buffer[T]) C() <-chan T { return b.ch }

func (b *Buffer[T]) Len() int { return len(b.ch) }

func (b *Buffer[T]) Cap() int { return cap(b.ch) }

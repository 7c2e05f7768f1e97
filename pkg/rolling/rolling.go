// Package rolling provides a fixed-capacity FIFO buffer used for the
// bounded histories in the decision stack (recent-trend windows and the
// optimizer's reward history). Appending beyond capacity evicts the
// oldest entry.
package rolling

// Buffer is a fixed-capacity FIFO ring buffer. The zero value is not
// usable; create one with New. Not safe for concurrent use.
type Buffer[T any] struct {
	items []T
	head  int
	size  int
}

// New returns a Buffer holding at most capacity entries. A capacity
// below 1 is treated as 1.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Append adds v, evicting the oldest entry if the buffer is full.
func (b *Buffer[T]) Append(v T) {
	if b.size < len(b.items) {
		b.items[(b.head+b.size)%len(b.items)] = v
		b.size++
		return
	}
	// full: overwrite the oldest slot and advance
	b.items[b.head] = v
	b.head = (b.head + 1) % len(b.items)
}

// Len returns the number of entries currently held.
func (b *Buffer[T]) Len() int {
	return b.size
}

// Cap returns the configured capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.items)
}

// Values returns the entries oldest-first as a fresh slice.
func (b *Buffer[T]) Values() []T {
	out := make([]T, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.head+i)%len(b.items)]
	}
	return out
}

// Last returns up to n of the most recent entries, oldest-first.
func (b *Buffer[T]) Last(n int) []T {
	if n >= b.size {
		return b.Values()
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = b.items[(b.head+b.size-n+i)%len(b.items)]
	}
	return out
}

// Reset discards all entries but keeps the capacity.
func (b *Buffer[T]) Reset() {
	b.head = 0
	b.size = 0
}

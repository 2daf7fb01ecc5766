package trainer

import "github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"

// #region buffer

// Buffer is a bounded ring of experiences. Once full, each Add evicts the oldest.
// It is not safe for concurrent use; the trainer's collector is its only writer.
type Buffer struct {
	items []state.Experience
	start int
	size  int
}

// NewBuffer creates a buffer holding at most capacity experiences (minimum 1).
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{items: make([]state.Experience, capacity)}
}

// Add appends exp and reports whether an older experience was evicted.
func (b *Buffer) Add(exp state.Experience) bool {
	capacity := len(b.items)
	if b.size < capacity {
		b.items[(b.start+b.size)%capacity] = exp
		b.size++
		return false
	}
	b.items[b.start] = exp
	b.start = (b.start + 1) % capacity
	return true
}

// Len returns the number of experiences held.
func (b *Buffer) Len() int { return b.size }

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int { return len(b.items) }

// Items returns the held experiences, oldest first, as a fresh slice.
func (b *Buffer) Items() []state.Experience {
	out := make([]state.Experience, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.start+i)%len(b.items)]
	}
	return out
}

// Count returns how many held experiences belong to stage.
func (b *Buffer) Count(stage state.Stage) int {
	n := 0
	for i := 0; i < b.size; i++ {
		if b.items[(b.start+i)%len(b.items)].Stage == stage {
			n++
		}
	}
	return n
}

// #endregion buffer

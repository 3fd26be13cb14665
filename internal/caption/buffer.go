package caption

import "sync"

const DefaultMaxItems = 200

// Buffer is a fixed-capacity FIFO of chunks in arrival order. One goroutine
// appends; any number may read snapshots.
type Buffer struct {
	mu    sync.RWMutex
	items []Chunk
	head  int
	size  int
}

func NewBuffer(maxItems int) *Buffer {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &Buffer{items: make([]Chunk, maxItems)}
}

// Append adds c, evicting the oldest chunk when full. It reports whether an
// eviction happened.
func (b *Buffer) Append(c Chunk) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.items)
	if b.size < capacity {
		b.items[(b.head+b.size)%capacity] = c
		b.size++
		return false
	}
	b.items[b.head] = c
	b.head = (b.head + 1) % capacity
	return true
}

// Snapshot copies the buffered chunks, oldest first.
func (b *Buffer) Snapshot() []Chunk {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Chunk, b.size)
	for i := range b.size {
		out[i] = b.items[(b.head+i)%len(b.items)]
	}
	return out
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

func (b *Buffer) Cap() int {
	return len(b.items)
}

func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.items)
	b.head, b.size = 0, 0
}

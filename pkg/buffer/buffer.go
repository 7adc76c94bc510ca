package buffer

import (
	"fmt"
	"sync"

	"github.com/c360/sembridge/errors"
)

// OverflowPolicy decides what a write costs once the buffer is full.
type OverflowPolicy int

const (
	// DropOldest evicts the oldest item to make room for the new one.
	DropOldest OverflowPolicy = iota
	// DropNewest discards the incoming item and keeps the buffer as is.
	DropNewest
)

// DropCallback observes items lost to the overflow policy. It runs
// outside the buffer's lock, so it may call back into the buffer.
type DropCallback[T any] func(item T)

// CircularBuffer is a thread-safe fixed-capacity ring buffer.
type CircularBuffer[T any] struct {
	mu    sync.RWMutex
	items []T
	head  int // next write position
	tail  int // oldest item
	size  int

	policy  OverflowPolicy
	onDrop  DropCallback[T]
	metrics *ringMetrics

	// Activity counters, guarded by mu.
	writes    int64
	reads     int64
	overflows int64
	drops     int64
	maxSize   int
}

// NewCircularBuffer builds a ring buffer holding at most capacity items.
func NewCircularBuffer[T any](capacity int, opts ...Option[T]) (*CircularBuffer[T], error) {
	if capacity < 1 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: buffer capacity %d must be positive", errors.ErrInvalidConfig, capacity),
			"buffer", "NewCircularBuffer", "capacity validation")
	}

	o := applyOptions(opts...)

	var metrics *ringMetrics
	if o.registry != nil {
		var err error
		metrics, err = newRingMetrics(o.registry, o.component)
		if err != nil {
			return nil, errors.WrapInvalid(err, "buffer", "NewCircularBuffer", "metrics registration")
		}
	}

	return &CircularBuffer[T]{
		items:   make([]T, capacity),
		policy:  o.policy,
		onDrop:  o.onDrop,
		metrics: metrics,
	}, nil
}

// Write adds an item. When full, the overflow policy decides whether the
// oldest item or the incoming one is dropped; either way the drop
// callback sees the casualty.
func (b *CircularBuffer[T]) Write(item T) {
	var dropped T
	var hasDrop bool

	b.mu.Lock()
	if b.size == len(b.items) {
		b.overflows++
		b.drops++
		if b.metrics != nil {
			b.metrics.recordOverflow()
		}

		if b.policy == DropNewest {
			b.mu.Unlock()
			if b.onDrop != nil {
				b.onDrop(item)
			}
			return
		}

		dropped = b.items[b.tail]
		hasDrop = true
		b.tail = (b.tail + 1) % len(b.items)
		b.size--
	}

	b.items[b.head] = item
	b.head = (b.head + 1) % len(b.items)
	b.size++
	b.writes++
	if b.size > b.maxSize {
		b.maxSize = b.size
	}
	if b.metrics != nil {
		b.metrics.recordWrite(b.size, len(b.items))
	}
	b.mu.Unlock()

	if hasDrop && b.onDrop != nil {
		b.onDrop(dropped)
	}
}

// Read removes and returns the oldest item. The second return is false
// when the buffer is empty.
func (b *CircularBuffer[T]) Read() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	if b.size == 0 {
		return zero, false
	}

	item := b.items[b.tail]
	b.items[b.tail] = zero
	b.tail = (b.tail + 1) % len(b.items)
	b.size--
	b.reads++
	if b.metrics != nil {
		b.metrics.recordRead(b.size, len(b.items))
	}
	return item, true
}

// ReadBatch removes and returns up to max items, oldest first.
func (b *CircularBuffer[T]) ReadBatch(max int) []T {
	if max <= 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		return nil
	}

	n := max
	if n > b.size {
		n = b.size
	}

	var zero T
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = b.items[b.tail]
		b.items[b.tail] = zero
		b.tail = (b.tail + 1) % len(b.items)
	}
	b.size -= n
	b.reads += int64(n)
	if b.metrics != nil {
		b.metrics.recordReads(n, b.size, len(b.items))
	}
	return out
}

// Items returns a copy of the buffered items, oldest first, without
// consuming them.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]T, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.tail+i)%len(b.items)]
	}
	return out
}

// Len returns the number of buffered items.
func (b *CircularBuffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Cap returns the fixed capacity.
func (b *CircularBuffer[T]) Cap() int {
	return len(b.items)
}

// Clear discards all buffered items. Cleared items do not count as
// drops and do not reach the drop callback.
func (b *CircularBuffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head = 0
	b.tail = 0
	b.size = 0
	if b.metrics != nil {
		b.metrics.updateSize(0, len(b.items))
	}
}

// Stats returns a snapshot of buffer activity.
func (b *CircularBuffer[T]) Stats() Summary {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Summary{
		Writes:    b.writes,
		Reads:     b.reads,
		Overflows: b.overflows,
		Drops:     b.drops,
		Len:       b.size,
		Cap:       len(b.items),
		MaxLen:    b.maxSize,
	}
}

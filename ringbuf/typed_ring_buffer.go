// Package ringbuf hands out a fixed set of reusable slots.
package ringbuf

// TypedRingBuffer owns n slots of T. Get blocks until a slot is free,
// so the ring size bounds how much work can be in flight.
type TypedRingBuffer[T any] struct {
	buffers []T
	free    chan uint16
}

func NewTypedRingBuffer[T any](n int) *TypedRingBuffer[T] {

	if n <= 0 || n > 1<<16 {
		panic("ring buffer size out of range")
	}

	buffers := make([]T, n)

	free := make(chan uint16, n)
	for i := 0; i < n; i++ {
		free <- uint16(i)
	}

	return &TypedRingBuffer[T]{
		buffers: buffers,
		free:    free,
	}
}

func (p *TypedRingBuffer[T]) Get() (*T, uint16) {
	id := <-p.free
	return &p.buffers[id], id
}

// At gives access to a slot the caller already holds.
func (p *TypedRingBuffer[T]) At(id uint16) *T {
	return &p.buffers[id]
}

func (p *TypedRingBuffer[T]) Return(id uint16) {
	select {
	case p.free <- id:
	default:
		panic("ring buffer slot returned twice")
	}
}

func (p *TypedRingBuffer[T]) Cap() int {
	return len(p.buffers)
}

func (p *TypedRingBuffer[T]) Free() int {
	return len(p.free)
}

// Slots exposes every slot, held or not.
func (p *TypedRingBuffer[T]) Slots() []T {
	return p.buffers
}

package buffer

// Allocator hands out buffers with the given logical and maximum capacity.
type Allocator interface {
	Allocate(capacity, maxCapacity int) (*Buffer, error)
}

// HeapAllocator allocates fresh, unpooled storage for every buffer.
type HeapAllocator struct {
	// BlockCapacity bounds maxCapacity. Zero means DefaultBlockCapacity.
	BlockCapacity int
}

// DefaultHeapAllocator is used by Allocate.
var DefaultHeapAllocator = HeapAllocator{BlockCapacity: DefaultBlockCapacity}

// Allocate returns a buffer with reader and writer at zero. The storage is
// sized to maxCapacity so SetCapacity can grow without reallocating.
func (a HeapAllocator) Allocate(capacity, maxCapacity int) (*Buffer, error) {
	limit := a.BlockCapacity
	if limit <= 0 {
		limit = DefaultBlockCapacity
	}
	if err := validateCapacity(capacity, maxCapacity, limit); err != nil {
		return nil, err
	}
	return newBuffer(newHeapBlock(make([]byte, maxCapacity)), 0, 0, capacity, maxCapacity), nil
}

func validateCapacity(capacity, maxCapacity, limit int) error {
	if capacity < 0 || maxCapacity <= 0 {
		return invalidSize("capacity %d, max capacity %d", capacity, maxCapacity)
	}
	if capacity > maxCapacity {
		return invalidSize("capacity %d greater than max capacity %d", capacity, maxCapacity)
	}
	if maxCapacity > limit {
		return invalidSize("max capacity %d greater than block capacity %d", maxCapacity, limit)
	}
	return nil
}

package scull

import (
	"fmt"
	"sync"
)

// Allocator provides channel storage. Table calls Alloc once per channel in
// index order during New and Free once per allocated channel on rollback or
// Destroy, in reverse index order.
type Allocator interface {
	// Alloc returns a buffer of exactly size bytes for channel index.
	Alloc(index, size int) ([]byte, error)

	// Free releases a buffer returned by Alloc.
	Free(index int, buf []byte)
}

// heapAllocator allocates from the Go heap, optionally under a byte budget.
type heapAllocator struct {
	limit int64

	mu   sync.Mutex
	used int64
}

// NewHeapAllocator returns the default allocator. A positive limit caps the
// total bytes outstanding; allocations past it fail with ErrOutOfMemory.
func NewHeapAllocator(limit int64) Allocator {
	return &heapAllocator{limit: limit}
}

func (a *heapAllocator) Alloc(index, size int) (buf []byte, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.limit > 0 && a.used+int64(size) > a.limit {
		return nil, fmt.Errorf("%w: channel %d needs %d bytes, %d of %d in use",
			ErrOutOfMemory, index, size, a.used, a.limit)
	}
	// make panics on sizes the runtime cannot satisfy; report that as an
	// allocation failure instead.
	defer func() {
		if r := recover(); r != nil {
			buf, err = nil, fmt.Errorf("%w: channel %d: %v", ErrOutOfMemory, index, r)
		}
	}()
	buf = make([]byte, size)
	a.used += int64(size)
	return buf, nil
}

func (a *heapAllocator) Free(_ int, buf []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.used -= int64(len(buf))
}

package alloc

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Heap allocates from the Go heap and only counts.
type Heap struct {
	allocs atomic.Uint64
	frees  atomic.Uint64
}

// NewHeap returns a Go-heap allocator.
func NewHeap() *Heap {
	return &Heap{}
}

func (h *Heap) Alloc(size int, tag uint32) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("alloc: negative size %d", size)
	}
	if size > MaxBlockSize {
		return nil, fmt.Errorf("%w: %d bytes requested (tag 0x%x)", ErrOutOfMemory, size, tag)
	}
	h.allocs.Add(1)
	return make([]byte, size, max(size, 1)), nil
}

func (h *Heap) Free(buf []byte) {
	if cap(buf) > 0 {
		h.frees.Add(1)
	}
}

// Outstanding returns allocations minus frees.
func (h *Heap) Outstanding() int64 {
	return int64(h.allocs.Load()) - int64(h.frees.Load())
}

// ---------------------------------------------------------------------------
// Tracking allocator
// ---------------------------------------------------------------------------

// Tracking wraps another allocator and records every live block. It is used
// by tests to check that each buffer is released exactly once.
type Tracking struct {
	inner Allocator

	mu          sync.Mutex
	live        map[uintptr]uint32
	Allocs      int
	Frees       int
	DoubleFrees int
}

// NewTracking wraps inner (a Heap when nil).
func NewTracking(inner Allocator) *Tracking {
	if inner == nil {
		inner = NewHeap()
	}
	return &Tracking{inner: inner, live: make(map[uintptr]uint32)}
}

func (t *Tracking) Alloc(size int, tag uint32) ([]byte, error) {
	buf, err := t.inner.Alloc(size, tag)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.live[blockKey(buf)] = tag
	t.Allocs++
	t.mu.Unlock()
	return buf, nil
}

func (t *Tracking) Free(buf []byte) {
	key := blockKey(buf)
	t.mu.Lock()
	if _, ok := t.live[key]; !ok {
		t.DoubleFrees++
		t.mu.Unlock()
		return
	}
	delete(t.live, key)
	t.Frees++
	t.mu.Unlock()
	t.inner.Free(buf)
}

// Live returns the number of outstanding blocks.
func (t *Tracking) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

// LiveByTag counts outstanding blocks per allocation tag.
func (t *Tracking) LiveByTag() map[uint32]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[uint32]int)
	for _, tag := range t.live {
		out[tag]++
	}
	return out
}

// Package alloc provides the byte allocators that back heap-allocated value
// cells (string buffers, blobs).
//
// The runtime uses one process-wide allocator, selected with Use. The default
// is a Go-heap allocator; embedded-style hosts configure an Arena so that
// memory exhaustion becomes a visible flow error instead of unbounded growth.
package alloc

import (
	"errors"
	"sync"
	"unsafe"
)

// ErrOutOfMemory is returned when an allocation cannot be satisfied.
var ErrOutOfMemory = errors.New("alloc: out of memory")

// MaxBlockSize is the largest single allocation any allocator grants.
const MaxBlockSize = 1 << 28

// Allocator hands out byte buffers. Free must be called with a slice returned
// by Alloc (any reslice that keeps the first byte is accepted).
type Allocator interface {
	Alloc(size int, tag uint32) ([]byte, error)
	Free(buf []byte)
}

var (
	currentMu sync.RWMutex
	current   Allocator = NewHeap()
)

// Current returns the process-wide allocator.
func Current() Allocator {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}

// Use installs a as the process-wide allocator and returns a function that
// restores the previous one.
func Use(a Allocator) (restore func()) {
	currentMu.Lock()
	prev := current
	current = a
	currentMu.Unlock()
	return func() {
		currentMu.Lock()
		current = prev
		currentMu.Unlock()
	}
}

// blockKey identifies a buffer by the address of its first byte.
func blockKey(buf []byte) uintptr {
	if cap(buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
}

package alloc

import (
	"fmt"
	"sync"
	"unsafe"
)

const arenaAlign = 8

// span is a contiguous region of the arena.
type span struct {
	off  int
	size int
}

type usedBlock struct {
	size int
	tag  uint32
}

// Arena is a first-fit free-list allocator over a fixed byte arena. Freed
// blocks are coalesced with their free neighbours. A single mutex guards the
// free list so allocation from another goroutine cannot corrupt it.
type Arena struct {
	mu    sync.Mutex
	mem   []byte
	free  []span // sorted by offset
	used  map[int]usedBlock
	stats ArenaStats
}

// ArenaStats describes the current arena occupancy.
type ArenaStats struct {
	Size         int
	Used         int
	Free         int
	LargestFree  int
	Blocks       int
	Allocations  uint64
	Failures     uint64
	InvalidFrees uint64
}

// NewArena creates an arena of the given size in bytes.
func NewArena(size int) *Arena {
	if size < arenaAlign {
		size = arenaAlign
	}
	size = alignUp(size)
	return &Arena{
		mem:  make([]byte, size),
		free: []span{{off: 0, size: size}},
		used: make(map[int]usedBlock),
	}
}

func alignUp(n int) int {
	return (n + arenaAlign - 1) &^ (arenaAlign - 1)
}

// Alloc returns a zeroed buffer of len size. The tag is kept alongside the
// block for diagnostics.
func (a *Arena) Alloc(size int, tag uint32) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("alloc: negative size %d", size)
	}
	if size > len(a.mem) {
		a.mu.Lock()
		a.stats.Failures++
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: %d bytes requested (tag 0x%x)", ErrOutOfMemory, size, tag)
	}
	need := alignUp(size)
	if need == 0 {
		need = arenaAlign
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for i, s := range a.free {
		if s.size < need {
			continue
		}
		off := s.off
		if rest := s.size - need; rest >= arenaAlign {
			a.free[i] = span{off: off + need, size: rest}
		} else {
			need = s.size
			a.free = append(a.free[:i], a.free[i+1:]...)
		}
		a.used[off] = usedBlock{size: need, tag: tag}
		a.stats.Allocations++
		buf := a.mem[off : off+size : off+need]
		clear(buf)
		return buf, nil
	}

	a.stats.Failures++
	return nil, fmt.Errorf("%w: %d bytes requested (tag 0x%x)", ErrOutOfMemory, size, tag)
}

// Free returns a buffer to the arena. Buffers that did not come from this
// arena, or were already freed, are counted and ignored.
func (a *Arena) Free(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	base := uintptr(unsafe.Pointer(&a.mem[0]))
	p := blockKey(buf)
	if p < base || p >= base+uintptr(len(a.mem)) {
		a.stats.InvalidFrees++
		return
	}
	off := int(p - base)
	blk, ok := a.used[off]
	if !ok {
		a.stats.InvalidFrees++
		return
	}
	delete(a.used, off)
	a.insertFree(span{off: off, size: blk.size})
}

// insertFree adds s to the sorted free list, merging adjacent spans.
func (a *Arena) insertFree(s span) {
	i := 0
	for i < len(a.free) && a.free[i].off < s.off {
		i++
	}
	a.free = append(a.free, span{})
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = s

	// merge with next
	if i+1 < len(a.free) && a.free[i].off+a.free[i].size == a.free[i+1].off {
		a.free[i].size += a.free[i+1].size
		a.free = append(a.free[:i+1], a.free[i+2:]...)
	}
	// merge with previous
	if i > 0 && a.free[i-1].off+a.free[i-1].size == a.free[i].off {
		a.free[i-1].size += a.free[i].size
		a.free = append(a.free[:i], a.free[i+1:]...)
	}
}

// Stats reports the arena occupancy.
func (a *Arena) Stats() ArenaStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := a.stats
	st.Size = len(a.mem)
	st.Blocks = len(a.used)
	for _, s := range a.free {
		st.Free += s.size
		if s.size > st.LargestFree {
			st.LargestFree = s.size
		}
	}
	st.Used = st.Size - st.Free
	return st
}

// FreeSpans returns the number of disjoint free regions, which is 1 for a
// fully coalesced empty arena.
func (a *Arena) FreeSpans() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.free)
}

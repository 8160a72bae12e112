package alloc

import (
	"errors"
	"testing"
)

func TestArenaAllocFree(t *testing.T) {
	a := NewArena(256)

	buf, err := a.Alloc(10, 0x1)
	if err != nil {
		t.Fatalf("Alloc(10) error: %v", err)
	}
	if len(buf) != 10 {
		t.Errorf("len(buf) = %d, want 10", len(buf))
	}
	st := a.Stats()
	if st.Used != 16 {
		t.Errorf("Used = %d, want 16 (aligned)", st.Used)
	}
	if st.Blocks != 1 {
		t.Errorf("Blocks = %d, want 1", st.Blocks)
	}

	a.Free(buf)
	st = a.Stats()
	if st.Used != 0 || st.Blocks != 0 {
		t.Errorf("after Free: Used = %d, Blocks = %d, want 0, 0", st.Used, st.Blocks)
	}
}

func TestArenaCoalescing(t *testing.T) {
	a := NewArena(64)

	b1, _ := a.Alloc(16, 1)
	b2, _ := a.Alloc(16, 2)
	b3, _ := a.Alloc(16, 3)

	// Free the middle block first, then its neighbours.
	a.Free(b2)
	if n := a.FreeSpans(); n != 2 {
		t.Errorf("FreeSpans after middle free = %d, want 2", n)
	}
	a.Free(b1)
	if n := a.FreeSpans(); n != 2 {
		t.Errorf("FreeSpans after first free = %d, want 2", n)
	}
	a.Free(b3)
	if n := a.FreeSpans(); n != 1 {
		t.Errorf("FreeSpans after all freed = %d, want 1", n)
	}

	// Whole arena must be usable as one block again.
	big, err := a.Alloc(64, 4)
	if err != nil {
		t.Fatalf("Alloc(64) after coalescing: %v", err)
	}
	if len(big) != 64 {
		t.Errorf("len = %d, want 64", len(big))
	}
}

func TestArenaFirstFitReuse(t *testing.T) {
	a := NewArena(128)
	b1, _ := a.Alloc(32, 1)
	_, _ = a.Alloc(32, 2)
	a.Free(b1)

	b3, err := a.Alloc(8, 3)
	if err != nil {
		t.Fatal(err)
	}
	if blockKey(b3) != blockKey(b1) {
		t.Error("first-fit should reuse the first free block")
	}
}

func TestArenaOutOfMemory(t *testing.T) {
	a := NewArena(32)
	if _, err := a.Alloc(24, 1); err != nil {
		t.Fatal(err)
	}
	_, err := a.Alloc(16, 2)
	if !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("err = %v, want ErrOutOfMemory", err)
	}
	if st := a.Stats(); st.Failures != 1 {
		t.Errorf("Failures = %d, want 1", st.Failures)
	}
}

func TestArenaInvalidFree(t *testing.T) {
	a := NewArena(32)
	buf, _ := a.Alloc(8, 1)
	a.Free(buf)
	a.Free(buf)
	a.Free(make([]byte, 4))
	if st := a.Stats(); st.InvalidFrees != 2 {
		t.Errorf("InvalidFrees = %d, want 2", st.InvalidFrees)
	}
}

func TestArenaZeroesReusedMemory(t *testing.T) {
	a := NewArena(32)
	buf, _ := a.Alloc(8, 1)
	copy(buf, "abcdefgh")
	a.Free(buf)
	buf, _ = a.Alloc(8, 1)
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("buf[%d] = %d, want 0", i, b)
		}
	}
}

// ---------------------------------------------------------------------------
// Tracking
// ---------------------------------------------------------------------------

func TestTrackingDetectsDoubleFree(t *testing.T) {
	tr := NewTracking(nil)
	buf, _ := tr.Alloc(5, 7)
	if tr.Live() != 1 {
		t.Errorf("Live = %d, want 1", tr.Live())
	}
	if got := tr.LiveByTag()[7]; got != 1 {
		t.Errorf("LiveByTag[7] = %d, want 1", got)
	}
	tr.Free(buf)
	tr.Free(buf)
	if tr.Frees != 1 || tr.DoubleFrees != 1 {
		t.Errorf("Frees = %d, DoubleFrees = %d, want 1, 1", tr.Frees, tr.DoubleFrees)
	}
}

func TestUseRestores(t *testing.T) {
	prev := Current()
	tr := NewTracking(nil)
	restore := Use(tr)
	if Current() != Allocator(tr) {
		t.Error("Use did not install allocator")
	}
	restore()
	if Current() != prev {
		t.Error("restore did not reinstall previous allocator")
	}
}

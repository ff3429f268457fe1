package gpumem

import "testing"

func TestRectAllocatorShelfPacking(t *testing.T) {
	a := NewRectAllocator(100, 100, 0)

	r1 := a.Allocate(40, 20)
	if !r1.IsValid() || r1.X != 0 || r1.Y != 0 {
		t.Fatalf("unexpected first region: %+v", r1)
	}

	r2 := a.Allocate(40, 20)
	if !r2.IsValid() || r2.X != 40 || r2.Y != 0 {
		t.Fatalf("expected second region on same shelf: %+v", r2)
	}

	// Doesn't fit remaining width on shelf 1 (100-80=20 < 40) -> new shelf.
	r3 := a.Allocate(40, 20)
	if !r3.IsValid() || r3.Y != 20 {
		t.Fatalf("expected new shelf: %+v", r3)
	}
}

func TestRectAllocatorFull(t *testing.T) {
	a := NewRectAllocator(10, 10, 0)
	r := a.Allocate(20, 20)
	if r.IsValid() {
		t.Fatalf("expected allocation to fail when oversized")
	}
}

func TestPatternPagerGrowsPages(t *testing.T) {
	p := NewPatternPager(64, 64, 0)

	idx1, r1, err := p.Allocate(64, 64)
	if err != nil || idx1 != 0 || !r1.IsValid() {
		t.Fatalf("first alloc failed: %v %v", idx1, err)
	}

	idx2, r2, err := p.Allocate(64, 64)
	if err != nil {
		t.Fatal(err)
	}
	if idx2 != 1 || !r2.IsValid() {
		t.Fatalf("expected pager to grow to a second page, got idx=%d", idx2)
	}
	if p.PageCount() != 2 {
		t.Fatalf("PageCount() = %d, want 2", p.PageCount())
	}
}

func TestPatternPagerFreshBit(t *testing.T) {
	p := NewPatternPager(64, 64, 0)
	p.Allocate(10, 10)
	if !p.Page(0).Fresh {
		t.Fatal("new page should start fresh")
	}
	p.BeginFrame()
	if p.Page(0).Fresh {
		t.Fatal("BeginFrame should clear the fresh bit")
	}
}

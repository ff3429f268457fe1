package gpumem

import (
	"errors"
	"sync"
)

// Atlas errors.
var (
	ErrAtlasFull   = errors.New("gpumem: atlas region does not fit")
	ErrBadSize     = errors.New("gpumem: non-positive rectangle size")
)

// Region is a sub-rectangle of an atlas page.
type Region struct {
	X, Y, Width, Height int
}

// IsValid reports whether the region has positive area.
func (r Region) IsValid() bool { return r.Width > 0 && r.Height > 0 }

type shelf struct {
	y, height, nextX int
}

// RectAllocator is a shelf-packing allocator for a single fixed-size page,
// adapted from the teacher's internal/gpu atlas packer (same shelf
// algorithm: place on the first shelf with room, else start a new shelf
// below the last one).
type RectAllocator struct {
	mu      sync.Mutex
	width   int
	height  int
	padding int
	shelves []*shelf

	allocCount int
	usedArea   int
}

// NewRectAllocator creates an allocator for a width x height page.
func NewRectAllocator(width, height, padding int) *RectAllocator {
	if padding < 0 {
		padding = 0
	}
	return &RectAllocator{width: width, height: height, padding: padding}
}

// Allocate finds space for a width x height rectangle, returning an invalid
// Region if it does not fit anywhere in the page.
func (a *RectAllocator) Allocate(width, height int) Region {
	if width <= 0 || height <= 0 {
		return Region{}
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	paddedW := width + a.padding
	paddedH := height + a.padding
	if paddedW > a.width || paddedH > a.height {
		return Region{}
	}

	for _, s := range a.shelves {
		if s.nextX+paddedW <= a.width && (paddedH <= s.height || s.nextX == 0) {
			region := Region{X: s.nextX, Y: s.y, Width: width, Height: height}
			s.nextX += paddedW
			if paddedH > s.height {
				s.height = paddedH
			}
			a.allocCount++
			a.usedArea += width * height
			return region
		}
	}

	newY := 0
	if n := len(a.shelves); n > 0 {
		last := a.shelves[n-1]
		newY = last.y + last.height
	}
	if newY+paddedH > a.height {
		return Region{}
	}
	a.shelves = append(a.shelves, &shelf{y: newY, height: paddedH, nextX: paddedW})
	a.allocCount++
	a.usedArea += width * height
	return Region{X: 0, Y: newY, Width: width, Height: height}
}

// Reset clears all allocations on the page.
func (a *RectAllocator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shelves = a.shelves[:0]
	a.allocCount = 0
	a.usedArea = 0
}

// Utilization returns the used-area fraction of the page.
func (a *RectAllocator) Utilization() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := a.width * a.height
	if total == 0 {
		return 0
	}
	return float64(a.usedArea) / float64(total)
}

// PatternPage is one atlas page plus the "fresh this frame" bit the
// renderer uses to decide whether a page needs clearing before its first
// use, per spec.md §4.2.
type PatternPage struct {
	Allocator *RectAllocator
	Fresh     bool // true until the page is drawn into in the current frame
}

// PatternPager hands out rectangular regions across one or more fixed-size
// atlas pages, growing the page count as needed. Grounded on spec.md §4.2's
// "separate sub-allocator" requirement and the teacher's TextureAtlas
// (multi-page shelf packer with per-page freshness tracking).
type PatternPager struct {
	pageW, pageH, padding int
	pages                 []*PatternPage
}

// NewPatternPager creates a pager whose pages are pageW x pageH.
func NewPatternPager(pageW, pageH, padding int) *PatternPager {
	return &PatternPager{pageW: pageW, pageH: pageH, padding: padding}
}

// Allocate finds room for a width x height rectangle, creating a new page
// if none of the existing ones have room. Returns the page index and the
// region within that page.
func (p *PatternPager) Allocate(width, height int) (pageIndex int, region Region, err error) {
	for i, page := range p.pages {
		if r := page.Allocator.Allocate(width, height); r.IsValid() {
			return i, r, nil
		}
	}
	if width > p.pageW || height > p.pageH {
		return 0, Region{}, ErrAtlasFull
	}
	page := &PatternPage{Allocator: NewRectAllocator(p.pageW, p.pageH, p.padding), Fresh: true}
	p.pages = append(p.pages, page)
	r := page.Allocator.Allocate(width, height)
	if !r.IsValid() {
		return 0, Region{}, ErrAtlasFull
	}
	return len(p.pages) - 1, r, nil
}

// PageCount returns the number of pages currently allocated.
func (p *PatternPager) PageCount() int { return len(p.pages) }

// Page returns the page at index i.
func (p *PatternPager) Page(i int) *PatternPage { return p.pages[i] }

// BeginFrame clears every page's "fresh" bit to false; a page only stays
// fresh until the renderer has had a chance to draw into it once.
func (p *PatternPager) BeginFrame() {
	for _, page := range p.pages {
		page.Fresh = false
	}
}

package paint

import (
	"bytes"
	"errors"

	"github.com/gogpu/gg/geom"
	"github.com/gogpu/gg/gpumem"
	"github.com/gogpu/gg/tiledata"
)

// Palette errors.
var (
	ErrGradientAtlasFull = errors.New("paint: gradient atlas is full")
	ErrImageAtlasFull    = errors.New("paint: image/pattern atlas is full")
)

// RenderTargetDesc describes a render target the palette must track so
// patterns can reference it as a paint source.
type RenderTargetDesc struct {
	Width, Height int
	Label         string
}

// TextureLocation names where a paint's sampled content lives: a page index
// plus a pixel-space rectangle within that page's atlas.
type TextureLocation struct {
	Page   uint32
	Region gpumem.Region
}

// PaintMetadata is the per-frame derived data the palette produces for one
// paint: texture location, transform, sampling, filter, base color, blend,
// and whether the paint is fully opaque (lets tile compositing skip
// blending).
type PaintMetadata struct {
	ColorTexLocation TextureLocation
	HasColorTexture  bool
	RawTextureID     uint64 // non-zero for raw-texture patterns; no page info
	Sampling         SamplingFlags
	Transform        geom.Affine
	BaseColor        Color
	FilterKind       FilterKind
	FilterParams     [20]float32 // flattened 5-texel x 4-component filter block
	CompositeOp      CompositeOp
	Combine          ColorCombineMode
	Opaque           bool
}

// Palette owns the paint list, the solid-paint interning cache, and the
// render-target description list; it produces per-frame PaintMetadata and
// the packed metadata texture.
//
// Grounded on original_source/pathfinder's core/paint/palette.cpp (paint
// list + cache + gradient/image atlas ownership) and the teacher's
// scene/cache.go LRU-by-hash pattern for the image cache.
type Palette struct {
	paints        []Paint
	solidIndex    map[Color]uint32 // interning cache: solid paints only (spec open question 2)
	renderTargets []RenderTargetDesc
	pageEdge      int

	gradientAtlas *gpumem.RectAllocator // 256x256 tile texture, one gradient per row
	gradientRows  map[uint32]int        // paint index -> row

	imagePager *gpumem.PatternPager
	imageCache map[uint64]imageCacheEntry // content hash -> cached location
	usedThisFrame map[uint64]bool
}

type imageCacheEntry struct {
	loc   TextureLocation
	bytes []byte // retained to disambiguate hash collisions
}

// NewPalette creates an empty palette. gradientTileLength and
// imagePageSize follow spec.md's GRADIENT_TILE_LENGTH=256 constant and a
// caller-chosen atlas page size for images/patterns/render-targets.
func NewPalette(imagePageSize int) *Palette {
	return &Palette{
		pageEdge:      imagePageSize,
		solidIndex:    make(map[Color]uint32),
		gradientAtlas: gpumem.NewRectAllocator(tiledata.GradientTileLength, tiledata.GradientTileLength, 0),
		gradientRows:  make(map[uint32]int),
		imagePager:    gpumem.NewPatternPager(imagePageSize, imagePageSize, 1),
		imageCache:    make(map[uint64]imageCacheEntry),
		usedThisFrame: make(map[uint64]bool),
	}
}

// PushPaint interns solid-color paints (equality on BaseColor) and appends
// all others, per spec.md §4.3.
func (p *Palette) PushPaint(paint Paint) uint32 {
	if paint.IsSolid() {
		if idx, ok := p.solidIndex[paint.BaseColor]; ok {
			return idx
		}
		idx := uint32(len(p.paints))
		p.paints = append(p.paints, paint)
		p.solidIndex[paint.BaseColor] = idx
		return idx
	}
	idx := uint32(len(p.paints))
	p.paints = append(p.paints, paint)
	return idx
}

// PushRenderTarget registers a render target description and returns its
// unique-per-palette id.
func (p *Palette) PushRenderTarget(desc RenderTargetDesc) uint32 {
	id := uint32(len(p.renderTargets))
	p.renderTargets = append(p.renderTargets, desc)
	return id
}

// Paints returns the interned paint list.
func (p *Palette) Paints() []Paint { return p.paints }

// imagePageEdge reports the pattern atlas's square page edge in pixels.
func (p *Palette) imagePageEdge() int {
	if p.pageEdge <= 0 {
		return 1
	}
	return p.pageEdge
}

// PageCount reports how many pattern atlas pages are live, so the renderer
// can size its per-page texture list.
func (p *Palette) PageCount() int { return p.imagePager.PageCount() }

// PageEdge reports the square pattern page size the palette packs into.
func (p *Palette) PageEdge() int { return p.imagePageEdge() }

// PagerPage exposes a pattern page's freshness state to the renderer's
// clear-on-first-use decision.
func (p *Palette) PagerPage(i int) *gpumem.PatternPage { return p.imagePager.Page(i) }

// RenderTargets returns the registered render-target descriptions, in
// push order, for callers (such as Scene.AppendScene) that need to remap
// render-target ids across a merge.
func (p *Palette) RenderTargets() []RenderTargetDesc { return p.renderTargets }

// AllocateGradientRow assigns paint a row in the 256x256 gradient tile
// texture if it doesn't already have one. Each gradient gets its own row
// even if two gradients are identical (spec.md §9 open question 2: only
// solid paints intern).
func (p *Palette) AllocateGradientRow(paintIndex uint32) (row int, err error) {
	if row, ok := p.gradientRows[paintIndex]; ok {
		return row, nil
	}
	region := p.gradientAtlas.Allocate(tiledata.GradientTileLength, 1)
	if !region.IsValid() {
		return 0, ErrGradientAtlasFull
	}
	p.gradientRows[paintIndex] = region.Y
	return region.Y, nil
}

// SampleGradientRamp resamples an arbitrary-length, offset-sorted stop list
// into GradientTileLength evenly spaced texels using linear interpolation
// between bracketing stops.
func SampleGradientRamp(stops []ColorStop) [tiledata.GradientTileLength]Color {
	var out [tiledata.GradientTileLength]Color
	if len(stops) == 0 {
		return out
	}
	if len(stops) == 1 {
		for i := range out {
			out[i] = stops[0].Color
		}
		return out
	}
	for i := 0; i < tiledata.GradientTileLength; i++ {
		t := float32(i) / float32(tiledata.GradientTileLength-1)
		out[i] = sampleStops(stops, t)
	}
	return out
}

func sampleStops(stops []ColorStop, t float32) Color {
	if t <= stops[0].Offset {
		return stops[0].Color
	}
	last := stops[len(stops)-1]
	if t >= last.Offset {
		return last.Color
	}
	for i := 1; i < len(stops); i++ {
		if t <= stops[i].Offset {
			prev := stops[i-1]
			span := stops[i].Offset - prev.Offset
			localT := float32(0)
			if span > 0 {
				localT = (t - prev.Offset) / span
			}
			return lerpColor(prev.Color, stops[i].Color, localT)
		}
	}
	return last.Color
}

func lerpColor(a, b Color, t float32) Color {
	return Color{
		R: a.R + (b.R-a.R)*t,
		G: a.G + (b.G-a.G)*t,
		B: a.B + (b.B-a.B)*t,
		A: a.A + (b.A-a.A)*t,
	}
}

// fnvHash64 computes a non-cryptographic 64-bit FNV-1a hash, per spec.md
// §4.3's "non-cryptographic 64-bit FNV-like hash" requirement for the image
// cache key.
func fnvHash64(data []byte) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for _, b := range data {
		h ^= uint64(b)
		h *= prime64
	}
	return h
}

// InternImage caches an image by content hash, returning its atlas location.
// A hash collision is resolved by comparing the cached bytes before reuse
// (original_source/pathfinder's palette.cpp guards the same way), so two
// distinct images that happen to collide never alias one atlas slot.
//
// border reports whether a 1px border is added on an axis, per spec.md
// §4.3: "a one-pixel border iff the pattern does not repeat on that axis,
// to prevent filter bleed."
func (p *Palette) InternImage(img *ImageBuffer, repeatX, repeatY bool) (TextureLocation, error) {
	h := fnvHash64(img.RGBA8)
	p.usedThisFrame[h] = true
	if entry, ok := p.imageCache[h]; ok && bytes.Equal(entry.bytes, img.RGBA8) {
		return entry.loc, nil
	}

	borderX, borderY := 0, 0
	if !repeatX {
		borderX = 1
	}
	if !repeatY {
		borderY = 1
	}
	w := img.Width + 2*borderX
	h2 := img.Height + 2*borderY

	pageIdx, region, err := p.imagePager.Allocate(w, h2)
	if err != nil {
		return TextureLocation{}, ErrImageAtlasFull
	}
	loc := TextureLocation{Page: uint32(pageIdx), Region: region}
	p.imageCache[h] = imageCacheEntry{loc: loc, bytes: img.RGBA8}
	return loc, nil
}

// EndFrame frees cached images that were not referenced this frame, per
// spec.md §4.3: "Cached images are keyed by ... and freed at frame end if
// unused this frame."
func (p *Palette) EndFrame() {
	for h := range p.imageCache {
		if !p.usedThisFrame[h] {
			delete(p.imageCache, h)
		}
	}
	p.usedThisFrame = make(map[uint64]bool)
	p.imagePager.BeginFrame()
}

// Package paint models how a filled or stroked region is colored: solid,
// gradient, or pattern (image / render-target / raw-texture), plus the
// Palette that interns paints and packs them into the metadata texture the
// tile shaders read.
//
// Grounded on the teacher's gradient.go (ExtendMode / ColorStop naming,
// offset-sorted stop lists) and pattern.go (pattern-as-small-value-type),
// generalized to the paint/overlay/composite-op model in spec.md §3, and
// on original_source/pathfinder's core/paint/gradient.h and pattern.h for
// the exact geometry fields.
package paint

import "github.com/gogpu/gg/geom"

// Color is a straight (non-premultiplied) RGBA color, channels in [0,1].
type Color struct {
	R, G, B, A float32
}

// Wrap selects how a gradient samples beyond its defined [0,1] range.
type Wrap uint8

const (
	WrapClamp Wrap = iota
	WrapRepeat
)

// ColorStop is a single color at a position in a gradient's ramp.
type ColorStop struct {
	Offset float32 // 0..1
	Color  Color
}

// GradientGeometryKind tags which geometry a Gradient uses.
type GradientGeometryKind uint8

const (
	GeometryLinear GradientGeometryKind = iota
	GeometryRadial
)

// Line is a 2D line segment, used as the gradient axis.
type Line struct {
	From, To geom.Vec2
}

// GradientGeometry is a tagged union: Linear{Line} | Radial{Line, radii, transform}.
type GradientGeometry struct {
	Kind      GradientGeometryKind
	Line      Line
	Radii     geom.Vec2 // (r0, r1) for radial
	Transform geom.Affine
}

// Gradient is a linear or radial color ramp.
type Gradient struct {
	Geometry GradientGeometry
	Wrap     Wrap
	// Stops must be kept sorted by Offset; use SortedStops to normalize an
	// unsorted slice before constructing a Gradient.
	Stops []ColorStop
}

// SortedStops returns a copy of stops sorted ascending by Offset.
func SortedStops(stops []ColorStop) []ColorStop {
	out := make([]ColorStop, len(stops))
	copy(out, stops)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Offset < out[j-1].Offset; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// PatternSourceKind tags which backing store a Pattern samples.
type PatternSourceKind uint8

const (
	SourceImage PatternSourceKind = iota
	SourceRenderTarget
	SourceRawTexture
)

// PatternSource is a tagged union of the three things a Pattern can sample.
type PatternSource struct {
	Kind PatternSourceKind

	// Image is valid for SourceImage: raw RGBA8 pixels, decoding is the
	// embedder's job (spec.md scope excludes image decoding).
	Image *ImageBuffer

	// RenderTargetID is valid for SourceRenderTarget.
	RenderTargetID uint32

	// RawTextureID is valid for SourceRawTexture (an externally supplied
	// GPU texture handle the palette does not own).
	RawTextureID uint64
}

// ImageBuffer is the only image representation the core accepts: a decoded
// size + RGBA8 byte buffer, per spec.md §1's scope boundary.
type ImageBuffer struct {
	Width, Height int
	RGBA8         []byte
}

// PatternFlags are per-axis repeat and filtering hints.
type PatternFlags struct {
	RepeatX, RepeatY bool
	NoSmoothing      bool
}

// Filter is an optional sampling filter (e.g. Gaussian blur) stacked on a
// gradient or pattern.
type FilterKind uint8

const (
	FilterNone           FilterKind = 0
	FilterRadialGradient FilterKind = 1
	// value 2 is reserved (unused by this core; original_source's palette
	// also reserves a color-matrix filter kind here that spec.md does not
	// carry forward).
	FilterBlur FilterKind = 3
)

// BlurFilter holds the parameters the metadata row packs for a blur, per
// spec.md §4.3's filter-encoding table.
type BlurFilter struct {
	SrcOffset      geom.Vec2
	Support        float32
	GaussCoeff     float32 // σ^-1 * (2π)^-1/2
	GaussCoeffExp1 float32 // e^{-1/(2σ^2)}
	GaussCoeffExp2 float32 // e^{-1/σ^2}
}

// Pattern is an image, render-target, or raw-texture fill source.
type Pattern struct {
	Source    PatternSource
	Transform geom.Affine
	Flags     PatternFlags
}

// CompositeOp selects how an overlay composites onto the base color.
type CompositeOp uint8

const (
	CompositeSrcOver CompositeOp = iota
	CompositeSrcIn
	CompositeDstOver
	CompositeMultiply
)

// ColorCombineMode selects how base_color and the overlay's sampled color
// combine before the composite op is applied.
type ColorCombineMode uint8

const (
	CombineSrcIn ColorCombineMode = iota
	CombineReplace
)

// OverlayContentsKind tags whether an Overlay wraps a Gradient or Pattern.
type OverlayContentsKind uint8

const (
	ContentsGradient OverlayContentsKind = iota
	ContentsPattern
)

// Overlay wraps a Gradient or Pattern with its composite behavior.
type Overlay struct {
	Kind        OverlayContentsKind
	Gradient    *Gradient
	Pattern     *Pattern
	CompositeOp CompositeOp
	Combine     ColorCombineMode
	Filter      FilterKind
	Blur        BlurFilter
}

// Paint is {base_color, overlay?} as in spec.md §3.
type Paint struct {
	BaseColor Color
	Overlay   *Overlay
}

// IsSolid reports whether the paint is a plain solid color with no overlay,
// the only case the palette interns (spec.md §9 open question 2).
func (p Paint) IsSolid() bool { return p.Overlay == nil }

// Equal reports whether two solid-color paints have the same base color.
// Only meaningful (and only called) for solid paints, per spec.md §4.3.
func (p Paint) Equal(o Paint) bool {
	return p.BaseColor == o.BaseColor
}

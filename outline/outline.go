// Package outline models a path's fill geometry as a sequence of contours
// built from line, quadratic, and cubic segments, plus the flattening step
// that reduces curves to line segments for the tiler.
//
// The Segment tagged-variant shape follows the teacher's own path.go /
// internal/path's PathElement interface (MoveTo/LineTo/QuadTo/CubicTo),
// collapsed into a single struct-with-kind the way
// original_source/pathfinder's core/outline.h and core/segment.h represent
// a path: an Outline owns Contours, a Contour owns Segments, and each
// Segment knows its own kind instead of living behind an interface.
package outline

import "github.com/gogpu/gg/geom"

// SegmentKind tags which curve degree a Segment represents.
type SegmentKind uint8

const (
	SegmentNone SegmentKind = iota
	SegmentLine
	SegmentQuad
	SegmentCubic
)

// SegmentFlags marks a segment's position within its contour.
type SegmentFlags uint8

const (
	FirstInContour SegmentFlags = 1 << iota
	LastInContour
)

// Segment is one piece of a contour: a baseline (from, to) plus up to two
// control points, tagged by kind. Quad segments use Ctrl.From only; line
// segments use neither.
type Segment struct {
	Baseline Line
	Ctrl     Line
	Kind     SegmentKind
	Flags    SegmentFlags
}

// Line is a pair of points, reused for both a segment's baseline and its
// control-point chord.
type Line struct {
	From, To geom.Vec2
}

// IsLine, IsQuad, IsCubic report a segment's kind.
func (s Segment) IsLine() bool  { return s.Kind == SegmentLine }
func (s Segment) IsQuad() bool  { return s.Kind == SegmentQuad }
func (s Segment) IsCubic() bool { return s.Kind == SegmentCubic }

// AsCubic returns the segment's four on/off-curve points as a cubic,
// degree-elevating lines and quadratics so every segment can be treated
// uniformly by code that only wants to deal with one curve kind.
func (s Segment) AsCubic() (p0, p1, p2, p3 geom.Vec2) {
	switch s.Kind {
	case SegmentLine:
		return s.Baseline.From, s.Baseline.From, s.Baseline.To, s.Baseline.To
	case SegmentQuad:
		p0 = s.Baseline.From
		p3 = s.Baseline.To
		c := s.Ctrl.From
		p1 = p0.Lerp(c, 2.0/3.0)
		p2 = p3.Lerp(c, 2.0/3.0)
		return p0, p1, p2, p3
	case SegmentCubic:
		return s.Baseline.From, s.Ctrl.From, s.Ctrl.To, s.Baseline.To
	default:
		return geom.Vec2{}, geom.Vec2{}, geom.Vec2{}, geom.Vec2{}
	}
}

// Contour is an ordered, optionally closed, sequence of segments. The
// adjacent-endpoint invariant holds for any contour this package produces:
// segment i's Baseline.To equals segment i+1's Baseline.From.
type Contour struct {
	Segments []Segment
	Closed   bool
}

// PushLine appends a line segment from the contour's current endpoint.
func (c *Contour) PushLine(to geom.Vec2) {
	from := c.lastPoint()
	c.Segments = append(c.Segments, Segment{
		Baseline: Line{From: from, To: to},
		Kind:     SegmentLine,
	})
}

// PushQuad appends a quadratic segment from the contour's current endpoint.
func (c *Contour) PushQuad(ctrl, to geom.Vec2) {
	from := c.lastPoint()
	c.Segments = append(c.Segments, Segment{
		Baseline: Line{From: from, To: to},
		Ctrl:     Line{From: ctrl},
		Kind:     SegmentQuad,
	})
}

// PushCubic appends a cubic segment from the contour's current endpoint.
func (c *Contour) PushCubic(ctrl0, ctrl1, to geom.Vec2) {
	from := c.lastPoint()
	c.Segments = append(c.Segments, Segment{
		Baseline: Line{From: from, To: to},
		Ctrl:     Line{From: ctrl0, To: ctrl1},
		Kind:     SegmentCubic,
	})
}

func (c *Contour) lastPoint() geom.Vec2 {
	if len(c.Segments) == 0 {
		return geom.Vec2{}
	}
	return c.Segments[len(c.Segments)-1].Baseline.To
}

// unionPoint grows r to include p. geom.Rect.Union treats a degenerate
// (zero-area) rect as empty, so accumulating point-by-point has to update
// the min/max fields directly rather than going through Union.
func unionPoint(r geom.Rect, p geom.Vec2) geom.Rect {
	if p.X < r.MinX {
		r.MinX = p.X
	}
	if p.Y < r.MinY {
		r.MinY = p.Y
	}
	if p.X > r.MaxX {
		r.MaxX = p.X
	}
	if p.Y > r.MaxY {
		r.MaxY = p.Y
	}
	return r
}

// Bounds returns the axis-aligned box enclosing the contour's on- and
// off-curve points (a conservative bound, cheap enough to recompute whole).
func (c *Contour) Bounds() geom.Rect {
	if len(c.Segments) == 0 {
		return geom.Rect{}
	}
	first := c.Segments[0].Baseline.From
	r := geom.Rect{MinX: first.X, MinY: first.Y, MaxX: first.X, MaxY: first.Y}
	for _, s := range c.Segments {
		r = unionPoint(r, s.Baseline.From)
		r = unionPoint(r, s.Baseline.To)
		if s.Kind != SegmentLine {
			r = unionPoint(r, s.Ctrl.From)
		}
		if s.Kind == SegmentCubic {
			r = unionPoint(r, s.Ctrl.To)
		}
	}
	return r
}

// MarkEndpoints sets FirstInContour/LastInContour on the first and last
// segment. Call after the contour is fully built.
func (c *Contour) MarkEndpoints() {
	if len(c.Segments) == 0 {
		return
	}
	c.Segments[0].Flags |= FirstInContour
	c.Segments[len(c.Segments)-1].Flags |= LastInContour
}

// Outline is an ordered sequence of contours plus their combined bounds,
// the unit of geometry a draw path or clip path contributes to a scene.
type Outline struct {
	Contours []Contour
	Bounds   geom.Rect
}

// rectUnion grows a into b, both possibly degenerate (single-point) rects;
// geom.Rect.Union can't be used here since it treats zero-area rects as
// empty and would silently drop a real bounds box.
func rectUnion(a, b geom.Rect) geom.Rect {
	a = unionPoint(a, geom.Vec2{X: b.MinX, Y: b.MinY})
	a = unionPoint(a, geom.Vec2{X: b.MaxX, Y: b.MaxY})
	return a
}

// PushContour appends a contour and folds its bounds into the outline's.
func (o *Outline) PushContour(c Contour) {
	c.MarkEndpoints()
	b := c.Bounds()
	if len(o.Contours) == 0 {
		o.Bounds = b
	} else {
		o.Bounds = rectUnion(o.Bounds, b)
	}
	o.Contours = append(o.Contours, c)
}

// Clone deep-copies o so that Transform on the copy never mutates o's own
// segment storage (Contours/Segments are plain slices and would otherwise
// share a backing array with the original).
func (o Outline) Clone() Outline {
	out := Outline{Contours: make([]Contour, len(o.Contours)), Bounds: o.Bounds}
	for i, c := range o.Contours {
		out.Contours[i] = Contour{Segments: append([]Segment(nil), c.Segments...), Closed: c.Closed}
	}
	return out
}

// Transform applies an affine transform to every point of every segment in
// place, used when a scene bakes a path's local transform into its
// outline before tiling.
func (o *Outline) Transform(t geom.Affine) {
	for ci := range o.Contours {
		segs := o.Contours[ci].Segments
		for si := range segs {
			s := &segs[si]
			s.Baseline.From = t.Apply(s.Baseline.From)
			s.Baseline.To = t.Apply(s.Baseline.To)
			if s.Kind != SegmentLine {
				s.Ctrl.From = t.Apply(s.Ctrl.From)
			}
			if s.Kind == SegmentCubic {
				s.Ctrl.To = t.Apply(s.Ctrl.To)
			}
		}
	}
	if len(o.Contours) > 0 {
		b := o.Contours[0].Bounds()
		for i := 1; i < len(o.Contours); i++ {
			b = rectUnion(b, o.Contours[i].Bounds())
		}
		o.Bounds = b
	}
}

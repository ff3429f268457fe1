package outline

import "github.com/gogpu/gg/geom"

// FlatTolerance is the default flattening tolerance in local path units,
// matching the teacher's stroke expander default (internal/stroke's
// StrokeExpander.tolerance = 0.25) generalized to fill-path flattening.
const FlatTolerance = 0.25

// FlattenContour reduces a contour's segments to a polyline, degree
// elevating quads to cubics (Segment.AsCubic) and recursively subdividing
// cubics until the flatness test from original_source/pathfinder's
// outline.cpp passes: treating p1*3 - p0*2 - p3 and p2*3 - p3*2 - p0 as
// error vectors, a cubic is flat enough once both have squared length no
// greater than 16*tolerance^2.
func FlattenContour(c Contour, tolerance float32) []geom.Vec2 {
	if len(c.Segments) == 0 {
		return nil
	}
	pts := []geom.Vec2{c.Segments[0].Baseline.From}
	tol2 := 16 * tolerance * tolerance
	for _, s := range c.Segments {
		switch s.Kind {
		case SegmentLine:
			pts = append(pts, s.Baseline.To)
		default:
			p0, p1, p2, p3 := s.AsCubic()
			flattenCubic(p0, p1, p2, p3, tol2, &pts)
		}
	}
	return pts
}

func cubicIsFlat(p0, p1, p2, p3 geom.Vec2, tol2 float32) bool {
	e1 := p1.Scale(3).Sub(p0.Scale(2)).Sub(p3)
	e2 := p2.Scale(3).Sub(p3.Scale(2)).Sub(p0)
	return e1.Dot(e1) <= tol2 && e2.Dot(e2) <= tol2
}

func flattenCubic(p0, p1, p2, p3 geom.Vec2, tol2 float32, out *[]geom.Vec2) {
	flattenCubicRec(p0, p1, p2, p3, tol2, maxFlattenDepth, out)
}

// maxFlattenDepth bounds recursion for degenerate/huge control points; a
// well-formed curve flattens out well before this.
const maxFlattenDepth = 32

func flattenCubicRec(p0, p1, p2, p3 geom.Vec2, tol2 float32, depth int, out *[]geom.Vec2) {
	if depth == 0 || cubicIsFlat(p0, p1, p2, p3, tol2) {
		*out = append(*out, p3)
		return
	}

	// de Casteljau split at t=0.5.
	p01 := p0.Lerp(p1, 0.5)
	p12 := p1.Lerp(p2, 0.5)
	p23 := p2.Lerp(p3, 0.5)
	p012 := p01.Lerp(p12, 0.5)
	p123 := p12.Lerp(p23, 0.5)
	mid := p012.Lerp(p123, 0.5)

	flattenCubicRec(p0, p01, p012, mid, tol2, depth-1, out)
	flattenCubicRec(mid, p123, p23, p3, tol2, depth-1, out)
}

// Flatten reduces every contour of an outline to a set of closed polylines,
// one per contour, in the same order.
func Flatten(o Outline, tolerance float32) [][]geom.Vec2 {
	polys := make([][]geom.Vec2, len(o.Contours))
	for i, c := range o.Contours {
		polys[i] = FlattenContour(c, tolerance)
	}
	return polys
}

// Package stroke expands a stroked outline into an equivalent fill outline:
// an offset curve on each side of the original path, joined at corners and
// capped at open ends, the way a GPU fill-only tiler wants stroked input.
//
// Grounded on the teacher's internal/stroke/expander.go (forward/backward
// offset-path construction, the three join kinds, the three cap kinds, and
// the round-join arc-to-cubic approximation), adapted from the teacher's
// own flat PathElement sequence onto this module's outline.Contour/Segment
// model, and cross-checked against original_source/pathfinder's
// core/stroke.h for the cap/join geometry this algorithm family implements.
package stroke

import (
	"math"

	"github.com/gogpu/gg/geom"
	"github.com/gogpu/gg/outline"
)

// Cap selects the shape of an open contour's endpoints.
type Cap int

const (
	CapButt Cap = iota
	CapRound
	CapSquare
)

// Join selects the shape of a stroke's interior corners.
type Join int

const (
	JoinMiter Join = iota
	JoinRound
	JoinBevel
)

// Style holds the parameters of a stroke-to-fill expansion.
type Style struct {
	Width      float32
	Cap        Cap
	Join       Join
	MiterLimit float32
}

// DefaultStyle returns a 1-unit butt-capped miter-joined stroke style.
func DefaultStyle() Style {
	return Style{Width: 1, Cap: CapButt, Join: JoinMiter, MiterLimit: 4}
}

// Expander converts stroked contours into filled contours.
type Expander struct {
	style     Style
	tolerance float32

	forward, backward           outline.Contour
	forwardStart, backwardStart geom.Vec2

	startPt, lastPt     geom.Vec2
	startTan, lastTan   geom.Vec2
	startNorm, lastNorm geom.Vec2
	joinThresh          float32
}

// NewExpander creates an expander for the given style. tolerance bounds the
// curve-flattening and round-join arc approximation error, in the same
// units as Style.Width.
func NewExpander(style Style, tolerance float32) *Expander {
	if tolerance <= 0 {
		tolerance = outline.FlatTolerance
	}
	return &Expander{style: style, tolerance: tolerance}
}

// Expand offsets every contour of o by half the stroke width on each side,
// returning the equivalent fill outline.
func (e *Expander) Expand(o outline.Outline) outline.Outline {
	var result outline.Outline
	for _, c := range o.Contours {
		for _, poly := range e.expandContour(c) {
			result.PushContour(poly)
		}
	}
	return result
}

func (e *Expander) expandContour(c outline.Contour) []outline.Contour {
	e.reset()
	pts := outline.FlattenContour(c, e.tolerance)
	if len(pts) < 2 {
		return nil
	}

	e.startPt = pts[0]
	e.lastPt = pts[0]

	n := len(pts)
	limit := n - 1
	if c.Closed {
		limit = n
	}
	for i := 1; i <= limit; i++ {
		to := pts[i%n]
		if to == e.lastPt {
			continue
		}
		tangent := to.Sub(e.lastPt)
		e.doJoin(tangent)
		e.lastTan = tangent
		e.doLine(tangent, to)
	}

	if len(e.forward.Segments) == 0 {
		return nil
	}
	if c.Closed {
		return e.finishClosed()
	}
	return e.finishOpen()
}

func (e *Expander) reset() {
	e.forward = outline.Contour{}
	e.backward = outline.Contour{}
	e.joinThresh = 2 * e.tolerance / e.style.Width
}

func neg(v geom.Vec2) geom.Vec2 { return v.Scale(-1) }

func normalFor(tangent geom.Vec2, width float32) geom.Vec2 {
	scale := 0.5 * width / tangent.Length()
	return tangent.Perp().Scale(scale)
}

func (e *Expander) doJoin(tan0 geom.Vec2) {
	norm := normalFor(tan0, e.style.Width)
	p0 := e.lastPt

	if len(e.forward.Segments) == 0 && len(e.backward.Segments) == 0 {
		e.startNorm = norm
		e.startTan = tan0
		e.forwardStart = p0.Add(neg(norm))
		e.backwardStart = p0.Add(norm)
		return
	}

	ab := e.lastTan
	cd := tan0
	cross := ab.Cross(cd)
	dot := ab.Dot(cd)
	hypot := float32(math.Hypot(float64(cross), float64(dot)))

	if dot > 0 && absf(cross) < hypot*e.joinThresh {
		e.forward.PushLine(p0.Add(neg(norm)))
		e.backward.PushLine(p0.Add(norm))
		return
	}

	switch e.style.Join {
	case JoinBevel:
		e.forward.PushLine(p0.Add(neg(norm)))
		e.backward.PushLine(p0.Add(norm))
	case JoinMiter:
		e.applyMiterJoin(p0, norm, ab, cd, cross, dot, hypot)
	case JoinRound:
		e.applyRoundJoin(p0, norm, cross, dot)
	}
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func (e *Expander) applyMiterJoin(p0, norm, ab, cd geom.Vec2, cross, dot, hypot float32) {
	limitSq := e.style.MiterLimit * e.style.MiterLimit
	if 2*hypot < (hypot+dot)*limitSq {
		e.computeMiterPoint(p0, norm, ab, cd, cross)
		return
	}
	e.forward.PushLine(p0.Add(neg(norm)))
	e.backward.PushLine(p0.Add(norm))
}

func (e *Expander) computeMiterPoint(p0, norm, ab, cd geom.Vec2, cross float32) {
	lastNorm := normalFor(ab, e.style.Width)

	if cross > 0 {
		fpLast := p0.Add(neg(lastNorm))
		fpThis := p0.Add(neg(norm))
		h := ab.Cross(fpThis.Sub(fpLast)) / cross
		miterPt := fpThis.Add(cd.Scale(-h))
		e.forward.PushLine(miterPt)
		e.backward.PushLine(p0)
	} else if cross < 0 {
		fpLast := p0.Add(lastNorm)
		fpThis := p0.Add(norm)
		h := ab.Cross(fpThis.Sub(fpLast)) / cross
		miterPt := fpThis.Add(cd.Scale(-h))
		e.backward.PushLine(miterPt)
		e.forward.PushLine(p0)
	}
}

func (e *Expander) applyRoundJoin(p0, norm geom.Vec2, cross, dot float32) {
	lastNorm := normalFor(e.lastTan, e.style.Width)
	angle := float32(math.Atan2(float64(cross), float64(dot)))
	if angle > 0 {
		e.backward.PushLine(p0.Add(norm))
		arcInto(&e.forward, p0, neg(lastNorm), angle)
	} else {
		e.forward.PushLine(p0.Add(neg(norm)))
		arcInto(&e.backward, p0, lastNorm, -angle)
	}
}

func (e *Expander) doLine(tangent, p1 geom.Vec2) {
	norm := normalFor(tangent, e.style.Width)
	pushOffsetLine(&e.forward, e.forwardStart, p1.Add(neg(norm)))
	pushOffsetLine(&e.backward, e.backwardStart, p1.Add(norm))
	e.lastPt = p1
	e.lastNorm = norm
}

// pushOffsetLine appends a line to an offset contour, using start as the
// explicit origin for the contour's first segment instead of the
// zero-vector Contour.PushLine falls back to when empty.
func pushOffsetLine(c *outline.Contour, start, to geom.Vec2) {
	if len(c.Segments) == 0 {
		c.Segments = append(c.Segments, outline.Segment{
			Baseline: outline.Line{From: start, To: to},
			Kind:     outline.SegmentLine,
		})
		return
	}
	c.PushLine(to)
}

// arcInto appends a round join/cap of the given (signed, radians) angle as
// a fan of cubic Bezier quarter-arc approximations, per the teacher's
// roundJoin/arcSegment pattern.
func arcInto(out *outline.Contour, center, startNorm geom.Vec2, angle float32) {
	segs := int(math.Ceil(math.Abs(float64(angle)) / (math.Pi / 2)))
	if segs < 1 {
		segs = 1
	}
	step := angle / float32(segs)
	radius := startNorm.Length()
	cur := float32(math.Atan2(float64(startNorm.Y), float64(startNorm.X)))

	for i := 0; i < segs; i++ {
		a0, a1 := cur, cur+step
		da := a1 - a0
		alpha := float32(math.Sin(float64(da))) * (float32(math.Sqrt(float64(4+3*tan2(da)))) - 1) / 3

		cos0, sin0 := float32(math.Cos(float64(a0))), float32(math.Sin(float64(a0)))
		cos1, sin1 := float32(math.Cos(float64(a1))), float32(math.Sin(float64(a1)))

		p1 := geom.Vec2{X: center.X + radius*cos0, Y: center.Y + radius*sin0}
		p2 := geom.Vec2{X: center.X + radius*cos1, Y: center.Y + radius*sin1}
		c1 := geom.Vec2{X: p1.X - alpha*radius*sin0, Y: p1.Y + alpha*radius*cos0}
		c2 := geom.Vec2{X: p2.X + alpha*radius*sin1, Y: p2.Y - alpha*radius*cos1}

		out.PushCubic(c1, c2, p2)
		cur = a1
	}
}

func tan2(a float32) float32 {
	t := float32(math.Tan(float64(a) / 2))
	return t * t
}

// finishOpen closes an open contour's forward/backward offset paths into a
// single ring: forward path, an end cap, the backward path traversed in
// reverse, and a start cap that closes the loop back to the forward path's
// start point.
func (e *Expander) finishOpen() []outline.Contour {
	var out outline.Contour
	appendContour(&out, e.forward)
	appendCap(&out, e.style, e.lastPt, neg(e.lastNorm))
	appendReversed(&out, e.backward)
	appendCap(&out, e.style, e.startPt, e.startNorm)
	out.Closed = true
	return []outline.Contour{out}
}

// finishClosed closes a closed contour's offset paths into two independent
// rings (outer and inner), the way original_source/pathfinder's stroking
// produces an annulus: the fill rule's winding then carves out the hole.
func (e *Expander) finishClosed() []outline.Contour {
	e.doJoin(e.startTan)

	var outer outline.Contour
	appendContour(&outer, e.forward)
	outer.Closed = true

	inner := reverseContour(e.backward)
	inner.Closed = true

	return []outline.Contour{outer, inner}
}

// appendCap appends cap geometry from the contour's current endpoint
// (implicitly center.Add(norm)) to center.Add(norm.Neg()), using butt /
// round / square geometry per style.Cap. All three cap kinds share this
// same end point, matching the teacher's applyCap.
func appendCap(out *outline.Contour, style Style, center, norm geom.Vec2) {
	switch style.Cap {
	case CapButt:
		out.PushLine(center.Add(neg(norm)))
	case CapRound:
		arcInto(out, center, norm, math.Pi)
	case CapSquare:
		out.PushLine(squareCorner(center, norm, 1, 1))
		out.PushLine(squareCorner(center, norm, -1, 1))
		out.PushLine(squareCorner(center, norm, -1, 0))
	}
}

func squareCorner(center, norm geom.Vec2, x, y float32) geom.Vec2 {
	return geom.Vec2{
		X: norm.X*x - norm.Y*y + center.X,
		Y: norm.Y*x + norm.X*y + center.Y,
	}
}

func appendContour(dst *outline.Contour, src outline.Contour) {
	dst.Segments = append(dst.Segments, src.Segments...)
}

// appendReversed appends src to dst in reverse order, assuming dst's
// current endpoint already equals src's last point (set up by a preceding
// cap or join). The walk ends at src's first point.
func appendReversed(dst *outline.Contour, src outline.Contour) {
	for i := len(src.Segments) - 1; i >= 0; i-- {
		s := src.Segments[i]
		switch s.Kind {
		case outline.SegmentLine:
			dst.PushLine(s.Baseline.From)
		case outline.SegmentQuad:
			dst.PushQuad(s.Ctrl.From, s.Baseline.From)
		case outline.SegmentCubic:
			dst.PushCubic(s.Ctrl.To, s.Ctrl.From, s.Baseline.From)
		}
	}
}

// reverseContour builds a new contour that walks src back to front,
// starting explicitly at src's last point instead of relying on
// Contour.PushLine's empty-contour fallback.
func reverseContour(src outline.Contour) outline.Contour {
	var dst outline.Contour
	if len(src.Segments) == 0 {
		return dst
	}
	cur := src.Segments[len(src.Segments)-1].Baseline.To
	for i := len(src.Segments) - 1; i >= 0; i-- {
		s := src.Segments[i]
		to := s.Baseline.From
		switch s.Kind {
		case outline.SegmentLine:
			dst.Segments = append(dst.Segments, outline.Segment{
				Baseline: outline.Line{From: cur, To: to}, Kind: outline.SegmentLine,
			})
		case outline.SegmentQuad:
			dst.Segments = append(dst.Segments, outline.Segment{
				Baseline: outline.Line{From: cur, To: to}, Ctrl: outline.Line{From: s.Ctrl.From}, Kind: outline.SegmentQuad,
			})
		case outline.SegmentCubic:
			dst.Segments = append(dst.Segments, outline.Segment{
				Baseline: outline.Line{From: cur, To: to}, Ctrl: outline.Line{From: s.Ctrl.To, To: s.Ctrl.From}, Kind: outline.SegmentCubic,
			})
		}
		cur = to
	}
	return dst
}

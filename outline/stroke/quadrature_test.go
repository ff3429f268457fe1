package stroke

import (
	"math"
	"testing"

	"github.com/gogpu/gg/geom"
	"github.com/gogpu/gg/outline"
)

// coverageArea rasterizes an outline's nonzero-rule fill area by point
// sampling at sub pixel resolution within its bounds.
func coverageArea(o outline.Outline, sub int) float64 {
	polys := outline.Flatten(o, 0.05)
	for i, p := range polys {
		if len(p) > 1 && p[0] != p[len(p)-1] {
			polys[i] = append(p, p[0])
		}
	}
	b := o.Bounds
	step := float32(1) / float32(sub)

	var area float64
	cell := float64(step) * float64(step)
	for y := b.MinY + step/2; y < b.MaxY; y += step {
		for x := b.MinX + step/2; x < b.MaxX; x += step {
			if windingAt(polys, geom.Vec2{X: x, Y: y}) != 0 {
				area += cell
			}
		}
	}
	return area
}

// windingAt counts signed crossings of a horizontal ray to the right.
func windingAt(polys [][]geom.Vec2, p geom.Vec2) int {
	w := 0
	for _, poly := range polys {
		for i := 1; i < len(poly); i++ {
			a, b := poly[i-1], poly[i]
			if (a.Y <= p.Y) != (b.Y <= p.Y) {
				t := (p.Y - a.Y) / (b.Y - a.Y)
				x := a.X + (b.X-a.X)*t
				if x > p.X {
					if b.Y > a.Y {
						w++
					} else {
						w--
					}
				}
			}
		}
	}
	return w
}

// TestButtStrokeRectangleRoundTrip: a straight segment stroked with butt
// caps and bevel joins expands to a rectangle of length x width.
func TestButtStrokeRectangleRoundTrip(t *testing.T) {
	var c outline.Contour
	c.Segments = append(c.Segments, outline.Segment{
		Baseline: outline.Line{From: geom.Vec2{X: 10, Y: 10}, To: geom.Vec2{X: 50, Y: 10}},
		Kind:     outline.SegmentLine,
	})
	var o outline.Outline
	o.PushContour(c)

	const width = 4
	expanded := NewExpander(Style{Width: width, Cap: CapButt, Join: JoinBevel, MiterLimit: 4}, 0).Expand(o)

	b := expanded.Bounds
	wantBounds := geom.Rect{MinX: 10, MinY: 8, MaxX: 50, MaxY: 12}
	const eps = 0.01
	if math.Abs(float64(b.MinX-wantBounds.MinX)) > eps || math.Abs(float64(b.MinY-wantBounds.MinY)) > eps ||
		math.Abs(float64(b.MaxX-wantBounds.MaxX)) > eps || math.Abs(float64(b.MaxY-wantBounds.MaxY)) > eps {
		t.Fatalf("stroke bounds = %+v, want %+v", b, wantBounds)
	}

	got := coverageArea(expanded, 8)
	want := 40.0 * width
	if math.Abs(got-want)/want > 0.02 {
		t.Fatalf("stroke area = %.2f, want %.2f +- 2%%", got, want)
	}
}

// TestRoundCapQuadrature: round caps on a short stroked segment add a full
// disc of area to the rectangle body, within 2% at 16x supersampling.
func TestRoundCapQuadrature(t *testing.T) {
	var c outline.Contour
	c.Segments = append(c.Segments, outline.Segment{
		Baseline: outline.Line{From: geom.Vec2{X: 20, Y: 20}, To: geom.Vec2{X: 30, Y: 20}},
		Kind:     outline.SegmentLine,
	})
	var o outline.Outline
	o.PushContour(c)

	const width = 6
	const radius = width / 2.0
	expanded := NewExpander(Style{Width: width, Cap: CapRound, Join: JoinRound, MiterLimit: 4}, 0.01).Expand(o)

	got := coverageArea(expanded, 16)
	want := 10.0*width + math.Pi*radius*radius
	if math.Abs(got-want)/want > 0.02 {
		t.Fatalf("pill area = %.2f, want %.2f +- 2%%", got, want)
	}
}

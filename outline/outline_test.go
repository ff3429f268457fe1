package outline

import (
	"testing"

	"github.com/gogpu/gg/geom"
)

func TestContourAdjacentEndpointInvariant(t *testing.T) {
	var c Contour
	c.PushLine(geom.Vec2{X: 10, Y: 0})
	c.PushQuad(geom.Vec2{X: 10, Y: 10}, geom.Vec2{X: 0, Y: 10})
	c.PushLine(geom.Vec2{X: 0, Y: 0})
	c.Closed = true

	for i := 1; i < len(c.Segments); i++ {
		if c.Segments[i-1].Baseline.To != c.Segments[i].Baseline.From {
			t.Fatalf("segment %d does not chain from segment %d's endpoint", i, i-1)
		}
	}
}

func TestContourMarkEndpoints(t *testing.T) {
	var c Contour
	c.PushLine(geom.Vec2{X: 1, Y: 0})
	c.PushLine(geom.Vec2{X: 1, Y: 1})
	c.MarkEndpoints()

	if c.Segments[0].Flags&FirstInContour == 0 {
		t.Fatal("first segment should carry FirstInContour")
	}
	if c.Segments[len(c.Segments)-1].Flags&LastInContour == 0 {
		t.Fatal("last segment should carry LastInContour")
	}
}

func TestOutlineBoundsUnion(t *testing.T) {
	var o Outline
	var c1 Contour
	c1.PushLine(geom.Vec2{X: 10, Y: 10})
	o.PushContour(c1)

	var c2 Contour
	c2.Segments = []Segment{{Baseline: Line{From: geom.Vec2{X: -5, Y: 20}, To: geom.Vec2{X: 30, Y: -5}}, Kind: SegmentLine}}
	o.PushContour(c2)

	if o.Bounds.MinX != -5 || o.Bounds.MinY != -5 || o.Bounds.MaxX != 30 || o.Bounds.MaxY != 20 {
		t.Fatalf("unexpected bounds: %+v", o.Bounds)
	}
}

func TestAsCubicDegreeElevatesLineAndQuad(t *testing.T) {
	line := Segment{Baseline: Line{From: geom.Vec2{X: 0, Y: 0}, To: geom.Vec2{X: 4, Y: 0}}, Kind: SegmentLine}
	p0, p1, p2, p3 := line.AsCubic()
	if p0 != line.Baseline.From || p3 != line.Baseline.To || p1 != p0 || p2 != p3 {
		t.Fatalf("line AsCubic not degenerate: %v %v %v %v", p0, p1, p2, p3)
	}

	quad := Segment{
		Baseline: Line{From: geom.Vec2{X: 0, Y: 0}, To: geom.Vec2{X: 2, Y: 0}},
		Ctrl:     Line{From: geom.Vec2{X: 1, Y: 2}},
		Kind:     SegmentQuad,
	}
	q0, q1, q2, q3 := quad.AsCubic()
	if q0 != quad.Baseline.From || q3 != quad.Baseline.To {
		t.Fatalf("quad AsCubic endpoints wrong: %v %v", q0, q3)
	}
	wantQ1 := geom.Vec2{X: 2.0 / 3.0, Y: 4.0 / 3.0}
	if absf32(q1.X-wantQ1.X) > 1e-5 || absf32(q1.Y-wantQ1.Y) > 1e-5 {
		t.Fatalf("quad->cubic control 1 = %v, want %v", q1, wantQ1)
	}
	_ = q2
}

func TestFlattenContourLineUnchanged(t *testing.T) {
	var c Contour
	c.PushLine(geom.Vec2{X: 5, Y: 0})
	c.PushLine(geom.Vec2{X: 5, Y: 5})
	pts := FlattenContour(c, FlatTolerance)
	want := []geom.Vec2{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 5, Y: 5}}
	if len(pts) != len(want) {
		t.Fatalf("got %d points, want %d: %v", len(pts), len(want), pts)
	}
	for i := range want {
		if pts[i] != want[i] {
			t.Fatalf("point %d = %v, want %v", i, pts[i], want[i])
		}
	}
}

func TestFlattenContourCubicWithinTolerance(t *testing.T) {
	var c Contour
	c.PushCubic(geom.Vec2{X: 0, Y: 10}, geom.Vec2{X: 10, Y: 10}, geom.Vec2{X: 10, Y: 0})
	pts := FlattenContour(c, 0.1)
	if len(pts) < 2 {
		t.Fatal("expected at least start and end point")
	}
	for i := 1; i < len(pts); i++ {
		d := pts[i].Sub(pts[i-1])
		if d.Length() == 0 {
			t.Fatalf("degenerate flattened segment at %d", i)
		}
	}
	last := pts[len(pts)-1]
	if last != (geom.Vec2{X: 10, Y: 0}) {
		t.Fatalf("last flattened point = %v, want curve endpoint", last)
	}
}

func absf32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

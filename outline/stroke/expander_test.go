package stroke

import (
	"testing"

	"github.com/gogpu/gg/geom"
	"github.com/gogpu/gg/outline"
)

func straightLine() outline.Outline {
	var c outline.Contour
	c.PushLine(geom.Vec2{X: 10, Y: 0})
	var o outline.Outline
	o.PushContour(c)
	return o
}

func TestExpandOpenLineProducesClosedRing(t *testing.T) {
	e := NewExpander(Style{Width: 2, Cap: CapButt, Join: JoinMiter, MiterLimit: 4}, 0.1)
	result := e.Expand(straightLine())

	if len(result.Contours) != 1 {
		t.Fatalf("expected 1 contour, got %d", len(result.Contours))
	}
	ring := result.Contours[0]
	if !ring.Closed {
		t.Fatal("expanded open stroke should produce a closed ring")
	}
	for i := 1; i < len(ring.Segments); i++ {
		if ring.Segments[i-1].Baseline.To != ring.Segments[i].Baseline.From {
			t.Fatalf("ring segment %d does not chain from %d", i, i-1)
		}
	}
	last := ring.Segments[len(ring.Segments)-1].Baseline.To
	first := ring.Segments[0].Baseline.From
	if last != first {
		t.Fatalf("ring does not close: last=%v first=%v", last, first)
	}
}

func TestExpandClosedContourProducesTwoRings(t *testing.T) {
	var c outline.Contour
	c.PushLine(geom.Vec2{X: 10, Y: 0})
	c.PushLine(geom.Vec2{X: 10, Y: 10})
	c.PushLine(geom.Vec2{X: 0, Y: 10})
	c.Closed = true
	var o outline.Outline
	o.PushContour(c)

	e := NewExpander(Style{Width: 1, Join: JoinBevel}, 0.1)
	result := e.Expand(o)

	if len(result.Contours) != 2 {
		t.Fatalf("expected outer+inner rings, got %d", len(result.Contours))
	}
	for i, ring := range result.Contours {
		if !ring.Closed {
			t.Fatalf("ring %d should be closed", i)
		}
	}
}

func TestExpandRoundCapAddsArcSegments(t *testing.T) {
	e := NewExpander(Style{Width: 4, Cap: CapRound, Join: JoinRound, MiterLimit: 4}, 0.1)
	result := e.Expand(straightLine())
	if len(result.Contours) != 1 {
		t.Fatalf("expected 1 contour, got %d", len(result.Contours))
	}
	if len(result.Contours[0].Segments) < 4 {
		t.Fatalf("round-capped stroke should include arc segments, got %d segments", len(result.Contours[0].Segments))
	}
}

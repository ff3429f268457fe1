package stroke

import (
	"testing"

	"github.com/gogpu/gg/geom"
	"github.com/gogpu/gg/outline"
)

func TestDashPatternDuplicatesOddLength(t *testing.T) {
	d := NewDash(5)
	arr := d.effectiveArray()
	if len(arr) != 2 || arr[0] != 5 || arr[1] != 5 {
		t.Fatalf("expected [5 5], got %v", arr)
	}
}

func TestApplyDashSplitsStraightLine(t *testing.T) {
	var c outline.Contour
	c.PushLine(geom.Vec2{X: 10, Y: 0})
	var o outline.Outline
	o.PushContour(c)

	dashed := ApplyDash(o, NewDash(2, 2), 0.1)

	// 10 units / (2 on + 2 off) = 2.5 cycles -> 3 "on" runs of 2 units each;
	// the trailing half cycle is exactly one full "on" run.
	if len(dashed.Contours) != 3 {
		t.Fatalf("expected 3 dash runs, got %d", len(dashed.Contours))
	}
	for i, run := range dashed.Contours {
		if len(run.Segments) == 0 {
			t.Fatalf("dash run %d is empty", i)
		}
	}
}

func TestApplyDashNoPatternReturnsOriginal(t *testing.T) {
	var c outline.Contour
	c.PushLine(geom.Vec2{X: 10, Y: 0})
	var o outline.Outline
	o.PushContour(c)

	out := ApplyDash(o, nil, 0.1)
	if len(out.Contours) != 1 {
		t.Fatalf("expected passthrough outline, got %d contours", len(out.Contours))
	}
}

package drawscene

import (
	"testing"

	"github.com/gogpu/gg/geom"
	"github.com/gogpu/gg/outline"
	"github.com/gogpu/gg/paint"
)

func rectOutline(x0, y0, x1, y1 float32) outline.Outline {
	var o outline.Outline
	var c outline.Contour
	c.PushLine(geom.Vec2{X: x0, Y: y0})
	c.PushLine(geom.Vec2{X: x1, Y: y0})
	c.PushLine(geom.Vec2{X: x1, Y: y1})
	c.PushLine(geom.Vec2{X: x0, Y: y1})
	c.Closed = true
	o.PushContour(c)
	return o
}

func TestSetViewBoxAlignsWidth(t *testing.T) {
	s := New(256)
	s.SetViewBox(geom.NewRect(0, 0, 50, 64))
	if w := int(s.ViewBox.Width()); w%16 != 0 {
		t.Fatalf("view box width %d not a multiple of 16", w)
	}
	if got := s.ViewBox.Width(); got != 64 {
		t.Fatalf("width = %v, want 64 (ceil(50/16)*16)", got)
	}
}

func TestEpochMonotonic(t *testing.T) {
	s := New(256)
	e0 := s.Epoch()
	s.SetViewBox(geom.NewRect(0, 0, 16, 16))
	e1 := s.Epoch()
	if !e0.Less(e1) {
		t.Fatalf("epoch did not advance: %+v -> %+v", e0, e1)
	}
	s.PushDrawPath(DrawPath{Outline: rectOutline(0, 0, 16, 16), ClipID: NoClip})
	e2 := s.Epoch()
	if !e1.Less(e2) {
		t.Fatalf("epoch did not advance on PushDrawPath: %+v -> %+v", e1, e2)
	}
}

func TestPaintInterningSolidColors(t *testing.T) {
	s := New(256)
	red := paint.Paint{BaseColor: paint.Color{R: 1, A: 1}}
	id1 := s.PushPaint(red)
	id2 := s.PushPaint(red)
	if id1 != id2 {
		t.Fatalf("solid paint not interned: %d != %d", id1, id2)
	}

	blue := paint.Paint{BaseColor: paint.Color{B: 1, A: 1}}
	id3 := s.PushPaint(blue)
	if id3 == id1 {
		t.Fatalf("distinct colors must not collide")
	}
}

func TestPushDrawPathMergesDisplayItem(t *testing.T) {
	s := New(256)
	paintID := s.PushPaint(paint.Paint{BaseColor: paint.Color{A: 1}})
	s.PushDrawPath(DrawPath{Outline: rectOutline(0, 0, 16, 16), PaintID: paintID, ClipID: NoClip})
	s.PushDrawPath(DrawPath{Outline: rectOutline(16, 0, 32, 16), PaintID: paintID, ClipID: NoClip})

	if len(s.Display) != 1 {
		t.Fatalf("expected consecutive draw paths to merge into one display item, got %d", len(s.Display))
	}
	if s.Display[0].PathBegin != 0 || s.Display[0].PathEnd != 2 {
		t.Fatalf("unexpected merged range: %+v", s.Display[0])
	}
}

func TestAppendSceneRemapsPaintsAndGeometry(t *testing.T) {
	src := New(256)
	paintID := src.PushPaint(paint.Paint{BaseColor: paint.Color{R: 1, A: 1}})
	src.PushDrawPath(DrawPath{Outline: rectOutline(0, 0, 8, 8), PaintID: paintID, ClipID: NoClip})

	dst := New(256)
	// Seed dst with an unrelated paint so the remap can't accidentally
	// line up by coincidence of matching index 0.
	dst.PushPaint(paint.Paint{BaseColor: paint.Color{G: 1, A: 1}})
	dst.AppendScene(src, geom.Translation(geom.Vec2{X: 100, Y: 0}))

	if len(dst.DrawPaths) != 1 {
		t.Fatalf("expected 1 draw path after append, got %d", len(dst.DrawPaths))
	}
	got := dst.DrawPaths[0]
	if got.PaintID == paintID {
		t.Fatalf("paint id should have been remapped, still %d", got.PaintID)
	}
	wantColor := paint.Color{R: 1, A: 1}
	if dst.Palette.Paints()[got.PaintID].BaseColor != wantColor {
		t.Fatalf("remapped paint color = %+v, want %+v", dst.Palette.Paints()[got.PaintID].BaseColor, wantColor)
	}
	if got.Outline.Bounds.MinX != 100 {
		t.Fatalf("transform was not applied to appended geometry: bounds = %+v", got.Outline.Bounds)
	}
}

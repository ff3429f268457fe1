package d3d9

import (
	"testing"

	"github.com/gogpu/gg/drawscene"
	"github.com/gogpu/gg/geom"
	"github.com/gogpu/gg/outline"
	"github.com/gogpu/gg/paint"
	"github.com/gogpu/gg/tiler"
)

func rectOutline(x0, y0, x1, y1 float32) outline.Outline {
	var c outline.Contour
	c.Segments = append(c.Segments, outline.Segment{
		Baseline: outline.Line{From: geom.Vec2{X: x0, Y: y0}, To: geom.Vec2{X: x1, Y: y0}},
		Kind:     outline.SegmentLine,
	})
	c.PushLine(geom.Vec2{X: x1, Y: y1})
	c.PushLine(geom.Vec2{X: x0, Y: y1})
	c.PushLine(geom.Vec2{X: x0, Y: y0})
	c.Closed = true
	var o outline.Outline
	o.PushContour(c)
	return o
}

// TestSingleOpaqueRect is the scene-level half of spec scenario S1: a
// tile-aligned solid red rect on a 64x64 view touches exactly 4 tiles,
// needs no alpha tiles, and emits no fills.
func TestSingleOpaqueRect(t *testing.T) {
	scene := drawscene.New(256)
	scene.SetViewBox(geom.NewRect(0, 0, 64, 64))
	paintID := scene.PushPaint(paint.Paint{BaseColor: paint.Color{R: 1, A: 1}})
	scene.PushDrawPath(drawscene.DrawPath{
		Outline: rectOutline(16, 16, 48, 48),
		Rule:    tiler.FillNonZero,
		PaintID: paintID,
		ClipID:  drawscene.NoClip,
	})

	var b SceneBuilder
	if err := b.Build(scene); err != nil {
		t.Fatal(err)
	}

	if got := b.AlphaTileCount(); got != 0 {
		t.Errorf("alpha tile count = %d, want 0", got)
	}
	if len(b.PendingFills) != 0 {
		t.Errorf("pending fills = %d, want 0", len(b.PendingFills))
	}
	if len(b.TileBatches) != 1 {
		t.Fatalf("tile batches = %d, want 1", len(b.TileBatches))
	}
	batch := b.TileBatches[0]
	if len(batch.Tiles) != 4 {
		t.Fatalf("tiles in batch = %d, want 4", len(batch.Tiles))
	}
	for _, tile := range batch.Tiles {
		if tile.AlphaTileID().IsValid() {
			t.Errorf("tile (%d,%d) unexpectedly has an alpha tile", tile.TileX, tile.TileY)
		}
		if tile.Backdrop == 0 {
			t.Errorf("tile (%d,%d) is not solid", tile.TileX, tile.TileY)
		}
		if tile.MetadataID != paintID {
			t.Errorf("tile (%d,%d) metadata id = %d, want %d", tile.TileX, tile.TileY, tile.MetadataID, paintID)
		}
	}
	if batch.ColorTexture != nil {
		t.Error("solid paint batch has a color texture")
	}
}

// TestTriangleNeedsAlphaTiles is the scene-level half of scenario S2.
func TestTriangleNeedsAlphaTiles(t *testing.T) {
	scene := drawscene.New(256)
	scene.SetViewBox(geom.NewRect(0, 0, 48, 48))
	paintID := scene.PushPaint(paint.Paint{BaseColor: paint.Color{R: 1, A: 1}})

	var c outline.Contour
	c.Segments = append(c.Segments, outline.Segment{
		Baseline: outline.Line{From: geom.Vec2{X: 8, Y: 8}, To: geom.Vec2{X: 40, Y: 8}},
		Kind:     outline.SegmentLine,
	})
	c.PushLine(geom.Vec2{X: 24, Y: 40})
	c.PushLine(geom.Vec2{X: 8, Y: 8})
	c.Closed = true
	var o outline.Outline
	o.PushContour(c)

	scene.PushDrawPath(drawscene.DrawPath{
		Outline: o, Rule: tiler.FillNonZero, PaintID: paintID, ClipID: drawscene.NoClip,
	})

	var b SceneBuilder
	if err := b.Build(scene); err != nil {
		t.Fatal(err)
	}
	if got := b.AlphaTileCount(); got < 6 {
		t.Errorf("alpha tile count = %d, want >= 6", got)
	}
	if len(b.PendingFills) == 0 {
		t.Error("triangle produced no fills")
	}
}

// TestZOrderAcrossPaths checks spec testable property 10's CPU half: a
// later opaque path writes a higher z into the batch's z buffer for the
// tile both paths cover.
func TestZOrderAcrossPaths(t *testing.T) {
	scene := drawscene.New(256)
	scene.SetViewBox(geom.NewRect(0, 0, 64, 64))
	red := scene.PushPaint(paint.Paint{BaseColor: paint.Color{R: 1, A: 1}})
	blue := scene.PushPaint(paint.Paint{BaseColor: paint.Color{B: 1, A: 1}})

	scene.PushDrawPath(drawscene.DrawPath{
		Outline: rectOutline(0, 0, 64, 64), Rule: tiler.FillNonZero, PaintID: red, ClipID: drawscene.NoClip,
	})
	scene.PushDrawPath(drawscene.DrawPath{
		Outline: rectOutline(16, 16, 48, 48), Rule: tiler.FillNonZero, PaintID: blue, ClipID: drawscene.NoClip,
	})

	var b SceneBuilder
	if err := b.Build(scene); err != nil {
		t.Fatal(err)
	}
	if len(b.TileBatches) != 1 {
		t.Fatalf("tile batches = %d, want 1 (same texture, target, blend)", len(b.TileBatches))
	}
	batch := b.TileBatches[0]

	// Tile (1,1) is covered by both paths; path 1 (blue) must own the z
	// floor there.
	i := 1*int(batch.ZBufferRect.Width()) + 1
	if batch.ZBuffer[i] != 1 {
		t.Errorf("z buffer at tile (1,1) = %d, want 1", batch.ZBuffer[i])
	}
	// Tile (0,0) is only covered by path 0.
	if batch.ZBuffer[0] != 0 {
		t.Errorf("z buffer at tile (0,0) = %d, want 0", batch.ZBuffer[0])
	}

	// Tiles append in path order, so within the batch the blue rect's
	// tiles come after the red rect's (z-ascending draw order).
	lastRed, firstBlue := -1, -1
	for idx, tile := range batch.Tiles {
		switch tile.MetadataID {
		case red:
			lastRed = idx
		case blue:
			if firstBlue == -1 {
				firstBlue = idx
			}
		}
	}
	if firstBlue != -1 && lastRed > firstBlue {
		t.Error("tiles are not in z order: a red tile follows a blue tile")
	}
}

// TestRenderTargetBatchSplit checks scenario S6's batching half: drawing
// into a pushed render target and then sampling it as a pattern yields two
// batches, the first targeting the render target, the second the
// destination with the pattern page as its color texture.
func TestRenderTargetBatchSplit(t *testing.T) {
	scene := drawscene.New(256)
	scene.SetViewBox(geom.NewRect(0, 0, 64, 64))
	red := scene.PushPaint(paint.Paint{BaseColor: paint.Color{R: 1, A: 1}})

	rtID := scene.PushRenderTarget(paint.RenderTargetDesc{Width: 32, Height: 32, Label: "offscreen"})
	scene.PushDrawPath(drawscene.DrawPath{
		Outline: rectOutline(4, 4, 28, 28), Rule: tiler.FillNonZero, PaintID: red, ClipID: drawscene.NoClip,
	})
	scene.PopRenderTarget()

	patternPaint := scene.PushPaint(paint.Paint{
		BaseColor: paint.Color{A: 1},
		Overlay: &paint.Overlay{
			Kind: paint.ContentsPattern,
			Pattern: &paint.Pattern{
				Source:    paint.PatternSource{Kind: paint.SourceRenderTarget, RenderTargetID: uint32(rtID)},
				Transform: geom.Identity(),
			},
		},
	})
	scene.PushDrawPath(drawscene.DrawPath{
		Outline: rectOutline(0, 0, 32, 32), Rule: tiler.FillNonZero, PaintID: patternPaint, ClipID: drawscene.NoClip,
	})

	var b SceneBuilder
	if err := b.Build(scene); err != nil {
		t.Fatal(err)
	}
	if len(b.TileBatches) != 2 {
		t.Fatalf("tile batches = %d, want 2", len(b.TileBatches))
	}
	first, second := b.TileBatches[0], b.TileBatches[1]
	if first.RenderTarget == nil || *first.RenderTarget != uint32(rtID) {
		t.Error("first batch does not target the pushed render target")
	}
	if second.RenderTarget != nil {
		t.Error("second batch should target the destination")
	}
	if second.ColorTexture == nil {
		t.Fatal("second batch has no color texture despite its pattern paint")
	}
	if len(b.PaintInfo.RenderTargetLocations) != 1 {
		t.Fatalf("render target locations = %d, want 1", len(b.PaintInfo.RenderTargetLocations))
	}
}

// TestClippedPathEmitsClipRecords is scenario S4's batching half.
func TestClippedPathEmitsClipRecords(t *testing.T) {
	scene := drawscene.New(256)
	scene.SetViewBox(geom.NewRect(0, 0, 48, 48))
	red := scene.PushPaint(paint.Paint{BaseColor: paint.Color{R: 1, A: 1}})

	// Approximate the circle clip with its bounding octagon: enough to
	// exercise partial clip tiles without curve bookkeeping.
	var c outline.Contour
	pts := []geom.Vec2{
		{X: 13, Y: 8}, {X: 35, Y: 8}, {X: 40, Y: 13}, {X: 40, Y: 35},
		{X: 35, Y: 40}, {X: 13, Y: 40}, {X: 8, Y: 35}, {X: 8, Y: 13},
	}
	c.Segments = append(c.Segments, outline.Segment{
		Baseline: outline.Line{From: pts[0], To: pts[1]},
		Kind:     outline.SegmentLine,
	})
	for _, p := range pts[2:] {
		c.PushLine(p)
	}
	c.PushLine(pts[0])
	c.Closed = true
	var clipOutline outline.Outline
	clipOutline.PushContour(c)

	clipID := scene.PushClipPath(drawscene.ClipPath{Outline: clipOutline, Rule: tiler.FillNonZero})
	// Unaligned so the rect's boundary tiles carry masks of their own and
	// overlap the clip's partial tiles.
	scene.PushDrawPath(drawscene.DrawPath{
		Outline: rectOutline(2, 2, 46, 46),
		Rule:    tiler.FillNonZero,
		PaintID: red,
		ClipID:  int32(clipID),
	})

	var b SceneBuilder
	if err := b.Build(scene); err != nil {
		t.Fatal(err)
	}
	if len(b.TileBatches) != 1 {
		t.Fatalf("tile batches = %d, want 1", len(b.TileBatches))
	}
	if len(b.TileBatches[0].Clips) == 0 {
		t.Error("clipped draw path produced no clip-combine records")
	}
}

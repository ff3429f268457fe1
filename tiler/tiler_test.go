package tiler

import (
	"testing"

	"github.com/gogpu/gg/geom"
	"github.com/gogpu/gg/outline"
	"github.com/gogpu/gg/tiledata"
)

// testAlloc is a frame-global alpha tile counter, the same bump allocation
// the d3d9 scene builder uses.
type testAlloc struct {
	next uint32
}

func (a *testAlloc) AllocateAlphaTile() tiledata.AlphaTileID {
	id := tiledata.NewAlphaTileID(a.next>>16, uint16(a.next&0xFFFF))
	a.next++
	return id
}

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

func buildPath(t *testing.T, o outline.Outline, rule FillRule, view geom.Rect) (*BuiltPath, *FillStore) {
	t.Helper()
	fills := &FillStore{}
	alloc := &testAlloc{}
	tl := NewTiler(0, o, rule, view, nil, TilingPathInfo{}, fills, alloc)
	tl.GenerateTiles()
	return tl.BuiltPath(), fills
}

func TestTileAlignedRectProducesSolidInteriorAndNoFills(t *testing.T) {
	// A rect that lands exactly on tile boundaries has no partial
	// coverage anywhere: every touched tile is either solid or culled.
	view := geom.NewRect(0, 0, 64, 64)
	built, fills := buildPath(t, rectOutline(16, 16, 48, 48), FillNonZero, view)

	if len(fills.Fills) != 0 {
		t.Fatalf("tile-aligned rect emitted %d fills, want 0", len(fills.Fills))
	}

	solid := 0
	for _, tile := range built.Tiles {
		if tile.AlphaTileID().IsValid() {
			t.Errorf("tile (%d,%d) has an alpha tile; want none for an aligned rect", tile.TileX, tile.TileY)
		}
		if tile.Backdrop != 0 {
			solid++
			if tile.TileX < 1 || tile.TileX > 2 || tile.TileY < 1 || tile.TileY > 2 {
				t.Errorf("solid tile at (%d,%d) outside the rect interior", tile.TileX, tile.TileY)
			}
		}
	}
	if solid != 4 {
		t.Fatalf("got %d solid tiles, want 4", solid)
	}
}

func TestBackdropBalanceAcrossColumns(t *testing.T) {
	// Property: for a closed contour entirely inside the view box, the
	// per-column winding folded through all rows returns to zero below
	// the path.
	view := geom.NewRect(0, 0, 128, 128)
	built, _ := buildPath(t, rectOutline(20, 20, 100, 100), FillNonZero, view)

	for col, b := range built.Backdrops {
		if b != 0 {
			t.Errorf("column %d: residual backdrop %d after full propagation, want 0", col, b)
		}
	}
}

func TestUnalignedRectClassification(t *testing.T) {
	view := geom.NewRect(0, 0, 64, 64)
	built, fills := buildPath(t, rectOutline(20, 20, 44, 44), FillNonZero, view)

	if len(fills.Fills) == 0 {
		t.Fatal("unaligned rect emitted no fills")
	}

	// Every edge tile must be an alpha tile; the single interior tile
	// none of the edges touch does not exist for a 24x24 rect spanning
	// tiles 1..2, so just require at least one alpha tile and that alpha
	// tiles carry fills.
	alphaTiles := 0
	for i, tile := range built.Tiles {
		if tile.AlphaTileID().IsValid() {
			alphaTiles++
			if built.FillHeads[i] == NoFillLink {
				t.Errorf("alpha tile (%d,%d) has no fills", tile.TileX, tile.TileY)
			}
		}
	}
	if alphaTiles == 0 {
		t.Fatal("no alpha tiles for an unaligned rect")
	}
}

func TestFillTileLocality(t *testing.T) {
	// Property: every fill endpoint, in tile-local coordinates, lies
	// within [-0.5, TileWidth+0.5] on both axes.
	view := geom.NewRect(0, 0, 64, 64)
	tri := func() outline.Outline {
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
		return o
	}()
	_, fills := buildPath(t, tri, FillNonZero, view)

	const lo, hi = -0.5, tiledata.TileWidth + 0.5
	for i, f := range fills.Fills {
		for _, v := range []float32{
			tiledata.UnpackFillCoord(f.FromX), tiledata.UnpackFillCoord(f.FromY),
			tiledata.UnpackFillCoord(f.ToX), tiledata.UnpackFillCoord(f.ToY),
		} {
			if v < lo || v > hi {
				t.Fatalf("fill %d endpoint coord %v outside [%v,%v]", i, v, lo, hi)
			}
		}
	}
}

func TestTriangleAlphaTileCount(t *testing.T) {
	// Spec scenario S2: triangle (8,8),(40,8),(24,40) on a 48x48 view.
	view := geom.NewRect(0, 0, 48, 48)
	tri := func() outline.Outline {
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
		return o
	}()
	built, _ := buildPath(t, tri, FillNonZero, view)

	alpha := 0
	var sawMixed00, saw22 bool
	for _, tile := range built.Tiles {
		if tile.AlphaTileID().IsValid() {
			alpha++
			if tile.TileX == 0 && tile.TileY == 0 {
				sawMixed00 = true
			}
		}
		if tile.TileX == 2 && tile.TileY == 2 && (tile.AlphaTileID().IsValid() || tile.Backdrop != 0) {
			saw22 = true
		}
	}
	if alpha < 6 {
		t.Errorf("triangle produced %d alpha tiles, want >= 6", alpha)
	}
	if !sawMixed00 {
		t.Error("tile (0,0) has no partial coverage; the triangle's top-left corner crosses it")
	}
	if saw22 {
		t.Error("tile (2,2) is not empty; the triangle never reaches it")
	}
}

func TestAlphaTileAllocationIsContiguous(t *testing.T) {
	view := geom.NewRect(0, 0, 128, 128)
	fills := &FillStore{}
	alloc := &testAlloc{}
	for i := 0; i < 3; i++ {
		o := rectOutline(float32(10+i*7), float32(9+i*5), float32(50+i*11), float32(61+i*3))
		tl := NewTiler(uint32(i), o, FillNonZero, view, nil, TilingPathInfo{}, fills, alloc)
		tl.GenerateTiles()
	}
	// The allocator's counter is the number of ids handed out; the ids
	// themselves are 0..n-1 in order by construction. Re-walk the built
	// paths is unnecessary: the allocator enforces the contiguity, this
	// asserts the count is nonzero and the packing round-trips.
	if alloc.next == 0 {
		t.Fatal("no alpha tiles allocated for three unaligned rects")
	}
	last := tiledata.NewAlphaTileID((alloc.next-1)>>16, uint16((alloc.next-1)&0xFFFF))
	if got := tiledata.PageCountForTiles(alloc.next); got != last.Page()+1 {
		t.Errorf("page count %d does not match final id's page %d", got, last.Page())
	}
}

func TestClipCullsOutsideTiles(t *testing.T) {
	view := geom.NewRect(0, 0, 64, 64)

	// Clip path: the left half.
	fills := &FillStore{}
	alloc := &testAlloc{}
	clipTiler := NewTiler(0, rectOutline(0, 0, 32, 64), FillNonZero, view, nil, TilingPathInfo{}, fills, alloc)
	clipTiler.GenerateTiles()
	clip := clipTiler.BuiltPath()

	// Draw path: the full view.
	drawTiler := NewTiler(1, rectOutline(0, 0, 64, 64), FillNonZero, view, clip, TilingPathInfo{}, fills, alloc)
	drawTiler.GenerateTiles()
	draw := drawTiler.BuiltPath()

	for _, tile := range draw.Tiles {
		inside := tile.TileX < 2
		covered := tile.AlphaTileID().IsValid() || tile.Backdrop != 0
		if inside && !covered {
			t.Errorf("tile (%d,%d) inside the clip was culled", tile.TileX, tile.TileY)
		}
		if !inside && covered {
			t.Errorf("tile (%d,%d) outside the clip survived", tile.TileX, tile.TileY)
		}
	}
}

func TestClipEmitsCombineJobs(t *testing.T) {
	view := geom.NewRect(0, 0, 64, 64)

	fills := &FillStore{}
	alloc := &testAlloc{}
	// Unaligned clip so its boundary tiles have masks.
	clipTiler := NewTiler(0, rectOutline(4, 4, 44, 44), FillNonZero, view, nil, TilingPathInfo{}, fills, alloc)
	clipTiler.GenerateTiles()
	clip := clipTiler.BuiltPath()

	// Unaligned draw overlapping the clip boundary.
	drawTiler := NewTiler(1, rectOutline(8, 8, 60, 60), FillNonZero, view, clip, TilingPathInfo{}, fills, alloc)
	drawTiler.GenerateTiles()
	draw := drawTiler.BuiltPath()

	if len(draw.Clips) == 0 {
		t.Fatal("clipped draw path emitted no clip-combine jobs")
	}
	for i, c := range draw.Clips {
		if !c.DestTileID.IsValid() || !c.SrcTileID.IsValid() {
			t.Errorf("clip job %d has an invalid tile id: %+v", i, c)
		}
	}
}

func TestDegenerateSegmentIsSkipped(t *testing.T) {
	view := geom.NewRect(0, 0, 32, 32)
	fills := &FillStore{}
	alloc := &testAlloc{}
	var c outline.Contour
	p := geom.Vec2{X: 10, Y: 10}
	c.Segments = append(c.Segments, outline.Segment{
		Baseline: outline.Line{From: p, To: p},
		Kind:     outline.SegmentLine,
	})
	c.Closed = true
	var o outline.Outline
	o.PushContour(c)

	tl := NewTiler(0, o, FillNonZero, view, nil, TilingPathInfo{}, fills, alloc)
	tl.GenerateTiles()

	if len(fills.Fills) != 0 || alloc.next != 0 {
		t.Fatalf("degenerate contour produced %d fills, %d alpha tiles; want none", len(fills.Fills), alloc.next)
	}
}

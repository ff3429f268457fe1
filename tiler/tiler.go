// Package tiler converts a transformed path outline into per-16x16-tile
// fill geometry and backdrop (winding) state, the input both rendering
// strategies consume before rasterizing coverage.
//
// The traversal is a port of original_source/pathfinder's
// core/d3d9/tiler.cpp: Cohen-Sutherland clipping against the view box
// (with the top edge left unbounded, since winding rays enter from above),
// then an Amanatides-Woo grid walk emitting one clipped sub-segment per
// tile crossed, auxiliary fills at tile top-boundary crossings, and
// backdrop deltas at right-boundary crossings. The teacher's own fillers
// (backend/native/tile.go, internal/gpu/vello_tiles.go) use a different
// algorithm family (4x4 sparse strips with direct coverage accumulation),
// so this package is grounded on original_source for its core loop while
// keeping the teacher's Go idiom around it.
package tiler

import (
	"math"

	"github.com/gogpu/gg/geom"
	"github.com/gogpu/gg/logging"
	"github.com/gogpu/gg/outline"
	"github.com/gogpu/gg/tiledata"
)

// flatteningTolerance matches the 16*tol^2 quantity the cubic flatness
// test compares against (tol = 0.25 device pixels).
const flatteningTolerance = 1.0

// Tiler tiles one path against a view box, producing a BuiltPath.
type Tiler struct {
	obj      *ObjectBuilder
	outline  outline.Outline
	viewBox  geom.Rect
	clipPath *BuiltPath

	// DebugLog, when set, reports degenerate segments that were skipped.
	// The default is a silent skip.
	DebugLog logging.Logger
}

// NewTiler prepares tiling of one path. The outline must already be in
// device space. clipPath, when non-nil, is the already-built clip path the
// prepare pass intersects tiles with.
func NewTiler(pathID uint32, o outline.Outline, rule FillRule, viewBox geom.Rect, clipPath *BuiltPath, info TilingPathInfo, fills *FillStore, alloc AlphaTileAllocator) *Tiler {
	bounds := o.Bounds.Intersection(viewBox)
	return &Tiler{
		obj:      NewObjectBuilder(pathID, bounds, rule, info, fills, alloc),
		outline:  o,
		viewBox:  viewBox,
		clipPath: clipPath,
	}
}

// GenerateTiles runs the two tiling stages: fill generation (flatten and
// traverse every segment) and tile preparation (backdrop propagation plus
// clip application).
func (t *Tiler) GenerateTiles() {
	t.generateFills()
	t.obj.PrepareTiles(t.clipPath)
}

// BuiltPath returns the tiling result. Valid after GenerateTiles.
func (t *Tiler) BuiltPath() *BuiltPath { return &t.obj.Built }

func (t *Tiler) generateFills() {
	for _, c := range t.outline.Contours {
		for _, seg := range c.Segments {
			t.processSegment(seg)
		}
		// A fill contour is implicitly closed: an open contour still
		// bounds a region once filled.
		if n := len(c.Segments); n > 0 && !c.Closed {
			last := c.Segments[n-1].Baseline.To
			first := c.Segments[0].Baseline.From
			if last != first {
				t.processLineSegment(last, first)
			}
		}
	}
}

// processSegment recursively flattens a segment down to line segments:
// quadratics degree-elevate to cubics, cubics split at t=0.5 until flat
// enough, lines are the base case.
func (t *Tiler) processSegment(seg outline.Segment) {
	switch seg.Kind {
	case outline.SegmentLine:
		t.processLineSegment(seg.Baseline.From, seg.Baseline.To)
	case outline.SegmentQuad, outline.SegmentCubic:
		p0, p1, p2, p3 := seg.AsCubic()
		t.processCubic(p0, p1, p2, p3, maxSubdivisionDepth)
	}
}

// maxSubdivisionDepth bounds recursion on degenerate control points; a
// well-formed curve flattens out far earlier.
const maxSubdivisionDepth = 32

func (t *Tiler) processCubic(p0, p1, p2, p3 geom.Vec2, depth int) {
	if depth == 0 || cubicIsFlat(p0, p1, p2, p3) {
		t.processLineSegment(p0, p3)
		return
	}
	p01 := p0.Lerp(p1, 0.5)
	p12 := p1.Lerp(p2, 0.5)
	p23 := p2.Lerp(p3, 0.5)
	p012 := p01.Lerp(p12, 0.5)
	p123 := p12.Lerp(p23, 0.5)
	mid := p012.Lerp(p123, 0.5)
	t.processCubic(p0, p01, p012, mid, depth-1)
	t.processCubic(mid, p123, p23, p3, depth-1)
}

func cubicIsFlat(p0, p1, p2, p3 geom.Vec2) bool {
	e1 := p1.Scale(3).Sub(p0.Scale(2)).Sub(p3)
	e2 := p2.Scale(3).Sub(p3.Scale(2)).Sub(p0)
	return e1.Dot(e1) <= flatteningTolerance && e2.Dot(e2) <= flatteningTolerance
}

type stepDirection uint8

const (
	stepNone stepDirection = iota
	stepX
	stepY
)

// processLineSegment is the heart of the tiler: clip the line to the view
// box (top unbounded) and walk it across the tile grid, attributing one
// clipped sub-segment to each tile stepped through.
func (t *Tiler) processLineSegment(from, to geom.Vec2) {
	if from == to {
		if t.DebugLog != nil {
			t.DebugLog.Debug("tiler: skipping degenerate line segment", "at", from)
		}
		return
	}

	// Winding rays are cast downward from above, so the clip box keeps
	// everything above the view box.
	clipBox := t.viewBox
	clipBox.MinY = float32(math.Inf(-1))
	from, to, inside := clipLineToRect(from, to, clipBox)
	if !inside {
		return
	}

	tileSize := geom.Vec2{X: tiledata.TileWidth, Y: tiledata.TileHeight}
	fromTile := geom.Vec2I{
		X: int32(math.Floor(float64(from.X / tileSize.X))),
		Y: int32(math.Floor(float64(from.Y / tileSize.Y))),
	}
	toTile := geom.Vec2I{
		X: int32(math.Floor(float64(to.X / tileSize.X))),
		Y: int32(math.Floor(float64(to.Y / tileSize.Y))),
	}

	vector := to.Sub(from)
	step := geom.Vec2I{X: 1, Y: 1}
	if vector.X < 0 {
		step.X = -1
	}
	if vector.Y < 0 {
		step.Y = -1
	}

	// Pixel coordinates of the first vertical and horizontal tile
	// boundaries the ray will cross.
	firstCrossing := geom.Vec2{
		X: float32(fromTile.X+boolToI32(vector.X >= 0)) * tileSize.X,
		Y: float32(fromTile.Y+boolToI32(vector.Y >= 0)) * tileSize.Y,
	}

	tMax := firstCrossing.Sub(from).Div(vector)
	tDelta := tileSize.Div(vector).Abs()

	currentPos := from
	tileCoords := fromTile
	lastStep := stepNone

	// The walk visits at most the manhattan tile distance plus one tile;
	// cap it so float pathologies cannot spin forever.
	maxSteps := absI32(toTile.X-fromTile.X) + absI32(toTile.Y-fromTile.Y) + 2

	for ; maxSteps >= 0; maxSteps-- {
		var nextStep stepDirection
		switch {
		case tMax.X < tMax.Y:
			nextStep = stepX
		case tMax.X > tMax.Y:
			nextStep = stepY
		default:
			// The segment ends exactly on a tile corner; step in the
			// positive direction so it routes to the lower-right tile.
			if step.X > 0 {
				nextStep = stepX
			} else {
				nextStep = stepY
			}
		}

		nextT := tMax.X
		if nextStep == stepY {
			nextT = tMax.Y
		}
		if nextT > 1 {
			nextT = 1
		}

		if tileCoords == toTile {
			nextStep = stepNone
		}

		nextPos := from.Lerp(to, nextT)

		t.obj.AddFill(currentPos, nextPos, tileCoords)

		// A segment crossing a tile's top boundary needs a second fill to
		// keep the tile's signed-area sum closed.
		if step.Y < 0 && nextStep == stepY {
			// Leaving through the top.
			tileOrigin := geom.Vec2{X: float32(tileCoords.X) * tileSize.X, Y: float32(tileCoords.Y) * tileSize.Y}
			t.obj.AddFill(nextPos, tileOrigin, tileCoords)
		} else if step.Y > 0 && lastStep == stepY {
			// Entered through the top.
			tileOrigin := geom.Vec2{X: float32(tileCoords.X) * tileSize.X, Y: float32(tileCoords.Y) * tileSize.Y}
			t.obj.AddFill(tileOrigin, currentPos, tileCoords)
		}

		// Right-boundary crossings change the winding of everything to
		// the right; record the delta on the tile it happens in.
		if step.X < 0 && lastStep == stepX {
			t.obj.AdjustBackdrop(tileCoords, 1)
		} else if step.X > 0 && nextStep == stepX {
			t.obj.AdjustBackdrop(tileCoords, -1)
		}

		switch nextStep {
		case stepX:
			tMax.X += tDelta.X
			tileCoords.X += step.X
		case stepY:
			tMax.Y += tDelta.Y
			tileCoords.Y += step.Y
		default:
			return
		}

		currentPos = nextPos
		lastStep = nextStep
	}
}

func absI32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func boolToI32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// Cohen-Sutherland outcodes.
const (
	outLeft   = 0x1
	outRight  = 0x2
	outTop    = 0x4
	outBottom = 0x8
)

func computeOutcode(p geom.Vec2, r geom.Rect) uint8 {
	var code uint8
	if p.X < r.MinX {
		code |= outLeft
	} else if p.X > r.MaxX {
		code |= outRight
	}
	if p.Y < r.MinY {
		code |= outTop
	} else if p.Y > r.MaxY {
		code |= outBottom
	}
	return code
}

// clipLineToRect clips a segment to an axis-aligned rect using
// Cohen-Sutherland. inside is false when the segment lies entirely outside.
func clipLineToRect(from, to geom.Vec2, r geom.Rect) (geom.Vec2, geom.Vec2, bool) {
	codeFrom := computeOutcode(from, r)
	codeTo := computeOutcode(to, r)

	for {
		if codeFrom == 0 && codeTo == 0 {
			return from, to, true
		}
		if codeFrom&codeTo != 0 {
			return from, to, false
		}

		clipFrom := codeFrom > codeTo
		var p geom.Vec2
		code := codeTo
		if clipFrom {
			code = codeFrom
		}

		switch {
		case code&outLeft != 0:
			ty := (r.MinX - from.X) / (to.X - from.X)
			p = geom.Vec2{X: r.MinX, Y: from.Y + (to.Y-from.Y)*ty}
		case code&outRight != 0:
			ty := (r.MaxX - from.X) / (to.X - from.X)
			p = geom.Vec2{X: r.MaxX, Y: from.Y + (to.Y-from.Y)*ty}
		case code&outTop != 0:
			tx := (r.MinY - from.Y) / (to.Y - from.Y)
			p = geom.Vec2{X: from.X + (to.X-from.X)*tx, Y: r.MinY}
		case code&outBottom != 0:
			tx := (r.MaxY - from.Y) / (to.Y - from.Y)
			p = geom.Vec2{X: from.X + (to.X-from.X)*tx, Y: r.MaxY}
		}

		if clipFrom {
			from = p
			codeFrom = computeOutcode(p, r)
		} else {
			to = p
			codeTo = computeOutcode(p, r)
		}
	}
}

package tiler

import (
	"github.com/gogpu/gg/geom"
	"github.com/gogpu/gg/tiledata"
)

// FillRule selects how overlapping contours combine.
type FillRule uint8

const (
	FillNonZero FillRule = iota
	FillEvenOdd
)

// Covered reports whether a resolved winding number counts as inside under
// the rule.
func (r FillRule) Covered(winding int32) bool {
	if r == FillEvenOdd {
		return winding&1 != 0
	}
	return winding != 0
}

// NoFillLink terminates a tile's fill linked list in FillStore.
const NoFillLink = ^uint32(0)

// TilingPathInfo carries the per-path attributes the prepared tiles
// inherit: paint (metadata) id, packed ctrl byte, and z-order.
type TilingPathInfo struct {
	PaintID uint32
	Ctrl    uint8
	ZWrite  uint32
}

// AlphaTileAllocator hands out frame-global alpha tile slots. The sequence
// of ids allocated within a frame is a strictly increasing contiguous
// prefix of N (testable property 6); the d3d9 scene builder owns the
// counter.
type AlphaTileAllocator interface {
	AllocateAlphaTile() tiledata.AlphaTileID
}

// FillStore accumulates fill records across every path tiled in a frame.
// Each fill's Link field points at the previous fill belonging to the same
// tile (NoFillLink for the first), so a tile's fills form a singly-linked
// list threaded through the global array.
type FillStore struct {
	Fills []tiledata.Fill
}

func (s *FillStore) push(f tiledata.Fill) uint32 {
	idx := uint32(len(s.Fills))
	s.Fills = append(s.Fills, f)
	return idx
}

// BuiltPath is the tiled form of one draw or clip path: a dense tile map
// over the intersection of the path bounds and the view box, per-column
// entering backdrops, and (for clipped draw paths) the clip-combine jobs
// produced by the prepare pass.
type BuiltPath struct {
	PathID   uint32
	TileRect geom.RectI
	Rule     FillRule

	// Tiles is row-major over TileRect.
	Tiles []tiledata.RasterTile

	// FillHeads parallels Tiles: the index into the frame's FillStore of
	// each tile's most recent fill, or NoFillLink.
	FillHeads []uint32

	// Backdrops holds the running winding entering each tile column from
	// above the tile rect, folded downward row by row by PrepareTiles.
	Backdrops []int32

	// Clips are the mask-combine jobs emitted when this path is clipped;
	// empty for unclipped paths.
	Clips []tiledata.Clip

	Info TilingPathInfo
}

// Tile returns the tile record at tile-grid coords, or nil when coords fall
// outside the path's tile rect.
func (p *BuiltPath) Tile(coords geom.Vec2I) *tiledata.RasterTile {
	if !p.TileRect.ContainsPoint(coords) {
		return nil
	}
	return &p.Tiles[p.tileIndexUnchecked(coords)]
}

func (p *BuiltPath) tileIndexUnchecked(coords geom.Vec2I) int {
	return int(coords.Y-p.TileRect.MinY)*int(p.TileRect.Width()) + int(coords.X-p.TileRect.MinX)
}

// ObjectBuilder accumulates one path's fills, backdrops, and tile records
// during traversal, then resolves them in the prepare pass.
type ObjectBuilder struct {
	Built BuiltPath

	fills *FillStore
	alloc AlphaTileAllocator
}

// NewObjectBuilder sizes the dense tile map for a path whose device-space
// bounds intersect the view box at bounds.
func NewObjectBuilder(pathID uint32, bounds geom.Rect, rule FillRule, info TilingPathInfo, fills *FillStore, alloc AlphaTileAllocator) *ObjectBuilder {
	tileRect := geom.TileRectForBounds(bounds, tiledata.TileWidth)
	n := int(tileRect.Area())
	b := BuiltPath{
		PathID:    pathID,
		TileRect:  tileRect,
		Rule:      rule,
		Tiles:     make([]tiledata.RasterTile, n),
		FillHeads: make([]uint32, n),
		Backdrops: make([]int32, tileRect.Width()),
		Info:      info,
	}
	i := 0
	for y := tileRect.MinY; y < tileRect.MaxY; y++ {
		for x := tileRect.MinX; x < tileRect.MaxX; x++ {
			b.Tiles[i] = tiledata.RasterTile{
				TileX:      int16(x),
				TileY:      int16(y),
				Ctrl:       info.Ctrl,
				PathID:     int32(pathID),
				MetadataID: info.PaintID,
			}
			b.Tiles[i].SetAlphaTileID(tiledata.InvalidAlphaTileID)
			b.FillHeads[i] = NoFillLink
			i++
		}
	}
	return &ObjectBuilder{Built: b, fills: fills, alloc: alloc}
}

// AddFill attributes one clipped line segment to a tile, quantizing it to
// tile-local 1/256-pixel fixed point and linking it into the tile's fill
// list. The tile is promoted to an alpha tile on its first fill.
func (o *ObjectBuilder) AddFill(from, to geom.Vec2, tileCoords geom.Vec2I) {
	if !o.Built.TileRect.ContainsPoint(tileCoords) {
		return
	}

	tileOrigin := geom.Vec2{
		X: float32(tileCoords.X) * tiledata.TileWidth,
		Y: float32(tileCoords.Y) * tiledata.TileHeight,
	}
	from = from.Sub(tileOrigin)
	to = to.Sub(tileOrigin)

	fx, fy := quantizeFillCoord(from.X), quantizeFillCoord(from.Y)
	tx, ty := quantizeFillCoord(to.X), quantizeFillCoord(to.Y)

	// A vertical fill sweeps no horizontal extent and contributes zero
	// signed area; drop it before it costs an alpha tile.
	if fx == tx {
		return
	}

	// A fill lying exactly along the tile's top boundary across the full
	// tile width carries winding, not partial coverage: the whole tile
	// sits on one side of it. Fold it into the backdrop instead of
	// promoting the tile to an alpha tile, so boundary-aligned geometry
	// classifies as solid.
	const fullWidth = tiledata.TileWidth * tiledata.FillSubpixelScale
	if fy == 0 && ty == 0 && minU16(fx, tx) == 0 && maxU16(fx, tx) == fullWidth {
		s := int32(1)
		if tx < fx {
			s = -1
		}
		o.AdjustBackdrop(geom.Vec2I{X: tileCoords.X, Y: tileCoords.Y - 1}, -s)
		o.AdjustBackdrop(tileCoords, s)
		return
	}

	idx := o.Built.tileIndexUnchecked(tileCoords)
	o.getOrAllocateAlphaTile(idx)

	link := o.Built.FillHeads[idx]
	o.Built.FillHeads[idx] = o.fills.push(tiledata.Fill{
		FromX: fx, FromY: fy, ToX: tx, ToY: ty,
		Link: link,
	})
}

func (o *ObjectBuilder) getOrAllocateAlphaTile(tileIndex int) tiledata.AlphaTileID {
	t := &o.Built.Tiles[tileIndex]
	if id := t.AlphaTileID(); id.IsValid() {
		return id
	}
	id := o.alloc.AllocateAlphaTile()
	t.SetAlphaTileID(id)
	return id
}

// AdjustBackdrop records a winding change at a tile. Changes above the tile
// rect fold into the column's entering backdrop; changes outside the rect
// horizontally or below it cannot affect any tile of this path and are
// dropped.
func (o *ObjectBuilder) AdjustBackdrop(tileCoords geom.Vec2I, delta int32) {
	r := o.Built.TileRect
	offX := tileCoords.X - r.MinX
	offY := tileCoords.Y - r.MinY
	if offX < 0 || offX >= r.Width() || offY >= r.Height() {
		return
	}
	if offY < 0 {
		o.Built.Backdrops[offX] += delta
		return
	}
	o.Built.Tiles[o.Built.tileIndexUnchecked(tileCoords)].Backdrop += int8(delta)
}

func minU16(a, b uint16) uint16 {
	if a < b {
		return a
	}
	return b
}

func maxU16(a, b uint16) uint16 {
	if a > b {
		return a
	}
	return b
}

// quantizeFillCoord rounds a tile-local coordinate to 1/256-pixel fixed
// point. Auxiliary fills may poke up to half a pixel outside the tile
// (testable property 5), so negatives clamp at zero rather than wrapping.
func quantizeFillCoord(v float32) uint16 {
	q := int32(v*tiledata.FillSubpixelScale + 0.5)
	if v < 0 {
		q = int32(v*tiledata.FillSubpixelScale - 0.5)
	}
	if q < 0 {
		q = 0
	}
	const maxCoord = (tiledata.TileWidth + 1) * tiledata.FillSubpixelScale
	if q > maxCoord {
		q = maxCoord
	}
	return uint16(q)
}

// PrepareTiles resolves the traversal output into final tile state: it
// folds each tile's local winding delta into the per-column running
// backdrop (row by row, top down) and applies the clip path, emitting
// clip-combine jobs and culling tiles the clip excludes.
func (o *ObjectBuilder) PrepareTiles(clipPath *BuiltPath) {
	built := &o.Built
	tilesAcross := int(built.TileRect.Width())

	for i := range built.Tiles {
		drawTile := &built.Tiles[i]
		tileCoords := geom.Vec2I{X: int32(drawTile.TileX), Y: int32(drawTile.TileY)}
		column := i % tilesAcross

		// The traversal accumulated this tile's local winding change in
		// the backdrop field; what the tile shader needs is the winding
		// entering from above.
		delta := int32(drawTile.Backdrop)
		drawAlphaTileID := drawTile.AlphaTileID()
		drawTileBackdrop := int8(built.Backdrops[column])

		if clipPath != nil {
			clipTile := clipPath.Tile(tileCoords)
			switch {
			case clipTile == nil:
				// Outside the clip path's rect entirely.
				drawAlphaTileID = tiledata.InvalidAlphaTileID
				drawTileBackdrop = 0

			case clipTile.AlphaTileID().IsValid() && drawAlphaTileID.IsValid():
				// Both masks exist: emit a combine job. It applies both
				// backdrops itself, so zero the draw tile's to avoid
				// double-counting.
				built.Clips = append(built.Clips, tiledata.Clip{
					DestTileID:   drawAlphaTileID,
					DestBackdrop: int32(drawTileBackdrop),
					SrcTileID:    clipTile.AlphaTileID(),
					SrcBackdrop:  int32(clipTile.Backdrop),
				})
				drawTileBackdrop = 0

			case clipTile.AlphaTileID().IsValid() && !drawAlphaTileID.IsValid() && drawTileBackdrop != 0:
				// Solid draw tile under a partial clip: point the draw
				// tile directly at the clip's mask.
				drawAlphaTileID = clipTile.AlphaTileID()
				drawTileBackdrop = clipTile.Backdrop

			case !clipTile.AlphaTileID().IsValid() && clipTile.Backdrop == 0:
				// Fully transparent clip tile: cull.
				drawAlphaTileID = tiledata.InvalidAlphaTileID
				drawTileBackdrop = 0
			}
		}

		drawTile.SetAlphaTileID(drawAlphaTileID)
		drawTile.Backdrop = drawTileBackdrop

		built.Backdrops[column] += delta
	}
}

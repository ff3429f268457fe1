// Package d3d11 implements the compute rendering strategy (spec.md §4.7's
// "D3D11 path"): scene segments upload once per frame, then a seven-pass
// compute pipeline — dice, bound, bin, propagate, fill, sort, tile —
// prepares and composites each tile batch entirely on the GPU, with
// grow-and-retry handling for the two dynamically sized intermediate
// buffers (microlines and fills).
//
// Grounded on original_source/pathfinder's core/d3d11/{gpu_data.h,
// scene_builder.h, renderer.cpp} for the buffer layouts, pass contracts,
// and retry semantics, and on the teacher's compute-dispatch recording
// idiom (begin/end compute pass per encoder, explicit dispatch shapes).
package d3d11

import (
	"github.com/gogpu/gg/geom"
	"github.com/gogpu/gg/outline"
	"github.com/gogpu/gg/rendercore"
	"github.com/gogpu/gg/tiledata"
)

// Z-buffer header slot indices. The fill-indirect-draw-params header rides
// at the front of the Z buffer because some devices cap storage buffer
// bindings at eight.
const (
	headerFillCountIndex      = 1
	headerMicrolineCountIndex = 3
	headerAlphaTileCountIndex = 4
)

// Workgroup sizes for the 1D passes; fill and tile dispatch one group per
// item instead.
const (
	diceWorkgroupSize      = 64
	boundWorkgroupSize     = 64
	binWorkgroupSize       = 64
	propagateWorkgroupSize = 64
	sortWorkgroupSize      = 64
)

// Load actions for the tile pass's destination image.
const (
	loadActionClear int32 = 0
	loadActionLoad  int32 = 1
)

// Microline is one diced curve fragment: 16-bit pixel endpoints plus 8-bit
// subpixel fractions and the owning path's batch-local index.
type Microline struct {
	FromXPx, FromYPx int16
	ToXPx, ToYPx     int16
	FromXSubpx, FromYSubpx uint8
	ToXSubpx, ToYSubpx     uint8
	PathIndex uint32
}

const microlineByteSize = 16

// FirstTile seeds the per-framebuffer-tile linked list heads with -1.
type FirstTile struct {
	FirstTile int32
}

// AlphaTile pairs an allocated alpha tile with its clip partner (or ~0).
type AlphaTile struct {
	AlphaTileIndex uint32
	ClipTileIndex  uint32
}

const alphaTileByteSize = 8

// BackdropInfo is one initial tile-column backdrop for the propagate pass.
type BackdropInfo struct {
	InitialBackdrop int32
	// TileXOffset is the column number, 0 = leftmost column of the path's
	// tile rect.
	TileXOffset int32
	PathIndex   uint32
}

const backdropInfoByteSize = 12

// PropagateMetadata maps a batch path to its tile storage for propagation.
type PropagateMetadata struct {
	TileRect       geom.RectI
	TileOffset     uint32
	PathIndex      uint32
	ZWrite         uint32
	ClipPathIndex  uint32 // index into the clip batch; NoClipPath if unclipped
	BackdropOffset uint32
}

const propagateMetadataByteSize = 48

// NoClipPath marks a path with no clip in PropagateMetadata.
const NoClipPath = ^uint32(0)

// DiceMetadata names one path's slice of the scene segment buffers.
type DiceMetadata struct {
	// GlobalPathID is a draw path id or clip path id depending on the
	// batch's source.
	GlobalPathID            uint32
	FirstGlobalSegmentIndex uint32
	FirstBatchSegmentIndex  uint32
}

const diceMetadataByteSize = 16

// TilePathInfo seeds each tile record in the bound pass.
type TilePathInfo struct {
	TileMinX, TileMinY int16
	TileMaxX, TileMaxY int16
	FirstTileIndex     uint32
	// Color/Ctrl/Backdrop must match TileD3D11's trailing field order.
	Color    uint16
	Ctrl     uint8
	Backdrop int8
}

const tilePathInfoByteSize = 16

const computeTileByteSize = 16

// PathSource distinguishes draw-path batches from clip-path batches.
type PathSource uint8

const (
	PathSourceDraw PathSource = iota
	PathSourceClip
)

// GlobalPathID addresses a path across batches.
type GlobalPathID struct {
	BatchID   uint32
	PathIndex uint32
}

// SegmentIndices is one segment's entry in the scene segment buffer: the
// index of its first point and a flag word encoding its kind.
type SegmentIndices struct {
	FirstPointIndex uint32
	Flag            uint32
}

// Segment flag words the dice kernel consumes.
const (
	SegmentFlagLine  uint32 = 0
	SegmentFlagQuad  uint32 = 1
	SegmentFlagCubic uint32 = 2
)

const segmentIndicesByteSize = 8

// Segments is a scene's flattened per-path point/index arrays, uploaded as
// the dice pass's two source buffers.
type Segments struct {
	Points  []geom.Vec2
	Indices []SegmentIndices
}

// Range is a [Start,End) index range.
type Range struct {
	Start, End uint32
}

// AddPath encodes an outline's segments, returning the segment index range
// it occupies.
func (s *Segments) AddPath(o outline.Outline) Range {
	start := uint32(len(s.Indices))
	for _, c := range o.Contours {
		for _, seg := range c.Segments {
			first := uint32(len(s.Points))
			switch seg.Kind {
			case outline.SegmentLine:
				s.Points = append(s.Points, seg.Baseline.From, seg.Baseline.To)
				s.Indices = append(s.Indices, SegmentIndices{FirstPointIndex: first, Flag: SegmentFlagLine})
			case outline.SegmentQuad:
				s.Points = append(s.Points, seg.Baseline.From, seg.Ctrl.From, seg.Baseline.To)
				s.Indices = append(s.Indices, SegmentIndices{FirstPointIndex: first, Flag: SegmentFlagQuad})
			case outline.SegmentCubic:
				s.Points = append(s.Points, seg.Baseline.From, seg.Ctrl.From, seg.Ctrl.To, seg.Baseline.To)
				s.Indices = append(s.Indices, SegmentIndices{FirstPointIndex: first, Flag: SegmentFlagCubic})
			}
		}
		// Close the contour: an open fill contour still bounds a region.
		if n := len(c.Segments); n > 0 && !c.Closed {
			last := c.Segments[n-1].Baseline.To
			firstPt := c.Segments[0].Baseline.From
			if last != firstPt {
				first := uint32(len(s.Points))
				s.Points = append(s.Points, last, firstPt)
				s.Indices = append(s.Indices, SegmentIndices{FirstPointIndex: first, Flag: SegmentFlagLine})
			}
		}
	}
	return Range{Start: start, End: uint32(len(s.Indices))}
}

// PrepareInfo is everything a batch needs to run the prepare passes.
type PrepareInfo struct {
	Backdrops         []BackdropInfo
	PropagateMetadata []PropagateMetadata
	DiceMetadata      []DiceMetadata
	TilePathInfo      []TilePathInfo
	Transform         geom.Affine
}

// ClippedPathInfo records which clip batch a draw batch depends on.
type ClippedPathInfo struct {
	ClipBatchID      uint32
	ClippedPathCount uint32
}

// TileBatchData is one batch of paths prepared together on the GPU.
type TileBatchData struct {
	BatchID      uint32
	PathCount    uint32
	TileCount    uint32
	SegmentCount uint32
	PrepareInfo  PrepareInfo
	PathSource   PathSource
	ClippedPaths *ClippedPathInfo
}

// Push appends one path to the batch: its tile rect, initial column
// backdrops, dice slice, and propagate metadata.
func (b *TileBatchData) Push(tileRect geom.RectI, globalPathID uint32, segments Range, clipPathIndex uint32, zWrite uint32, color uint16, ctrl uint8) uint32 {
	pathIndex := b.PathCount
	b.PathCount++

	tileCount := uint32(tileRect.Area())
	b.PrepareInfo.PropagateMetadata = append(b.PrepareInfo.PropagateMetadata, PropagateMetadata{
		TileRect:       tileRect,
		TileOffset:     b.TileCount,
		PathIndex:      pathIndex,
		ZWrite:         zWrite,
		ClipPathIndex:  clipPathIndex,
		BackdropOffset: uint32(len(b.PrepareInfo.Backdrops)),
	})
	b.PrepareInfo.DiceMetadata = append(b.PrepareInfo.DiceMetadata, DiceMetadata{
		GlobalPathID:            globalPathID,
		FirstGlobalSegmentIndex: segments.Start,
		FirstBatchSegmentIndex:  b.SegmentCount,
	})
	b.PrepareInfo.TilePathInfo = append(b.PrepareInfo.TilePathInfo, TilePathInfo{
		TileMinX:       int16(tileRect.MinX),
		TileMinY:       int16(tileRect.MinY),
		TileMaxX:       int16(tileRect.MaxX),
		TileMaxY:       int16(tileRect.MaxY),
		FirstTileIndex: b.TileCount,
		Color:          color,
		Ctrl:           ctrl,
	})
	for x := int32(0); x < tileRect.Width(); x++ {
		b.PrepareInfo.Backdrops = append(b.PrepareInfo.Backdrops, BackdropInfo{
			TileXOffset: x,
			PathIndex:   pathIndex,
		})
	}

	b.TileCount += tileCount
	b.SegmentCount += segments.End - segments.Start
	return pathIndex
}

// DrawTileBatch pairs a batch's prepare data with its draw state.
type DrawTileBatch struct {
	Data         TileBatchData
	ColorTexture *rendercore.TileBatchTextureInfo
	RenderTarget *uint32
}

// ClipBatches collects the frame's clip-path batches; they are prepared in
// reverse (LIFO) order so clip dependencies resolve before dependents.
type ClipBatches struct {
	PrepareBatches []TileBatchData
	// ClipIDToPathIndex maps a scene clip path id to its path index
	// within the clip batch.
	ClipIDToPathIndex map[uint32]uint32
}

// BuiltSegments is the per-frame segment encoding of every path.
type BuiltSegments struct {
	DrawSegments Segments
	ClipSegments Segments

	DrawRanges []Range
	ClipRanges []Range
}

// TileRectForOutline is the tile rect a path occupies: its device bounds
// intersected with the view box, in tile coordinates.
func TileRectForOutline(o outline.Outline, viewBox geom.Rect) geom.RectI {
	return geom.TileRectForBounds(o.Bounds.Intersection(viewBox), tiledata.TileWidth)
}

package d3d11

import (
	"github.com/gogpu/gg/drawscene"
	"github.com/gogpu/gg/geom"
	"github.com/gogpu/gg/logging"
	"github.com/gogpu/gg/paint"
	"github.com/gogpu/gg/rendercore"
	"github.com/gogpu/gg/tiledata"
	"github.com/gogpu/gg/tiler"
)

// SceneBuilder encodes a scene for the compute strategy: segments for the
// dice pass, one clip batch prepared up front, and draw tile batches in
// display-list order.
type SceneBuilder struct {
	Log logging.Logger

	Segments    BuiltSegments
	ClipBatches ClipBatches
	TileBatches []DrawTileBatch

	PaintInfo        paint.PaintInfo
	PatternPageCount int
	PatternPageEdge  int

	nextBatchID uint32
}

// Build encodes the scene's paths and slices its display list into tile
// batches. Unlike the raster strategy there is no CPU tiling: the batches
// carry only the metadata the compute passes need.
func (b *SceneBuilder) Build(scene *drawscene.Scene) error {
	log := logging.Or(b.Log)

	b.Segments = BuiltSegments{}
	b.ClipBatches = ClipBatches{ClipIDToPathIndex: make(map[uint32]uint32)}
	b.TileBatches = nil
	b.nextBatchID = 0

	info, err := scene.Palette.BuildPaintInfo()
	if err != nil {
		return err
	}
	b.PaintInfo = info
	b.PatternPageCount = scene.Palette.PageCount()
	b.PatternPageEdge = scene.Palette.PageEdge()

	b.Segments.ClipRanges = make([]Range, len(scene.ClipPaths))
	for i, cp := range scene.ClipPaths {
		b.Segments.ClipRanges[i] = b.Segments.ClipSegments.AddPath(cp.Outline)
	}
	b.Segments.DrawRanges = make([]Range, len(scene.DrawPaths))
	for i, dp := range scene.DrawPaths {
		b.Segments.DrawRanges[i] = b.Segments.DrawSegments.AddPath(dp.Outline)
	}

	// One clip batch carries every referenced clip path; it is prepared
	// before the draw batches so their propagate passes can read its
	// tiles.
	clipBatch := TileBatchData{BatchID: b.allocBatchID(), PathSource: PathSourceClip}
	clipBatch.PrepareInfo.Transform = geom.Identity()
	ensureClip := func(clipID uint32) uint32 {
		if idx, ok := b.ClipBatches.ClipIDToPathIndex[clipID]; ok {
			return idx
		}
		cp := scene.ClipPaths[clipID]
		rect := TileRectForOutline(cp.Outline, scene.ViewBox)
		idx := clipBatch.Push(rect, clipID, b.Segments.ClipRanges[clipID], NoClipPath, 0, 0, 0)
		b.ClipBatches.ClipIDToPathIndex[clipID] = idx
		return idx
	}

	var (
		batch     *DrawTileBatch
		rtStack   []uint32
		currentRT *uint32
	)

	flush := func() {
		if batch != nil && batch.Data.PathCount > 0 {
			b.TileBatches = append(b.TileBatches, *batch)
		}
		batch = nil
	}

	for _, item := range scene.Display {
		switch item.Kind {
		case tiledata.DisplayItemPushRenderTarget:
			flush()
			rtStack = append(rtStack, item.RenderTargetID)
			id := item.RenderTargetID
			currentRT = &id

		case tiledata.DisplayItemPopRenderTarget:
			flush()
			if n := len(rtStack); n > 0 {
				rtStack = rtStack[:n-1]
				if n-1 > 0 {
					id := rtStack[n-2]
					currentRT = &id
				} else {
					currentRT = nil
				}
			}

		case tiledata.DisplayItemDrawPaths:
			for pathIdx := item.PathBegin; pathIdx < item.PathEnd; pathIdx++ {
				dp := scene.DrawPaths[pathIdx]
				if int(dp.PaintID) >= len(info.Metadata) {
					log.Error("d3d11: draw path references unknown paint", "path", pathIdx, "paint", dp.PaintID)
					continue
				}
				meta := info.Metadata[dp.PaintID]
				texInfo := rendercore.TextureInfoForPaint(meta)

				if batch != nil && !batchCompatible(batch, texInfo, currentRT) {
					flush()
				}
				if batch == nil {
					batch = &DrawTileBatch{
						Data:         TileBatchData{BatchID: b.allocBatchID(), PathSource: PathSourceDraw},
						ColorTexture: texInfo,
						RenderTarget: copyRT(currentRT),
					}
					batch.Data.PrepareInfo.Transform = geom.Identity()
				}

				clipPathIndex := NoClipPath
				if dp.ClipID != drawscene.NoClip && int(dp.ClipID) < len(scene.ClipPaths) {
					clipPathIndex = ensureClip(uint32(dp.ClipID))
					if batch.Data.ClippedPaths == nil {
						batch.Data.ClippedPaths = &ClippedPathInfo{ClipBatchID: clipBatch.BatchID}
					}
					batch.Data.ClippedPaths.ClippedPathCount++
				}

				rect := TileRectForOutline(dp.Outline, scene.ViewBox)
				ctrl := tiledata.TileCtrlMaskWinding
				if dp.Rule == tiler.FillEvenOdd {
					ctrl = tiledata.TileCtrlMaskEvenOdd
				}
				batch.Data.Push(rect, pathIdx, b.Segments.DrawRanges[pathIdx], clipPathIndex, pathIdx, uint16(dp.PaintID), ctrl)
			}
		}
	}
	flush()

	if clipBatch.PathCount > 0 {
		b.ClipBatches.PrepareBatches = append(b.ClipBatches.PrepareBatches, clipBatch)
	}
	return nil
}

func (b *SceneBuilder) allocBatchID() uint32 {
	id := b.nextBatchID
	b.nextBatchID++
	return id
}

func batchCompatible(batch *DrawTileBatch, tex *rendercore.TileBatchTextureInfo, rt *uint32) bool {
	if (batch.RenderTarget == nil) != (rt == nil) {
		return false
	}
	if batch.RenderTarget != nil && *batch.RenderTarget != *rt {
		return false
	}
	if (batch.ColorTexture == nil) != (tex == nil) {
		return false
	}
	if batch.ColorTexture != nil && *batch.ColorTexture != *tex {
		return false
	}
	return true
}

func copyRT(rt *uint32) *uint32 {
	if rt == nil {
		return nil
	}
	id := *rt
	return &id
}

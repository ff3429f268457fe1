package d3d9

import (
	"github.com/gogpu/gg/drawscene"
	"github.com/gogpu/gg/geom"
	"github.com/gogpu/gg/logging"
	"github.com/gogpu/gg/paint"
	"github.com/gogpu/gg/rendercore"
	"github.com/gogpu/gg/tiledata"
	"github.com/gogpu/gg/tiler"
)

// DrawTileBatch groups tiles that share a color texture, render target,
// and blend mode, so the renderer can composite them in one instanced
// draw. Z-buffer data rides along for occlusion culling in the tile
// shader.
type DrawTileBatch struct {
	Tiles []tiledata.RasterTile
	Clips []tiledata.Clip

	// ZBuffer is a dense framebuffer-tile-grid map of the highest opaque
	// solid-tile z at each coordinate, uploaded as an RGBA8 texture.
	ZBuffer     []uint32
	ZBufferRect geom.RectI

	ColorTexture *rendercore.TileBatchTextureInfo

	// RenderTarget selects a declared render target; nil draws to the
	// destination texture.
	RenderTarget *uint32

	Blend drawscene.Blend
}

// SceneBuilder tiles every path of a scene on the CPU and batches the
// results for the raster-strategy renderer.
type SceneBuilder struct {
	Log logging.Logger

	// PendingFills is the frame's global fill list; tile fill lists are
	// linked through it.
	PendingFills []tiledata.Fill

	// TileBatches are drawn in order after the fill pass.
	TileBatches []DrawTileBatch

	// PaintInfo is the palette build output for this frame.
	PaintInfo paint.PaintInfo

	// PatternPageCount/PatternPageEdge mirror the palette's atlas shape
	// for the renderer's page texture allocation.
	PatternPageCount int
	PatternPageEdge  int

	nextAlphaTile uint32
	viewBox       geom.Rect
	fbTileRect    geom.RectI
}

// AllocateAlphaTile implements tiler.AlphaTileAllocator with a bump
// counter; ids within a frame form a contiguous strictly increasing
// prefix.
func (b *SceneBuilder) AllocateAlphaTile() tiledata.AlphaTileID {
	n := b.nextAlphaTile
	b.nextAlphaTile++
	return tiledata.NewAlphaTileID(n>>16, uint16(n&0xFFFF))
}

// AlphaTileCount reports how many alpha tiles the built scene needs.
func (b *SceneBuilder) AlphaTileCount() uint32 { return b.nextAlphaTile }

// Build tiles the scene: clip paths first (draw paths reference their
// built tiles), then every draw path in display-list order, slicing the
// output into DrawTileBatches.
func (b *SceneBuilder) Build(scene *drawscene.Scene) error {
	log := logging.Or(b.Log)

	b.PendingFills = nil
	b.TileBatches = nil
	b.nextAlphaTile = 0
	b.viewBox = scene.ViewBox

	info, err := scene.Palette.BuildPaintInfo()
	if err != nil {
		return err
	}
	b.PaintInfo = info
	b.PatternPageCount = scene.Palette.PageCount()
	b.PatternPageEdge = scene.Palette.PageEdge()

	fbW := int32(geom.CeilDiv(int(scene.ViewBox.Width()), tiledata.TileWidth))
	fbH := int32(geom.CeilDiv(int(scene.ViewBox.Height()), tiledata.TileHeight))
	b.fbTileRect = geom.RectI{MaxX: fbW, MaxY: fbH}

	fills := &tiler.FillStore{}

	// Clip paths build first so draw paths can intersect against them.
	builtClips := make([]*tiler.BuiltPath, len(scene.ClipPaths))
	for i, cp := range scene.ClipPaths {
		t := tiler.NewTiler(uint32(i), cp.Outline, cp.Rule, scene.ViewBox, nil, tiler.TilingPathInfo{}, fills, b)
		t.DebugLog = b.Log
		t.GenerateTiles()
		builtClips[i] = t.BuiltPath()
	}

	var (
		batch     *DrawTileBatch
		rtStack   []uint32
		currentRT *uint32
	)

	flush := func() {
		if batch != nil && len(batch.Tiles) > 0 {
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
					log.Error("d3d9: draw path references unknown paint", "path", pathIdx, "paint", dp.PaintID)
					continue
				}
				meta := info.Metadata[dp.PaintID]

				var clip *tiler.BuiltPath
				if dp.ClipID != drawscene.NoClip && int(dp.ClipID) < len(builtClips) {
					clip = builtClips[dp.ClipID]
				}

				pathInfo := tiler.TilingPathInfo{
					PaintID: dp.PaintID,
					Ctrl:    ruleCtrl(dp.Rule),
					ZWrite:  pathIdx,
				}
				t := tiler.NewTiler(pathIdx, dp.Outline, dp.Rule, scene.ViewBox, clip, pathInfo, fills, b)
				t.DebugLog = b.Log
				t.GenerateTiles()
				built := t.BuiltPath()

				texInfo := rendercore.TextureInfoForPaint(meta)
				if batch != nil && !batchCompatible(batch, texInfo, currentRT, dp.Blend) {
					flush()
				}
				if batch == nil {
					batch = &DrawTileBatch{
						ZBuffer:      make([]uint32, b.fbTileRect.Area()),
						ZBufferRect:  b.fbTileRect,
						ColorTexture: texInfo,
						RenderTarget: copyRT(currentRT),
						Blend:        dp.Blend,
					}
				}

				b.appendBuiltPath(batch, built, meta.Opaque)
			}
		}
	}
	flush()

	b.PendingFills = fills.Fills
	return nil
}

// appendBuiltPath copies a built path's live tiles into the batch,
// dropping empty tiles and folding opaque solid tiles into the z buffer.
func (b *SceneBuilder) appendBuiltPath(batch *DrawTileBatch, built *tiler.BuiltPath, opaque bool) {
	for _, tile := range built.Tiles {
		alpha := tile.AlphaTileID().IsValid()
		covered := built.Rule.Covered(int32(tile.Backdrop))
		if !alpha && !covered {
			continue
		}

		coords := geom.Vec2I{X: int32(tile.TileX), Y: int32(tile.TileY)}
		if !b.fbTileRect.ContainsPoint(coords) {
			continue
		}

		if opaque && !alpha && covered {
			// Opaque solid tile: raise the z floor so the tile shader can
			// skip older tiles beneath it.
			i := int(coords.Y)*int(b.fbTileRect.Width()) + int(coords.X)
			if z := uint32(built.PathID); batch.ZBuffer[i] < z {
				batch.ZBuffer[i] = z
			}
		}

		batch.Tiles = append(batch.Tiles, tile)
	}
	batch.Clips = append(batch.Clips, built.Clips...)
}

// ruleCtrl encodes a path's fill rule into the tile record's ctrl byte.
// The per-paint composite/combine/filter bits live in the metadata texture
// row, not here.
func ruleCtrl(rule tiler.FillRule) uint8 {
	if rule == tiler.FillEvenOdd {
		return tiledata.TileCtrlMaskEvenOdd
	}
	return tiledata.TileCtrlMaskWinding
}

func batchCompatible(batch *DrawTileBatch, tex *rendercore.TileBatchTextureInfo, rt *uint32, blend drawscene.Blend) bool {
	if batch.Blend != blend {
		return false
	}
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

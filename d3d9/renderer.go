// Package d3d9 implements the raster rendering strategy (spec.md §4.6's
// "D3D9 path"): the CPU tiler produces fill and tile records per draw
// path, a fill pass accumulates coverage additively into the mask atlas,
// optional clip-copy/clip-combine passes intersect draw tiles with clip
// tiles, and a tile pass composites each batch into its target.
//
// Grounded on original_source/pathfinder's core/d3d9/renderer.cpp for the
// pass sequencing, pipeline layouts, and uniform blocks, expressed through
// this module's gpuabi abstraction in the teacher's command-recording
// idiom (explicit begin/end pass, bind, draw per encoder).
package d3d9

import (
	"fmt"

	"github.com/gogpu/gg/gpuabi"
	"github.com/gogpu/gg/rendercore"
	"github.com/gogpu/gg/tiledata"
)

// quadVertexPositions is the fixed 12-u16 two-triangle quad every
// instanced pass expands per instance.
var quadVertexPositions = [12]uint16{0, 0, 1, 0, 0, 1, 1, 0, 1, 1, 0, 1}

const (
	fillInstanceSize = 12
	tileInstanceSize = 20
	clipInstanceSize = 16
)

// Renderer drives the raster strategy's pass graph.
type Renderer struct {
	*rendercore.Core

	quadVertexBuffer gpuabi.BufferID
	fillUniform      gpuabi.BufferID
	tileUniform      gpuabi.BufferID

	maskPassClear gpuabi.RenderPassID
	maskPassLoad  gpuabi.RenderPassID
	destPassClear gpuabi.RenderPassID
	destPassLoad  gpuabi.RenderPassID

	fillPipeline        gpuabi.RenderPipelineID
	tilePipeline        gpuabi.RenderPipelineID
	clipCopyPipeline    gpuabi.RenderPipelineID
	clipCombinePipeline gpuabi.RenderPipelineID

	shaders  ShaderSet
	pageEdge int
}

// ShaderSet names the four compiled render-pipeline shader pairs the
// raster strategy needs. The bytes are opaque compiled modules.
type ShaderSet struct {
	FillVert, FillFrag               []byte
	TileVert, TileFrag               []byte
	ClipCopyVert, ClipCopyFrag       []byte
	ClipCombineVert, ClipCombineFrag []byte
}

// NewRenderer creates the raster renderer on a shared core, uploads the
// quad vertex buffer, and builds its pipelines.
func NewRenderer(core *rendercore.Core, shaders ShaderSet) (*Renderer, error) {
	r := &Renderer{Core: core, shaders: shaders}

	var err error
	if r.maskPassClear, err = core.Device.CreateRenderPass(gpuabi.RenderPassDesc{
		ColorFormat: maskTextureFormat, Load: gpuabi.LoadOpClear, Label: "mask render pass clear",
	}); err != nil {
		return nil, err
	}
	if r.maskPassLoad, err = core.Device.CreateRenderPass(gpuabi.RenderPassDesc{
		ColorFormat: maskTextureFormat, Load: gpuabi.LoadOpLoad, Label: "mask render pass load",
	}); err != nil {
		return nil, err
	}
	if r.destPassClear, err = core.Device.CreateRenderPass(gpuabi.RenderPassDesc{
		ColorFormat: gpuabi.FormatRGBA8Unorm, Load: gpuabi.LoadOpClear, Label: "dest render pass clear",
	}); err != nil {
		return nil, err
	}
	if r.destPassLoad, err = core.Device.CreateRenderPass(gpuabi.RenderPassDesc{
		ColorFormat: gpuabi.FormatRGBA8Unorm, Load: gpuabi.LoadOpLoad, Label: "dest render pass load",
	}); err != nil {
		return nil, err
	}

	if r.quadVertexBuffer, err = core.Alloc.AllocateBuffer(
		uint64(len(quadVertexPositions)*2), gpuabi.BufferVertex, gpuabi.MemoryDeviceLocal, "quad vertex buffer",
	); err != nil {
		return nil, err
	}
	if r.fillUniform, err = core.Alloc.AllocateBuffer(16, gpuabi.BufferUniform, gpuabi.MemoryHostVisibleCoherent, "fill uniform buffer"); err != nil {
		return nil, err
	}
	if r.tileUniform, err = core.Alloc.AllocateBuffer(48+64, gpuabi.BufferUniform, gpuabi.MemoryHostVisibleCoherent, "tile uniform buffer"); err != nil {
		return nil, err
	}

	enc := core.Device.CreateCommandEncoder("upload quad vertex data")
	quad := make([]byte, 0, len(quadVertexPositions)*2)
	for _, v := range quadVertexPositions {
		quad = appendU16(quad, v)
	}
	enc.WriteBuffer(r.quadVertexBuffer, 0, quad)
	if err := enc.Finish(); err != nil {
		return nil, err
	}
	if err := core.Queue.SubmitAndWait(enc); err != nil {
		return nil, err
	}

	if err := r.setUpPipelines(); err != nil {
		return nil, err
	}
	return r, nil
}

// maskTextureFormat is RGBA16F for the raster strategy: each fragment
// packs four scanlines into the RGBA channels, which needs the headroom of
// half floats for summed coverage.
const maskTextureFormat = gpuabi.FormatRGBA16Float

// maskPageHeight is the raster strategy's mask page height (the 4x
// vertically compressed variant; see tiledata's paired constants).
const maskPageHeight = tiledata.MaskFramebufferHeightRaster

func (r *Renderer) setUpPipelines() error {
	dev := r.Device

	makeModule := func(kind gpuabi.ShaderKind, name string, bytes []byte) (gpuabi.ShaderModuleID, error) {
		return dev.CreateShaderModule(kind, name, bytes)
	}

	// Fill pipeline: quad positions plus per-instance fill records,
	// additive blending into the mask.
	{
		vert, err := makeModule(gpuabi.ShaderVertex, "fill vert", r.shaders.FillVert)
		if err != nil {
			return err
		}
		frag, err := makeModule(gpuabi.ShaderFragment, "fill frag", r.shaders.FillFrag)
		if err != nil {
			return err
		}
		attrs := []gpuabi.VertexAttribute{
			{Binding: 0, Components: 2, Type: gpuabi.ElemU16, Stride: 4, Offset: 0, Step: gpuabi.StepPerVertex},
			{Binding: 1, Components: 4, Type: gpuabi.ElemU16, Stride: fillInstanceSize, Offset: 0, Step: gpuabi.StepPerInstance},
			{Binding: 1, Components: 1, Type: gpuabi.ElemU32, Stride: fillInstanceSize, Offset: 8, Step: gpuabi.StepPerInstance},
		}
		r.fillPipeline, err = dev.CreateRenderPipeline(gpuabi.RenderPipelineDesc{
			Label: "fill pipeline", Pass: r.maskPassClear,
			Vertex: vert, Fragment: frag,
			Attributes: attrs, Blend: gpuabi.BlendEqual,
		})
		if err != nil {
			return err
		}
	}

	// Tile pipeline: quad positions plus per-instance tile records,
	// source-over onto the target.
	{
		vert, err := makeModule(gpuabi.ShaderVertex, "tile vert", r.shaders.TileVert)
		if err != nil {
			return err
		}
		frag, err := makeModule(gpuabi.ShaderFragment, "tile frag", r.shaders.TileFrag)
		if err != nil {
			return err
		}
		attrs := []gpuabi.VertexAttribute{
			{Binding: 0, Components: 2, Type: gpuabi.ElemU16, Stride: 4, Offset: 0, Step: gpuabi.StepPerVertex},
			{Binding: 1, Components: 2, Type: gpuabi.ElemI16, Stride: tileInstanceSize, Offset: 0, Step: gpuabi.StepPerInstance},
			{Binding: 1, Components: 4, Type: gpuabi.ElemU8, Stride: tileInstanceSize, Offset: 4, Step: gpuabi.StepPerInstance},
			{Binding: 1, Components: 2, Type: gpuabi.ElemI8, Stride: tileInstanceSize, Offset: 7, Step: gpuabi.StepPerInstance},
			{Binding: 1, Components: 1, Type: gpuabi.ElemI32, Stride: tileInstanceSize, Offset: 12, Step: gpuabi.StepPerInstance},
			{Binding: 1, Components: 1, Type: gpuabi.ElemU32, Stride: tileInstanceSize, Offset: 16, Step: gpuabi.StepPerInstance},
		}
		r.tilePipeline, err = dev.CreateRenderPipeline(gpuabi.RenderPipelineDesc{
			Label: "tile pipeline", Pass: r.destPassLoad,
			Vertex: vert, Fragment: frag,
			Attributes: attrs, Blend: gpuabi.BlendOver,
		})
		if err != nil {
			return err
		}
	}

	// Clip copy: duplicates destination alpha tiles into the scratch
	// mask, blending disabled (replace).
	{
		vert, err := makeModule(gpuabi.ShaderVertex, "tile clip copy vert", r.shaders.ClipCopyVert)
		if err != nil {
			return err
		}
		frag, err := makeModule(gpuabi.ShaderFragment, "tile clip copy frag", r.shaders.ClipCopyFrag)
		if err != nil {
			return err
		}
		attrs := []gpuabi.VertexAttribute{
			{Binding: 0, Components: 2, Type: gpuabi.ElemU16, Stride: 4, Offset: 0, Step: gpuabi.StepPerVertex},
			// Half the clip stride: the copy pass reads dest and src
			// halves as two consecutive instances.
			{Binding: 1, Components: 1, Type: gpuabi.ElemI32, Stride: clipInstanceSize / 2, Offset: 0, Step: gpuabi.StepPerInstance},
		}
		r.clipCopyPipeline, err = dev.CreateRenderPipeline(gpuabi.RenderPipelineDesc{
			Label: "tile clip copy pipeline", Pass: r.maskPassClear,
			Vertex: vert, Fragment: frag,
			Attributes: attrs, Blend: gpuabi.BlendReplace,
		})
		if err != nil {
			return err
		}
	}

	// Clip combine: multiplies the clip mask into the draw mask in
	// place, blending disabled.
	{
		vert, err := makeModule(gpuabi.ShaderVertex, "tile clip combine vert", r.shaders.ClipCombineVert)
		if err != nil {
			return err
		}
		frag, err := makeModule(gpuabi.ShaderFragment, "tile clip combine frag", r.shaders.ClipCombineFrag)
		if err != nil {
			return err
		}
		attrs := []gpuabi.VertexAttribute{
			{Binding: 0, Components: 2, Type: gpuabi.ElemU16, Stride: 4, Offset: 0, Step: gpuabi.StepPerVertex},
			{Binding: 1, Components: 1, Type: gpuabi.ElemI32, Stride: clipInstanceSize, Offset: 0, Step: gpuabi.StepPerInstance},
			{Binding: 1, Components: 1, Type: gpuabi.ElemI32, Stride: clipInstanceSize, Offset: 4, Step: gpuabi.StepPerInstance},
			{Binding: 1, Components: 1, Type: gpuabi.ElemI32, Stride: clipInstanceSize, Offset: 8, Step: gpuabi.StepPerInstance},
			{Binding: 1, Components: 1, Type: gpuabi.ElemI32, Stride: clipInstanceSize, Offset: 12, Step: gpuabi.StepPerInstance},
		}
		r.clipCombinePipeline, err = dev.CreateRenderPipeline(gpuabi.RenderPipelineDesc{
			Label: "tile clip combine pipeline", Pass: r.maskPassLoad,
			Vertex: vert, Fragment: frag,
			Attributes: attrs, Blend: gpuabi.BlendReplace,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Draw renders a built scene: (re)allocate mask pages, draw fills into the
// mask, then upload and draw each tile batch in order. clearDst controls
// whether the first destination pass clears.
func (r *Renderer) Draw(builder *SceneBuilder, clearDst bool) error {
	r.ClearDest = clearDst
	r.AlphaTileCount = builder.AlphaTileCount()

	pageEdge := builder.PatternPageEdge
	if pageEdge <= 0 {
		pageEdge = patternPageEdge
	}
	r.pageEdge = pageEdge
	if err := r.UploadPaintInfo(builder.PaintInfo, builder.PatternPageCount, pageEdge); err != nil {
		return err
	}

	if err := r.ReallocateMaskIfNeeded(maskPageHeight, maskTextureFormat); err != nil {
		return err
	}

	if len(builder.PendingFills) > 0 {
		enc := r.Device.CreateCommandEncoder("upload & draw fills")
		fillBuf, err := r.uploadFills(builder.PendingFills, enc)
		if err != nil {
			return err
		}
		r.drawFills(uint32(len(builder.PendingFills)), fillBuf, enc)
		if err := enc.Finish(); err != nil {
			return err
		}
		if err := r.Queue.SubmitAndWait(enc); err != nil {
			return err
		}
		r.Alloc.FreeBuffer(fillBuf)
	}

	return r.uploadAndDrawTiles(builder.TileBatches)
}

// patternPageEdge is the default pattern atlas page size, used when a
// builder carries no palette page shape.
const patternPageEdge = 1024

func (r *Renderer) uploadFills(fills []tiledata.Fill, enc gpuabi.CommandEncoder) (gpuabi.BufferID, error) {
	data := make([]byte, 0, len(fills)*fillInstanceSize)
	for _, f := range fills {
		data = appendU16(data, f.FromX)
		data = appendU16(data, f.FromY)
		data = appendU16(data, f.ToX)
		data = appendU16(data, f.ToY)
		data = appendU32(data, f.Link)
	}
	buf, err := r.Alloc.AllocateBuffer(uint64(len(data)), gpuabi.BufferVertex, gpuabi.MemoryHostVisibleCoherent, "fill vertex buffer")
	if err != nil {
		return 0, err
	}
	enc.WriteBuffer(buf, 0, data)
	return buf, nil
}

// drawFills renders 6 x fillCount instanced triangles into the mask
// texture with additive blending, summing coverage.
func (r *Renderer) drawFills(fillCount uint32, fillBuf gpuabi.BufferID, enc gpuabi.CommandEncoder) {
	maskW := float32(tiledata.MaskFramebufferWidth)
	maskH := float32(maskPageHeight * r.Mask.AllocatedPageCount)

	var uniform []byte
	uniform = appendF32(uniform, tiledata.TileWidth, tiledata.TileHeight)
	uniform = appendF32(uniform, maskW, maskH)
	enc.WriteBuffer(r.fillUniform, 0, uniform)

	enc.BeginRenderPass(r.maskPassClear, r.Mask.Texture, [4]float32{}, gpuabi.LoadOpClear)
	enc.SetViewport(0, 0, maskW, maskH)
	enc.BindRenderPipeline(r.fillPipeline)
	enc.BindVertexBuffer(0, r.quadVertexBuffer)
	enc.BindVertexBuffer(1, fillBuf)
	r.bindFillDescriptors(enc)
	enc.Draw(gpuabi.DrawCall{VertexCount: 6, InstanceCount: fillCount})
	enc.EndRenderPass()
}

func (r *Renderer) bindFillDescriptors(enc gpuabi.CommandEncoder) {
	set, err := r.Device.CreateDescriptorSet([]gpuabi.Binding{
		{Index: 0, Kind: gpuabi.BindingUniformBuffer, Stages: gpuabi.StageVertex, Buffer: r.fillUniform},
		{Index: 1, Kind: gpuabi.BindingSampler, Stages: gpuabi.StageFragment, Texture: r.AreaLUT, Sampler: r.DefaultSampler},
	})
	if err != nil {
		r.Log.Error("d3d9: fill descriptor set", "err", err)
		return
	}
	enc.BindDescriptorSet(0, set)
}

func (r *Renderer) uploadAndDrawTiles(batches []DrawTileBatch) error {
	for i := range batches {
		batch := &batches[i]
		if len(batch.Tiles) == 0 {
			continue
		}

		// One encoder per batch, waited to completion, so the shared tile
		// vertex buffer slot can be reused by the next batch.
		enc := r.Device.CreateCommandEncoder("upload & draw tiles")

		if len(batch.Clips) > 0 {
			clipBuf, err := r.uploadClips(batch.Clips, enc)
			if err != nil {
				return err
			}
			if err := r.clipTiles(uint32(len(batch.Clips)), clipBuf, enc); err != nil {
				return err
			}
			r.Alloc.FreeBuffer(clipBuf)
		}

		tileBuf, err := r.uploadTiles(batch.Tiles, enc)
		if err != nil {
			return err
		}
		zTex, err := r.uploadZBuffer(batch, enc)
		if err != nil {
			return err
		}

		if err := r.drawTiles(batch, tileBuf, zTex, enc); err != nil {
			// A missing color texture drops the batch, not the frame.
			r.Log.Error("d3d9: dropping tile batch", "batch", i, "err", err)
		}

		if err := enc.Finish(); err != nil {
			return err
		}
		if err := r.Queue.SubmitAndWait(enc); err != nil {
			return err
		}

		r.Alloc.FreeTexture(zTex)
		r.Alloc.FreeBuffer(tileBuf)
	}
	return nil
}

func (r *Renderer) uploadTiles(tiles []tiledata.RasterTile, enc gpuabi.CommandEncoder) (gpuabi.BufferID, error) {
	data := make([]byte, 0, len(tiles)*tileInstanceSize)
	for _, t := range tiles {
		data = appendU16(data, uint16(t.TileX))
		data = appendU16(data, uint16(t.TileY))
		data = appendU16(data, t.AlphaTileLo)
		data = append(data, byte(t.AlphaTileHi), t.Ctrl, byte(t.Backdrop))
		// Three pad bytes keep path_id 4-byte aligned within the stride.
		data = append(data, 0, 0, 0)
		data = appendU32(data, uint32(t.PathID))
		data = appendU32(data, t.MetadataID)
	}
	buf, err := r.Alloc.AllocateBuffer(uint64(len(data)), gpuabi.BufferVertex, gpuabi.MemoryHostVisibleCoherent, "tile vertex buffer")
	if err != nil {
		return 0, err
	}
	enc.WriteBuffer(buf, 0, data)
	return buf, nil
}

func (r *Renderer) uploadZBuffer(batch *DrawTileBatch, enc gpuabi.CommandEncoder) (gpuabi.TextureID, error) {
	w := uint32(batch.ZBufferRect.Width())
	h := uint32(batch.ZBufferRect.Height())
	if w == 0 || h == 0 {
		w, h = 1, 1
	}
	tex, err := r.Alloc.AllocateTexture(w, h, gpuabi.FormatRGBA8Unorm, "z buffer texture")
	if err != nil {
		return 0, err
	}
	data := make([]byte, 0, len(batch.ZBuffer)*4)
	for _, z := range batch.ZBuffer {
		data = appendU32(data, z)
	}
	if len(data) == 0 {
		data = []byte{0, 0, 0, 0}
	}
	enc.WriteTexture(tex, 0, 0, w, h, data)
	return tex, nil
}

func (r *Renderer) uploadClips(clips []tiledata.Clip, enc gpuabi.CommandEncoder) (gpuabi.BufferID, error) {
	data := make([]byte, 0, len(clips)*clipInstanceSize)
	for _, c := range clips {
		data = appendU32(data, uint32(c.DestTileID))
		data = appendU32(data, uint32(c.DestBackdrop))
		data = appendU32(data, uint32(c.SrcTileID))
		data = appendU32(data, uint32(c.SrcBackdrop))
	}
	buf, err := r.Alloc.AllocateBuffer(uint64(len(data)), gpuabi.BufferVertex, gpuabi.MemoryHostVisibleCoherent, "clip buffer")
	if err != nil {
		return 0, err
	}
	enc.WriteBuffer(buf, 0, data)
	return buf, nil
}

// clipTiles intersects clip masks into draw masks: copy the affected draw
// tiles into a scratch mask texture, then multiply the clip tiles back
// into the live mask.
func (r *Renderer) clipTiles(clipCount uint32, clipBuf gpuabi.BufferID, enc gpuabi.CommandEncoder) error {
	maskW := uint32(tiledata.MaskFramebufferWidth)
	maskH := uint32(maskPageHeight) * r.Mask.AllocatedPageCount

	tempMask, err := r.Alloc.AllocateTexture(maskW, maskH, maskTextureFormat, "temp mask texture")
	if err != nil {
		return err
	}

	// Copy out tiles.
	copySet, err := r.Device.CreateDescriptorSet([]gpuabi.Binding{
		{Index: 0, Kind: gpuabi.BindingUniformBuffer, Stages: gpuabi.StageVertex, Buffer: r.fillUniform},
		{Index: 1, Kind: gpuabi.BindingSampler, Stages: gpuabi.StageFragment, Texture: r.Mask.Texture, Sampler: r.DefaultSampler},
	})
	if err != nil {
		return err
	}
	enc.BeginRenderPass(r.maskPassClear, tempMask, [4]float32{}, gpuabi.LoadOpClear)
	enc.SetViewport(0, 0, float32(maskW), float32(maskH))
	enc.BindRenderPipeline(r.clipCopyPipeline)
	enc.BindVertexBuffer(0, r.quadVertexBuffer)
	enc.BindVertexBuffer(1, clipBuf)
	enc.BindDescriptorSet(0, copySet)
	// Each clip is two instances: its dest half and its src half.
	enc.Draw(gpuabi.DrawCall{VertexCount: 6, InstanceCount: clipCount * 2})
	enc.EndRenderPass()

	// Combine back.
	combineSet, err := r.Device.CreateDescriptorSet([]gpuabi.Binding{
		{Index: 0, Kind: gpuabi.BindingUniformBuffer, Stages: gpuabi.StageVertex, Buffer: r.fillUniform},
		{Index: 1, Kind: gpuabi.BindingSampler, Stages: gpuabi.StageFragment, Texture: tempMask, Sampler: r.DefaultSampler},
	})
	if err != nil {
		return err
	}
	enc.BeginRenderPass(r.maskPassLoad, r.Mask.Texture, [4]float32{}, gpuabi.LoadOpLoad)
	enc.SetViewport(0, 0, float32(maskW), float32(maskH))
	enc.BindRenderPipeline(r.clipCombinePipeline)
	enc.BindVertexBuffer(0, r.quadVertexBuffer)
	enc.BindVertexBuffer(1, clipBuf)
	enc.BindDescriptorSet(0, combineSet)
	enc.Draw(gpuabi.DrawCall{VertexCount: 6, InstanceCount: clipCount})
	enc.EndRenderPass()

	r.Alloc.FreeTexture(tempMask)
	return nil
}

func (r *Renderer) drawTiles(batch *DrawTileBatch, tileBuf gpuabi.BufferID, zTex gpuabi.TextureID, enc gpuabi.CommandEncoder) error {
	var (
		target     gpuabi.TextureID
		pass       gpuabi.RenderPassID
		viewW      float32
		viewH      float32
		viewX      float32
		viewY      float32
	)

	if batch.RenderTarget == nil {
		target = r.DestTexture
		if target == 0 {
			return fmt.Errorf("d3d9: no destination texture set")
		}
		pass = r.destPassLoad
		if r.ClearDest {
			pass = r.destPassClear
			r.ClearDest = false
		}
		viewW, viewH = float32(r.DestWidth), float32(r.DestHeight)
	} else {
		rt, err := r.GetRenderTarget(*batch.RenderTarget)
		if err != nil {
			return err
		}
		target = rt.Texture
		// Render targets always clear on their draw.
		pass = r.destPassClear
		viewX, viewY = float32(rt.Region.X), float32(rt.Region.Y)
		viewW, viewH = float32(rt.Region.Width), float32(rt.Region.Height)
	}

	colorTex, colorSampler, err := r.ColorTextureForBatch(batch.ColorTexture)
	if err != nil {
		return err
	}

	var uniform []byte
	uniform = appendF32(uniform, tiledata.TileWidth, tiledata.TileHeight)
	uniform = appendF32(uniform, tiledata.TextureMetadataTextureWidth, MaxMetadataHeightF)
	uniform = appendF32(uniform, float32(batch.ZBufferRect.Width()), float32(batch.ZBufferRect.Height()))
	uniform = appendF32(uniform, tiledata.MaskFramebufferWidth, float32(maskPageHeight*r.Mask.AllocatedPageCount))
	colorEdge := float32(r.pageEdge)
	if batch.ColorTexture != nil && batch.ColorTexture.Gradient {
		colorEdge = tiledata.GradientTileLength
	}
	uniform = appendF32(uniform, colorEdge, colorEdge)
	uniform = appendF32(uniform, viewW, viewH)
	// The model transform maps pixel space onto clip space.
	uniform = append(uniform, ndcTransform(viewW, viewH)...)
	enc.WriteBuffer(r.tileUniform, 0, uniform)

	set, err := r.Device.CreateDescriptorSet([]gpuabi.Binding{
		{Index: 0, Kind: gpuabi.BindingSampler, Stages: gpuabi.StageVertex, Texture: r.MetadataTexture, Sampler: r.DefaultSampler},
		{Index: 1, Kind: gpuabi.BindingSampler, Stages: gpuabi.StageVertex, Texture: zTex, Sampler: r.DefaultSampler},
		{Index: 2, Kind: gpuabi.BindingUniformBuffer, Stages: gpuabi.StageVertex | gpuabi.StageFragment, Buffer: r.tileUniform},
		{Index: 3, Kind: gpuabi.BindingSampler, Stages: gpuabi.StageFragment, Texture: colorTex, Sampler: colorSampler},
		{Index: 4, Kind: gpuabi.BindingSampler, Stages: gpuabi.StageFragment, Texture: r.Mask.Texture, Sampler: r.DefaultSampler},
		{Index: 5, Kind: gpuabi.BindingSampler, Stages: gpuabi.StageFragment, Texture: r.Dummy, Sampler: r.DefaultSampler},
	})
	if err != nil {
		return err
	}

	enc.BeginRenderPass(pass, target, [4]float32{}, gpuabi.LoadOpLoad)
	enc.SetViewport(viewX, viewY, viewW, viewH)
	enc.BindRenderPipeline(r.tilePipeline)
	enc.BindVertexBuffer(0, r.quadVertexBuffer)
	enc.BindVertexBuffer(1, tileBuf)
	enc.BindDescriptorSet(0, set)
	enc.Draw(gpuabi.DrawCall{VertexCount: 6, InstanceCount: uint32(len(batch.Tiles))})
	enc.EndRenderPass()
	return nil
}

// MaxMetadataHeightF mirrors the metadata texture height bound as a float
// for the uniform block.
const MaxMetadataHeightF = float32(rendercore.MaxMetadataTextureHeight)

// ndcTransform builds the column-major 4x4 that maps pixel coordinates to
// normalized device coordinates for a target of the given size.
func ndcTransform(w, h float32) []byte {
	sx := float32(2) / w
	sy := float32(2) / h
	m := [16]float32{
		sx, 0, 0, 0,
		0, sy, 0, 0,
		0, 0, 1, 0,
		-1, -1, 0, 1,
	}
	var out []byte
	for _, v := range m {
		out = appendF32(out, v)
	}
	return out
}

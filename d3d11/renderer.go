package d3d11

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gg/gpuabi"
	"github.com/gogpu/gg/rendercore"
	"github.com/gogpu/gg/tiledata"
)

// ComputeShaderSet names the seven compiled compute kernels. Bytes are
// opaque; entry points are fixed by name.
type ComputeShaderSet struct {
	Dice, Bound, Bin, Propagate, Fill, Sort, Tile []byte
}

// maskTextureFormat: unlike the raster strategy, the compute fill pass
// writes RGBA8 with no vertical compression.
const maskTextureFormat = gpuabi.FormatRGBA8Unorm

const maskPageHeight = tiledata.MaskFramebufferHeightCompute

// sceneSourceBuffers holds one path source's (draw or clip) uploaded
// points and point-index buffers, grown by powers of two across frames.
type sceneSourceBuffers struct {
	points          gpuabi.BufferID
	pointsCap       uint64
	pointIndices    gpuabi.BufferID
	pointIndicesCap uint64
	indexCount      uint32
}

// microlineStorage is a successful dice pass's output buffer.
type microlineStorage struct {
	buffer gpuabi.BufferID
	count  uint32
}

// tileBatchInfo records a prepared batch's live buffers so later batches
// (clipped draws) and the final frame cleanup can reach them.
type tileBatchInfo struct {
	tileCount         uint32
	zBuffer           gpuabi.BufferID
	tiles             gpuabi.BufferID
	propagateMetadata gpuabi.BufferID
	firstTileMap      gpuabi.BufferID
}

// Renderer drives the compute strategy's pass graph.
type Renderer struct {
	*rendercore.Core

	shaders ComputeShaderSet

	dicePipeline      gpuabi.ComputePipeline
	boundPipeline     gpuabi.ComputePipeline
	binPipeline       gpuabi.ComputePipeline
	propagatePipeline gpuabi.ComputePipeline
	fillPipeline      gpuabi.ComputePipeline
	sortPipeline      gpuabi.ComputePipeline
	tilePipeline      gpuabi.ComputePipeline

	binUniform       gpuabi.BufferID
	boundUniform     gpuabi.BufferID
	diceUniform0     gpuabi.BufferID
	diceUniform1     gpuabi.BufferID
	fillUniform      gpuabi.BufferID
	propagateUniform gpuabi.BufferID
	sortUniform      gpuabi.BufferID
	tileUniform      gpuabi.BufferID

	allocatedMicrolineCount uint32
	allocatedFillCount      uint32

	drawBuffers sceneSourceBuffers
	clipBuffers sceneSourceBuffers

	tileBatchInfo map[uint32]tileBatchInfo
	pageEdge      int
}

// NewRenderer creates the compute renderer on a shared core and builds the
// seven compute pipelines.
func NewRenderer(core *rendercore.Core, shaders ComputeShaderSet) (*Renderer, error) {
	r := &Renderer{
		Core:                    core,
		shaders:                 shaders,
		allocatedMicrolineCount: tiledata.InitialAllocatedMicrolineCount,
		allocatedFillCount:      tiledata.InitialAllocatedFillCount,
		tileBatchInfo:           make(map[uint32]tileBatchInfo),
	}

	type ub struct {
		id    *gpuabi.BufferID
		size  uint64
		label string
	}
	uniforms := []ub{
		{&r.binUniform, 16, "bin uniform buffer"},
		{&r.boundUniform, 16, "bound uniform buffer"},
		{&r.diceUniform0, 48, "dice uniform buffer 0"},
		{&r.diceUniform1, 16, "dice uniform buffer 1"},
		{&r.fillUniform, 16, "fill uniform buffer"},
		{&r.propagateUniform, 16, "propagate uniform buffer"},
		{&r.sortUniform, 16, "sort uniform buffer"},
		{&r.tileUniform, 80, "tile uniform buffer"},
	}
	for _, u := range uniforms {
		id, err := core.Alloc.AllocateBuffer(u.size, gpuabi.BufferUniform, gpuabi.MemoryHostVisibleCoherent, u.label)
		if err != nil {
			return nil, err
		}
		*u.id = id
	}

	type pipe struct {
		dst   *gpuabi.ComputePipeline
		bytes []byte
		entry string
	}
	pipes := []pipe{
		{&r.dicePipeline, shaders.Dice, "dice"},
		{&r.boundPipeline, shaders.Bound, "bound"},
		{&r.binPipeline, shaders.Bin, "bin"},
		{&r.propagatePipeline, shaders.Propagate, "propagate"},
		{&r.fillPipeline, shaders.Fill, "fill"},
		{&r.sortPipeline, shaders.Sort, "sort"},
		{&r.tilePipeline, shaders.Tile, "tile"},
	}
	for _, p := range pipes {
		mod, err := core.Device.CreateShaderModule(gpuabi.ShaderCompute, p.entry+" comp", p.bytes)
		if err != nil {
			return nil, fmt.Errorf("d3d11: %s shader: %w", p.entry, err)
		}
		pl, err := core.Device.CreateComputePipeline(mod, p.entry)
		if err != nil {
			return nil, fmt.Errorf("d3d11: %s pipeline: %w", p.entry, err)
		}
		*p.dst = pl
	}
	return r, nil
}

// Draw renders a built scene: upload segments, prepare clip batches in
// reverse (LIFO) order, then prepare and composite each draw batch.
func (r *Renderer) Draw(builder *SceneBuilder, clearDst bool) error {
	r.ClearDest = clearDst

	if len(builder.Segments.DrawSegments.Points) == 0 {
		return nil
	}

	r.pageEdge = builder.PatternPageEdge
	if err := r.UploadPaintInfo(builder.PaintInfo, builder.PatternPageCount, builder.PatternPageEdge); err != nil {
		return err
	}

	if err := r.uploadScene(&builder.Segments); err != nil {
		return err
	}

	r.AlphaTileCount = 0

	clips := builder.ClipBatches.PrepareBatches
	for i := len(clips) - 1; i >= 0; i-- {
		if clips[i].PathCount == 0 {
			continue
		}
		if err := r.prepareTiles(&clips[i]); err != nil {
			r.Log.Error("d3d11: dropping clip batch", "batch", clips[i].BatchID, "err", err)
		}
	}

	for i := range builder.TileBatches {
		batch := &builder.TileBatches[i]
		if err := r.prepareTiles(&batch.Data); err != nil {
			r.Log.Error("d3d11: dropping tile batch", "batch", batch.Data.BatchID, "err", err)
			continue
		}
		info := r.tileBatchInfo[batch.Data.BatchID]
		if err := r.drawTiles(info, batch.RenderTarget, batch.ColorTexture); err != nil {
			r.Log.Error("d3d11: draw tiles failed", "batch", batch.Data.BatchID, "err", err)
		}
	}

	r.freeTileBatchBuffers()
	return nil
}

// uploadScene pushes the frame's segment buffers, growing capacity by
// powers of two; a zero-size source skips allocation entirely (the
// upper_power_of_two(0) == 0 guard from spec §9).
func (r *Renderer) uploadScene(segments *BuiltSegments) error {
	enc := r.Device.CreateCommandEncoder("upload scene")
	if err := r.uploadSource(&r.drawBuffers, &segments.DrawSegments, enc); err != nil {
		return err
	}
	if err := r.uploadSource(&r.clipBuffers, &segments.ClipSegments, enc); err != nil {
		return err
	}
	if err := enc.Finish(); err != nil {
		return err
	}
	return r.Queue.SubmitAndWait(enc)
}

func (r *Renderer) uploadSource(dst *sceneSourceBuffers, src *Segments, enc gpuabi.CommandEncoder) error {
	neededPoints := upperPowerOfTwo(uint64(len(src.Points)))
	neededIndices := upperPowerOfTwo(uint64(len(src.Indices)))

	if neededPoints > dst.pointsCap {
		if dst.points != 0 {
			r.Alloc.FreeBuffer(dst.points)
		}
		buf, err := r.Alloc.AllocateBuffer(neededPoints*8, gpuabi.BufferStorage, gpuabi.MemoryHostVisibleCoherent, "points buffer")
		if err != nil {
			return err
		}
		dst.points = buf
		dst.pointsCap = neededPoints
	}
	if neededIndices > dst.pointIndicesCap {
		if dst.pointIndices != 0 {
			r.Alloc.FreeBuffer(dst.pointIndices)
		}
		buf, err := r.Alloc.AllocateBuffer(neededIndices*segmentIndicesByteSize, gpuabi.BufferStorage, gpuabi.MemoryHostVisibleCoherent, "point indices buffer")
		if err != nil {
			return err
		}
		dst.pointIndices = buf
		dst.pointIndicesCap = neededIndices
	}

	dst.indexCount = uint32(len(src.Indices))

	if neededPoints == 0 || neededIndices == 0 {
		return nil
	}

	var pts []byte
	for _, p := range src.Points {
		pts = appendF32(pts, p.X, p.Y)
	}
	enc.WriteBuffer(dst.points, 0, pts)

	var idx []byte
	for _, s := range src.Indices {
		idx = appendU32(idx, s.FirstPointIndex)
		idx = appendU32(idx, s.Flag)
	}
	enc.WriteBuffer(dst.pointIndices, 0, idx)
	return nil
}

// prepareTiles runs the prepare half of the pass graph for one batch:
// dice -> bound -> bin -> propagate -> fill -> sort, with the two retry
// loops from spec §4.7.
func (r *Renderer) prepareTiles(batch *TileBatchData) error {
	tilesBuffer, err := r.Alloc.AllocateBuffer(
		nonZero(uint64(batch.TileCount)*computeTileByteSize),
		gpuabi.BufferStorage, gpuabi.MemoryHostVisibleCoherent, "tiles d3d11 buffer")
	if err != nil {
		return err
	}

	// A clipped batch reads the clip batch's tiles and metadata during
	// propagation.
	var clipInfo *tileBatchInfo
	if batch.ClippedPaths != nil {
		if info, ok := r.tileBatchInfo[batch.ClippedPaths.ClipBatchID]; ok {
			clipInfo = &info
		}
	}

	zBuffer, err := r.allocateZBuffer()
	if err != nil {
		return err
	}
	firstTileMap, err := r.allocateFirstTileMap()
	if err != nil {
		return err
	}

	propagateMetadataBuf, backdropsBuf, err := r.uploadPropagateMetadata(batch)
	if err != nil {
		return err
	}

	// Dice: flatten segments into microlines, twice at most; the first
	// failure doubles the microline buffer.
	var microlines *microlineStorage
	for attempt := 0; attempt < 2 && microlines == nil; attempt++ {
		microlines, err = r.diceSegments(batch)
		if err != nil {
			return err
		}
	}
	if microlines == nil {
		return fmt.Errorf("d3d11: ran out of space for microlines when dicing")
	}

	// Bound + bin, twice at most. A fill-buffer overflow requires
	// re-running bound and re-uploading backdrops: the first attempt
	// mutated both.
	var fillBuffer gpuabi.BufferID
	for attempt := 0; attempt < 2 && fillBuffer == 0; attempt++ {
		if err := r.bound(tilesBuffer, batch); err != nil {
			return err
		}
		if err := r.uploadInitialBackdrops(backdropsBuf, batch.PrepareInfo.Backdrops); err != nil {
			return err
		}
		fillBuffer, err = r.binSegments(microlines, propagateMetadataBuf, backdropsBuf, tilesBuffer, zBuffer)
		if err != nil {
			return err
		}
	}
	if fillBuffer == 0 {
		return fmt.Errorf("d3d11: ran out of space for fills when binning")
	}

	r.Alloc.FreeBuffer(microlines.buffer)

	alphaTilesBuffer, err := r.Alloc.AllocateBuffer(
		nonZero(uint64(batch.TileCount)*alphaTileByteSize),
		gpuabi.BufferStorage, gpuabi.MemoryHostVisibleCoherent, "alpha tile buffer")
	if err != nil {
		return err
	}

	alphaTileRange, err := r.propagateTiles(uint32(len(batch.PrepareInfo.Backdrops)), tilesBuffer, zBuffer, firstTileMap, alphaTilesBuffer, propagateMetadataBuf, backdropsBuf, clipInfo)
	if err != nil {
		return err
	}

	r.Alloc.FreeBuffer(backdropsBuf)

	if err := r.ReallocateMaskIfNeeded(maskPageHeight, maskTextureFormat); err != nil {
		return err
	}

	if err := r.drawFills(fillBuffer, tilesBuffer, alphaTilesBuffer, alphaTileRange); err != nil {
		return err
	}

	r.Alloc.FreeBuffer(fillBuffer)
	r.Alloc.FreeBuffer(alphaTilesBuffer)

	if err := r.sortTiles(tilesBuffer, firstTileMap, zBuffer); err != nil {
		return err
	}

	r.tileBatchInfo[batch.BatchID] = tileBatchInfo{
		tileCount:         batch.TileCount,
		zBuffer:           zBuffer,
		tiles:             tilesBuffer,
		propagateMetadata: propagateMetadataBuf,
		firstTileMap:      firstTileMap,
	}
	return nil
}

func (r *Renderer) allocateZBuffer() (gpuabi.BufferID, error) {
	// The fill indirect draw params live in the Z buffer header to stay
	// under the 8-SSBO limit some devices impose.
	tw, th := r.FramebufferTileSize()
	size := (uint64(tw)*uint64(th) + tiledata.FillIndirectDrawParamsSize) * 4
	return r.Alloc.AllocateBuffer(size, gpuabi.BufferStorage, gpuabi.MemoryHostVisibleCoherent, "z buffer")
}

func (r *Renderer) allocateFirstTileMap() (gpuabi.BufferID, error) {
	tw, th := r.FramebufferTileSize()
	return r.Alloc.AllocateBuffer(nonZero(uint64(tw)*uint64(th)*4), gpuabi.BufferStorage, gpuabi.MemoryHostVisibleCoherent, "first tile map buffer")
}

func (r *Renderer) uploadPropagateMetadata(batch *TileBatchData) (gpuabi.BufferID, gpuabi.BufferID, error) {
	metaBuf, err := r.Alloc.AllocateBuffer(
		nonZero(uint64(len(batch.PrepareInfo.PropagateMetadata))*propagateMetadataByteSize),
		gpuabi.BufferStorage, gpuabi.MemoryHostVisibleCoherent, "propagate metadata buffer")
	if err != nil {
		return 0, 0, err
	}
	backdropsBuf, err := r.Alloc.AllocateBuffer(
		nonZero(uint64(len(batch.PrepareInfo.Backdrops))*backdropInfoByteSize),
		gpuabi.BufferStorage, gpuabi.MemoryHostVisibleCoherent, "backdrops buffer")
	if err != nil {
		return 0, 0, err
	}

	var data []byte
	for _, m := range batch.PrepareInfo.PropagateMetadata {
		data = appendU32(data, uint32(m.TileRect.MinX))
		data = appendU32(data, uint32(m.TileRect.MinY))
		data = appendU32(data, uint32(m.TileRect.MaxX))
		data = appendU32(data, uint32(m.TileRect.MaxY))
		data = appendU32(data, m.TileOffset)
		data = appendU32(data, m.PathIndex)
		data = appendU32(data, m.ZWrite)
		data = appendU32(data, m.ClipPathIndex)
		data = appendU32(data, m.BackdropOffset)
		data = appendU32(data, 0, 0, 0)
	}

	enc := r.Device.CreateCommandEncoder("upload propagate metadata")
	if len(data) > 0 {
		enc.WriteBuffer(metaBuf, 0, data)
	}
	if err := enc.Finish(); err != nil {
		return 0, 0, err
	}
	if err := r.Queue.SubmitAndWait(enc); err != nil {
		return 0, 0, err
	}
	return metaBuf, backdropsBuf, nil
}

func (r *Renderer) uploadInitialBackdrops(backdropsBuf gpuabi.BufferID, backdrops []BackdropInfo) error {
	if len(backdrops) == 0 {
		return nil
	}
	var data []byte
	for _, b := range backdrops {
		data = appendU32(data, uint32(b.InitialBackdrop))
		data = appendU32(data, uint32(b.TileXOffset))
		data = appendU32(data, b.PathIndex)
	}
	enc := r.Device.CreateCommandEncoder("upload initial backdrops")
	enc.WriteBuffer(backdropsBuf, 0, data)
	if err := enc.Finish(); err != nil {
		return err
	}
	return r.Queue.SubmitAndWait(enc)
}

// diceSegments dispatches the dice kernel and reads the microline count
// back. A nil result with nil error means the buffer overflowed and was
// doubled; the caller re-dispatches.
func (r *Renderer) diceSegments(batch *TileBatchData) (*microlineStorage, error) {
	microlinesBuf, err := r.Alloc.AllocateBuffer(
		nonZero(uint64(r.allocatedMicrolineCount)*microlineByteSize),
		gpuabi.BufferStorage, gpuabi.MemoryHostVisibleCoherent, "microline buffer")
	if err != nil {
		return nil, err
	}
	diceMetadataBuf, err := r.Alloc.AllocateBuffer(
		nonZero(uint64(len(batch.PrepareInfo.DiceMetadata))*diceMetadataByteSize),
		gpuabi.BufferStorage, gpuabi.MemoryHostVisibleCoherent, "dice metadata buffer")
	if err != nil {
		return nil, err
	}
	indirectBuf, err := r.Alloc.AllocateBuffer(
		tiledata.FillIndirectDrawParamsSize*4,
		gpuabi.BufferStorage, gpuabi.MemoryHostVisibleCoherent, "indirect draw params buffer")
	if err != nil {
		return nil, err
	}

	source := &r.drawBuffers
	if batch.PathSource == PathSourceClip {
		source = &r.clipBuffers
	}

	enc := r.Device.CreateCommandEncoder("dice segments")

	var header []byte
	header = appendU32(header, 0, 0, 0, 0, source.indexCount, 0, 0, 0)
	enc.WriteBuffer(indirectBuf, 0, header)

	var meta []byte
	for _, m := range batch.PrepareInfo.DiceMetadata {
		meta = appendU32(meta, m.GlobalPathID, m.FirstGlobalSegmentIndex, m.FirstBatchSegmentIndex, 0)
	}
	if len(meta) > 0 {
		enc.WriteBuffer(diceMetadataBuf, 0, meta)
	}

	// Transform rows pad to vec4 like a mat4.
	t := batch.PrepareInfo.Transform
	var ub0 []byte
	ub0 = appendF32(ub0, t.A, t.B, 0, 0)
	ub0 = appendF32(ub0, t.C, t.D, 0, 0)
	ub0 = appendF32(ub0, t.TX, t.TY)
	enc.WriteBuffer(r.diceUniform0, 0, ub0)

	var ub1 []byte
	ub1 = appendU32(ub1, uint32(len(batch.PrepareInfo.DiceMetadata)), batch.SegmentCount, r.allocatedMicrolineCount)
	enc.WriteBuffer(r.diceUniform1, 0, ub1)

	set, err := r.Device.CreateDescriptorSet([]gpuabi.Binding{
		{Index: 0, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: indirectBuf},
		{Index: 1, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: diceMetadataBuf},
		{Index: 2, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: source.points},
		{Index: 3, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: source.pointIndices},
		{Index: 4, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: microlinesBuf},
		{Index: 5, Kind: gpuabi.BindingUniformBuffer, Stages: gpuabi.StageCompute, Buffer: r.diceUniform0},
		{Index: 6, Kind: gpuabi.BindingUniformBuffer, Stages: gpuabi.StageCompute, Buffer: r.diceUniform1},
	})
	if err != nil {
		return nil, err
	}

	enc.BeginComputePass()
	enc.BindComputePipeline(r.dicePipeline)
	enc.BindDescriptorSet(0, set)
	enc.Dispatch((batch.SegmentCount+diceWorkgroupSize-1)/diceWorkgroupSize, 1, 1)
	enc.EndComputePass()
	if err := enc.Finish(); err != nil {
		return nil, err
	}
	if err := r.Queue.SubmitAndWait(enc); err != nil {
		return nil, err
	}

	// Hard sync point: read the microline count from the header.
	params, err := r.readHeader(indirectBuf)
	r.Alloc.FreeBuffer(diceMetadataBuf)
	r.Alloc.FreeBuffer(indirectBuf)
	if err != nil {
		return nil, err
	}
	microlineCount := params[headerMicrolineCountIndex]

	if microlineCount > r.allocatedMicrolineCount {
		r.allocatedMicrolineCount = uint32(upperPowerOfTwo(uint64(microlineCount)))
		r.Alloc.FreeBuffer(microlinesBuf)
		return nil, nil
	}
	return &microlineStorage{buffer: microlinesBuf, count: microlineCount}, nil
}

// bound initializes the batch's tile records from its tile path info.
func (r *Renderer) bound(tilesBuffer gpuabi.BufferID, batch *TileBatchData) error {
	pathInfoBuf, err := r.Alloc.AllocateBuffer(
		nonZero(uint64(len(batch.PrepareInfo.TilePathInfo))*tilePathInfoByteSize),
		gpuabi.BufferStorage, gpuabi.MemoryHostVisibleCoherent, "path info buffer")
	if err != nil {
		return err
	}

	enc := r.Device.CreateCommandEncoder("bound")

	var data []byte
	for _, p := range batch.PrepareInfo.TilePathInfo {
		data = appendU16(data, uint16(p.TileMinX))
		data = appendU16(data, uint16(p.TileMinY))
		data = appendU16(data, uint16(p.TileMaxX))
		data = appendU16(data, uint16(p.TileMaxY))
		data = appendU32(data, p.FirstTileIndex)
		data = appendU16(data, p.Color)
		data = append(data, p.Ctrl, byte(p.Backdrop))
	}
	if len(data) > 0 {
		enc.WriteBuffer(pathInfoBuf, 0, data)
	}

	var ub []byte
	ub = appendU32(ub, uint32(len(batch.PrepareInfo.TilePathInfo)), batch.TileCount)
	enc.WriteBuffer(r.boundUniform, 0, ub)

	set, err := r.Device.CreateDescriptorSet([]gpuabi.Binding{
		{Index: 0, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: pathInfoBuf},
		{Index: 1, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: tilesBuffer},
		{Index: 2, Kind: gpuabi.BindingUniformBuffer, Stages: gpuabi.StageCompute, Buffer: r.boundUniform},
	})
	if err != nil {
		return err
	}

	enc.BeginComputePass()
	enc.BindComputePipeline(r.boundPipeline)
	enc.BindDescriptorSet(0, set)
	enc.Dispatch((batch.TileCount+boundWorkgroupSize-1)/boundWorkgroupSize, 1, 1)
	enc.EndComputePass()
	if err := enc.Finish(); err != nil {
		return err
	}
	if err := r.Queue.SubmitAndWait(enc); err != nil {
		return err
	}
	r.Alloc.FreeBuffer(pathInfoBuf)
	return nil
}

// binSegments assigns microlines to tiles, allocating fill slots through
// the Z-buffer header's atomic counter. Returns 0 with nil error when the
// fill buffer overflowed and was doubled.
func (r *Renderer) binSegments(microlines *microlineStorage, propagateMetadataBuf, backdropsBuf, tilesBuffer, zBuffer gpuabi.BufferID) (gpuabi.BufferID, error) {
	fillBuf, err := r.Alloc.AllocateBuffer(
		nonZero(uint64(r.allocatedFillCount)*12),
		gpuabi.BufferStorage, gpuabi.MemoryHostVisibleCoherent, "fill vertex buffer")
	if err != nil {
		return 0, err
	}

	enc := r.Device.CreateCommandEncoder("bin segments")

	var header []byte
	header = appendU32(header, 6, 0, 0, 0, 0, microlines.count, 0, 0)
	enc.WriteBuffer(zBuffer, 0, header)

	var ub []byte
	ub = appendU32(ub, microlines.count, r.allocatedFillCount)
	enc.WriteBuffer(r.binUniform, 0, ub)

	set, err := r.Device.CreateDescriptorSet([]gpuabi.Binding{
		{Index: 0, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: microlines.buffer},
		{Index: 1, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: propagateMetadataBuf},
		{Index: 2, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: zBuffer},
		{Index: 3, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: fillBuf},
		{Index: 4, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: tilesBuffer},
		{Index: 5, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: backdropsBuf},
		{Index: 6, Kind: gpuabi.BindingUniformBuffer, Stages: gpuabi.StageCompute, Buffer: r.binUniform},
	})
	if err != nil {
		return 0, err
	}

	enc.BeginComputePass()
	enc.BindComputePipeline(r.binPipeline)
	enc.BindDescriptorSet(0, set)
	enc.Dispatch((microlines.count+binWorkgroupSize-1)/binWorkgroupSize, 1, 1)
	enc.EndComputePass()
	if err := enc.Finish(); err != nil {
		return 0, err
	}
	if err := r.Queue.SubmitAndWait(enc); err != nil {
		return 0, err
	}

	// Hard sync point: the needed fill count.
	params, err := r.readHeader(zBuffer)
	if err != nil {
		return 0, err
	}
	neededFills := params[headerFillCountIndex]
	if neededFills > r.allocatedFillCount {
		r.allocatedFillCount = uint32(upperPowerOfTwo(uint64(neededFills)))
		r.Alloc.FreeBuffer(fillBuf)
		return 0, nil
	}
	return fillBuf, nil
}

// propagateTiles folds backdrop deltas down tile columns, allocates alpha
// tiles, and links tiles into the first-tile map. Returns the batch's
// alpha tile range.
func (r *Renderer) propagateTiles(columnCount uint32, tilesBuffer, zBuffer, firstTileMap, alphaTilesBuffer, propagateMetadataBuf, backdropsBuf gpuabi.BufferID, clipInfo *tileBatchInfo) (Range, error) {
	enc := r.Device.CreateCommandEncoder("propagate tiles")

	tw, th := r.FramebufferTileSize()
	tileArea := int(tw) * int(th)

	// Zero the Z buffer body (after the header) and reset the first-tile
	// map to -1.
	zeros := make([]byte, tileArea*4)
	enc.WriteBuffer(zBuffer, tiledata.FillIndirectDrawParamsSize*4, zeros)

	neg := make([]byte, tileArea*4)
	for i := 0; i < tileArea; i++ {
		binary.LittleEndian.PutUint32(neg[i*4:], 0xFFFFFFFF)
	}
	enc.WriteBuffer(firstTileMap, 0, neg)

	var ub []byte
	ub = appendU32(ub, tw, th, columnCount, r.AlphaTileCount)
	enc.WriteBuffer(r.propagateUniform, 0, ub)

	bindings := []gpuabi.Binding{
		{Index: 0, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: propagateMetadataBuf},
		{Index: 2, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: backdropsBuf},
		{Index: 3, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: tilesBuffer},
		{Index: 5, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: zBuffer},
		{Index: 6, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: firstTileMap},
		{Index: 7, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: alphaTilesBuffer},
	}
	if clipInfo != nil {
		bindings = append(bindings,
			gpuabi.Binding{Index: 1, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: clipInfo.propagateMetadata},
			gpuabi.Binding{Index: 4, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: clipInfo.tiles},
		)
	} else {
		// Placeholder bindings keep the fixed descriptor layout satisfied.
		bindings = append(bindings,
			gpuabi.Binding{Index: 1, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: propagateMetadataBuf},
			gpuabi.Binding{Index: 4, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: tilesBuffer},
		)
	}
	bindings = append(bindings, gpuabi.Binding{Index: 8, Kind: gpuabi.BindingUniformBuffer, Stages: gpuabi.StageCompute, Buffer: r.propagateUniform})

	set, err := r.Device.CreateDescriptorSet(bindings)
	if err != nil {
		return Range{}, err
	}

	enc.BeginComputePass()
	enc.BindComputePipeline(r.propagatePipeline)
	enc.BindDescriptorSet(0, set)
	enc.Dispatch((columnCount+propagateWorkgroupSize-1)/propagateWorkgroupSize, 1, 1)
	enc.EndComputePass()
	if err := enc.Finish(); err != nil {
		return Range{}, err
	}
	if err := r.Queue.SubmitAndWait(enc); err != nil {
		return Range{}, err
	}

	// Hard sync point: the batch's alpha tile count.
	params, err := r.readHeader(zBuffer)
	if err != nil {
		return Range{}, err
	}
	batchAlphaTiles := params[headerAlphaTileCountIndex]

	start := r.AlphaTileCount
	r.AlphaTileCount += batchAlphaTiles
	return Range{Start: start, End: r.AlphaTileCount}, nil
}

// drawFills renders each alpha tile's coverage into the mask storage
// image. The dispatch is a 2D grid to stay under the 65536 workgroup cap.
func (r *Renderer) drawFills(fillBuffer, tilesBuffer, alphaTilesBuffer gpuabi.BufferID, alphaTiles Range) error {
	count := alphaTiles.End - alphaTiles.Start
	if count == 0 {
		return nil
	}

	enc := r.Device.CreateCommandEncoder("draw fills")

	var ub []byte
	ub = appendU32(ub, alphaTiles.Start, alphaTiles.End)
	enc.WriteBuffer(r.fillUniform, 0, ub)

	set, err := r.Device.CreateDescriptorSet([]gpuabi.Binding{
		{Index: 0, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: fillBuffer},
		{Index: 1, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: tilesBuffer},
		{Index: 2, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: alphaTilesBuffer},
		{Index: 3, Kind: gpuabi.BindingStorageImage, Stages: gpuabi.StageCompute, Texture: r.Mask.Texture},
		{Index: 4, Kind: gpuabi.BindingSampler, Stages: gpuabi.StageCompute, Texture: r.AreaLUT, Sampler: r.DefaultSampler},
		{Index: 5, Kind: gpuabi.BindingUniformBuffer, Stages: gpuabi.StageCompute, Buffer: r.fillUniform},
	})
	if err != nil {
		return err
	}

	enc.BeginComputePass()
	enc.BindComputePipeline(r.fillPipeline)
	enc.BindDescriptorSet(0, set)
	enc.Dispatch(minU32(count, 1<<15), (count+(1<<15)-1)>>15, 1)
	enc.EndComputePass()
	if err := enc.Finish(); err != nil {
		return err
	}
	return r.Queue.SubmitAndWait(enc)
}

// sortTiles reorders each framebuffer tile's linked list by z_write.
func (r *Renderer) sortTiles(tilesBuffer, firstTileMap, zBuffer gpuabi.BufferID) error {
	tw, th := r.FramebufferTileSize()
	tileCount := tw * th

	enc := r.Device.CreateCommandEncoder("sort tiles")

	var ub []byte
	ub = appendU32(ub, tileCount)
	enc.WriteBuffer(r.sortUniform, 0, ub)

	set, err := r.Device.CreateDescriptorSet([]gpuabi.Binding{
		{Index: 0, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: tilesBuffer},
		{Index: 1, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: firstTileMap},
		{Index: 2, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: zBuffer},
		{Index: 3, Kind: gpuabi.BindingUniformBuffer, Stages: gpuabi.StageCompute, Buffer: r.sortUniform},
	})
	if err != nil {
		return err
	}

	enc.BeginComputePass()
	enc.BindComputePipeline(r.sortPipeline)
	enc.BindDescriptorSet(0, set)
	enc.Dispatch((tileCount+sortWorkgroupSize-1)/sortWorkgroupSize, 1, 1)
	enc.EndComputePass()
	if err := enc.Finish(); err != nil {
		return err
	}
	return r.Queue.SubmitAndWait(enc)
}

// drawTiles composites one prepared batch into its target storage image.
func (r *Renderer) drawTiles(info tileBatchInfo, renderTarget *uint32, colorInfo *rendercore.TileBatchTextureInfo) error {
	tw, th := r.FramebufferTileSize()

	var (
		target gpuabi.TextureID
		loadOp int32
		fbW    float32
		fbH    float32
	)
	if renderTarget == nil {
		target = r.DestTexture
		if target == 0 {
			return fmt.Errorf("d3d11: no destination texture set")
		}
		loadOp = loadActionLoad
		if r.ClearDest {
			loadOp = loadActionClear
			r.ClearDest = false
		}
		fbW, fbH = float32(r.DestWidth), float32(r.DestHeight)
	} else {
		rt, err := r.GetRenderTarget(*renderTarget)
		if err != nil {
			return err
		}
		target = rt.Texture
		loadOp = loadActionClear
		fbW, fbH = float32(rt.Region.Width), float32(rt.Region.Height)
	}

	colorTex, colorSampler, err := r.ColorTextureForBatch(colorInfo)
	if err != nil {
		return err
	}
	colorEdge := float32(r.pageEdge)
	if colorInfo != nil && colorInfo.Gradient {
		colorEdge = tiledata.GradientTileLength
	}

	enc := r.Device.CreateCommandEncoder("draw tiles")

	// The tile uniform block layout is an ABI contract with the tile
	// kernel; field order and padding are fixed.
	var ub []byte
	ub = appendF32(ub, 0, 0, 0, 0) // clear color
	ub = appendU32(ub, uint32(loadOp), 0, 0, 0)
	ub = appendF32(ub, tiledata.TileWidth, tiledata.TileHeight)
	ub = appendF32(ub, tiledata.TextureMetadataTextureWidth, float32(rendercore.MaxMetadataTextureHeight))
	ub = appendF32(ub, fbW, fbH)
	ub = appendU32(ub, tw, th)
	ub = appendF32(ub, tiledata.MaskFramebufferWidth, float32(maskPageHeight*r.Mask.AllocatedPageCount))
	ub = appendF32(ub, colorEdge, colorEdge)
	enc.WriteBuffer(r.tileUniform, 0, ub)

	set, err := r.Device.CreateDescriptorSet([]gpuabi.Binding{
		{Index: 0, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: info.tiles},
		{Index: 1, Kind: gpuabi.BindingStorageBuffer, Stages: gpuabi.StageCompute, Buffer: info.firstTileMap},
		{Index: 2, Kind: gpuabi.BindingSampler, Stages: gpuabi.StageCompute, Texture: r.MetadataTexture, Sampler: r.DefaultSampler},
		{Index: 3, Kind: gpuabi.BindingSampler, Stages: gpuabi.StageCompute, Texture: r.Dummy, Sampler: r.DefaultSampler},
		{Index: 4, Kind: gpuabi.BindingSampler, Stages: gpuabi.StageCompute, Texture: colorTex, Sampler: colorSampler},
		{Index: 5, Kind: gpuabi.BindingSampler, Stages: gpuabi.StageCompute, Texture: r.Mask.Texture, Sampler: r.DefaultSampler},
		{Index: 6, Kind: gpuabi.BindingSampler, Stages: gpuabi.StageCompute, Texture: r.Dummy, Sampler: r.DefaultSampler},
		{Index: 7, Kind: gpuabi.BindingStorageImage, Stages: gpuabi.StageCompute, Texture: target},
		{Index: 8, Kind: gpuabi.BindingUniformBuffer, Stages: gpuabi.StageCompute, Buffer: r.tileUniform},
	})
	if err != nil {
		return err
	}

	enc.BeginComputePass()
	enc.BindComputePipeline(r.tilePipeline)
	enc.BindDescriptorSet(0, set)
	enc.Dispatch(tw, th, 1)
	enc.EndComputePass()
	if err := enc.Finish(); err != nil {
		return err
	}
	return r.Queue.SubmitAndWait(enc)
}

// freeTileBatchBuffers releases every prepared batch's buffers at frame
// end.
func (r *Renderer) freeTileBatchBuffers() {
	for id, info := range r.tileBatchInfo {
		r.Alloc.FreeBuffer(info.zBuffer)
		r.Alloc.FreeBuffer(info.tiles)
		r.Alloc.FreeBuffer(info.propagateMetadata)
		r.Alloc.FreeBuffer(info.firstTileMap)
		delete(r.tileBatchInfo, id)
	}
}

// readHeader reads the 8-word fill-indirect-draw-params header back to the
// CPU. This is one of the strategy's three hard CPU-GPU sync points; the
// prior pass's encoder has already been waited on.
func (r *Renderer) readHeader(buf gpuabi.BufferID) ([tiledata.FillIndirectDrawParamsSize]uint32, error) {
	var out [tiledata.FillIndirectDrawParamsSize]uint32
	enc := r.Device.CreateCommandEncoder("read back header")
	data, err := enc.ReadBuffer(buf, 0, tiledata.FillIndirectDrawParamsSize*4)
	if err != nil {
		return out, err
	}
	if err := enc.Finish(); err != nil {
		return out, err
	}
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return out, nil
}

func upperPowerOfTwo(v uint64) uint64 {
	if v == 0 {
		return 0
	}
	p := uint64(1)
	for p < v {
		p <<= 1
	}
	return p
}

func nonZero(v uint64) uint64 {
	if v == 0 {
		return 1
	}
	return v
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func appendU16(b []byte, v uint16) []byte {
	return append(b, byte(v), byte(v>>8))
}

func appendU32(b []byte, vs ...uint32) []byte {
	for _, v := range vs {
		b = append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	return b
}

func appendF32(b []byte, vs ...float32) []byte {
	for _, v := range vs {
		b = appendU32(b, math.Float32bits(v))
	}
	return b
}

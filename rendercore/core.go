// Package rendercore holds the renderer state shared by both rendering
// strategies: the metadata texture, the area-LUT and dummy textures, the
// sampler cache, pattern texture pages, render-target locations, and mask
// storage bookkeeping. The d3d9 and d3d11 renderers embed a Core and drive
// their pass graphs on top of it.
package rendercore

import (
	"fmt"

	"github.com/gogpu/gg/gpuabi"
	"github.com/gogpu/gg/gpumem"
	"github.com/gogpu/gg/logging"
	"github.com/gogpu/gg/paint"
	"github.com/gogpu/gg/tiledata"
)

// MaskStorage tracks the mask atlas texture and how many 65536-tile pages
// it currently holds. Page count never shrinks during a frame.
type MaskStorage struct {
	Texture            gpuabi.TextureID
	AllocatedPageCount uint32
}

// PatternTexturePage is the GPU half of a palette pattern page: its texture
// plus whether existing contents must be preserved across a frame (a page
// holding a render target drawn in an earlier frame cannot be cleared).
type PatternTexturePage struct {
	Texture              gpuabi.TextureID
	MustPreserveContents bool
}

// RenderTarget is a declared render target: the pattern page texture it
// lives in and its pixel region within that page.
type RenderTarget struct {
	Texture gpuabi.TextureID
	Region  gpumem.Region
}

// Core is the strategy-independent renderer state.
type Core struct {
	Device gpuabi.Device
	Queue  gpuabi.Queue
	Alloc  *gpumem.Allocator
	Log    logging.Logger

	// AreaLUT is the immutable coverage lookup texture the fill passes
	// sample; Dummy fills unused texture bindings.
	AreaLUT gpuabi.TextureID
	Dummy   gpuabi.TextureID

	// MetadataTexture holds one 10-texel half-float row per paint.
	MetadataTexture       gpuabi.TextureID
	metadataTextureHeight uint32

	// GradientTexture is the 256x256 ramp page, one gradient per row.
	GradientTexture gpuabi.TextureID

	DefaultSampler gpuabi.SamplerID
	samplers       map[paint.SamplingFlags]gpuabi.SamplerID

	patternPages          []*PatternTexturePage
	renderTargetLocations []paint.TextureLocation

	// AlphaTileCount is the frame's running alpha tile total; Mask holds
	// the pages backing it.
	AlphaTileCount uint32
	Mask           MaskStorage

	// ClearDest is true until the first draw into the destination, which
	// consumes it.
	ClearDest bool

	// DestTexture is the externally owned destination.
	DestTexture       gpuabi.TextureID
	DestWidth, DestHeight uint32
}

// MaxMetadataTextureHeight bounds the metadata texture per spec: fixed
// width 1280, height up to 512 rows of 128 paints each.
const MaxMetadataTextureHeight = 512

// NewCore creates the shared state: area LUT, dummy texture, gradient
// page, and default sampler. areaLUT may be nil, in which case a computed
// coverage ramp is used.
func NewCore(device gpuabi.Device, queue gpuabi.Queue, alloc *gpumem.Allocator, log logging.Logger, areaLUT []byte) (*Core, error) {
	c := &Core{
		Device:   device,
		Queue:    queue,
		Alloc:    alloc,
		Log:      logging.Or(log),
		samplers: make(map[paint.SamplingFlags]gpuabi.SamplerID),
	}

	var err error
	c.DefaultSampler, err = device.CreateSampler(gpuabi.SamplerDesc{
		MinFilter: gpuabi.FilterLinear,
		MagFilter: gpuabi.FilterLinear,
		AddressU:  gpuabi.AddressClampToEdge,
		AddressV:  gpuabi.AddressClampToEdge,
		Label:     "default sampler",
	})
	if err != nil {
		return nil, fmt.Errorf("rendercore: default sampler: %w", err)
	}

	if areaLUT == nil {
		areaLUT = computeAreaLUT()
	}
	c.AreaLUT, err = alloc.AllocateTexture(areaLUTSize, areaLUTSize, gpuabi.FormatRGBA8Unorm, "area lut texture")
	if err != nil {
		return nil, fmt.Errorf("rendercore: area lut: %w", err)
	}

	c.Dummy, err = alloc.AllocateTexture(1, 1, gpuabi.FormatRGBA8Unorm, "dummy texture")
	if err != nil {
		return nil, fmt.Errorf("rendercore: dummy texture: %w", err)
	}

	c.GradientTexture, err = alloc.AllocateTexture(
		tiledata.GradientTileLength, tiledata.GradientTileLength,
		gpuabi.FormatRGBA8Unorm, "gradient ramp texture")
	if err != nil {
		return nil, fmt.Errorf("rendercore: gradient texture: %w", err)
	}

	enc := device.CreateCommandEncoder("upload static textures")
	enc.WriteTexture(c.AreaLUT, 0, 0, areaLUTSize, areaLUTSize, areaLUT)
	enc.WriteTexture(c.Dummy, 0, 0, 1, 1, []byte{0, 0, 0, 0})
	if err := enc.Finish(); err != nil {
		return nil, err
	}
	if err := queue.SubmitAndWait(enc); err != nil {
		return nil, err
	}
	return c, nil
}

// SetDestTexture points the renderer at a caller-owned destination.
func (c *Core) SetDestTexture(tex gpuabi.TextureID, w, h uint32) {
	c.DestTexture = tex
	c.DestWidth, c.DestHeight = w, h
}

// FramebufferTileSize is ceil(dest_size / 16) in each axis.
func (c *Core) FramebufferTileSize() (uint32, uint32) {
	tw := (c.DestWidth + tiledata.TileWidth - 1) / tiledata.TileWidth
	th := (c.DestHeight + tiledata.TileHeight - 1) / tiledata.TileHeight
	return tw, th
}

// GetOrCreateSampler returns a cached sampler matching the flags.
func (c *Core) GetOrCreateSampler(flags paint.SamplingFlags) (gpuabi.SamplerID, error) {
	if s, ok := c.samplers[flags]; ok {
		return s, nil
	}
	desc := gpuabi.SamplerDesc{
		MinFilter: gpuabi.FilterLinear,
		MagFilter: gpuabi.FilterLinear,
		AddressU:  gpuabi.AddressClampToEdge,
		AddressV:  gpuabi.AddressClampToEdge,
		Label:     "paint sampler",
	}
	if flags&paint.SamplingRepeatU != 0 {
		desc.AddressU = gpuabi.AddressRepeat
	}
	if flags&paint.SamplingRepeatV != 0 {
		desc.AddressV = gpuabi.AddressRepeat
	}
	if flags&paint.SamplingNearestMin != 0 {
		desc.MinFilter = gpuabi.FilterNearest
	}
	if flags&paint.SamplingNearestMag != 0 {
		desc.MagFilter = gpuabi.FilterNearest
	}
	s, err := c.Device.CreateSampler(desc)
	if err != nil {
		return 0, err
	}
	c.samplers[flags] = s
	return s, nil
}

// UploadPaintInfo pushes a frame's palette output to the GPU: the metadata
// texture, gradient ramp rows, pattern page texels, and render-target
// declarations. pageEdge is the palette's pattern page size in pixels.
func (c *Core) UploadPaintInfo(info paint.PaintInfo, pageCount, pageEdge int) error {
	if err := c.uploadTextureMetadata(info.Metadata); err != nil {
		return err
	}

	for len(c.patternPages) < pageCount {
		tex, err := c.Alloc.AllocateTexture(uint32(pageEdge), uint32(pageEdge), gpuabi.FormatRGBA8Unorm, "pattern texture page")
		if err != nil {
			return fmt.Errorf("rendercore: pattern page: %w", err)
		}
		c.patternPages = append(c.patternPages, &PatternTexturePage{Texture: tex})
	}

	enc := c.Device.CreateCommandEncoder("upload palette texel data")
	for _, up := range info.GradientUploads {
		r := up.Location.Region
		enc.WriteTexture(c.GradientTexture, uint32(r.X), uint32(r.Y), uint32(r.Width), uint32(r.Height), up.Texels)
	}
	for _, up := range info.ImageUploads {
		page := c.patternPages[up.Location.Page]
		r := up.Location.Region
		enc.WriteTexture(page.Texture, uint32(r.X), uint32(r.Y), uint32(r.Width), uint32(r.Height), up.Texels)
	}
	if err := enc.Finish(); err != nil {
		return err
	}
	if err := c.Queue.SubmitAndWait(enc); err != nil {
		return err
	}

	c.renderTargetLocations = info.RenderTargetLocations
	for _, loc := range info.RenderTargetLocations {
		// A page hosting a render target keeps its contents alive across
		// frames: a later frame's pattern may still sample it.
		c.patternPages[loc.Page].MustPreserveContents = true
	}
	return nil
}

// uploadTextureMetadata writes one half-float row per paint into the
// metadata texture, reallocating it if the paint count outgrew it.
func (c *Core) uploadTextureMetadata(metadata []paint.PaintMetadata) error {
	if len(metadata) == 0 {
		return nil
	}
	rows := uint32((len(metadata) + tiledata.TextureMetadataEntriesPerRow - 1) / tiledata.TextureMetadataEntriesPerRow)
	if rows > MaxMetadataTextureHeight {
		return fmt.Errorf("rendercore: %d paints exceed metadata texture capacity", len(metadata))
	}

	if c.MetadataTexture == 0 || rows > c.metadataTextureHeight {
		if c.MetadataTexture != 0 {
			c.Alloc.FreeTexture(c.MetadataTexture)
		}
		tex, err := c.Alloc.AllocateTexture(tiledata.TextureMetadataTextureWidth, rows, gpuabi.FormatRGBA16Float, "metadata texture")
		if err != nil {
			return fmt.Errorf("rendercore: metadata texture: %w", err)
		}
		c.MetadataTexture = tex
		c.metadataTextureHeight = rows
	}

	// Row-pack the half-float texels; texels beyond the last paint in the
	// final row stay zero.
	texelsPerPaint := tiledata.TextureMetadataTexelsPerRow * 4
	data := make([]byte, int(rows)*tiledata.TextureMetadataTextureWidth*8)
	for i, meta := range metadata {
		row := paint.BuildMetadataRow(meta)
		base := i * texelsPerPaint * 2
		for w, word := range row {
			data[base+w*2] = byte(word)
			data[base+w*2+1] = byte(word >> 8)
		}
	}

	enc := c.Device.CreateCommandEncoder("upload texture metadata")
	enc.WriteTexture(c.MetadataTexture, 0, 0, tiledata.TextureMetadataTextureWidth, rows, data)
	if err := enc.Finish(); err != nil {
		return err
	}
	return c.Queue.SubmitAndWait(enc)
}

// PatternPage returns the GPU page for a palette page index, or 0.
func (c *Core) PatternPage(page uint32) gpuabi.TextureID {
	if int(page) >= len(c.patternPages) {
		return 0
	}
	return c.patternPages[page].Texture
}

// GetRenderTarget resolves a declared render target id.
func (c *Core) GetRenderTarget(id uint32) (RenderTarget, error) {
	if int(id) >= len(c.renderTargetLocations) {
		return RenderTarget{}, fmt.Errorf("rendercore: render target %d not declared", id)
	}
	loc := c.renderTargetLocations[id]
	tex := c.PatternPage(loc.Page)
	if tex == 0 {
		return RenderTarget{}, fmt.Errorf("rendercore: render target %d has no backing page", id)
	}
	return RenderTarget{Texture: tex, Region: loc.Region}, nil
}

// ReallocateMaskIfNeeded grows the mask atlas to hold AlphaTileCount tiles,
// with the strategy's page height and format. At least one page is always
// allocated, since the mask texture is bound even for fill-free frames.
func (c *Core) ReallocateMaskIfNeeded(pageHeight uint32, format gpuabi.TextureFormat) error {
	pagesNeeded := (c.AlphaTileCount + 0xFFFF) >> 16
	if pagesNeeded == 0 {
		pagesNeeded = 1
	}
	if c.Mask.Texture != 0 && pagesNeeded <= c.Mask.AllocatedPageCount {
		return nil
	}
	if c.Mask.Texture != 0 {
		c.Alloc.FreeTexture(c.Mask.Texture)
	}
	tex, err := c.Alloc.AllocateTexture(tiledata.MaskFramebufferWidth, pageHeight*pagesNeeded, format, "mask texture")
	if err != nil {
		return fmt.Errorf("rendercore: mask texture: %w", err)
	}
	c.Mask = MaskStorage{Texture: tex, AllocatedPageCount: pagesNeeded}
	return nil
}

// Reset drops per-frame state so the next frame starts clean. Pattern
// pages and the metadata texture persist across frames.
func (c *Core) Reset() {
	c.AlphaTileCount = 0
	c.Alloc.PurgeIfNeeded()
}

// ColorTextureForBatch resolves a batch's color texture and sampler: raw
// textures pass straight through, pattern pages look up their GPU texture,
// and batches without a color texture sample the dummy.
func (c *Core) ColorTextureForBatch(info *TileBatchTextureInfo) (gpuabi.TextureID, gpuabi.SamplerID, error) {
	if info == nil {
		return c.Dummy, c.DefaultSampler, nil
	}
	sampler, err := c.GetOrCreateSampler(info.Sampling)
	if err != nil {
		return 0, 0, err
	}
	if info.RawTexture != 0 {
		return gpuabi.TextureID(info.RawTexture), sampler, nil
	}
	if info.Gradient {
		return c.GradientTexture, sampler, nil
	}
	tex := c.PatternPage(info.Page)
	if tex == 0 {
		return 0, 0, fmt.Errorf("rendercore: color texture page %d missing", info.Page)
	}
	return tex, sampler, nil
}

// TileBatchTextureInfo names the color texture a tile batch samples: the
// gradient page, a pattern page, or a raw texture handle.
type TileBatchTextureInfo struct {
	Gradient   bool
	Page       uint32
	RawTexture uint64
	Sampling   paint.SamplingFlags
	Composite  paint.CompositeOp
}

// TextureInfoForPaint derives the batch texture info for a paint's
// metadata, or nil for solid paints.
func TextureInfoForPaint(meta paint.PaintMetadata) *TileBatchTextureInfo {
	if !meta.HasColorTexture {
		return nil
	}
	info := &TileBatchTextureInfo{
		Sampling:  meta.Sampling,
		Composite: meta.CompositeOp,
	}
	if meta.RawTextureID != 0 {
		info.RawTexture = meta.RawTextureID
		return info
	}
	if meta.ColorTexLocation.Page == paint.GradientPage {
		info.Gradient = true
		return info
	}
	info.Page = meta.ColorTexLocation.Page
	return info
}

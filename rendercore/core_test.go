package rendercore

import (
	"testing"

	"github.com/gogpu/gg/geom"
	"github.com/gogpu/gg/gpuabi"
	"github.com/gogpu/gg/gpuabi/software"
	"github.com/gogpu/gg/gpumem"
	"github.com/gogpu/gg/paint"
	"github.com/gogpu/gg/tiledata"
)

func newTestCore(t *testing.T) *Core {
	t.Helper()
	dev := software.New()
	core, err := NewCore(dev, software.NewQueue(), gpumem.New(dev), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return core
}

func TestMaskPageAllocation(t *testing.T) {
	core := newTestCore(t)

	// No alpha tiles still allocates one page: the mask texture is bound
	// unconditionally.
	if err := core.ReallocateMaskIfNeeded(tiledata.MaskFramebufferHeightRaster, gpuabi.FormatRGBA16Float); err != nil {
		t.Fatal(err)
	}
	if core.Mask.AllocatedPageCount != 1 {
		t.Fatalf("page count = %d, want 1", core.Mask.AllocatedPageCount)
	}
	first := core.Mask.Texture

	// Staying under one page's worth of tiles keeps the texture.
	core.AlphaTileCount = 65536
	if err := core.ReallocateMaskIfNeeded(tiledata.MaskFramebufferHeightRaster, gpuabi.FormatRGBA16Float); err != nil {
		t.Fatal(err)
	}
	if core.Mask.Texture != first || core.Mask.AllocatedPageCount != 1 {
		t.Fatal("mask texture reallocated without growth")
	}

	// One tile over the page boundary doubles the page count.
	core.AlphaTileCount = 65537
	if err := core.ReallocateMaskIfNeeded(tiledata.MaskFramebufferHeightRaster, gpuabi.FormatRGBA16Float); err != nil {
		t.Fatal(err)
	}
	if core.Mask.AllocatedPageCount != 2 {
		t.Fatalf("page count = %d, want 2", core.Mask.AllocatedPageCount)
	}
	if core.Mask.Texture == first {
		t.Fatal("mask texture not reallocated on growth")
	}
}

func TestSamplerCacheReusesByFlags(t *testing.T) {
	core := newTestCore(t)

	a, err := core.GetOrCreateSampler(paint.SamplingRepeatU)
	if err != nil {
		t.Fatal(err)
	}
	b, err := core.GetOrCreateSampler(paint.SamplingRepeatU)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("identical sampling flags produced distinct samplers")
	}
	c, err := core.GetOrCreateSampler(paint.SamplingRepeatU | paint.SamplingNearestMag)
	if err != nil {
		t.Fatal(err)
	}
	if c == a {
		t.Error("different sampling flags shared a sampler")
	}
}

func TestUploadPaintInfoAllocatesMetadataAndPages(t *testing.T) {
	core := newTestCore(t)

	p := paint.NewPalette(256)
	p.PushPaint(paint.Paint{BaseColor: paint.Color{R: 1, A: 1}})
	p.PushPaint(paint.Paint{
		BaseColor: paint.Color{A: 1},
		Overlay: &paint.Overlay{
			Kind: paint.ContentsGradient,
			Gradient: &paint.Gradient{
				Geometry: paint.GradientGeometry{Kind: paint.GeometryLinear, Line: paint.Line{To: geom.Vec2{X: 1}}},
				Stops:    []paint.ColorStop{{Color: paint.Color{R: 1, A: 1}}},
			},
		},
	})

	info, err := p.BuildPaintInfo()
	if err != nil {
		t.Fatal(err)
	}
	if err := core.UploadPaintInfo(info, p.PageCount(), p.PageEdge()); err != nil {
		t.Fatal(err)
	}
	if core.MetadataTexture == 0 {
		t.Fatal("metadata texture not allocated")
	}
	if len(info.GradientUploads) != 1 {
		t.Fatalf("gradient uploads = %d, want 1", len(info.GradientUploads))
	}
}

func TestTextureInfoForPaint(t *testing.T) {
	solid := paint.PaintMetadata{}
	if TextureInfoForPaint(solid) != nil {
		t.Error("solid paint should have no batch texture info")
	}

	grad := paint.PaintMetadata{
		HasColorTexture:  true,
		ColorTexLocation: paint.TextureLocation{Page: paint.GradientPage},
	}
	info := TextureInfoForPaint(grad)
	if info == nil || !info.Gradient {
		t.Error("gradient paint should map to the gradient page")
	}

	raw := paint.PaintMetadata{HasColorTexture: true, RawTextureID: 7}
	info = TextureInfoForPaint(raw)
	if info == nil || info.RawTexture != 7 {
		t.Error("raw texture paint lost its handle")
	}
}

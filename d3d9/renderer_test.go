package d3d9

import (
	"testing"

	"github.com/gogpu/gg/drawscene"
	"github.com/gogpu/gg/geom"
	"github.com/gogpu/gg/gpuabi"
	"github.com/gogpu/gg/gpuabi/software"
	"github.com/gogpu/gg/gpumem"
	"github.com/gogpu/gg/paint"
	"github.com/gogpu/gg/rendercore"
	"github.com/gogpu/gg/tiledata"
	"github.com/gogpu/gg/tiler"
)

func testShaders() ShaderSet {
	stub := []byte{0x01}
	return ShaderSet{
		FillVert: stub, FillFrag: stub,
		TileVert: stub, TileFrag: stub,
		ClipCopyVert: stub, ClipCopyFrag: stub,
		ClipCombineVert: stub, ClipCombineFrag: stub,
	}
}

func newTestRenderer(t *testing.T) (*Renderer, gpuabi.Device, *gpumem.Allocator) {
	t.Helper()
	dev := software.New()
	queue := software.NewQueue()
	alloc := gpumem.New(dev)
	core, err := rendercore.NewCore(dev, queue, alloc, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewRenderer(core, testShaders())
	if err != nil {
		t.Fatal(err)
	}
	return r, dev, alloc
}

// TestDrawSingleRectFrame drives a full S1 frame through the raster
// renderer against the software device: build, draw, and verify the mask
// allocation and destination bookkeeping.
func TestDrawSingleRectFrame(t *testing.T) {
	r, dev, alloc := newTestRenderer(t)

	dest, err := dev.CreateTexture(gpuabi.TextureDesc{Width: 64, Height: 64, Format: gpuabi.FormatRGBA8Unorm, Label: "dest"})
	if err != nil {
		t.Fatal(err)
	}
	r.SetDestTexture(dest, 64, 64)

	scene := drawscene.New(patternPageEdge)
	scene.SetViewBox(geom.NewRect(0, 0, 64, 64))
	red := scene.PushPaint(paint.Paint{BaseColor: paint.Color{R: 1, A: 1}})
	scene.PushDrawPath(drawscene.DrawPath{
		Outline: rectOutline(16, 16, 48, 48), Rule: tiler.FillNonZero, PaintID: red, ClipID: drawscene.NoClip,
	})

	var b SceneBuilder
	if err := b.Build(scene); err != nil {
		t.Fatal(err)
	}
	if err := r.Draw(&b, true); err != nil {
		t.Fatal(err)
	}

	// Even a fill-free frame keeps one mask page allocated.
	if r.Mask.AllocatedPageCount != 1 {
		t.Errorf("mask pages = %d, want 1", r.Mask.AllocatedPageCount)
	}
	if r.ClearDest {
		t.Error("clear flag not consumed by the first destination pass")
	}

	// Frame cleanup returns pooled resources without touching the
	// caller-owned destination.
	r.Reset()
	if stats := alloc.Stats(); stats.LiveTextures == 0 {
		t.Error("static core textures should stay live across frames")
	}
}

// TestDrawGradientFrame runs scenario S3's pipeline shape: a gradient
// paint forces a metadata row, a ramp upload, and a gradient color
// texture on the batch.
func TestDrawGradientFrame(t *testing.T) {
	r, dev, _ := newTestRenderer(t)

	dest, err := dev.CreateTexture(gpuabi.TextureDesc{Width: 64, Height: 64, Format: gpuabi.FormatRGBA8Unorm, Label: "dest"})
	if err != nil {
		t.Fatal(err)
	}
	r.SetDestTexture(dest, 64, 64)

	scene := drawscene.New(patternPageEdge)
	scene.SetViewBox(geom.NewRect(0, 0, 64, 64))
	grad := scene.PushPaint(paint.Paint{
		BaseColor: paint.Color{A: 1},
		Overlay: &paint.Overlay{
			Kind: paint.ContentsGradient,
			Gradient: &paint.Gradient{
				Geometry: paint.GradientGeometry{
					Kind: paint.GeometryLinear,
					Line: paint.Line{From: geom.Vec2{X: 16, Y: 16}, To: geom.Vec2{X: 48, Y: 48}},
				},
				Stops: []paint.ColorStop{
					{Offset: 0, Color: paint.Color{R: 1, A: 1}},
					{Offset: 1, Color: paint.Color{B: 1, A: 1}},
				},
			},
		},
	})
	scene.PushDrawPath(drawscene.DrawPath{
		Outline: rectOutline(16, 16, 48, 48), Rule: tiler.FillNonZero, PaintID: grad, ClipID: drawscene.NoClip,
	})

	var b SceneBuilder
	if err := b.Build(scene); err != nil {
		t.Fatal(err)
	}

	if len(b.PaintInfo.GradientUploads) != 1 {
		t.Fatalf("gradient uploads = %d, want 1", len(b.PaintInfo.GradientUploads))
	}
	up := b.PaintInfo.GradientUploads[0]
	if len(up.Texels) != tiledata.GradientTileLength*4 {
		t.Fatalf("gradient ramp bytes = %d, want %d", len(up.Texels), tiledata.GradientTileLength*4)
	}
	// Ends of the ramp are the end stops; the middle texel is the even
	// blend (S3's midpoint expectation, +-1 per channel).
	if up.Texels[0] != 255 || up.Texels[3] != 255 {
		t.Errorf("ramp start = %v, want pure red", up.Texels[0:4])
	}
	end := up.Texels[(tiledata.GradientTileLength-1)*4:]
	if end[2] != 255 || end[3] != 255 {
		t.Errorf("ramp end = %v, want pure blue", end[0:4])
	}
	mid := up.Texels[(tiledata.GradientTileLength/2)*4:]
	if d := int(mid[0]) - 127; d < -1 || d > 1 {
		t.Errorf("ramp midpoint red = %d, want ~127", mid[0])
	}

	batch := b.TileBatches[0]
	if batch.ColorTexture == nil || !batch.ColorTexture.Gradient {
		t.Fatal("gradient batch does not sample the gradient texture")
	}

	if err := r.Draw(&b, true); err != nil {
		t.Fatal(err)
	}
}

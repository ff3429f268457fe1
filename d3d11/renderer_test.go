package d3d11

import (
	"testing"

	"github.com/gogpu/gg/drawscene"
	"github.com/gogpu/gg/geom"
	"github.com/gogpu/gg/gpuabi"
	"github.com/gogpu/gg/gpuabi/software"
	"github.com/gogpu/gg/gpumem"
	"github.com/gogpu/gg/outline"
	"github.com/gogpu/gg/paint"
	"github.com/gogpu/gg/rendercore"
	"github.com/gogpu/gg/tiler"
)

func rectOutline(x0, y0, x1, y1 float32) outline.Outline {
	var c outline.Contour
	c.Segments = append(c.Segments, outline.Segment{
		Baseline: outline.Line{From: geom.Vec2{X: x0, Y: y0}, To: geom.Vec2{X: x1, Y: y0}},
		Kind:     outline.SegmentLine,
	})
	c.PushLine(geom.Vec2{X: x1, Y: y1})
	c.PushLine(geom.Vec2{X: x0, Y: y1})
	c.PushLine(geom.Vec2{X: x0, Y: y0})
	c.Closed = true
	var o outline.Outline
	o.PushContour(c)
	return o
}

func testShaders() ComputeShaderSet {
	stub := []byte{0x01}
	return ComputeShaderSet{
		Dice: stub, Bound: stub, Bin: stub, Propagate: stub,
		Fill: stub, Sort: stub, Tile: stub,
	}
}

func buildTestScene(t *testing.T, withClip bool) *drawscene.Scene {
	t.Helper()
	scene := drawscene.New(1024)
	scene.SetViewBox(geom.NewRect(0, 0, 64, 64))
	red := scene.PushPaint(paint.Paint{BaseColor: paint.Color{R: 1, A: 1}})

	clipID := drawscene.NoClip
	if withClip {
		clipID = int32(scene.PushClipPath(drawscene.ClipPath{
			Outline: rectOutline(4, 4, 44, 44), Rule: tiler.FillNonZero,
		}))
	}
	scene.PushDrawPath(drawscene.DrawPath{
		Outline: rectOutline(10, 10, 54, 54), Rule: tiler.FillNonZero, PaintID: red, ClipID: clipID,
	})
	return scene
}

func TestBuilderEncodesSegments(t *testing.T) {
	var b SceneBuilder
	if err := b.Build(buildTestScene(t, false)); err != nil {
		t.Fatal(err)
	}

	// A rect is four line segments; its closed contour adds no closer.
	if got := len(b.Segments.DrawSegments.Indices); got != 4 {
		t.Errorf("draw segment count = %d, want 4", got)
	}
	if got := len(b.Segments.DrawSegments.Points); got != 8 {
		t.Errorf("draw point count = %d, want 8", got)
	}
	if len(b.TileBatches) != 1 {
		t.Fatalf("tile batches = %d, want 1", len(b.TileBatches))
	}

	data := b.TileBatches[0].Data
	if data.PathCount != 1 {
		t.Errorf("path count = %d, want 1", data.PathCount)
	}
	// Rect [10,54]^2 spans tiles [0,4)^2.
	if data.TileCount != 16 {
		t.Errorf("tile count = %d, want 16", data.TileCount)
	}
	if got := len(data.PrepareInfo.Backdrops); got != 4 {
		t.Errorf("backdrop columns = %d, want 4", got)
	}
	if data.SegmentCount != 4 {
		t.Errorf("segment count = %d, want 4", data.SegmentCount)
	}
}

func TestBuilderClipBatchPreparesFirst(t *testing.T) {
	var b SceneBuilder
	if err := b.Build(buildTestScene(t, true)); err != nil {
		t.Fatal(err)
	}

	if len(b.ClipBatches.PrepareBatches) != 1 {
		t.Fatalf("clip prepare batches = %d, want 1", len(b.ClipBatches.PrepareBatches))
	}
	clipBatch := b.ClipBatches.PrepareBatches[0]
	if clipBatch.PathSource != PathSourceClip {
		t.Error("clip batch not marked as clip source")
	}
	if clipBatch.PathCount != 1 {
		t.Errorf("clip batch path count = %d, want 1", clipBatch.PathCount)
	}

	draw := b.TileBatches[0].Data
	if draw.ClippedPaths == nil {
		t.Fatal("clipped draw batch has no clip info")
	}
	if draw.ClippedPaths.ClipBatchID != clipBatch.BatchID {
		t.Errorf("clip batch id = %d, want %d", draw.ClippedPaths.ClipBatchID, clipBatch.BatchID)
	}
	if draw.PrepareInfo.PropagateMetadata[0].ClipPathIndex == NoClipPath {
		t.Error("clipped path's propagate metadata has no clip path index")
	}
}

// TestDrawFrame drives the whole seven-pass orchestration against the
// software device. The software device executes no kernels, so the counts
// read back are zero; what this checks is the pass sequencing, buffer
// lifecycle, and that a frame completes without error.
func TestDrawFrame(t *testing.T) {
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

	dest, err := dev.CreateTexture(gpuabi.TextureDesc{Width: 64, Height: 64, Format: gpuabi.FormatRGBA8Unorm, Label: "dest"})
	if err != nil {
		t.Fatal(err)
	}
	r.SetDestTexture(dest, 64, 64)

	var b SceneBuilder
	if err := b.Build(buildTestScene(t, true)); err != nil {
		t.Fatal(err)
	}
	if err := r.Draw(&b, true); err != nil {
		t.Fatal(err)
	}

	// All per-batch buffers must be freed at frame end.
	if len(r.tileBatchInfo) != 0 {
		t.Errorf("tile batch info not cleared: %d entries", len(r.tileBatchInfo))
	}
	// Mask storage allocated at least one page.
	if r.Mask.AllocatedPageCount == 0 {
		t.Error("mask storage has no pages")
	}
	if r.ClearDest {
		t.Error("clear flag not consumed")
	}

	// Scene source buffers persist for the next frame.
	if r.drawBuffers.points == 0 || r.drawBuffers.pointIndices == 0 {
		t.Error("draw segment buffers were freed")
	}
}

// TestSegmentBufferGrowth checks the power-of-two capacity growth of the
// scene source buffers across frames.
func TestSegmentBufferGrowth(t *testing.T) {
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
	dest, _ := dev.CreateTexture(gpuabi.TextureDesc{Width: 64, Height: 64, Format: gpuabi.FormatRGBA8Unorm, Label: "dest"})
	r.SetDestTexture(dest, 64, 64)

	var b SceneBuilder
	if err := b.Build(buildTestScene(t, false)); err != nil {
		t.Fatal(err)
	}
	if err := r.Draw(&b, true); err != nil {
		t.Fatal(err)
	}
	firstCap := r.drawBuffers.pointsCap
	if firstCap == 0 || firstCap&(firstCap-1) != 0 {
		t.Errorf("points capacity %d is not a power of two", firstCap)
	}

	// A bigger scene must grow the buffer, never shrink it.
	scene := drawscene.New(1024)
	scene.SetViewBox(geom.NewRect(0, 0, 64, 64))
	red := scene.PushPaint(paint.Paint{BaseColor: paint.Color{R: 1, A: 1}})
	for i := 0; i < 8; i++ {
		f := float32(i)
		scene.PushDrawPath(drawscene.DrawPath{
			Outline: rectOutline(f, f, f+20, f+20), Rule: tiler.FillNonZero, PaintID: red, ClipID: drawscene.NoClip,
		})
	}
	var b2 SceneBuilder
	if err := b2.Build(scene); err != nil {
		t.Fatal(err)
	}
	if err := r.Draw(&b2, true); err != nil {
		t.Fatal(err)
	}
	if r.drawBuffers.pointsCap < firstCap {
		t.Error("points capacity shrank")
	}
}

package gg_test

import (
	"testing"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/backend"
	_ "github.com/gogpu/gg/backend/software"
	"github.com/gogpu/gg/d3d11"
	"github.com/gogpu/gg/d3d9"
	"github.com/gogpu/gg/drawscene"
	"github.com/gogpu/gg/geom"
	"github.com/gogpu/gg/gpuabi"
	"github.com/gogpu/gg/outline"
	"github.com/gogpu/gg/paint"
	"github.com/gogpu/gg/tiler"
)

func stubRasterShaders() d3d9.ShaderSet {
	s := []byte{0x01}
	return d3d9.ShaderSet{
		FillVert: s, FillFrag: s, TileVert: s, TileFrag: s,
		ClipCopyVert: s, ClipCopyFrag: s, ClipCombineVert: s, ClipCombineFrag: s,
	}
}

func stubComputeShaders() d3d11.ComputeShaderSet {
	s := []byte{0x01}
	return d3d11.ComputeShaderSet{Dice: s, Bound: s, Bin: s, Propagate: s, Fill: s, Sort: s, Tile: s}
}

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

func testScene() *drawscene.Scene {
	scene := drawscene.New(1024)
	scene.SetViewBox(geom.NewRect(0, 0, 64, 64))
	red := scene.PushPaint(paint.Paint{BaseColor: paint.Color{R: 1, A: 1}})
	scene.PushDrawPath(drawscene.DrawPath{
		Outline: rectOutline(16, 16, 48, 48), Rule: tiler.FillNonZero, PaintID: red, ClipID: drawscene.NoClip,
	})
	return scene
}

func newBackend(t *testing.T) backend.Backend {
	t.Helper()
	b := backend.Get(backend.BackendSoftware)
	if b == nil {
		t.Fatal("software backend unavailable")
	}
	if err := b.Init(); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestRasterStrategyEndToEnd(t *testing.T) {
	b := newBackend(t)
	defer b.Close()

	r, err := gg.New(b, gg.WithRasterShaders(stubRasterShaders()))
	if err != nil {
		t.Fatal(err)
	}
	dest, err := b.Device().CreateTexture(gpuabi.TextureDesc{Width: 64, Height: 64, Format: gpuabi.FormatRGBA8Unorm, Label: "dest"})
	if err != nil {
		t.Fatal(err)
	}
	r.SetDestTexture(dest, 64, 64)

	if err := r.Draw(testScene(), true); err != nil {
		t.Fatal(err)
	}
}

func TestComputeStrategyEndToEnd(t *testing.T) {
	b := newBackend(t)
	defer b.Close()

	r, err := gg.New(b, gg.WithStrategy(gg.StrategyCompute), gg.WithComputeShaders(stubComputeShaders()))
	if err != nil {
		t.Fatal(err)
	}
	dest, err := b.Device().CreateTexture(gpuabi.TextureDesc{Width: 64, Height: 64, Format: gpuabi.FormatRGBA8Unorm, Label: "dest"})
	if err != nil {
		t.Fatal(err)
	}
	r.SetDestTexture(dest, 64, 64)

	if err := r.Draw(testScene(), true); err != nil {
		t.Fatal(err)
	}
}

func TestMissingShadersFailsFast(t *testing.T) {
	b := newBackend(t)
	defer b.Close()

	if _, err := gg.New(b); err == nil {
		t.Fatal("expected ErrNoShaders for raster strategy without shaders")
	}
	if _, err := gg.New(b, gg.WithStrategy(gg.StrategyCompute)); err == nil {
		t.Fatal("expected ErrNoShaders for compute strategy without shaders")
	}
}

func TestEpochAndInterning(t *testing.T) {
	scene := drawscene.New(256)
	e0 := scene.Epoch()
	p1 := scene.PushPaint(paint.Paint{BaseColor: paint.Color{R: 1, A: 1}})
	e1 := scene.Epoch()
	if !e0.Less(e1) {
		t.Error("epoch did not increase after PushPaint")
	}
	p2 := scene.PushPaint(paint.Paint{BaseColor: paint.Color{R: 1, A: 1}})
	if p1 != p2 {
		t.Errorf("solid paint not interned: %d vs %d", p1, p2)
	}
	scene.SetViewBox(geom.NewRect(0, 0, 100, 50))
	if w := int(scene.ViewBox.Width()); w%16 != 0 {
		t.Errorf("view box width %d not a multiple of the tile size", w)
	}
}

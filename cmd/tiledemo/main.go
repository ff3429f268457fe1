// Command tiledemo builds a small scene and runs it through the raster
// strategy, printing per-frame statistics. It uses the wgpu backend when
// that initializes and the software device otherwise. It is a smoke test
// for the pipeline wiring more than a picture generator: the software
// device records but does not execute shaders.
package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/backend"
	_ "github.com/gogpu/gg/backend/software"
	_ "github.com/gogpu/gg/backend/wgpu"
	"github.com/gogpu/gg/d3d9"
	"github.com/gogpu/gg/drawscene"
	"github.com/gogpu/gg/geom"
	"github.com/gogpu/gg/gpuabi"
	"github.com/gogpu/gg/outline"
	"github.com/gogpu/gg/outline/stroke"
	"github.com/gogpu/gg/paint"
	"github.com/gogpu/gg/tiler"
)

func main() {
	gg.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	// Prefer a real GPU; fall back to the software device when none is
	// available (headless CI, containers).
	var b backend.Backend
	for _, name := range []string{backend.BackendWGPU, backend.BackendSoftware} {
		candidate := backend.Get(name)
		if candidate == nil {
			continue
		}
		if err := candidate.Init(); err != nil {
			log.Printf("backend %s unavailable: %v", name, err)
			continue
		}
		b = candidate
		break
	}
	if b == nil {
		log.Fatal("no backend available")
	}
	defer b.Close()

	stub := []byte{0x01}
	r, err := gg.New(b, gg.WithRasterShaders(d3d9.ShaderSet{
		FillVert: stub, FillFrag: stub, TileVert: stub, TileFrag: stub,
		ClipCopyVert: stub, ClipCopyFrag: stub, ClipCombineVert: stub, ClipCombineFrag: stub,
	}))
	if err != nil {
		log.Fatalf("renderer: %v", err)
	}

	const w, h = 256, 256
	dest, err := b.Device().CreateTexture(gpuabi.TextureDesc{Width: w, Height: h, Format: gpuabi.FormatRGBA8Unorm, Label: "demo dest"})
	if err != nil {
		log.Fatalf("dest texture: %v", err)
	}
	r.SetDestTexture(dest, w, h)

	scene := drawscene.New(1024)
	scene.SetViewBox(geom.NewRect(0, 0, w, h))

	// A filled gradient square.
	grad := scene.PushPaint(paint.Paint{
		BaseColor: paint.Color{A: 1},
		Overlay: &paint.Overlay{
			Kind: paint.ContentsGradient,
			Gradient: &paint.Gradient{
				Geometry: paint.GradientGeometry{
					Kind: paint.GeometryLinear,
					Line: paint.Line{From: geom.Vec2{X: 32, Y: 32}, To: geom.Vec2{X: 224, Y: 224}},
				},
				Stops: []paint.ColorStop{
					{Offset: 0, Color: paint.Color{R: 1, A: 1}},
					{Offset: 1, Color: paint.Color{B: 1, A: 1}},
				},
			},
		},
	})
	scene.PushDrawPath(drawscene.DrawPath{
		Outline: rect(32, 32, 224, 224),
		Rule:    tiler.FillNonZero,
		PaintID: grad,
		ClipID:  drawscene.NoClip,
	})

	// A stroked open line on top.
	white := scene.PushPaint(paint.Paint{BaseColor: paint.Color{R: 1, G: 1, B: 1, A: 1}})
	var line outline.Contour
	line.Segments = append(line.Segments, outline.Segment{
		Baseline: outline.Line{From: geom.Vec2{X: 48, Y: 128}, To: geom.Vec2{X: 208, Y: 128}},
		Kind:     outline.SegmentLine,
	})
	var open outline.Outline
	open.PushContour(line)
	stroked := stroke.NewExpander(stroke.Style{
		Width: 8,
		Cap:   stroke.CapRound,
		Join:  stroke.JoinRound,
	}, 0).Expand(open)
	scene.PushDrawPath(drawscene.DrawPath{
		Outline: stroked,
		Rule:    tiler.FillNonZero,
		PaintID: white,
		ClipID:  drawscene.NoClip,
	})

	if err := r.Draw(scene, true); err != nil {
		log.Fatalf("draw: %v", err)
	}

	stats := r.Core().Alloc.Stats()
	fmt.Printf("frame complete: %d live textures, %d live buffers, %d mask pages\n",
		stats.LiveTextures, stats.LiveBuffers, r.Core().Mask.AllocatedPageCount)
}

func rect(x0, y0, x1, y1 float32) outline.Outline {
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

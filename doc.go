// Package gg is a tile-based 2D vector graphics renderer. It converts
// vector scenes (filled and stroked paths with solid, gradient, pattern,
// or render-target paints) into raster images by flattening curves,
// partitioning the view into 16x16 pixel tiles, classifying each tile as
// empty, solid, or masked, computing per-tile coverage, and compositing
// through a backend-neutral GPU abstraction.
//
// Two strategies are available: a raster strategy that tiles on the CPU
// and rasterizes with graphics passes, and a compute strategy that runs
// dicing, binning, backdrop propagation, fill rendering, sorting, and
// compositing as compute kernels.
//
// Typical use:
//
//	b := backend.Default()
//	if err := b.Init(); err != nil { ... }
//	r, err := gg.New(b, gg.WithRasterShaders(shaders))
//	r.SetDestTexture(dst, w, h)
//
//	scene := drawscene.New(1024)
//	scene.SetViewBox(geom.NewRect(0, 0, 800, 608))
//	red := scene.PushPaint(paint.Paint{BaseColor: paint.Color{R: 1, A: 1}})
//	scene.PushDrawPath(drawscene.DrawPath{Outline: outline, PaintID: red, ClipID: drawscene.NoClip})
//
//	err = r.Draw(scene, true)
//
// Scene construction lives in the drawscene package, geometry in outline
// (with stroke-to-fill expansion under outline/stroke), paints in paint,
// and the GPU seam in gpuabi with backends under backend/.
package gg

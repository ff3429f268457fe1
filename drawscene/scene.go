// Package drawscene implements the scene model described in spec.md §3 and
// §4.3: a scene owns draw paths, clip paths, a display list, a view box, a
// palette, and a monotonically increasing epoch. It is the "scene
// construction API" spec.md §6 lists (push_paint, push_draw_path,
// push_clip_path, push_render_target, pop_render_target, set_view_box,
// append_scene).
//
// Named drawscene rather than scene to avoid colliding with the teacher's
// pre-existing scene package (a Vello-style GPU encoding buffer for a
// different, immediate-mode 2D canvas pipeline) — see DESIGN.md's package
// map for why this core's scene/palette component lives under a new name.
//
// Grounded on original_source/pathfinder's core/scene.cpp (push_*/append_
// methods, per-call epoch bump, render-target push/pop stack) and the
// teacher's scene/scene.go for Go idiom (pooled construction, constructor
// shape) adapted to this module's DrawPath/ClipPath/Palette types instead
// of the teacher's Vello-style encoding.
package drawscene

import (
	"golang.org/x/text/unicode/norm"

	"github.com/gogpu/gg/geom"
	"github.com/gogpu/gg/outline"
	"github.com/gogpu/gg/paint"
	"github.com/gogpu/gg/tiledata"
	"github.com/gogpu/gg/tiler"
)

// Epoch is a monotonically increasing scene version, compared
// lexicographically on (Hi, Lo), per spec.md testable property 2. Lo's
// overflow carries into Hi so a scene can survive more than 2^64 mutations,
// though no real caller will ever bump it that many times.
type Epoch struct {
	Hi, Lo uint64
}

// Less reports whether e sorts strictly before o.
func (e Epoch) Less(o Epoch) bool {
	if e.Hi != o.Hi {
		return e.Hi < o.Hi
	}
	return e.Lo < o.Lo
}

func (e *Epoch) bump() {
	e.Lo++
	if e.Lo == 0 {
		e.Hi++
	}
}

// Blend selects the blend mode a draw path composites with, per spec.md
// §4.1's fixed blend-state set.
type Blend uint8

const (
	BlendOver Blend = iota
	BlendReplace
	BlendEqual
)

// DrawPath is one filled or stroked path in a scene: its outline (already
// stroke-expanded to a fill outline if it started life as a stroke),
// fill rule, paint id, optional clip path id, blend mode, and Z-order.
type DrawPath struct {
	Outline outline.Outline
	Rule    tiler.FillRule
	PaintID uint32
	ClipID  int32 // NoClip if unclipped
	Blend   Blend
	ZWrite  uint32
}

// NoClip marks a DrawPath with no clip path. Zero is not used as the
// sentinel since it is also a valid clip-path id (the first one pushed).
const NoClip int32 = -1

// ClipPath is a path used only to clip draw paths, never directly painted.
type ClipPath struct {
	Outline outline.Outline
	Rule    tiler.FillRule
}

// RenderTargetID identifies a pushed render target within a scene.
type RenderTargetID uint32

// Scene owns draw paths, clip paths, the display list, the view box, and
// the palette, per spec.md §3/§4.3.
type Scene struct {
	DrawPaths []DrawPath
	ClipPaths []ClipPath
	Display   []tiledata.DisplayItem
	ViewBox   geom.Rect
	Palette   *paint.Palette

	bounds geom.Rect
	epoch  Epoch

	rtStack []RenderTargetID
}

// New creates an empty scene. imagePageSize sizes the palette's
// image/pattern atlas pages.
func New(imagePageSize int) *Scene {
	return &Scene{Palette: paint.NewPalette(imagePageSize)}
}

// Epoch returns the scene's current version.
func (s *Scene) Epoch() Epoch { return s.epoch }

// SetViewBox sets the scene's view box, rounding the width up to a multiple
// of TileWidth per spec.md §3. Per spec.md testable property 1, the result
// must already satisfy width mod TileWidth == 0 after this call.
func (s *Scene) SetViewBox(r geom.Rect) {
	w := r.Width()
	aligned := geom.CeilDiv(int(w), tiledata.TileWidth) * tiledata.TileWidth
	s.ViewBox = geom.Rect{MinX: r.MinX, MinY: r.MinY, MaxX: r.MinX + float32(aligned), MaxY: r.MaxY}
	s.epoch.bump()
}

// PushPaint interns solid-color paints and appends all others, delegating
// to the palette.
func (s *Scene) PushPaint(p paint.Paint) uint32 {
	id := s.Palette.PushPaint(p)
	s.epoch.bump()
	return id
}

// PushDrawPath appends a draw path. If the trailing display item is a
// DrawPaths range, the new path is merged into it by extending the range;
// otherwise a new DrawPaths display item is pushed, per spec.md §4.3.
func (s *Scene) PushDrawPath(d DrawPath) uint32 {
	id := uint32(len(s.DrawPaths))
	s.DrawPaths = append(s.DrawPaths, d)
	s.bounds = s.bounds.Union(d.Outline.Bounds)

	if n := len(s.Display); n > 0 && s.Display[n-1].Kind == tiledata.DisplayItemDrawPaths && s.Display[n-1].PathEnd == id {
		s.Display[n-1].PathEnd = id + 1
	} else {
		s.Display = append(s.Display, tiledata.DisplayItem{
			Kind: tiledata.DisplayItemDrawPaths, PathBegin: id, PathEnd: id + 1,
		})
	}
	s.epoch.bump()
	return id
}

// PushClipPath appends a clip path and returns its id.
func (s *Scene) PushClipPath(c ClipPath) uint32 {
	id := uint32(len(s.ClipPaths))
	s.ClipPaths = append(s.ClipPaths, c)
	s.epoch.bump()
	return id
}

// PushRenderTarget registers a render target and emits a PushRenderTarget
// display item, per spec.md §3/§4.3. Render-target ids are unique per
// scene. The label is NFC-normalized before it becomes a GPU debug label,
// so embedder-supplied names with combining marks compare stably across
// backends.
func (s *Scene) PushRenderTarget(desc paint.RenderTargetDesc) RenderTargetID {
	desc.Label = norm.NFC.String(desc.Label)
	idx := s.Palette.PushRenderTarget(desc)
	id := RenderTargetID(idx)
	s.rtStack = append(s.rtStack, id)
	s.Display = append(s.Display, tiledata.DisplayItem{Kind: tiledata.DisplayItemPushRenderTarget, RenderTargetID: uint32(id)})
	s.epoch.bump()
	return id
}

// PopRenderTarget emits a PopRenderTarget display item, closing the most
// recently pushed render target.
func (s *Scene) PopRenderTarget() {
	if len(s.rtStack) == 0 {
		return
	}
	s.rtStack = s.rtStack[:len(s.rtStack)-1]
	s.Display = append(s.Display, tiledata.DisplayItem{Kind: tiledata.DisplayItemPopRenderTarget})
	s.epoch.bump()
}

// Bounds returns the union of all draw path bounds pushed so far.
func (s *Scene) Bounds() geom.Rect { return s.bounds }

// AppendScene merges other into s, remapping paint ids and render-target
// ids and applying transform to all geometry and to any gradient/pattern
// transforms nested in paints, per spec.md §4.3.
func (s *Scene) AppendScene(other *Scene, transform geom.Affine) {
	paintRemap := make([]uint32, len(other.Palette.Paints()))
	for i, p := range other.Palette.Paints() {
		remapped := p
		if remapped.Overlay != nil {
			ov := *remapped.Overlay
			if ov.Gradient != nil {
				g := *ov.Gradient
				g.Geometry.Transform = g.Geometry.Transform.Mul(transform)
				ov.Gradient = &g
			}
			if ov.Pattern != nil {
				pt := *ov.Pattern
				pt.Transform = pt.Transform.Mul(transform)
				ov.Pattern = &pt
			}
			remapped.Overlay = &ov
		}
		paintRemap[i] = s.PushPaint(remapped)
	}

	otherRTs := other.Palette.RenderTargets()
	rtRemap := make([]RenderTargetID, len(otherRTs))
	for i, desc := range otherRTs {
		rtRemap[i] = RenderTargetID(s.Palette.PushRenderTarget(desc))
	}

	clipRemap := make([]uint32, len(other.ClipPaths))
	for i, c := range other.ClipPaths {
		oc := c
		oc.Outline = oc.Outline.Clone()
		oc.Outline.Transform(transform)
		clipRemap[i] = s.PushClipPath(oc)
	}

	// Paths append without going through PushDrawPath: the merged display
	// items below already carry the ranges, and PushDrawPath would emit a
	// second set.
	pathRemap := make([]uint32, len(other.DrawPaths))
	for i, d := range other.DrawPaths {
		nd := d
		nd.Outline = nd.Outline.Clone()
		nd.Outline.Transform(transform)
		nd.PaintID = paintRemap[d.PaintID]
		if d.ClipID != NoClip {
			nd.ClipID = int32(clipRemap[d.ClipID]) //nolint:gosec // clip ids stay small
		}
		pathRemap[i] = uint32(len(s.DrawPaths))
		s.DrawPaths = append(s.DrawPaths, nd)
		s.bounds = s.bounds.Union(nd.Outline.Bounds)
	}

	for _, item := range other.Display {
		switch item.Kind {
		case tiledata.DisplayItemPushRenderTarget:
			s.Display = append(s.Display, tiledata.DisplayItem{Kind: tiledata.DisplayItemPushRenderTarget, RenderTargetID: uint32(rtRemap[item.RenderTargetID])})
		case tiledata.DisplayItemPopRenderTarget:
			s.Display = append(s.Display, tiledata.DisplayItem{Kind: tiledata.DisplayItemPopRenderTarget})
		case tiledata.DisplayItemDrawPaths:
			begin, end := item.PathBegin, item.PathEnd
			if end > begin {
				s.Display = append(s.Display, tiledata.DisplayItem{
					Kind: tiledata.DisplayItemDrawPaths, PathBegin: pathRemap[begin], PathEnd: pathRemap[end-1] + 1,
				})
			}
		}
	}
	s.epoch.bump()
}

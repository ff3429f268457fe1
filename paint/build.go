package paint

import (
	"math"

	"github.com/gogpu/gg/geom"
	"github.com/gogpu/gg/gpumem"
	"github.com/gogpu/gg/tiledata"
)

// SamplingFlags pack the sampler state a paint's color texture needs.
type SamplingFlags uint8

const (
	SamplingRepeatU SamplingFlags = 1 << iota
	SamplingRepeatV
	SamplingNearestMin
	SamplingNearestMag
)

// TexelUpload is one pending RGBA8 region upload into a color texture page.
type TexelUpload struct {
	Location TextureLocation
	Texels   []byte
}

// PaintInfo is the per-frame output of BuildPaintInfo: resolved metadata
// for every paint plus the texel uploads the renderer must issue before
// the first tile pass samples the color pages.
type PaintInfo struct {
	Metadata              []PaintMetadata
	GradientUploads       []TexelUpload
	ImageUploads          []TexelUpload
	RenderTargetLocations []TextureLocation
}

// GradientPage is the page index the gradient ramp texture occupies. The
// gradient tile texture is its own fixed 256x256 page, distinct from the
// pattern pager's pages, which start at page 0 of the pattern atlas.
const GradientPage uint32 = 0xFFFF_FFFF

// BuildPaintInfo assigns texture locations to every paint, computes each
// paint's color-texture transform, and gathers the texel uploads for
// gradient ramps and cached images. Call once per frame before building
// tile batches; follow with EndFrame once the frame's batches are done.
func (p *Palette) BuildPaintInfo() (PaintInfo, error) {
	var info PaintInfo

	// Render targets claim atlas space first so patterns can reference
	// them by id.
	for _, desc := range p.renderTargets {
		pageIdx, region, err := p.imagePager.Allocate(desc.Width, desc.Height)
		if err != nil {
			return PaintInfo{}, err
		}
		info.RenderTargetLocations = append(info.RenderTargetLocations, TextureLocation{
			Page:   uint32(pageIdx),
			Region: region,
		})
	}

	info.Metadata = make([]PaintMetadata, 0, len(p.paints))
	for idx, pt := range p.paints {
		meta := PaintMetadata{
			BaseColor:   pt.BaseColor,
			CompositeOp: CompositeSrcOver,
			Combine:     CombineReplace,
			Opaque:      p.paintIsOpaque(pt),
		}

		if pt.Overlay != nil {
			ov := pt.Overlay
			meta.CompositeOp = ov.CompositeOp
			meta.Combine = CombineSrcIn
			switch ov.Kind {
			case ContentsGradient:
				if err := p.buildGradientMetadata(uint32(idx), ov.Gradient, &meta, &info); err != nil {
					return PaintInfo{}, err
				}
			case ContentsPattern:
				if err := p.buildPatternMetadata(ov, &meta, &info); err != nil {
					return PaintInfo{}, err
				}
			}
			if ov.Filter == FilterBlur {
				meta.FilterKind = FilterBlur
				meta.FilterParams = BlurParams(ov.Blur)
			}
		}

		info.Metadata = append(info.Metadata, meta)
	}

	return info, nil
}

func (p *Palette) buildGradientMetadata(paintIndex uint32, g *Gradient, meta *PaintMetadata, info *PaintInfo) error {
	row, err := p.AllocateGradientRow(paintIndex)
	if err != nil {
		return err
	}

	loc := TextureLocation{
		Page:   GradientPage,
		Region: gpumem.Region{X: 0, Y: row, Width: tiledata.GradientTileLength, Height: 1},
	}
	meta.ColorTexLocation = loc
	meta.HasColorTexture = true
	if g.Wrap == WrapRepeat {
		meta.Sampling |= SamplingRepeatU
	}

	ramp := SampleGradientRamp(g.Stops)
	texels := make([]byte, 0, tiledata.GradientTileLength*4)
	for _, c := range ramp {
		texels = append(texels, colorToBytes(c)...)
	}
	info.GradientUploads = append(info.GradientUploads, TexelUpload{Location: loc, Texels: texels})

	texScale := float32(1) / tiledata.GradientTileLength

	switch g.Geometry.Kind {
	case GeometryLinear:
		// Map a device point onto the ramp row: t along the gradient
		// line becomes u, the row's center becomes v.
		d := g.Geometry.Line.To.Sub(g.Geometry.Line.From)
		sq := d.Dot(d)
		if sq == 0 {
			sq = 1
		}
		m0 := d.Scale(1 / sq)
		m13 := geom.Vec2{X: -m0.X * g.Geometry.Line.From.X, Y: -m0.Y * g.Geometry.Line.From.Y}
		v0 := (float32(row) + 0.5) * texScale
		meta.Transform = geom.Affine{A: m0.X, B: 0, C: m0.Y, D: 0, TX: m13.X + m13.Y, TY: v0}

	case GeometryRadial:
		meta.Transform = g.Geometry.Transform.Inverse()
		meta.FilterKind = FilterRadialGradient
		lineFrom := g.Geometry.Line.From
		lineVec := g.Geometry.Line.To.Sub(lineFrom)
		uvOriginY := (float32(row) + 0.5) * texScale
		meta.FilterParams = RadialGradientParams(
			[2]float32{lineFrom.X, lineFrom.Y},
			[2]float32{lineVec.X, lineVec.Y},
			[2]float32{g.Geometry.Radii.X, g.Geometry.Radii.Y},
			[2]float32{0, uvOriginY},
		)
	}
	return nil
}

func (p *Palette) buildPatternMetadata(ov *Overlay, meta *PaintMetadata, info *PaintInfo) error {
	pat := ov.Pattern

	if pat.Flags.RepeatX {
		meta.Sampling |= SamplingRepeatU
	}
	if pat.Flags.RepeatY {
		meta.Sampling |= SamplingRepeatV
	}
	if pat.Flags.NoSmoothing {
		meta.Sampling |= SamplingNearestMin | SamplingNearestMag
	}

	var loc TextureLocation
	switch pat.Source.Kind {
	case SourceRenderTarget:
		id := pat.Source.RenderTargetID
		if int(id) >= len(info.RenderTargetLocations) {
			return ErrImageAtlasFull
		}
		loc = info.RenderTargetLocations[id]
		meta.HasColorTexture = true

	case SourceImage:
		img := pat.Source.Image
		if img == nil || img.RGBA8 == nil {
			// A failed decode leaves the paint in the palette with no
			// texture location; the batch using it samples the dummy
			// texture rather than crashing.
			return nil
		}
		var err error
		loc, err = p.InternImage(img, pat.Flags.RepeatX, pat.Flags.RepeatY)
		if err != nil {
			return err
		}
		info.ImageUploads = append(info.ImageUploads, TexelUpload{Location: loc, Texels: img.RGBA8})
		meta.HasColorTexture = true

	case SourceRawTexture:
		meta.RawTextureID = pat.Source.RawTextureID
		meta.HasColorTexture = true
	}

	meta.ColorTexLocation = loc

	// Device point -> texture UV: scale into the region, offset to its
	// origin, composed with the pattern's own inverse transform.
	w, h := loc.Region.Width, loc.Region.Height
	if w == 0 || h == 0 {
		w, h = 1, 1
	}
	// The atlas page edge is the UV denominator; the pager's pages are
	// square and sized by the palette's constructor.
	pageEdge := float32(p.imagePageEdge())
	sx := 1 / pageEdge
	sy := 1 / pageEdge
	origin := geom.Vec2{X: float32(loc.Region.X) * sx, Y: float32(loc.Region.Y) * sy}
	texTransform := geom.Affine{A: sx, D: sy, TX: origin.X, TY: origin.Y}
	meta.Transform = pat.Transform.Inverse().Mul(texTransform)
	return nil
}

func (p *Palette) paintIsOpaque(pt Paint) bool {
	if pt.BaseColor.A < 1 {
		return false
	}
	if pt.Overlay == nil {
		return true
	}
	switch pt.Overlay.Kind {
	case ContentsGradient:
		for _, s := range pt.Overlay.Gradient.Stops {
			if s.Color.A < 1 {
				return false
			}
		}
		return true
	case ContentsPattern:
		src := pt.Overlay.Pattern.Source
		if src.Kind == SourceImage && src.Image != nil {
			px := src.Image.RGBA8
			for i := 3; i < len(px); i += 4 {
				if px[i] != 0xFF {
					return false
				}
			}
			return true
		}
		return false
	}
	return false
}

func colorToBytes(c Color) []byte {
	return []byte{
		floatToByte(c.R), floatToByte(c.G), floatToByte(c.B), floatToByte(c.A),
	}
}

func floatToByte(v float32) byte {
	x := math.Round(float64(v) * 255)
	if x < 0 {
		x = 0
	}
	if x > 255 {
		x = 255
	}
	return byte(x)
}

package paint

import (
	"math"

	"github.com/gogpu/gg/tiledata"
)

// Ctrl bit layout, per spec.md §4.3 "Filter encoding":
//   bits 10+  composite op
//   bits 8-9  color-combine mode
//   bits 4-7  color filter kind (radial gradient = 1, blur = 3)
const (
	ctrlCompositeShift = 10
	ctrlCombineShift   = 8
	ctrlFilterShift    = 4
)

// PackCtrl builds the metadata row's ctrl word from a paint's overlay
// state, bit-exact with spec.md testable property 9.
func PackCtrl(composite CompositeOp, combine ColorCombineMode, filter FilterKind) uint16 {
	return uint16(composite)<<ctrlCompositeShift | uint16(combine)<<ctrlCombineShift | uint16(filter)<<ctrlFilterShift
}

// MetadataRow is one paint's 40-half-float metadata texture row, grouped
// into 10 RGBA texels as described in spec.md §4.3:
//
//	texel 0    affine color transform (4 floats)
//	texel 1    translation (2) + 2 padding
//	texel 2    base color rgba
//	texel 3-7  five filter-param texels (20 floats; radial gradient uses
//	           texels 3-4 for line_from/line_vec/radii/uv_origin, blur uses
//	           its own five-field layout starting at texel 3)
//	texel 8    ctrl word in component 0, remaining components padding
//	texel 9    padding
//
// Texels are stored as half-float-encoded uint16 words except the ctrl
// word, which the tile shader reads back as a raw integer (bitcast, not
// decoded as a float).
type MetadataRow [tiledata.TextureMetadataTexelsPerRow * 4]uint16

// BuildMetadataRow packs one paint's metadata into its texture row.
func BuildMetadataRow(meta PaintMetadata) MetadataRow {
	var row MetadataRow

	// Texel 0: affine color transform. Only meaningful for gradients and
	// patterns; solid paints leave it as the zero transform.
	put4f(&row, 0, meta.Transform.A, meta.Transform.B, meta.Transform.C, meta.Transform.D)

	// Texel 1: translation + 2 padding.
	put4f(&row, 1, meta.Transform.TX, meta.Transform.TY, 0, 0)

	// Texel 2: base color.
	put4f(&row, 2, meta.BaseColor.R, meta.BaseColor.G, meta.BaseColor.B, meta.BaseColor.A)

	// Texels 3-7: five filter-param texels (20 floats).
	for i := 0; i < 5; i++ {
		a := meta.FilterParams[i*4+0]
		b := meta.FilterParams[i*4+1]
		c := meta.FilterParams[i*4+2]
		d := meta.FilterParams[i*4+3]
		put4f(&row, 3+i, a, b, c, d)
	}

	// Texel 8: ctrl word (raw integer, not half-float) + padding.
	ctrl := PackCtrl(meta.CompositeOp, meta.Combine, meta.FilterKind)
	row[8*4+0] = ctrl
	row[8*4+1] = 0
	row[8*4+2] = 0
	row[8*4+3] = 0

	// Texel 9: padding.
	put4f(&row, 9, 0, 0, 0, 0)

	return row
}

func put4f(row *MetadataRow, texel int, a, b, c, d float32) {
	row[texel*4+0] = float32ToHalf(a)
	row[texel*4+1] = float32ToHalf(b)
	row[texel*4+2] = float32ToHalf(c)
	row[texel*4+3] = float32ToHalf(d)
}

// RadialGradientParams packs (line_from, line_vec, radii, uv_origin) into
// the FilterParams slots 0..7 (texels 3-4), per spec.md §4.3.
func RadialGradientParams(lineFrom, lineVec, radii, uvOrigin [2]float32) [20]float32 {
	var p [20]float32
	p[0], p[1] = lineFrom[0], lineFrom[1]
	p[2], p[3] = lineVec[0], lineVec[1]
	p[4], p[5] = radii[0], radii[1]
	p[6], p[7] = uvOrigin[0], uvOrigin[1]
	return p
}

// BlurParams packs (src_offset, support, gauss_coeff, gauss_exp1, gauss_exp2)
// into FilterParams starting at texel 3, per spec.md §4.4's blur encoding.
func BlurParams(b BlurFilter) [20]float32 {
	var p [20]float32
	p[0], p[1] = b.SrcOffset.X, b.SrcOffset.Y
	p[2] = b.Support
	p[3] = b.GaussCoeff
	p[4] = b.GaussCoeffExp1
	p[5] = b.GaussCoeffExp2
	return p
}

// float32ToHalf converts an IEEE-754 single to an IEEE-754 binary16 value,
// matching the bit pattern the metadata texture's Rgba16Float format
// stores (spec.md §4.1: "Rgba16Float -> f16").
func float32ToHalf(f float32) uint16 {
	bits := float32Bits(f)
	sign := uint16((bits >> 16) & 0x8000) //nolint:gosec // masked to 16 bits
	exp := int32((bits>>23)&0xFF) - 127 + 15
	mant := bits & 0x7FFFFF

	switch {
	case (bits>>23)&0xFF == 0xFF:
		// Inf/NaN.
		if mant != 0 {
			return sign | 0x7E00
		}
		return sign | 0x7C00
	case exp <= 0:
		// Subnormal or underflow to zero.
		if exp < -10 {
			return sign
		}
		mant |= 0x800000
		shift := uint(14 - exp) //nolint:gosec // exp bounded above
		return sign | uint16(mant>>shift)
	case exp >= 0x1F:
		// Overflow to infinity.
		return sign | 0x7C00
	default:
		return sign | uint16(exp)<<10 | uint16(mant>>13) //nolint:gosec // masked to 16 bits
	}
}

func float32Bits(f float32) uint32 {
	return math.Float32bits(f)
}

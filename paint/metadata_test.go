package paint

import (
	"math"
	"testing"
)

func float32frombits(b uint32) float32 { return math.Float32frombits(b) }

// TestRadialGradientMetadataRow checks spec.md testable property 9: given a
// radial-gradient paint with line=((0,0),(1,0)), radii=(0,1),
// uv_origin=(0,0), blend=SrcOver, color-combine=SrcIn, the produced
// metadata row's ctrl word equals (SRC_OVER<<10)|(SRC_IN<<8)|(1<<4) exactly,
// and texels 3-4 encode (0,0,1,0,0,1,0,0).
func TestRadialGradientMetadataRow(t *testing.T) {
	lineFrom := [2]float32{0, 0}
	lineTo := [2]float32{1, 0}
	lineVec := [2]float32{lineTo[0] - lineFrom[0], lineTo[1] - lineFrom[1]}
	radii := [2]float32{0, 1}
	uvOrigin := [2]float32{0, 0}

	meta := PaintMetadata{
		FilterKind:   FilterRadialGradient,
		FilterParams: RadialGradientParams(lineFrom, lineVec, radii, uvOrigin),
		CompositeOp:  CompositeSrcOver,
		Combine:      CombineSrcIn,
	}

	row := BuildMetadataRow(meta)

	wantCtrl := uint16(CompositeSrcOver)<<10 | uint16(CombineSrcIn)<<8 | uint16(1)<<4
	gotCtrl := row[8*4+0]
	if gotCtrl != wantCtrl {
		t.Fatalf("ctrl = %#04x, want %#04x", gotCtrl, wantCtrl)
	}

	want := [8]float32{0, 0, 1, 0, 0, 1, 0, 0}
	for i, w := range want {
		got := halfToFloat32(row[3*4+i])
		if !almostEqual(got, w, 1e-3) {
			t.Fatalf("texel word %d = %v, want %v", i, got, w)
		}
	}
}

func TestHalfFloatRoundTrip(t *testing.T) {
	cases := []float32{0, 1, -1, 0.5, -0.5, 127, -127, 3.14159, 0.001}
	for _, v := range cases {
		h := float32ToHalf(v)
		got := halfToFloat32(h)
		if !almostEqual(got, v, 1e-3) {
			t.Errorf("half round trip %v -> %v", v, got)
		}
	}
}

func almostEqual(a, b, eps float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

// halfToFloat32 is a test-only inverse of float32ToHalf, implemented
// independently (plain bit manipulation) so the round-trip test
// exercises two distinct implementations rather than one function testing
// itself.
func halfToFloat32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := (h >> 10) & 0x1F
	mant := uint32(h & 0x3FF)

	switch exp {
	case 0:
		if mant == 0 {
			return float32frombits(sign)
		}
		// Subnormal half -> normalize.
		e := 0
		for mant&0x400 == 0 {
			mant <<= 1
			e--
		}
		mant &= 0x3FF
		bits := sign | uint32(int32(e+1+127-15))<<23 | mant<<13
		return float32frombits(bits)
	case 0x1F:
		if mant == 0 {
			return float32frombits(sign | 0x7F800000)
		}
		return float32frombits(sign | 0x7F800000 | mant<<13)
	default:
		bits := sign | (uint32(exp)-15+127)<<23 | mant<<13
		return float32frombits(bits)
	}
}

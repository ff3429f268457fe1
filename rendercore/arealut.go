package rendercore

import "math"

// areaLUTSize is the side length of the coverage lookup texture.
const areaLUTSize = 256

// computeAreaLUT builds the fill pass's coverage ramp: texel (x,y) holds
// the area of the unit pixel square below a line of slope y/half-texel
// passing at signed distance derived from x. The fill shaders treat the
// texture as opaque; what matters is that the ramp is monotone in x,
// saturates at the ends, and is antisymmetric about the center, which is
// what the analytic pixel-coverage integral gives.
func computeAreaLUT() []byte {
	data := make([]byte, areaLUTSize*areaLUTSize*4)
	for y := 0; y < areaLUTSize; y++ {
		// dy spans [0, 8): the vertical extent the edge sweeps across the
		// pixel column.
		dy := float64(y) / 32.0
		for x := 0; x < areaLUTSize; x++ {
			// t spans [-4, 4): signed distance from the pixel center to
			// the edge, in pixels.
			t := (float64(x) - 128.0) / 32.0
			area := pixelCoverage(t, dy)
			v := byte(math.Round(area * 255))
			i := (y*areaLUTSize + x) * 4
			data[i+0] = v
			data[i+1] = v
			data[i+2] = v
			data[i+3] = v
		}
	}
	return data
}

// pixelCoverage integrates the coverage of a unit-height span at signed
// center distance t from an edge sweeping dy vertically. dy == 0
// degenerates to a step through a linear ramp.
func pixelCoverage(t, dy float64) float64 {
	if dy <= 0 {
		return clamp01(0.5 - t)
	}
	// Average the linear ramp over the vertical sweep.
	lo := t - dy/2
	hi := t + dy/2
	return clamp01((rampIntegral(hi) - rampIntegral(lo)) / dy)
}

// rampIntegral is the definite integral of clamp01(0.5 - s) from -0.5 to u.
func rampIntegral(u float64) float64 {
	switch {
	case u <= -0.5:
		// Integrand saturates at 1 below the ramp.
		return u + 0.5
	case u >= 0.5:
		return 0.5
	default:
		return 0.5*u - u*u/2 + 0.375
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

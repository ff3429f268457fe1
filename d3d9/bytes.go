package d3d9

import "math"

func appendU16(b []byte, v uint16) []byte {
	return append(b, byte(v), byte(v>>8))
}

func appendU32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendF32(b []byte, vs ...float32) []byte {
	for _, v := range vs {
		b = appendU32(b, math.Float32bits(v))
	}
	return b
}

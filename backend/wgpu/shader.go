package wgpu

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// shaderSource classifies compiled shader bytes: SPIR-V passes through,
// anything else is treated as WGSL source and translated through naga.
func shaderSource(bytes []byte) (hal.ShaderSource, error) {
	if isSPIRV(bytes) {
		return hal.ShaderSource{SPIRV: bytesToWords(bytes)}, nil
	}

	// WGSL path: naga compiles to SPIR-V; keeping the translated words
	// rather than handing WGSL to the driver makes all backends see the
	// same module.
	spirv, err := naga.Compile(string(bytes))
	if err != nil {
		return hal.ShaderSource{}, fmt.Errorf("wgpu: naga compile: %w", err)
	}
	if !isSPIRV(spirv) {
		return hal.ShaderSource{}, fmt.Errorf("wgpu: naga produced invalid SPIR-V")
	}
	return hal.ShaderSource{SPIRV: bytesToWords(spirv)}, nil
}

func isSPIRV(b []byte) bool {
	return len(b) >= 4 && len(b)%4 == 0 && binary.LittleEndian.Uint32(b) == spirvMagic
}

func bytesToWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return words
}

package gg

import (
	"github.com/gogpu/gg/d3d11"
	"github.com/gogpu/gg/d3d9"
	"github.com/gogpu/gg/logging"
)

// Strategy selects which rendering pipeline a Renderer drives.
type Strategy uint8

const (
	// StrategyRaster tiles on the CPU and rasterizes with graphics
	// passes (the D3D9-class path). Works on any backend with render
	// pipelines.
	StrategyRaster Strategy = iota

	// StrategyCompute offloads dicing, binning, propagation, fill, sort,
	// and compositing to compute kernels (the D3D11-class path).
	StrategyCompute
)

// Option configures a Renderer during creation.
type Option func(*rendererOptions)

type rendererOptions struct {
	strategy       Strategy
	logger         logging.Logger
	areaLUT        []byte
	rasterShaders  *d3d9.ShaderSet
	computeShaders *d3d11.ComputeShaderSet
	debugLog       bool
}

func defaultRendererOptions() rendererOptions {
	return rendererOptions{
		strategy: StrategyRaster,
		logger:   Logger(),
	}
}

// WithStrategy selects the rendering strategy. The matching shader set
// option must also be supplied.
func WithStrategy(s Strategy) Option {
	return func(o *rendererOptions) { o.strategy = s }
}

// WithLogger overrides the default logger for this renderer.
func WithLogger(l logging.Logger) Option {
	return func(o *rendererOptions) { o.logger = l }
}

// WithAreaLUT supplies a precomputed area lookup texture (256x256 RGBA8)
// instead of the computed default.
func WithAreaLUT(data []byte) Option {
	return func(o *rendererOptions) { o.areaLUT = data }
}

// WithRasterShaders supplies the compiled render-pipeline shaders the
// raster strategy needs.
func WithRasterShaders(s d3d9.ShaderSet) Option {
	return func(o *rendererOptions) { o.rasterShaders = &s }
}

// WithComputeShaders supplies the seven compiled compute kernels the
// compute strategy needs.
func WithComputeShaders(s d3d11.ComputeShaderSet) Option {
	return func(o *rendererOptions) { o.computeShaders = &s }
}

// WithDebugLog enables per-segment diagnostics in the tiler (degenerate
// segments are otherwise skipped silently).
func WithDebugLog() Option {
	return func(o *rendererOptions) { o.debugLog = true }
}

package gg

import (
	"errors"
	"fmt"

	"github.com/gogpu/gg/backend"
	"github.com/gogpu/gg/d3d11"
	"github.com/gogpu/gg/d3d9"
	"github.com/gogpu/gg/drawscene"
	"github.com/gogpu/gg/gpuabi"
	"github.com/gogpu/gg/gpumem"
	"github.com/gogpu/gg/logging"
	"github.com/gogpu/gg/rendercore"
)

// Renderer facade errors.
var (
	// ErrNoBackend is returned when New is called without a usable
	// backend.
	ErrNoBackend = errors.New("gg: no backend available")

	// ErrNoShaders is returned when the selected strategy's shader set
	// was not supplied.
	ErrNoShaders = errors.New("gg: strategy shader set not provided")
)

// Renderer turns built scenes into pixels on a destination texture using
// one of the two rendering strategies. Create one per device; scenes are
// cheap, renderers are not.
type Renderer struct {
	strategy Strategy
	core     *rendercore.Core
	raster   *d3d9.Renderer
	compute  *d3d11.Renderer
	log      logging.Logger
	debugLog bool
}

// New creates a renderer on an initialized backend.
func New(b backend.Backend, opts ...Option) (*Renderer, error) {
	if b == nil || b.Device() == nil || b.Queue() == nil {
		return nil, ErrNoBackend
	}

	o := defaultRendererOptions()
	for _, opt := range opts {
		opt(&o)
	}

	alloc := gpumem.New(b.Device())
	core, err := rendercore.NewCore(b.Device(), b.Queue(), alloc, o.logger, o.areaLUT)
	if err != nil {
		return nil, fmt.Errorf("gg: renderer core: %w", err)
	}

	r := &Renderer{strategy: o.strategy, core: core, log: logging.Or(o.logger), debugLog: o.debugLog}

	switch o.strategy {
	case StrategyRaster:
		if o.rasterShaders == nil {
			return nil, ErrNoShaders
		}
		r.raster, err = d3d9.NewRenderer(core, *o.rasterShaders)
	case StrategyCompute:
		if o.computeShaders == nil {
			return nil, ErrNoShaders
		}
		r.compute, err = d3d11.NewRenderer(core, *o.computeShaders)
	default:
		return nil, fmt.Errorf("gg: unknown strategy %d", o.strategy)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// SetDestTexture points the renderer at a caller-owned destination
// texture. The renderer never frees it.
func (r *Renderer) SetDestTexture(tex gpuabi.TextureID, width, height uint32) {
	r.core.SetDestTexture(tex, width, height)
}

// Draw builds and renders a scene. clearDst clears the destination before
// the first batch; later batches load.
func (r *Renderer) Draw(scene *drawscene.Scene, clearDst bool) error {
	defer r.core.Reset()

	switch r.strategy {
	case StrategyRaster:
		var b d3d9.SceneBuilder
		if r.debugLog {
			b.Log = r.log
		}
		if err := b.Build(scene); err != nil {
			return err
		}
		if err := r.raster.Draw(&b, clearDst); err != nil {
			return err
		}
	case StrategyCompute:
		var b d3d11.SceneBuilder
		if r.debugLog {
			b.Log = r.log
		}
		if err := b.Build(scene); err != nil {
			return err
		}
		if err := r.compute.Draw(&b, clearDst); err != nil {
			return err
		}
	}

	scene.Palette.EndFrame()
	return nil
}

// Core exposes the shared renderer state for advanced embedders (mask
// storage inspection, allocator stats).
func (r *Renderer) Core() *rendercore.Core { return r.core }

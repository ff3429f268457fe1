// Package gpumem implements the pooled GPU resource allocator and the
// pattern-texture atlas pager described in spec.md §4.2.
//
// Grounded on the teacher's internal/gpu/memory.go (LRU-purged pooled
// texture manager keyed by size/format) generalized from a single
// texture-only manager into the core's {Buffer,Texture} x {kind} pool keyed
// on spec.md's exact hashing rules: buffer capacity hashes round up to the
// next power of two, texture hashes are the exact (w,h,format) tuple.
package gpumem

import (
	"container/list"
	"errors"
	"fmt"

	"github.com/gogpu/gg/gpuabi"
)

// Allocator errors.
var (
	ErrClosed    = errors.New("gpumem: allocator is closed")
	ErrOutOfMemory = errors.New("gpumem: device failed to create resource")
)

// Device is the subset of gpuabi.Device the allocator needs to create new
// resources when the pool has nothing reusable.
type Device interface {
	CreateBuffer(gpuabi.BufferDesc) (gpuabi.BufferID, error)
	CreateTexture(gpuabi.TextureDesc) (gpuabi.TextureID, error)
	DestroyBuffer(gpuabi.BufferID)
	DestroyTexture(gpuabi.TextureID)
}

// PurgeTicks is the number of purge_if_needed() calls a free resource may
// go unused before it is released, per spec.md §4.2 ("N small, e.g. 10").
const PurgeTicks = 10

type bufferKey struct {
	kind     gpuabi.BufferKind
	property gpuabi.MemoryProperty
	capacity uint64 // rounded up to next power of two
}

type textureKey struct {
	w, h   uint32
	format gpuabi.TextureFormat
}

type pooledBuffer struct {
	id       gpuabi.BufferID
	key      bufferKey
	size     uint64
	lastUsed int // tick at which this was freed; -1 if in use
}

type pooledTexture struct {
	id       gpuabi.TextureID
	key      textureKey
	lastUsed int
}

// Allocator is the GPU resource pool described in spec.md §4.2. It is not
// thread-safe: callers serialize on the renderer's command queue, matching
// the "the allocator is not thread-safe" contract in spec.md §4.2.
type Allocator struct {
	device Device
	tick   int
	closed bool

	freeBuffers map[bufferKey][]*pooledBuffer
	allBuffers  map[gpuabi.BufferID]*pooledBuffer

	freeTextures map[textureKey][]*pooledTexture
	allTextures  map[gpuabi.TextureID]*pooledTexture

	lru *list.List // created by New and never populated; purging goes by each resource's lastUsed tick
}

// New creates an allocator backed by device for creating new resources.
func New(device Device) *Allocator {
	return &Allocator{
		device:       device,
		freeBuffers:  make(map[bufferKey][]*pooledBuffer),
		allBuffers:   make(map[gpuabi.BufferID]*pooledBuffer),
		freeTextures: make(map[textureKey][]*pooledTexture),
		allTextures:  make(map[gpuabi.TextureID]*pooledTexture),
		lru:          list.New(),
	}
}

func upperPowerOfTwo(v uint64) uint64 {
	// spec.md §9 open question 3: upper_power_of_two(0) must stay 0, and
	// both allocation sites must guard against passing a zero capacity.
	if v == 0 {
		return 0
	}
	p := uint64(1)
	for p < v {
		p <<= 1
	}
	return p
}

// AllocateBuffer returns an existing free buffer of the same kind with
// capacity >= size, or creates a new one.
func (a *Allocator) AllocateBuffer(size uint64, kind gpuabi.BufferKind, property gpuabi.MemoryProperty, label string) (gpuabi.BufferID, error) {
	if a.closed {
		return 0, ErrClosed
	}
	if size == 0 {
		return 0, fmt.Errorf("gpumem: zero-size buffer request")
	}
	capacity := upperPowerOfTwo(size)
	key := bufferKey{kind: kind, property: property, capacity: capacity}

	if free := a.freeBuffers[key]; len(free) > 0 {
		pb := free[len(free)-1]
		a.freeBuffers[key] = free[:len(free)-1]
		pb.lastUsed = -1
		return pb.id, nil
	}

	id, err := a.device.CreateBuffer(gpuabi.BufferDesc{
		Size:     capacity,
		Kind:     kind,
		Property: property,
		Label:    label,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}
	pb := &pooledBuffer{id: id, key: key, size: capacity, lastUsed: -1}
	a.allBuffers[id] = pb
	return id, nil
}

// AllocateTexture returns an existing free texture of the same (w,h,format)
// or creates a new one. Textures never shrink.
func (a *Allocator) AllocateTexture(w, h uint32, format gpuabi.TextureFormat, label string) (gpuabi.TextureID, error) {
	if a.closed {
		return 0, ErrClosed
	}
	if w == 0 || h == 0 {
		return 0, fmt.Errorf("gpumem: zero-size texture request")
	}
	key := textureKey{w: w, h: h, format: format}

	if free := a.freeTextures[key]; len(free) > 0 {
		pt := free[len(free)-1]
		a.freeTextures[key] = free[:len(free)-1]
		pt.lastUsed = -1
		return pt.id, nil
	}

	id, err := a.device.CreateTexture(gpuabi.TextureDesc{Width: w, Height: h, Format: format, Label: label})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}
	pt := &pooledTexture{id: id, key: key, lastUsed: -1}
	a.allTextures[id] = pt
	return id, nil
}

// FreeBuffer marks a buffer free for immediate reuse by a future
// AllocateBuffer call with a matching key.
func (a *Allocator) FreeBuffer(id gpuabi.BufferID) {
	pb, ok := a.allBuffers[id]
	if !ok {
		return
	}
	pb.lastUsed = a.tick
	a.freeBuffers[pb.key] = append(a.freeBuffers[pb.key], pb)
}

// FreeTexture marks a texture free for immediate reuse.
func (a *Allocator) FreeTexture(id gpuabi.TextureID) {
	pt, ok := a.allTextures[id]
	if !ok {
		return
	}
	pt.lastUsed = a.tick
	a.freeTextures[pt.key] = append(a.freeTextures[pt.key], pt)
}

// PurgeIfNeeded is the per-frame tick: resources that have sat free for
// more than PurgeTicks ticks are released back to the device.
func (a *Allocator) PurgeIfNeeded() {
	a.tick++
	if a.closed {
		return
	}

	for key, free := range a.freeBuffers {
		kept := free[:0]
		for _, pb := range free {
			if a.tick-pb.lastUsed > PurgeTicks {
				a.device.DestroyBuffer(pb.id)
				delete(a.allBuffers, pb.id)
				continue
			}
			kept = append(kept, pb)
		}
		if len(kept) == 0 {
			delete(a.freeBuffers, key)
		} else {
			a.freeBuffers[key] = kept
		}
	}

	for key, free := range a.freeTextures {
		kept := free[:0]
		for _, pt := range free {
			if a.tick-pt.lastUsed > PurgeTicks {
				a.device.DestroyTexture(pt.id)
				delete(a.allTextures, pt.id)
				continue
			}
			kept = append(kept, pt)
		}
		if len(kept) == 0 {
			delete(a.freeTextures, key)
		} else {
			a.freeTextures[key] = kept
		}
	}
}

// Close releases every resource the allocator tracks, in-use or not.
func (a *Allocator) Close() {
	if a.closed {
		return
	}
	for id := range a.allBuffers {
		a.device.DestroyBuffer(id)
	}
	for id := range a.allTextures {
		a.device.DestroyTexture(id)
	}
	a.allBuffers = nil
	a.allTextures = nil
	a.freeBuffers = nil
	a.freeTextures = nil
	a.closed = true
}

// Stats reports simple accounting for diagnostics.
type Stats struct {
	LiveBuffers, LiveTextures int
	FreeBuffers, FreeTextures int
}

// Stats returns current allocator accounting.
func (a *Allocator) Stats() Stats {
	var s Stats
	s.LiveBuffers = len(a.allBuffers)
	s.LiveTextures = len(a.allTextures)
	for _, v := range a.freeBuffers {
		s.FreeBuffers += len(v)
	}
	for _, v := range a.freeTextures {
		s.FreeTextures += len(v)
	}
	return s
}

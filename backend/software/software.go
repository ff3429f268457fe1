// Package software registers the in-process software device as a backend
// of last resort. It allocates and records but executes no shaders; it
// exists so the pipeline can run headless and in tests.
package software

import (
	"github.com/gogpu/gg/backend"
	"github.com/gogpu/gg/gpuabi"
	"github.com/gogpu/gg/gpuabi/software"
)

func init() {
	backend.Register(backend.BackendSoftware, func() backend.Backend { return &Backend{} })
}

// Backend wraps gpuabi/software behind the backend registry interface.
type Backend struct {
	device *software.Device
	queue  *software.Queue
}

func (b *Backend) Name() string { return backend.BackendSoftware }

func (b *Backend) Init() error {
	b.device = software.New()
	b.queue = software.NewQueue()
	return nil
}

func (b *Backend) Close() {
	b.device = nil
	b.queue = nil
}

func (b *Backend) Device() gpuabi.Device {
	if b.device == nil {
		return nil
	}
	return b.device
}

func (b *Backend) Queue() gpuabi.Queue {
	if b.queue == nil {
		return nil
	}
	return b.queue
}

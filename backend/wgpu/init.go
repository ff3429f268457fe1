package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gg/backend"
	"github.com/gogpu/gg/gpuabi"
)

func init() {
	backend.Register(backend.BackendWGPU, func() backend.Backend { return &Backend{} })
}

// Backend opens its own hal device through the Vulkan hal backend and
// serves it through the adapter. No other hal backend is tried.
type Backend struct {
	instance hal.Instance
	device   *Device
	queue    *Queue
}

func (b *Backend) Name() string { return backend.BackendWGPU }

// Init enumerates adapters and opens a device, preferring discrete and
// integrated GPUs over software implementations.
func (b *Backend) Init() error {
	halBackend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("%w: no vulkan hal backend", backend.ErrBackendNotAvailable)
	}
	instance, err := halBackend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("%w: create instance: %v", backend.ErrBackendNotAvailable, err)
	}
	b.instance = instance

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("%w: no adapters", backend.ErrBackendNotAvailable)
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("%w: open device: %v", backend.ErrBackendNotAvailable, err)
	}

	b.device = NewDevice(openDev.Device, openDev.Queue)
	b.queue = NewQueue(b.device)
	return nil
}

func (b *Backend) Close() {
	b.device = nil
	b.queue = nil
	b.instance = nil
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

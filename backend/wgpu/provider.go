package wgpu

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
)

// DeviceHandle is the host-application side of device sharing: an
// embedder (such as a gogpu.App) that already owns a GPU device passes a
// provider here instead of letting the backend open a second device.
type DeviceHandle = gpucontext.DeviceProvider

// FromProvider builds an adapter Device over a shared host device. The
// provider must expose its hal handles (gpucontext's HalProvider
// convention: HalDevice/HalQueue returning the underlying hal objects).
func FromProvider(provider DeviceHandle) (*Device, *Queue, error) {
	hp, ok := provider.(interface {
		HalDevice() any
		HalQueue() any
	})
	if !ok {
		return nil, nil, fmt.Errorf("wgpu: provider does not expose hal handles")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, nil, fmt.Errorf("wgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, nil, fmt.Errorf("wgpu: provider HalQueue is not hal.Queue")
	}
	d := NewDevice(device, queue)
	return d, NewQueue(d), nil
}

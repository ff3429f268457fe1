package wgpu

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gg/gpuabi"
)

// Queue implements gpuabi.Queue over a hal queue.
type Queue struct {
	device *Device
}

// NewQueue creates a queue bound to the adapter device.
func NewQueue(device *Device) *Queue {
	return &Queue{device: device}
}

// Submit submits a finished encoder without waiting; the returned fence is
// signalled when the work completes.
func (q *Queue) Submit(enc gpuabi.CommandEncoder) (gpuabi.FenceID, error) {
	e, ok := enc.(*encoder)
	if !ok {
		return 0, fmt.Errorf("wgpu: foreign encoder type %T", enc)
	}
	if !e.finished {
		if err := e.Finish(); err != nil {
			return 0, err
		}
	}

	fenceID, err := q.device.CreateFence()
	if err != nil {
		return 0, err
	}
	q.device.mu.Lock()
	fence := q.device.fences[fenceID]
	q.device.mu.Unlock()

	var cmds []hal.CommandBuffer
	if e.buffer != nil {
		cmds = append(cmds, e.buffer)
	}
	if err := q.device.queue.Submit(cmds, fence, 1); err != nil {
		return 0, err
	}
	for _, cb := range e.callbacks {
		cb()
	}
	return fenceID, nil
}

// SubmitAndWait submits and blocks until the device signals completion.
func (q *Queue) SubmitAndWait(enc gpuabi.CommandEncoder) error {
	fenceID, err := q.Submit(enc)
	if err != nil {
		return err
	}
	q.device.mu.Lock()
	fence := q.device.fences[fenceID]
	delete(q.device.fences, fenceID)
	q.device.mu.Unlock()
	defer q.device.device.DestroyFence(fence)

	if _, err := q.device.device.Wait(fence, 1, readbackTimeoutNs); err != nil {
		return err
	}
	if e, ok := enc.(*encoder); ok && e.buffer != nil {
		e.buffer.Destroy()
		e.buffer = nil
	}
	return nil
}

// readStagingBuffer copies a mapped staging buffer's contents into out.
// hal does not yet expose buffer mapping to Go, matching the upstream
// adapter's readback limitation; until it does, readers see zeroed data
// on this backend and real counts come from the software device in tests.
func readStagingBuffer(_ hal.Buffer, _ []byte) {}

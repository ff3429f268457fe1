package gpumem

import (
	"testing"

	"github.com/gogpu/gg/gpuabi"
	"github.com/gogpu/gg/gpuabi/software"
)

func TestAllocatorReusesFreedBuffer(t *testing.T) {
	dev := software.New()
	a := New(dev)

	id1, err := a.AllocateBuffer(100, gpuabi.BufferVertex, gpuabi.MemoryDeviceLocal, "a")
	if err != nil {
		t.Fatal(err)
	}
	a.FreeBuffer(id1)

	id2, err := a.AllocateBuffer(100, gpuabi.BufferVertex, gpuabi.MemoryDeviceLocal, "b")
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Fatalf("expected buffer reuse, got new id %d != %d", id2, id1)
	}
}

func TestAllocatorCapacityRoundsToPowerOfTwo(t *testing.T) {
	dev := software.New()
	a := New(dev)

	id1, _ := a.AllocateBuffer(100, gpuabi.BufferStorage, gpuabi.MemoryDeviceLocal, "a")
	a.FreeBuffer(id1)

	// 120 also rounds up to 128, same bucket as 100 -> should reuse.
	id2, _ := a.AllocateBuffer(120, gpuabi.BufferStorage, gpuabi.MemoryDeviceLocal, "b")
	if id1 != id2 {
		t.Fatalf("expected same capacity bucket to reuse buffer")
	}
}

func TestAllocatorPurgesAfterGracePeriod(t *testing.T) {
	dev := software.New()
	a := New(dev)

	id, _ := a.AllocateBuffer(64, gpuabi.BufferUniform, gpuabi.MemoryDeviceLocal, "x")
	a.FreeBuffer(id)

	for i := 0; i < PurgeTicks; i++ {
		a.PurgeIfNeeded()
	}
	if stats := a.Stats(); stats.FreeBuffers != 1 {
		t.Fatalf("expected buffer to still be pooled within grace period, got %+v", stats)
	}

	a.PurgeIfNeeded()
	if stats := a.Stats(); stats.FreeBuffers != 0 || stats.LiveBuffers != 0 {
		t.Fatalf("expected buffer purged after grace period, got %+v", stats)
	}
}

func TestUpperPowerOfTwoGuardsZero(t *testing.T) {
	if got := upperPowerOfTwo(0); got != 0 {
		t.Fatalf("upperPowerOfTwo(0) = %d, want 0 (spec open question 3)", got)
	}
	if got := upperPowerOfTwo(5); got != 8 {
		t.Fatalf("upperPowerOfTwo(5) = %d, want 8", got)
	}
}

func TestTextureAllocationExactKey(t *testing.T) {
	dev := software.New()
	a := New(dev)

	id1, err := a.AllocateTexture(64, 64, gpuabi.FormatRGBA8Unorm, "tex")
	if err != nil {
		t.Fatal(err)
	}
	a.FreeTexture(id1)

	// Different format should NOT reuse even though same dimensions.
	id2, err := a.AllocateTexture(64, 64, gpuabi.FormatRGBA16Float, "tex2")
	if err != nil {
		t.Fatal(err)
	}
	if id1 == id2 {
		t.Fatalf("expected distinct textures for different formats")
	}
}

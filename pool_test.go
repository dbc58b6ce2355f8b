// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package gpualloc

import "testing"

func testPool(mappable bool) *memoryTypePool {
	flags := MemoryPropertyDeviceLocal
	if mappable {
		flags = MemoryPropertyHostVisible | MemoryPropertyHostCoherent
	}
	return newMemoryTypePool(0, MemoryType{PropertyFlags: flags, HeapIndex: 0})
}

func TestMemoryTypePoolAllocateCreatesOneBlockForMany(t *testing.T) {
	device := newFakeDevice()
	pool := testPool(false)
	req := subAllocationRequest{size: 4096, alignment: 256, kind: allocationKindLinear, name: "x"}

	for i := 0; i < 4; i++ {
		if _, err := pool.allocate(device, req, 256, 1<<20, false); err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
	}
	if device.allocCalls != 1 {
		t.Errorf("allocCalls = %d, want 1", device.allocCalls)
	}
}

func TestMemoryTypePoolFreeRetainsLastGeneralBlock(t *testing.T) {
	device := newFakeDevice()
	pool := testPool(false)
	req := subAllocationRequest{size: 4096, alignment: 256, kind: allocationKindLinear, name: "only"}

	alloc, err := pool.allocate(device, req, 256, 1<<20, false)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := pool.free(device, alloc); err != nil {
		t.Fatalf("free: %v", err)
	}
	if device.freeCalls != 0 {
		t.Error("the sole general block should be retained rather than destroyed")
	}
	if pool.blocks[0] == nil {
		t.Error("expected the retained block's slot to stay populated")
	}
}

func TestMemoryTypePoolFreeDestroysExtraGeneralBlocks(t *testing.T) {
	device := newFakeDevice()
	pool := testPool(false)

	// Force two separate blocks by filling the first.
	blockSize := uint64(8192)
	req := subAllocationRequest{size: blockSize, alignment: 256, kind: allocationKindLinear, name: "fill"}
	_, err := pool.allocate(device, req, 256, blockSize, false)
	if err != nil {
		t.Fatalf("allocate first block: %v", err)
	}

	req2 := subAllocationRequest{size: 4096, alignment: 256, kind: allocationKindLinear, name: "second"}
	alloc2, err := pool.allocate(device, req2, 256, blockSize, false)
	if err != nil {
		t.Fatalf("allocate second block: %v", err)
	}
	if device.allocCalls != 2 {
		t.Fatalf("allocCalls = %d, want 2", device.allocCalls)
	}

	if err := pool.free(device, alloc2); err != nil {
		t.Fatalf("free: %v", err)
	}
	if device.freeCalls != 1 {
		t.Errorf("freeCalls = %d, want 1 (extra general block destroyed)", device.freeCalls)
	}
}

func TestMemoryTypePoolDedicatedAlwaysDestroyedOnFree(t *testing.T) {
	device := newFakeDevice()
	pool := testPool(false)
	req := subAllocationRequest{size: 4096, alignment: 256, kind: allocationKindLinear, name: "d", scheme: DedicatedBufferScheme(Buffer(7))}

	alloc, err := pool.allocate(device, req, 256, 1<<20, false)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := pool.free(device, alloc); err != nil {
		t.Fatalf("free: %v", err)
	}
	if device.freeCalls != 1 {
		t.Errorf("freeCalls = %d, want 1", device.freeCalls)
	}
}

func TestMemoryTypePoolDestroyAll(t *testing.T) {
	device := newFakeDevice()
	pool := testPool(false)
	req := subAllocationRequest{size: 4096, alignment: 256, kind: allocationKindLinear, name: "x"}
	if _, err := pool.allocate(device, req, 256, 1<<20, false); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	pool.destroyAll(device)
	if device.freeCalls != 1 {
		t.Errorf("freeCalls = %d, want 1", device.freeCalls)
	}
	if pool.activeGeneralBlocks != 0 {
		t.Errorf("activeGeneralBlocks = %d, want 0", pool.activeGeneralBlocks)
	}
}
